package spellengine

import "sync"

// CastState tracks the single in-progress cast for one caster, if any.
// A caster may have at most one active cast.
type CastState struct {
	mu            sync.Mutex
	active        bool
	spellID       uint32
	targetGUID    uint64
	castDeadline  int64
	interruptedAt int64
	damageTaken   int32
}

// NewCastState returns an idle CastState.
func NewCastState() *CastState {
	return &CastState{}
}

// Begin starts tracking a non-instant cast ending at castDeadline.
// Overwrites any cast already in progress.
func (c *CastState) Begin(spellID uint32, targetGUID uint64, castDeadline int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = true
	c.spellID = spellID
	c.targetGUID = targetGUID
	c.castDeadline = castDeadline
	c.damageTaken = 0
	c.interruptedAt = 0
}

// InProgress reports whether a cast is currently active.
func (c *CastState) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// NotifyDamage records incoming damage against the interrupt threshold.
// If cumulative damage since cast start exceeds threshold, the cast is
// interrupted; the caller should fail the cast with CastInterrupted.
func (c *CastState) NotifyDamage(amount int32, threshold int32, now int64) (interrupted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || threshold <= 0 {
		return false
	}
	c.damageTaken += amount
	if c.damageTaken > threshold {
		c.active = false
		c.interruptedAt = now
		return true
	}
	return false
}

// Complete reports whether the cast is due to finish at or before now,
// returning the spell/target it was cast with. Clears the in-progress
// state either way once the deadline has passed.
func (c *CastState) Complete(now int64) (spellID uint32, targetGUID uint64, ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || now < c.castDeadline {
		return 0, 0, false
	}
	spellID, targetGUID = c.spellID, c.targetGUID
	c.active = false
	return spellID, targetGUID, true
}

// Cancel clears any in-progress cast without completing it.
func (c *CastState) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
}
