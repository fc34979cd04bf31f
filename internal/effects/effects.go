// Package effects implements the ActiveEffects and Cooldowns containers
// that sit inside every entity: buff/debuff bookkeeping with lazy
// time-based expiry, stat aggregation, and absorb consumption.
package effects

import "sync"

// Kind is the effect's behavioral category.
type Kind int

const (
	Absorb Kind = iota
	StatModifier
	DamageBoost
	HealBoost
	PeriodicDamage
	PeriodicHeal
)

// Stat names the attribute a StatModifier effect targets. Left as a
// plain string (rather than a closed enum) so content data can define
// new stats without a code change.
type Stat string

// Buff is one applied BuffDebuff instance.
type Buff struct {
	ID         uint32
	SpellID    uint32
	Kind       Kind
	Amount     int32
	Stat       Stat
	DurationMs int64
	IsDebuff   bool
	CasterGUID uint64
	ExpiresAt  int64 // monotonic ms
}

// Container is the ActiveEffects map: at most one entry per buff ID,
// with reapplication replacing the prior entry in place.
type Container struct {
	mu    sync.Mutex
	byID  map[uint32]*Buff
	order []uint32 // insertion order, used by ConsumeAbsorb
}

// NewContainer returns an empty ActiveEffects container.
func NewContainer() *Container {
	return &Container{byID: make(map[uint32]*Buff)}
}

// Apply installs b, replacing any existing entry with the same ID.
// expiresAt must already be computed by the caller as now+duration; this
// keeps Container free of any notion of "now" beyond what callers pass.
func (c *Container) Apply(b Buff) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byID[b.ID]; !exists {
		c.order = append(c.order, b.ID)
	}
	cp := b
	c.byID[b.ID] = &cp
}

// Remove deletes buff id, if present.
func (c *Container) Remove(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(id)
}

func (c *Container) removeLocked(id uint32) {
	if _, ok := c.byID[id]; !ok {
		return
	}
	delete(c.byID, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// IsActiveAt reports whether buff id exists and has not expired at t.
// expires_at > t is the only source of truth.
func (c *Container) IsActiveAt(id uint32, t int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.byID[id]
	return ok && b.ExpiresAt > t
}

// RemainingMs returns how long buff id has left at time t, or 0 if
// absent/expired.
func (c *Container) RemainingMs(id uint32, t int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.byID[id]
	if !ok || b.ExpiresAt <= t {
		return 0
	}
	return b.ExpiresAt - t
}

// Get returns a copy of buff id if active at t.
func (c *Container) Get(id uint32, t int64) (Buff, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.byID[id]
	if !ok || b.ExpiresAt <= t {
		return Buff{}, false
	}
	return *b, true
}

// StatTotal sums Amount over active StatModifier effects matching stat.
// Debuffs contribute with whatever sign the caller supplied.
func (c *Container) StatTotal(stat Stat, t int64) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int32
	for _, b := range c.byID {
		if b.Kind == StatModifier && b.Stat == stat && b.ExpiresAt > t {
			total += b.Amount
		}
	}
	return total
}

// TotalAbsorbRemaining sums Amount over active Absorb effects.
func (c *Container) TotalAbsorbRemaining(t int64) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int32
	for _, b := range c.byID {
		if b.Kind == Absorb && b.ExpiresAt > t {
			total += b.Amount
		}
	}
	return total
}

// ConsumeAbsorb reduces incoming damage by active absorb shields, in
// insertion order. Each shield absorbs min(dmg, amount); a shield
// reduced to zero is removed, one partially consumed keeps its reduced
// amount and unchanged expiry. Returns the total absorbed and the
// damage remaining after absorption.
func (c *Container) ConsumeAbsorb(dmg int32, t int64) (absorbed int32, remaining int32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining = dmg
	// iterate over a snapshot of order since removeLocked mutates it
	ids := make([]uint32, len(c.order))
	copy(ids, c.order)

	for _, id := range ids {
		if remaining <= 0 {
			break
		}
		b, ok := c.byID[id]
		if !ok || b.Kind != Absorb || b.ExpiresAt <= t {
			continue
		}
		take := remaining
		if b.Amount < take {
			take = b.Amount
		}
		b.Amount -= take
		remaining -= take
		absorbed += take
		if b.Amount <= 0 {
			c.removeLocked(id)
		}
	}
	return absorbed, remaining
}

// Expired returns the IDs of every buff with ExpiresAt <= t, without
// removing them — callers (ZoneInstance) use this to broadcast removals
// before actually removing.
func (c *Container) Expired(t int64) []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []uint32
	for id, b := range c.byID {
		if b.ExpiresAt <= t {
			ids = append(ids, id)
		}
	}
	return ids
}

// Cooldowns tracks per-spell readiness plus a single shared GCD.
type Cooldowns struct {
	mu         sync.Mutex
	readyAt    map[uint32]int64
	gcdReadyAt int64
}

// NewCooldowns returns a Cooldowns container with everything ready.
func NewCooldowns() *Cooldowns {
	return &Cooldowns{readyAt: make(map[uint32]int64)}
}

// SetCooldown marks spellID ready at readyAt (duration 0 means "ready
// now", since callers pass now+0).
func (c *Cooldowns) SetCooldown(spellID uint32, readyAt int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readyAt[spellID] = readyAt
}

// SetGCD sets the shared global-cooldown deadline.
func (c *Cooldowns) SetGCD(readyAt int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gcdReadyAt = readyAt
}

// CanCast reports whether spellID may be cast at now: its own cooldown
// must be ready, and if it triggers the GCD, the GCD must be ready too.
func (c *Cooldowns) CanCast(spellID uint32, triggersGCD bool, now int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ready := c.readyAt[spellID]; now < ready {
		return false
	}
	if triggersGCD && now < c.gcdReadyAt {
		return false
	}
	return true
}

// ReadyAt returns the spell's current cooldown deadline (0 if never set).
func (c *Cooldowns) ReadyAt(spellID uint32) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyAt[spellID]
}

// GCDReadyAt returns the current GCD deadline.
func (c *Cooldowns) GCDReadyAt() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gcdReadyAt
}
