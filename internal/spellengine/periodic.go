package spellengine

import "sync"

// periodicInstance is one DoT/HoT effect scheduled against an entity.
type periodicInstance struct {
	effect         SpellEffect
	casterGUID     uint64
	nextTickAt     int64
	ticksRemaining int64
}

// DotHotScheduler tracks the periodic (DoT/HoT) effects active on one
// entity, keyed by the ActiveEffects buff ID they ride alongside, and
// advances them tick by tick.
type DotHotScheduler struct {
	mu        sync.Mutex
	instances map[uint32]*periodicInstance
}

// NewDotHotScheduler returns an empty scheduler.
func NewDotHotScheduler() *DotHotScheduler {
	return &DotHotScheduler{instances: make(map[uint32]*periodicInstance)}
}

// Reapply (re)installs buffID's periodic schedule: next_tick_at resets to
// now+tick_interval_ms and the tick budget restarts at the effect's full
// duration. A concurrent reapplication therefore always wins over
// whatever ticks the prior application had left, matching the reset of
// the ActiveEffects entry's own expires_at on reapply.
func (s *DotHotScheduler) Reapply(buffID uint32, eff SpellEffect, casterGUID uint64, now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[buffID] = &periodicInstance{
		effect:         eff,
		casterGUID:     casterGUID,
		nextTickAt:     now + eff.TickIntervalMs,
		ticksRemaining: TickCount(eff),
	}
}

// Remove stops scheduling buffID, e.g. once its ActiveEffects entry
// expires or is dispelled.
func (s *DotHotScheduler) Remove(buffID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.instances, buffID)
}

// DueTick is one scheduled instance's pending work as of a tick, with
// any missed windows coalesced into a single batch per the periodic
// tick policy.
type DueTick struct {
	BuffID     uint32
	Effect     SpellEffect
	CasterGUID uint64
	Ticks      int
}

// Advance reports every instance whose next_tick_at <= now, coalescing
// any windows the scheduler skipped, and drops instances that have
// exhausted their tick budget.
func (s *DotHotScheduler) Advance(now int64) []DueTick {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []DueTick
	for id, inst := range s.instances {
		if inst.ticksRemaining <= 0 {
			delete(s.instances, id)
			continue
		}
		ticks, nextAt := AdvancePeriodic(inst.nextTickAt, now, inst.effect.TickIntervalMs)
		if ticks == 0 {
			continue
		}
		if int64(ticks) > inst.ticksRemaining {
			ticks = int(inst.ticksRemaining)
		}
		inst.ticksRemaining -= int64(ticks)
		inst.nextTickAt = nextAt
		due = append(due, DueTick{BuffID: id, Effect: inst.effect, CasterGUID: inst.casterGUID, Ticks: ticks})
		if inst.ticksRemaining <= 0 {
			delete(s.instances, id)
		}
	}
	return due
}

// ActiveCount reports how many periodic effects are currently scheduled.
func (s *DotHotScheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instances)
}
