// Package spellengine computes cast admissibility and the damage/heal
// math for spells, and tracks casts currently in progress.
package spellengine

import (
	"github.com/udisondev/wildstar-worldd/internal/effects"
)

// TargetType constrains who a spell may be aimed at.
type TargetType int

const (
	TargetSelf TargetType = iota
	TargetEnemy
	TargetAlly
)

// School categorizes an effect's damage type for mitigation purposes.
type School int

const (
	SchoolPhysical School = iota
	SchoolMagic
)

// EffectKind is what one SpellEffect does when it resolves.
type EffectKind int

const (
	EffectDamage EffectKind = iota
	EffectHeal
	EffectAbsorb
	EffectStatModifier
	EffectPeriodicDamage
	EffectPeriodicHeal
)

// SpellEffect is one entry in a spell's ordered effect list.
type SpellEffect struct {
	Kind           EffectKind
	Amount         float32
	ScalingFactor  float32
	ScalingStat    effects.Stat
	School         School
	DurationMs     int64
	TickIntervalMs int64
}

// Spell is the static template driving one cast.
type Spell struct {
	ID          uint32
	CastTimeMs  int64
	CooldownMs  int64
	GCDMs       int64
	Range       float32
	TargetType  TargetType
	TriggersGCD bool
	Effects     []SpellEffect
}

// TargetState is what CanCast needs to know about the resolved target.
type TargetState struct {
	Alive    bool
	Distance float32
}

// CanCast reports cast admissibility: cooldown ready, GCD ready (if the
// spell triggers it), a living target for enemy-targeted spells, and
// the target within range.
func CanCast(s Spell, cd *effects.Cooldowns, now int64, target TargetState) bool {
	if !cd.CanCast(s.ID, s.TriggersGCD, now) {
		return false
	}
	if s.TargetType == TargetEnemy && !target.Alive {
		return false
	}
	if target.Distance > s.Range {
		return false
	}
	return true
}

// DamageResult is the outcome of resolving one damage SpellEffect.
type DamageResult struct {
	Damage     int32
	IsCritical bool
}

// ComputeDamage applies scaling, armor mitigation (physical only), and
// the flat 1.5x critical multiplier. Negative results are impossible:
// the caller clamps the final applied amount via EntityModel.
func ComputeDamage(e SpellEffect, effectiveStat float32, armorFraction float32, critical bool) DamageResult {
	base := e.Amount + effectiveStat*e.ScalingFactor
	mitigated := base
	if e.School == SchoolPhysical {
		frac := armorFraction
		if frac < 0 {
			frac = 0
		}
		if frac > 0.75 {
			frac = 0.75
		}
		mitigated = base * (1 - frac)
	}
	final := mitigated
	if critical {
		final *= 1.5
	}
	if final < 0 {
		final = 0
	}
	return DamageResult{Damage: int32(final), IsCritical: critical}
}

// ComputeHeal applies scaling and the critical multiplier identically to
// ComputeDamage; upper-bounding by max_health-health is EntityModel's job.
func ComputeHeal(e SpellEffect, effectiveStat float32, critical bool) int32 {
	base := e.Amount + effectiveStat*e.ScalingFactor
	if critical {
		base *= 1.5
	}
	if base < 0 {
		base = 0
	}
	return int32(base)
}

// TickCount returns how many periodic ticks a DoT/HoT effect fires over
// its full duration.
func TickCount(e SpellEffect) int64 {
	if e.TickIntervalMs <= 0 {
		return 0
	}
	return e.DurationMs / e.TickIntervalMs
}

// AdvancePeriodic coalesces missed tick windows: given the last scheduled
// tick time and now, returns how many ticks are due and the next
// scheduled tick time advanced by whole multiples of the interval.
func AdvancePeriodic(nextTickAt, now, intervalMs int64) (ticksDue int, newNextTickAt int64) {
	if intervalMs <= 0 || now < nextTickAt {
		return 0, nextTickAt
	}
	elapsed := now - nextTickAt
	ticksDue = 1 + int(elapsed/intervalMs)
	newNextTickAt = nextTickAt + int64(ticksDue)*intervalMs
	return ticksDue, newNextTickAt
}
