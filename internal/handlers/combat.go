package handlers

import (
	"sync"

	"github.com/udisondev/wildstar-worldd/internal/effects"
	"github.com/udisondev/wildstar-worldd/internal/entity"
	"github.com/udisondev/wildstar-worldd/internal/spellengine"
)

// SpellCastRequest is a decoded cast-skill payload.
type SpellCastRequest struct {
	CasterGUID uint64
	TargetGUID uint64
	SpellID    uint32
}

// CombatHandler glues SpellEngine admissibility/damage computation to
// live EntityModel instances, including the cast-time/interrupt flow for
// non-instant spells.
type CombatHandler struct {
	resolveEntity func(guid uint64) (*entity.Entity, bool)
	resolveSpell  func(id uint32) (spellengine.Spell, bool)
	now           func() int64
	rollCrit      func() bool

	// interruptThreshold is the cumulative damage above which an
	// in-progress cast is cancelled; <= 0 disables interruption.
	interruptThreshold int32

	mu           sync.Mutex
	pendingCasts map[uint64]struct{}
}

// NewCombatHandler wires a CombatHandler to its entity/content/time
// sources.
func NewCombatHandler(
	resolveEntity func(uint64) (*entity.Entity, bool),
	resolveSpell func(uint32) (spellengine.Spell, bool),
	now func() int64,
	rollCrit func() bool,
	interruptThreshold int32,
) *CombatHandler {
	return &CombatHandler{
		resolveEntity:      resolveEntity,
		resolveSpell:       resolveSpell,
		now:                now,
		rollCrit:           rollCrit,
		interruptThreshold: interruptThreshold,
		pendingCasts:       make(map[uint64]struct{}),
	}
}

// CastResult is what HandleCast (or a later ResolveCasts completion)
// produces for the caller to broadcast.
type CastResult struct {
	OK          bool
	Pending     bool // a non-instant cast was begun; effects resolve later via ResolveCasts
	DamageDealt int32
	HealDealt   int32
	Critical    bool
}

// HandleCast validates admissibility against the resolved caster/target.
// Instant spells (CastTimeMs == 0) resolve immediately; non-instant
// spells enter a cast-in-progress state tracked by the caster's
// CastState and are resolved later by ResolveCasts once the zone tick
// reaches their deadline, or interrupted earlier by NotifyDamage.
func (h *CombatHandler) HandleCast(req SpellCastRequest) CastResult {
	caster, ok := h.resolveEntity(req.CasterGUID)
	if !ok {
		return CastResult{}
	}
	target, ok := h.resolveEntity(req.TargetGUID)
	if !ok {
		return CastResult{}
	}
	spell, ok := h.resolveSpell(req.SpellID)
	if !ok {
		return CastResult{}
	}

	now := h.now()
	dist := caster.Position.DistanceTo(target.Position)
	ts := spellengine.TargetState{Alive: !target.IsDead(), Distance: dist}
	if !spellengine.CanCast(spell, caster.Cooldowns, now, ts) {
		return CastResult{}
	}

	if spell.CastTimeMs > 0 {
		caster.Cast.Begin(spell.ID, req.TargetGUID, now+spell.CastTimeMs)
		h.mu.Lock()
		h.pendingCasts[req.CasterGUID] = struct{}{}
		h.mu.Unlock()
		return CastResult{OK: true, Pending: true}
	}

	result := h.applyEffects(caster, target, spell, now)
	h.finishCast(caster, spell, now)
	return result
}

// ResolveCasts completes every non-instant cast whose deadline has
// passed as of now, applying its effects and starting its cooldown/GCD.
// Invoked from the owning zone's tick loop.
func (h *CombatHandler) ResolveCasts(now int64) []CastResult {
	h.mu.Lock()
	casters := make([]uint64, 0, len(h.pendingCasts))
	for guid := range h.pendingCasts {
		casters = append(casters, guid)
	}
	h.mu.Unlock()

	var results []CastResult
	for _, casterGUID := range casters {
		caster, ok := h.resolveEntity(casterGUID)
		if !ok {
			h.clearPending(casterGUID)
			continue
		}

		spellID, targetGUID, ready := caster.Cast.Complete(now)
		if !ready {
			if !caster.Cast.InProgress() {
				// deadline not yet reached check failed AND not active
				// anymore: the cast was interrupted, stop tracking it.
				h.clearPending(casterGUID)
			}
			continue
		}
		h.clearPending(casterGUID)

		spell, ok := h.resolveSpell(spellID)
		if !ok {
			continue
		}
		target, ok := h.resolveEntity(targetGUID)
		if !ok {
			continue
		}

		result := h.applyEffects(caster, target, spell, now)
		h.finishCast(caster, spell, now)
		results = append(results, result)
	}
	return results
}

func (h *CombatHandler) clearPending(casterGUID uint64) {
	h.mu.Lock()
	delete(h.pendingCasts, casterGUID)
	h.mu.Unlock()
}

// applyEffects resolves every SpellEffect in spell's declared order
// against target.
func (h *CombatHandler) applyEffects(caster, target *entity.Entity, spell spellengine.Spell, now int64) CastResult {
	var result CastResult
	result.OK = true

	for i, eff := range spell.Effects {
		buffID := spellBuffID(spell.ID, i)
		switch eff.Kind {
		case spellengine.EffectDamage:
			critical := h.rollCrit != nil && h.rollCrit()
			stat := caster.EffectiveStat(eff.ScalingStat, now)
			armor := target.EffectiveStat(entity.ArmorStat, now)
			dr := spellengine.ComputeDamage(eff, stat, armor, critical)
			_, lost := target.ApplyDamage(dr.Damage, now)
			target.Cast.NotifyDamage(int32(lost), h.interruptThreshold, now)
			result.DamageDealt += int32(lost)
			result.Critical = result.Critical || critical

		case spellengine.EffectHeal:
			critical := h.rollCrit != nil && h.rollCrit()
			stat := caster.EffectiveStat(eff.ScalingStat, now)
			healAmt := spellengine.ComputeHeal(eff, stat, critical)
			gained := target.ApplyHeal(uint32(healAmt))
			result.HealDealt += int32(gained)
			result.Critical = result.Critical || critical

		case spellengine.EffectAbsorb:
			stat := caster.EffectiveStat(eff.ScalingStat, now)
			amount := eff.Amount + stat*eff.ScalingFactor
			target.Effects.Apply(effects.Buff{
				ID:         buffID,
				SpellID:    spell.ID,
				Kind:       effects.Absorb,
				Amount:     int32(amount),
				DurationMs: eff.DurationMs,
				CasterGUID: caster.GUID,
				ExpiresAt:  now + eff.DurationMs,
			})

		case spellengine.EffectStatModifier:
			target.Effects.Apply(effects.Buff{
				ID:         buffID,
				SpellID:    spell.ID,
				Kind:       effects.StatModifier,
				Amount:     int32(eff.Amount),
				Stat:       eff.ScalingStat,
				DurationMs: eff.DurationMs,
				IsDebuff:   eff.Amount < 0,
				CasterGUID: caster.GUID,
				ExpiresAt:  now + eff.DurationMs,
			})

		case spellengine.EffectPeriodicDamage:
			target.Effects.Apply(effects.Buff{
				ID:         buffID,
				SpellID:    spell.ID,
				Kind:       effects.PeriodicDamage,
				DurationMs: eff.DurationMs,
				IsDebuff:   true,
				CasterGUID: caster.GUID,
				ExpiresAt:  now + eff.DurationMs,
			})
			target.Periodic.Reapply(buffID, eff, caster.GUID, now)

		case spellengine.EffectPeriodicHeal:
			target.Effects.Apply(effects.Buff{
				ID:         buffID,
				SpellID:    spell.ID,
				Kind:       effects.PeriodicHeal,
				DurationMs: eff.DurationMs,
				CasterGUID: caster.GUID,
				ExpiresAt:  now + eff.DurationMs,
			})
			target.Periodic.Reapply(buffID, eff, caster.GUID, now)
		}
	}

	return result
}

func (h *CombatHandler) finishCast(caster *entity.Entity, spell spellengine.Spell, now int64) {
	caster.Cooldowns.SetCooldown(spell.ID, now+spell.CooldownMs)
	if spell.TriggersGCD {
		caster.Cooldowns.SetGCD(now + spell.GCDMs)
	}
}

// spellBuffID derives a per-effect buff ID that stays stable across
// recasts of the same spell, so reapplying an effect replaces its own
// ActiveEffects/periodic-schedule entry instead of stacking a duplicate.
func spellBuffID(spellID uint32, effectIndex int) uint32 {
	return spellID<<8 | uint32(effectIndex)
}
