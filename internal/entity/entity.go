// Package entity implements the in-world actor record (player, creature,
// pet, corpse, gadget) as a single struct with a Kind tag, along with its
// health/damage/heal math, derived stats, and faction rules.
package entity

import (
	"sync"

	"github.com/udisondev/wildstar-worldd/internal/effects"
	"github.com/udisondev/wildstar-worldd/internal/spatial"
	"github.com/udisondev/wildstar-worldd/internal/spellengine"
)

// ArmorStat is the base-stat key consulted for physical damage mitigation.
const ArmorStat effects.Stat = "armor"

// Kind tags what an Entity represents. It is also encoded in the high
// byte of its GUID.
type Kind byte

const (
	KindPlayer Kind = iota + 1
	KindCreature
	KindPet
	KindCorpse
	KindGadget
)

// MakeGUID packs kind into the high byte and seq into the low 56 bits.
func MakeGUID(kind Kind, seq uint64) uint64 {
	return uint64(kind)<<56 | (seq & 0x00FFFFFFFFFFFFFF)
}

// GUIDKind extracts the kind tag from a GUID's high byte.
func GUIDKind(guid uint64) Kind {
	return Kind(guid >> 56)
}

// Entity is one in-world actor.
type Entity struct {
	GUID          uint64
	Kind          Kind
	Position      spatial.Vec3
	Rotation      float32
	Level         uint16
	OwnerGUID     *uint64
	SpawnPosition spatial.Vec3
	DisplayInfo   uint32
	Faction       string
	PlayerFaction PlayerFaction

	Effects   *effects.Container
	Cooldowns *effects.Cooldowns
	Cast      *spellengine.CastState
	Periodic  *spellengine.DotHotScheduler

	mu         sync.Mutex
	health     uint32
	maxHealth  uint32
	baseStats  map[effects.Stat]float32
	targetable bool
}

// New creates an Entity with full health and targetable set.
func New(guid uint64, kind Kind, maxHealth uint32, level uint16, pos spatial.Vec3, baseStats map[effects.Stat]float32) *Entity {
	if baseStats == nil {
		baseStats = make(map[effects.Stat]float32)
	}
	return &Entity{
		GUID:          guid,
		Kind:          kind,
		Position:      pos,
		SpawnPosition: pos,
		Level:         level,
		Effects:       effects.NewContainer(),
		Cooldowns:     effects.NewCooldowns(),
		Cast:          spellengine.NewCastState(),
		Periodic:      spellengine.NewDotHotScheduler(),
		health:        maxHealth,
		maxHealth:     maxHealth,
		baseStats:     baseStats,
		targetable:    true,
	}
}

// Health returns current health.
func (e *Entity) Health() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health
}

// MaxHealth returns max health.
func (e *Entity) MaxHealth() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxHealth
}

// IsDead reports health == 0.
func (e *Entity) IsDead() bool {
	return e.Health() == 0
}

// Targetable reports whether AI may select this entity as a target.
func (e *Entity) Targetable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.targetable
}

// SetTargetable toggles AI targetability (cleared on death).
func (e *Entity) SetTargetable(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.targetable = v
}

// HealthPercent returns health/maxHealth, or 0 if maxHealth == 0.
func (e *Entity) HealthPercent() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.maxHealth == 0 {
		return 0
	}
	return float32(e.health) / float32(e.maxHealth)
}

// ApplyDamage consumes absorbs first (via Effects.ConsumeAbsorb at time
// now), then subtracts the remainder from health, clamped at 0.
// dmg <= 0 is a no-op. Returns the absorbed amount and the health
// actually lost.
func (e *Entity) ApplyDamage(dmg int32, now int64) (absorbed int32, healthLost uint32) {
	if dmg <= 0 {
		return 0, 0
	}

	absorbed, remaining := e.Effects.ConsumeAbsorb(dmg, now)
	if remaining <= 0 {
		return absorbed, 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	before := e.health
	if uint32(remaining) >= e.health {
		e.health = 0
	} else {
		e.health -= uint32(remaining)
	}
	if e.health == 0 {
		e.targetable = false
	}
	return absorbed, before - e.health
}

// ApplyHeal adds amount to health, clamped at maxHealth. amount == 0 is
// a no-op. Returns the health actually restored.
func (e *Entity) ApplyHeal(amount uint32) uint32 {
	if amount == 0 {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	before := e.health
	e.health += amount
	if e.health > e.maxHealth {
		e.health = e.maxHealth
	}
	return e.health - before
}

// BaseStat returns the raw (non-derived) value of stat.
func (e *Entity) BaseStat(stat effects.Stat) float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.baseStats[stat]
}

// SetBaseStat sets the raw value of stat.
func (e *Entity) SetBaseStat(stat effects.Stat, v float32) {
	e.mu.Lock()
	e.baseStats[stat] = v
	e.mu.Unlock()
}

// EffectiveStat returns base + active stat-modifier contributions at
// time t.
func (e *Entity) EffectiveStat(stat effects.Stat, t int64) float32 {
	return e.BaseStat(stat) + float32(e.Effects.StatTotal(stat, t))
}

// ClampArmorFraction clamps an armor fraction to [0, 0.75].
func ClampArmorFraction(f float32) float32 {
	if f < 0 {
		return 0
	}
	if f > 0.75 {
		return 0.75
	}
	return f
}

// MitigatePhysical applies armor mitigation: dmg * (1 - armorFraction).
func MitigatePhysical(dmg float32, armorFraction float32) float32 {
	return dmg * (1 - ClampArmorFraction(armorFraction))
}
