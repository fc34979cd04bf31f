// Package zone implements ZoneInstance: a single-threaded authoritative
// simulation owning a set of entities, their spatial index, and their
// creature AI states, driven by a fixed-cadence tick.
package zone

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/udisondev/wildstar-worldd/internal/ai"
	"github.com/udisondev/wildstar-worldd/internal/entity"
	"github.com/udisondev/wildstar-worldd/internal/scheduler"
	"github.com/udisondev/wildstar-worldd/internal/spatial"
	"github.com/udisondev/wildstar-worldd/internal/spellengine"
)

// CastResolver completes every non-instant cast whose deadline has
// arrived as of now. internal/handlers.CombatHandler.ResolveCasts takes
// the same argument but also returns its results, so it is wired in
// through a closure that discards them; wired in via SetCastResolver
// rather than a constructor parameter so New's signature stays stable.
type CastResolver func(now int64)

// Key identifies one zone instance (a map/continent id plus an instance
// sequence, for instanced dungeons that share a map id).
type Key struct {
	MapID      uint32
	InstanceID uint32
}

// Outbound is one packet queued for delivery to a recipient's connection.
type Outbound struct {
	RecipientGUID uint64
	Opcode        uint16
	Payload       []byte
}

// Sender hands outbound packets to the world's connection layer. The
// zone itself never touches a socket.
type Sender interface {
	Send(Outbound)
}

// member is everything the zone tracks about one live entity.
type member struct {
	ent *entity.Entity
	ai  *ai.AIState // nil for players
}

// Instance is one zone's simulation state. All mutation happens on the
// goroutine that calls Tick; Instance is not safe for concurrent Tick
// calls, but read-mostly accessors may be called from other goroutines
// (e.g. a status endpoint) under the internal mutex.
type Instance struct {
	Key Key

	mu       sync.Mutex
	entities map[uint64]*member
	grid     *spatial.Grid
	factions *entity.FactionTable
	corpses  map[uint64]*entity.Corpse

	sender Sender
	log    *slog.Logger

	aggroRange          float32
	leashRange          float32
	attackRange         float32
	attackSpeedMs       int64
	castInterruptThresh int32

	castResolver CastResolver
}

// Config carries the tunables an Instance needs at construction.
type Config struct {
	CellSize   float32
	AggroRange float32
	LeashRange float32

	// AttackRange and AttackSpeedMs default to 5.0 and 1000ms when left
	// zero, matching the simplified melee model every creature uses.
	AttackRange   float32
	AttackSpeedMs int64

	// CastInterruptThreshold is the cumulative periodic-tick damage above
	// which an in-progress cast is interrupted during Tick; when <= 0,
	// periodic ticks never interrupt a cast.
	CastInterruptThreshold int32
}

// New creates an empty zone instance.
func New(key Key, cfg Config, factions *entity.FactionTable, sender Sender, log *slog.Logger) *Instance {
	if log == nil {
		log = slog.Default()
	}
	attackRange := cfg.AttackRange
	if attackRange <= 0 {
		attackRange = 5.0
	}
	attackSpeedMs := cfg.AttackSpeedMs
	if attackSpeedMs <= 0 {
		attackSpeedMs = 1000
	}
	return &Instance{
		Key:                 key,
		entities:            make(map[uint64]*member),
		grid:                spatial.New(cfg.CellSize),
		factions:            factions,
		corpses:             make(map[uint64]*entity.Corpse),
		sender:              sender,
		log:                 log,
		aggroRange:          cfg.AggroRange,
		leashRange:          cfg.LeashRange,
		attackRange:         attackRange,
		attackSpeedMs:       attackSpeedMs,
		castInterruptThresh: cfg.CastInterruptThreshold,
	}
}

// SetCastResolver wires the zone's tick loop to a CombatHandler's
// ResolveCasts, completing non-instant casts as their deadlines arrive.
// Optional: a zone with no players casting non-instant spells never
// needs one.
func (z *Instance) SetCastResolver(r CastResolver) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.castResolver = r
}

// AddEntity registers e with the zone and its spatial grid. aiState is
// nil for player entities.
func (z *Instance) AddEntity(e *entity.Entity, aiState *ai.AIState) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.entities[e.GUID] = &member{ent: e, ai: aiState}
	z.grid.Insert(e.GUID, e.Position)
}

// RemoveEntity drops guid from the zone.
func (z *Instance) RemoveEntity(guid uint64) {
	z.mu.Lock()
	defer z.mu.Unlock()
	delete(z.entities, guid)
	z.grid.Remove(guid)
}

// Entity returns the live entity for guid, if present.
func (z *Instance) Entity(guid uint64) (*entity.Entity, bool) {
	z.mu.Lock()
	defer z.mu.Unlock()
	m, ok := z.entities[guid]
	if !ok {
		return nil, false
	}
	return m.ent, true
}

// Move updates guid's position and propagates it to the spatial grid.
func (z *Instance) Move(guid uint64, pos spatial.Vec3) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.moveLocked(guid, pos)
}

// moveLocked is Move's body for callers that already hold z.mu (the tick
// loop's creature-AI pass).
func (z *Instance) moveLocked(guid uint64, pos spatial.Vec3) {
	m, ok := z.entities[guid]
	if !ok {
		return
	}
	m.ent.Position = pos
	z.grid.Move(guid, pos)
}

// EntitiesNear returns every entity GUID within r of pos.
func (z *Instance) EntitiesNear(pos spatial.Vec3, r float32) []uint64 {
	return z.grid.QueryRange(pos, r)
}

// Count returns the number of tracked entities (diagnostics).
func (z *Instance) Count() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return len(z.entities)
}

// Broadcast delivers packet to every entity within r of center, except
// excludeGUID unless includeSelf is true. Each recipient receives the
// packet exactly once.
func (z *Instance) Broadcast(center spatial.Vec3, r float32, excludeGUID uint64, includeSelf bool, opcode uint16, payload []byte) {
	seen := make(map[uint64]struct{})
	for _, guid := range z.EntitiesNear(center, r) {
		if guid == excludeGUID && !includeSelf {
			continue
		}
		if _, dup := seen[guid]; dup {
			continue
		}
		seen[guid] = struct{}{}
		z.sender.Send(Outbound{RecipientGUID: guid, Opcode: opcode, Payload: payload})
	}
}

// Run drives the zone's fixed-cadence tick loop until ctx is cancelled.
func (z *Instance) Run(ctx context.Context, cadence time.Duration) {
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			z.Tick(nowMs())
		}
	}
}

func nowMs() int64 {
	return scheduler.NowMs()
}

// Tick runs one simulation step: creature AI, cast resolution, periodic
// (DoT/HoT) effect advancement, buff expiry, corpse despawn. now is
// monotonic milliseconds from the caller's clock source.
func (z *Instance) Tick(now int64) {
	z.mu.Lock()
	defer z.mu.Unlock()

	for _, m := range z.entities {
		if m.ai == nil || m.ent.IsDead() {
			continue
		}
		z.tickCreature(m, now)
	}

	if z.castResolver != nil {
		z.castResolver(now)
	}

	z.advancePeriodicEffects(now)

	for _, m := range z.entities {
		for _, id := range m.ent.Effects.Expired(now) {
			m.ent.Effects.Remove(id)
			if m.ent.Periodic != nil {
				m.ent.Periodic.Remove(id)
			}
			z.log.Debug("buff expired", "guid", m.ent.GUID, "buff", id)
		}
	}

	for guid, c := range z.corpses {
		if c.DespawnAt <= now {
			delete(z.corpses, guid)
			z.grid.Remove(guid)
			delete(z.entities, guid)
		}
	}
}

// advancePeriodicEffects fires every DoT/HoT tick due as of now across
// all tracked entities, coalescing any missed windows.
func (z *Instance) advancePeriodicEffects(now int64) {
	for _, m := range z.entities {
		if m.ent.Periodic == nil {
			continue
		}
		for _, due := range m.ent.Periodic.Advance(now) {
			z.applyPeriodicTick(m.ent, due, now)
		}
	}
}

// applyPeriodicTick resolves due.Ticks batched periodic ticks of one
// DoT/HoT effect against target.
func (z *Instance) applyPeriodicTick(target *entity.Entity, due spellengine.DueTick, now int64) {
	var casterStat float32
	if casterM, ok := z.entities[due.CasterGUID]; ok {
		casterStat = casterM.ent.EffectiveStat(due.Effect.ScalingStat, now)
	}

	for i := 0; i < due.Ticks; i++ {
		switch due.Effect.Kind {
		case spellengine.EffectPeriodicDamage:
			armor := target.EffectiveStat(entity.ArmorStat, now)
			dr := spellengine.ComputeDamage(due.Effect, casterStat, armor, false)
			_, lost := target.ApplyDamage(dr.Damage, now)
			target.Cast.NotifyDamage(int32(lost), z.castInterruptThresh, now)
		case spellengine.EffectPeriodicHeal:
			healAmt := spellengine.ComputeHeal(due.Effect, casterStat, false)
			target.ApplyHeal(uint32(healAmt))
		}
	}
}

func (z *Instance) tickCreature(m *member, now int64) {
	a := m.ai

	if a.CheckLeash(m.ent.Position, z.leashRange) {
		a.EnterEvade()
	}

	if a.State() == ai.Idle {
		candidates := z.nearbyPlayerCandidates(m.ent.Position, z.aggroRange)
		if target, ok := a.CheckAggro(m.ent.Faction, m.ent.Position, candidates, z.aggroRange, z.factions); ok {
			a.EnterCombat(target, now)
		}
	}

	if a.State() == ai.Combat {
		if targetGUID, ok := a.Target(); ok {
			if targetM, ok := z.entities[targetGUID]; ok {
				if ca := ai.CombatAction(m.ent.Position, targetM.ent.Position, targetGUID, z.attackRange); ca.Kind == ai.ActionChase {
					z.moveLocked(m.ent.GUID, ca.Dest)
					return
				}
			}
		}
	}

	action := a.Tick(ai.TickConfig{Now: now, AttackSpeedMs: z.attackSpeedMs})
	switch action.Kind {
	case ai.ActionAttack:
		z.log.Debug("creature attacks", "guid", m.ent.GUID, "target", action.TargetGUID)
	case ai.ActionMoveTo:
		z.moveLocked(m.ent.GUID, action.Dest)
	}
}

func (z *Instance) nearbyPlayerCandidates(pos spatial.Vec3, r float32) []ai.PlayerCandidate {
	var out []ai.PlayerCandidate
	for _, guid := range z.grid.QueryRange(pos, r) {
		m, ok := z.entities[guid]
		if !ok || m.ent.Kind != entity.KindPlayer {
			continue
		}
		out = append(out, ai.PlayerCandidate{GUID: guid, Position: m.ent.Position, Faction: m.ent.PlayerFaction})
	}
	return out
}

// HandleDeath transitions a dying entity into a corpse: the source
// becomes dead and non-targetable, and a new lootable Corpse is
// registered in its place.
func (z *Instance) HandleDeath(corpseGUID uint64, source *entity.Entity, loot []entity.LootEntry, now, corpseTTLMs int64) *entity.Corpse {
	z.mu.Lock()
	defer z.mu.Unlock()
	source.SetTargetable(false)
	c := entity.NewCorpse(corpseGUID, source, loot, now, corpseTTLMs)
	z.corpses[corpseGUID] = c
	z.entities[corpseGUID] = &member{ent: c.Entity}
	z.grid.Insert(corpseGUID, source.Position)
	return c
}
