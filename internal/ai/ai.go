// Package ai implements CreatureAI: the idle/combat/evade/dead state
// machine, aggro detection, leash checking, and threat-driven target
// selection attached to every creature entity.
package ai

import (
	"sync"

	"github.com/udisondev/wildstar-worldd/internal/entity"
	"github.com/udisondev/wildstar-worldd/internal/spatial"
)

// State is one CreatureAI state.
type State int

const (
	Idle State = iota
	Combat
	Evade
	Dead
)

// ActionKind is what AIState.Tick told the caller to do.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionAttack
	ActionChase
	ActionMoveTo
)

// Action is the result of a tick or combat-action decision.
type Action struct {
	Kind       ActionKind
	TargetGUID uint64
	Dest       spatial.Vec3
}

// TickConfig carries the values CreatureAI.Tick needs from the caller's
// clock and the creature's template.
type TickConfig struct {
	Now          int64
	AttackSpeedMs int64
}

// AIState is the per-creature AI record.
type AIState struct {
	mu sync.Mutex

	state           State
	targetGUID      uint64
	hasTarget       bool
	spawnPosition   spatial.Vec3
	threat          *ThreatTable
	lastAttackAt    int64
	hasAttacked     bool
	combatEnteredAt int64
}

// NewAIState returns a fresh AIState for a creature spawned at pos, in
// the idle state.
func NewAIState(spawnPos spatial.Vec3) *AIState {
	return &AIState{
		state:         Idle,
		spawnPosition: spawnPos,
		threat:        NewThreatTable(),
	}
}

// State returns the current state.
func (a *AIState) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Target returns the current target GUID, if any.
func (a *AIState) Target() (uint64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.targetGUID, a.hasTarget
}

// Threat exposes the underlying threat table (e.g. for combat damage
// callbacks to call Add directly).
func (a *AIState) Threat() *ThreatTable {
	return a.threat
}

// EnterCombat transitions to Combat against target. Invariant: state ==
// combat ⇒ target_guid != nil.
func (a *AIState) EnterCombat(target uint64, now int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = Combat
	a.targetGUID = target
	a.hasTarget = true
	a.combatEnteredAt = now
}

// EnterEvade transitions to Evade, clearing the target.
func (a *AIState) EnterEvade() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = Evade
	a.hasTarget = false
	a.threat.Clear()
}

// EnterIdle transitions to Idle, clearing target and threat.
func (a *AIState) EnterIdle() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = Idle
	a.hasTarget = false
	a.threat.Clear()
}

// Die transitions to the terminal Dead state, which only Respawn leaves.
func (a *AIState) Die() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = Dead
	a.hasTarget = false
	a.threat.Clear()
}

// Respawn leaves Dead and returns to Idle, clearing target and threat.
// The entity's position is not touched here.
func (a *AIState) Respawn() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = Idle
	a.hasTarget = false
	a.threat.Clear()
}

// AddThreat accumulates threat from attacker. If idle, a damage event
// elsewhere is responsible for calling EnterCombat — AddThreat alone
// does not change state.
func (a *AIState) AddThreat(attacker uint64, amount uint32) {
	a.threat.Add(attacker, amount)
}

// RemoveThreat drops attacker from the threat table. If attacker was
// the current target, retargets to the next-highest threat, or falls
// back to Idle if the table is now empty.
func (a *AIState) RemoveThreat(attacker uint64) {
	a.threat.Remove(attacker)

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.hasTarget || a.targetGUID != attacker {
		return
	}
	if next, ok := a.threat.Highest(); ok {
		a.targetGUID = next
		return
	}
	a.state = Idle
	a.hasTarget = false
}

// PlayerCandidate is one nearby player considered for aggro.
type PlayerCandidate struct {
	GUID     uint64
	Position spatial.Vec3
	Faction  entity.PlayerFaction
}

// CheckAggro scans nearby players for the closest one hostile to a
// creature of creatureFactionID, returning its GUID. Only runs while
// idle. Ties are broken by lower GUID.
func (a *AIState) CheckAggro(creatureFactionID string, creaturePos spatial.Vec3, candidates []PlayerCandidate, aggroRange float32, factions *entity.FactionTable) (uint64, bool) {
	if a.State() != Idle {
		return 0, false
	}

	hostileTo := func(c PlayerCandidate) bool {
		if factions.Disposition(creatureFactionID) == entity.DispositionHostile {
			return true
		}
		switch creatureFactionID {
		case "exile":
			return c.Faction == entity.FactionDominion
		case "dominion":
			return c.Faction == entity.FactionExile
		}
		return false
	}

	var best *PlayerCandidate
	var bestDist float32
	for i := range candidates {
		c := &candidates[i]
		if !hostileTo(*c) {
			continue
		}
		d := creaturePos.DistanceTo(c.Position)
		if d > aggroRange {
			continue
		}
		if best == nil || d < bestDist || (d == bestDist && c.GUID < best.GUID) {
			best, bestDist = c, d
		}
	}
	if best == nil {
		return 0, false
	}
	return best.GUID, true
}

// CheckLeash reports whether the creature must evade: it is in combat
// and has strayed further than leashRange from its spawn point. The
// boundary is strict: exactly leashRange is still fine, any amount over
// is not.
func (a *AIState) CheckLeash(currentPos spatial.Vec3, leashRange float32) bool {
	if a.State() != Combat {
		return false
	}
	return currentPos.DistanceTo(a.spawnPosition) > leashRange
}

// Tick advances the state machine by one simulation step and returns
// the action the caller (ZoneInstance) should perform.
func (a *AIState) Tick(cfg TickConfig) Action {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case Combat:
		if !a.hasTarget {
			return Action{Kind: ActionNone}
		}
		if !a.hasAttacked || cfg.Now-a.lastAttackAt >= cfg.AttackSpeedMs {
			a.lastAttackAt = cfg.Now
			a.hasAttacked = true
			return Action{Kind: ActionAttack, TargetGUID: a.targetGUID}
		}
		return Action{Kind: ActionNone}
	case Evade:
		return Action{Kind: ActionMoveTo, Dest: a.spawnPosition}
	default: // Idle, Dead
		return Action{Kind: ActionNone}
	}
}

// CombatAction decides attack-vs-chase for a creature already engaged:
// attack if the target is within attackRange, otherwise chase it.
func CombatAction(selfPos, targetPos spatial.Vec3, targetGUID uint64, attackRange float32) Action {
	if selfPos.DistanceTo(targetPos) <= attackRange {
		return Action{Kind: ActionAttack, TargetGUID: targetGUID}
	}
	return Action{Kind: ActionChase, TargetGUID: targetGUID, Dest: targetPos}
}
