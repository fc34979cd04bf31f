package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/wildstar-worldd/internal/entity"
	"github.com/udisondev/wildstar-worldd/internal/spatial"
)

func TestCheckAggroFactionBasedHostility(t *testing.T) {
	ft := entity.NewFactionTable()
	ft.Register("hostile", entity.DispositionHostile)

	candidates := []PlayerCandidate{
		{GUID: 1, Position: spatial.Vec3{X: 5}, Faction: entity.FactionExile},
		{GUID: 2, Position: spatial.Vec3{X: 6}, Faction: entity.FactionDominion},
	}

	a := NewAIState(spatial.Vec3{})
	guid, ok := a.CheckAggro("hostile", spatial.Vec3{}, candidates, 10, ft)
	require.True(t, ok)
	assert.EqualValues(t, 1, guid, "closest hostile wins when creature faction is hostile")

	b := NewAIState(spatial.Vec3{})
	guid, ok = b.CheckAggro("exile", spatial.Vec3{}, candidates, 10, ft)
	require.True(t, ok)
	assert.EqualValues(t, 2, guid, "only dominion is hostile to an exile-faction creature")
}

func TestCheckAggroSkippedUnlessIdle(t *testing.T) {
	ft := entity.NewFactionTable()
	ft.Register("hostile", entity.DispositionHostile)
	a := NewAIState(spatial.Vec3{})
	a.EnterCombat(99, 0)

	_, ok := a.CheckAggro("hostile", spatial.Vec3{}, []PlayerCandidate{{GUID: 1, Faction: entity.FactionExile}}, 100, ft)
	assert.False(t, ok)
}

func TestCheckAggroOutOfRange(t *testing.T) {
	ft := entity.NewFactionTable()
	ft.Register("hostile", entity.DispositionHostile)
	a := NewAIState(spatial.Vec3{})
	_, ok := a.CheckAggro("hostile", spatial.Vec3{}, []PlayerCandidate{{GUID: 1, Position: spatial.Vec3{X: 50}, Faction: entity.FactionExile}}, 10, ft)
	assert.False(t, ok)
}

func TestLeashBoundaryStrict(t *testing.T) {
	a := NewAIState(spatial.Vec3{})
	a.EnterCombat(1, 0)

	assert.False(t, a.CheckLeash(spatial.Vec3{X: 40.0}, 40), "distance == leash_range stays")
	assert.True(t, a.CheckLeash(spatial.Vec3{X: 40.1}, 40), "distance just over leash_range evades")
}

func TestLeashOnlyAppliesInCombat(t *testing.T) {
	a := NewAIState(spatial.Vec3{})
	assert.False(t, a.CheckLeash(spatial.Vec3{X: 9999}, 40))
}

func TestThreatHighestTieBreaksOnRecency(t *testing.T) {
	tt := NewThreatTable()
	tt.Add(1, 10)
	tt.Add(2, 10)

	guid, ok := tt.Highest()
	require.True(t, ok)
	assert.EqualValues(t, 2, guid, "most recent addition wins ties")
}

func TestRemoveThreatRetargetsToNextHighest(t *testing.T) {
	a := NewAIState(spatial.Vec3{})
	a.AddThreat(1, 100)
	a.AddThreat(2, 50)
	a.EnterCombat(1, 0)

	a.RemoveThreat(1)

	target, ok := a.Target()
	require.True(t, ok)
	assert.EqualValues(t, 2, target)
	assert.Equal(t, Combat, a.State())
}

func TestRemoveThreatEmptyTableGoesIdle(t *testing.T) {
	a := NewAIState(spatial.Vec3{})
	a.AddThreat(1, 100)
	a.EnterCombat(1, 0)

	a.RemoveThreat(1)

	assert.Equal(t, Idle, a.State())
	_, ok := a.Target()
	assert.False(t, ok)
}

func TestTickCombatAttackTiming(t *testing.T) {
	a := NewAIState(spatial.Vec3{})
	a.EnterCombat(5, 0)

	act := a.Tick(TickConfig{Now: 0, AttackSpeedMs: 1000})
	require.Equal(t, ActionAttack, act.Kind)
	assert.EqualValues(t, 5, act.TargetGUID)

	act = a.Tick(TickConfig{Now: 500, AttackSpeedMs: 1000})
	assert.Equal(t, ActionNone, act.Kind, "attack speed not yet elapsed")

	act = a.Tick(TickConfig{Now: 1000, AttackSpeedMs: 1000})
	assert.Equal(t, ActionAttack, act.Kind)
}

func TestTickEvadeMovesToSpawn(t *testing.T) {
	a := NewAIState(spatial.Vec3{X: 1, Y: 2, Z: 3})
	a.EnterEvade()

	act := a.Tick(TickConfig{Now: 0, AttackSpeedMs: 1000})
	assert.Equal(t, ActionMoveTo, act.Kind)
	assert.Equal(t, spatial.Vec3{X: 1, Y: 2, Z: 3}, act.Dest)
}

func TestTickIdleAndDeadAreNoop(t *testing.T) {
	a := NewAIState(spatial.Vec3{})
	assert.Equal(t, ActionNone, a.Tick(TickConfig{}).Kind)
	a.Die()
	assert.Equal(t, ActionNone, a.Tick(TickConfig{}).Kind)
	assert.Equal(t, Dead, a.State())
}

func TestCombatActionAttackVsChase(t *testing.T) {
	act := CombatAction(spatial.Vec3{}, spatial.Vec3{X: 5}, 9, 10)
	assert.Equal(t, ActionAttack, act.Kind)

	act = CombatAction(spatial.Vec3{}, spatial.Vec3{X: 50}, 9, 10)
	assert.Equal(t, ActionChase, act.Kind)
	assert.Equal(t, spatial.Vec3{X: 50}, act.Dest)
}

func TestRespawnLeavesDead(t *testing.T) {
	a := NewAIState(spatial.Vec3{})
	a.Die()
	a.Respawn()
	assert.Equal(t, Idle, a.State())
}
