package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/wildstar-worldd/internal/entity"
	"github.com/udisondev/wildstar-worldd/internal/spatial"
	"github.com/udisondev/wildstar-worldd/internal/spellengine"
)

func TestParseChatChannelDefaultsToSay(t *testing.T) {
	ch, ok := ParseChatChannel("")
	require.True(t, ok)
	assert.Equal(t, ChatSay, ch)
}

func TestChatRangesMatchPolicy(t *testing.T) {
	assert.EqualValues(t, 30, ChatRange[ChatSay])
	assert.EqualValues(t, 100, ChatRange[ChatYell])
	assert.EqualValues(t, 30, ChatRange[ChatEmote])
	assert.False(t, IsRangeBounded(ChatWhisper))
	assert.False(t, IsRangeBounded(ChatZone))
	assert.False(t, IsRangeBounded(ChatSystem))
}

func TestValidateChatMessageMaxLength(t *testing.T) {
	ok := strings.Repeat("a", 500)
	tooLong := strings.Repeat("a", 501)
	assert.True(t, ValidateChatMessage(ok))
	assert.False(t, ValidateChatMessage(tooLong))
}

func TestChatHandlerRoutesByChannel(t *testing.T) {
	var sayCalled, whisperCalled, zoneCalled, systemCalled bool
	h := NewChatHandler(
		func(ch ChatChannel, sender uint64, text string) { sayCalled = true },
		func(sender uint64, target, text string) error { whisperCalled = true; return nil },
		func(sender uint64, text string) { zoneCalled = true },
		func(text string) { systemCalled = true },
	)

	h.Handle(1, "say", "", "hi")
	assert.True(t, sayCalled)

	h.Handle(1, "whisper", "Bob", "hi")
	assert.True(t, whisperCalled)

	h.Handle(1, "zone", "", "hi")
	assert.True(t, zoneCalled)

	h.Handle(1, "system", "", "hi")
	assert.True(t, systemCalled)
}

func TestValidatePositionUpdatePlausibility(t *testing.T) {
	prev := spatial.Vec3{}
	near := spatial.Vec3{X: 1}
	far := spatial.Vec3{X: 1000}

	assert.True(t, ValidatePositionUpdate(prev, near, 100))
	assert.False(t, ValidatePositionUpdate(prev, far, 100))
}

func TestMovementHandlerAppliesOnlyPlausibleUpdates(t *testing.T) {
	var applied []spatial.Vec3
	h := NewMovementHandler(func(guid uint64, pos spatial.Vec3) {
		applied = append(applied, pos)
	})

	cmds := []MovementSubCommand{
		{Kind: SetPosition, Position: spatial.Vec3{X: 1}},
		{Kind: SetPosition, Position: spatial.Vec3{X: 10000}},
	}
	h.Apply(1, spatial.Vec3{}, 100, cmds)
	require.Len(t, applied, 1)
	assert.Equal(t, spatial.Vec3{X: 1}, applied[0])
}

func TestCombatHandlerCastAppliesDamage(t *testing.T) {
	caster := entity.New(entity.MakeGUID(entity.KindPlayer, 1), entity.KindPlayer, 100, 1, spatial.Vec3{}, nil)
	target := entity.New(entity.MakeGUID(entity.KindCreature, 2), entity.KindCreature, 100, 1, spatial.Vec3{X: 5}, nil)

	spell := spellengine.Spell{
		ID:         7,
		Range:      10,
		TargetType: spellengine.TargetEnemy,
		Effects:    []spellengine.SpellEffect{{Kind: spellengine.EffectDamage, Amount: 20, School: spellengine.SchoolMagic}},
	}

	h := NewCombatHandler(
		func(guid uint64) (*entity.Entity, bool) {
			if guid == caster.GUID {
				return caster, true
			}
			if guid == target.GUID {
				return target, true
			}
			return nil, false
		},
		func(id uint32) (spellengine.Spell, bool) { return spell, true },
		func() int64 { return 0 },
		func() bool { return false },
		0,
	)

	res := h.HandleCast(SpellCastRequest{CasterGUID: caster.GUID, TargetGUID: target.GUID, SpellID: 7})
	require.True(t, res.OK)
	assert.EqualValues(t, 20, res.DamageDealt)
	assert.EqualValues(t, 80, target.Health())
}

func TestCombatHandlerNonInstantCastResolvesOnZoneTick(t *testing.T) {
	caster := entity.New(entity.MakeGUID(entity.KindPlayer, 1), entity.KindPlayer, 100, 1, spatial.Vec3{}, nil)
	target := entity.New(entity.MakeGUID(entity.KindCreature, 2), entity.KindCreature, 100, 1, spatial.Vec3{X: 5}, nil)

	spell := spellengine.Spell{
		ID:         9,
		CastTimeMs: 1500,
		Range:      10,
		TargetType: spellengine.TargetEnemy,
		Effects:    []spellengine.SpellEffect{{Kind: spellengine.EffectDamage, Amount: 30, School: spellengine.SchoolMagic}},
	}

	h := NewCombatHandler(
		func(guid uint64) (*entity.Entity, bool) {
			if guid == caster.GUID {
				return caster, true
			}
			if guid == target.GUID {
				return target, true
			}
			return nil, false
		},
		func(id uint32) (spellengine.Spell, bool) { return spell, true },
		func() int64 { return 0 },
		func() bool { return false },
		0,
	)

	res := h.HandleCast(SpellCastRequest{CasterGUID: caster.GUID, TargetGUID: target.GUID, SpellID: 9})
	require.True(t, res.OK)
	assert.True(t, res.Pending)
	assert.EqualValues(t, 100, target.Health(), "effects must not apply before the cast completes")

	results := h.ResolveCasts(1000)
	assert.Empty(t, results, "the cast deadline hasn't arrived yet")
	assert.EqualValues(t, 100, target.Health())

	results = h.ResolveCasts(1500)
	require.Len(t, results, 1)
	assert.EqualValues(t, 30, results[0].DamageDealt)
	assert.EqualValues(t, 70, target.Health())
}

func TestCombatHandlerCastInterruptedByDamage(t *testing.T) {
	caster := entity.New(entity.MakeGUID(entity.KindPlayer, 1), entity.KindPlayer, 100, 1, spatial.Vec3{}, nil)
	target := entity.New(entity.MakeGUID(entity.KindCreature, 2), entity.KindCreature, 100, 1, spatial.Vec3{X: 5}, nil)

	spell := spellengine.Spell{
		ID:         11,
		CastTimeMs: 2000,
		Range:      10,
		TargetType: spellengine.TargetEnemy,
		Effects:    []spellengine.SpellEffect{{Kind: spellengine.EffectDamage, Amount: 50, School: spellengine.SchoolMagic}},
	}

	h := NewCombatHandler(
		func(guid uint64) (*entity.Entity, bool) {
			if guid == caster.GUID {
				return caster, true
			}
			if guid == target.GUID {
				return target, true
			}
			return nil, false
		},
		func(id uint32) (spellengine.Spell, bool) { return spell, true },
		func() int64 { return 0 },
		func() bool { return false },
		10,
	)

	res := h.HandleCast(SpellCastRequest{CasterGUID: caster.GUID, TargetGUID: target.GUID, SpellID: 11})
	require.True(t, res.Pending)

	caster.Cast.NotifyDamage(25, 10, 500)

	results := h.ResolveCasts(2000)
	assert.Empty(t, results, "an interrupted cast must never resolve")
	assert.EqualValues(t, 100, target.Health())
}

func TestCombatHandlerAppliesAbsorbStatModifierAndPeriodicEffects(t *testing.T) {
	caster := entity.New(entity.MakeGUID(entity.KindPlayer, 1), entity.KindPlayer, 100, 1, spatial.Vec3{}, nil)
	target := entity.New(entity.MakeGUID(entity.KindPlayer, 2), entity.KindPlayer, 100, 1, spatial.Vec3{X: 5}, nil)

	spell := spellengine.Spell{
		ID:         21,
		Range:      10,
		TargetType: spellengine.TargetAlly,
		Effects: []spellengine.SpellEffect{
			{Kind: spellengine.EffectAbsorb, Amount: 40, DurationMs: 10000},
			{Kind: spellengine.EffectStatModifier, Amount: 15, ScalingStat: "strength", DurationMs: 10000},
			{Kind: spellengine.EffectPeriodicDamage, Amount: 5, DurationMs: 3000, TickIntervalMs: 1000},
		},
	}

	h := NewCombatHandler(
		func(guid uint64) (*entity.Entity, bool) {
			if guid == caster.GUID {
				return caster, true
			}
			if guid == target.GUID {
				return target, true
			}
			return nil, false
		},
		func(id uint32) (spellengine.Spell, bool) { return spell, true },
		func() int64 { return 0 },
		func() bool { return false },
		0,
	)

	res := h.HandleCast(SpellCastRequest{CasterGUID: caster.GUID, TargetGUID: target.GUID, SpellID: 21})
	require.True(t, res.OK)

	assert.EqualValues(t, 40, target.Effects.TotalAbsorbRemaining(0))
	assert.EqualValues(t, 15, target.EffectiveStat("strength", 0))
	assert.Equal(t, 1, target.Periodic.ActiveCount())
}

func TestNPCHandlerLootsCorpseBeforeDialog(t *testing.T) {
	source := entity.New(entity.MakeGUID(entity.KindCreature, 1), entity.KindCreature, 0, 5, spatial.Vec3{}, nil)
	corpse := entity.NewCorpse(entity.MakeGUID(entity.KindCorpse, 2), source, []entity.LootEntry{{ItemID: 1, Qty: 1}}, 0, 1000)

	h := NewNPCHandler(
		func(guid uint64) (*entity.Entity, bool) { return nil, false },
		func(guid uint64) (*entity.Corpse, bool) { return corpse, true },
		nil,
	)

	res := h.Handle(NPCInteractRequest{PlayerGUID: 9, CreatureGUID: corpse.GUID})
	require.True(t, res.OK)
	assert.Len(t, res.LootEntries, 1)
}
