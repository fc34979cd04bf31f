package worldmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/wildstar-worldd/internal/entity"
	"github.com/udisondev/wildstar-worldd/internal/zone"
)

func TestRegisterIndexesAllFour(t *testing.T) {
	m := New()
	rec := &Record{SessionID: 1, AccountID: 10, CharacterName: "Rivos", EntityGUID: 100, ZoneKey: zone.Key{MapID: 1}}
	m.Register(rec)

	_, ok := m.LookupByAccount(10)
	assert.True(t, ok)
	_, ok = m.LookupByCharacterName("rivos")
	assert.True(t, ok, "character name lookup is case-insensitive")
	_, ok = m.LookupByGUID(100)
	assert.True(t, ok)
	assert.Len(t, m.ZoneMembers(zone.Key{MapID: 1}), 1)
}

func TestDeregisterRemovesFromAllFour(t *testing.T) {
	m := New()
	rec := &Record{SessionID: 1, AccountID: 10, CharacterName: "Rivos", EntityGUID: 100, ZoneKey: zone.Key{MapID: 1}}
	m.Register(rec)
	m.Deregister(rec)

	_, ok := m.LookupByAccount(10)
	assert.False(t, ok)
	_, ok = m.LookupByCharacterName("rivos")
	assert.False(t, ok)
	_, ok = m.LookupByGUID(100)
	assert.False(t, ok)
	assert.Empty(t, m.ZoneMembers(zone.Key{MapID: 1}))
}

func TestChangeZoneMovesMembership(t *testing.T) {
	m := New()
	rec := &Record{SessionID: 1, ZoneKey: zone.Key{MapID: 1}}
	m.Register(rec)

	rec.ZoneKey = zone.Key{MapID: 2}
	m.ChangeZone(rec, zone.Key{MapID: 1})

	assert.Empty(t, m.ZoneMembers(zone.Key{MapID: 1}))
	assert.Len(t, m.ZoneMembers(zone.Key{MapID: 2}), 1)
}

func TestGenerateGUIDMonotonicPerKind(t *testing.T) {
	m := New()
	g1 := m.GenerateGUID(entity.KindPlayer)
	g2 := m.GenerateGUID(entity.KindPlayer)
	assert.NotEqual(t, g1, g2)
	assert.Equal(t, entity.KindPlayer, entity.GUIDKind(g1))
}

func TestRouteWhisperRecipientOffline(t *testing.T) {
	m := New()
	from := &Record{CharacterName: "Asker"}
	_, err := m.RouteWhisper(from, "nobody", true)
	assert.ErrorIs(t, err, ErrRecipientOffline)
}

func TestRouteWhisperCrossFactionBlocked(t *testing.T) {
	m := New()
	target := &Record{CharacterName: "Target", Faction: entity.FactionDominion}
	m.Register(target)
	from := &Record{CharacterName: "Asker", Faction: entity.FactionExile}

	_, err := m.RouteWhisper(from, "Target", false)
	assert.ErrorIs(t, err, ErrRecipientSameFaction)

	got, err := m.RouteWhisper(from, "Target", true)
	require.NoError(t, err)
	assert.Same(t, target, got)
}

func TestRouteWhisperIgnored(t *testing.T) {
	m := New()
	target := &Record{CharacterName: "Target", ignoring: map[string]struct{}{"asker": {}}}
	m.Register(target)
	from := &Record{CharacterName: "Asker"}

	_, err := m.RouteWhisper(from, "Target", true)
	assert.ErrorIs(t, err, ErrRecipientIgnoredYou)
}
