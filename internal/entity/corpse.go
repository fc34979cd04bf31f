package entity

// LootEntry is one (item, quantity) pair inside a corpse's loot table.
type LootEntry struct {
	ItemID uint32
	Qty    uint32
}

// Corpse is the distinct entity produced when a creature or player dies
// with lootable items.
type Corpse struct {
	*Entity

	Loot       []LootEntry
	SourceGUID uint64
	DespawnAt  int64

	lootedBy map[uint64]struct{}
}

// NewCorpse creates a corpse entity at the source's position, owned by
// no one, with the given loot table and despawn deadline. The source
// entity itself becoming dead and non-targetable is the caller's
// responsibility (ZoneInstance.HandleDeath), since the source and
// corpse are two separate entities.
func NewCorpse(guid uint64, source *Entity, loot []LootEntry, now, corpseTTLMs int64) *Corpse {
	e := New(guid, KindCorpse, 0, 0, source.Position, nil)
	e.DisplayInfo = source.DisplayInfo
	e.SetTargetable(false)
	return &Corpse{
		Entity:     e,
		Loot:       loot,
		SourceGUID: source.GUID,
		DespawnAt:  now + corpseTTLMs,
		lootedBy:   make(map[uint64]struct{}),
	}
}

// TakeLoot returns the corpse's loot to looter exactly once; a second
// call from the same looter returns an empty (nil) list.
func (c *Corpse) TakeLoot(looter uint64) []LootEntry {
	if _, already := c.lootedBy[looter]; already {
		return nil
	}
	c.lootedBy[looter] = struct{}{}
	out := make([]LootEntry, len(c.Loot))
	copy(out, c.Loot)
	return out
}
