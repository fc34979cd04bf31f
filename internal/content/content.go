// Package content implements a YAML-backed ports.ContentStore: creature,
// spell, item, and zone templates plus loot tables, loaded once at
// startup from a data directory and safe for concurrent readers
// thereafter since the maps are never mutated post-load.
package content

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/wildstar-worldd/internal/ports"
)

// lootTable is one resolvable drop table: each entry independently rolls
// against its own chance.
type lootTable struct {
	ID      uint32      `yaml:"id"`
	Entries []lootEntry `yaml:"entries"`
}

type lootEntry struct {
	ItemID uint32  `yaml:"item_id"`
	Qty    uint32  `yaml:"qty"`
	Chance float64 `yaml:"chance"`
}

// creatureFile and its sibling *File types are the on-disk shape of the
// data directory: one YAML document per content kind.
type creatureFile struct {
	Creatures []ports.CreatureTemplate `yaml:"creatures"`
}

type spellFile struct {
	Spells []ports.SpellTemplate `yaml:"spells"`
}

type itemFile struct {
	Items []ports.ItemTemplate `yaml:"items"`
}

type zoneFile struct {
	Zones []ports.ZoneTemplate `yaml:"zones"`
}

type lootFile struct {
	Tables []lootTable `yaml:"tables"`
}

// Store is an in-memory ContentStore populated from YAML files under a
// data directory.
type Store struct {
	creatures map[uint32]ports.CreatureTemplate
	spells    map[uint32]ports.SpellTemplate
	items     map[uint32]ports.ItemTemplate
	zones     map[uint32]ports.ZoneTemplate
	loot      map[uint32]lootTable
	rngMu     sync.Mutex
	rng       *rand.Rand
}

// Load reads creatures.yaml, spells.yaml, items.yaml, zones.yaml, and
// loot.yaml from dir. A missing file yields an empty table for that
// kind rather than an error, so a partial data directory still starts.
func Load(dir string) (*Store, error) {
	s := &Store{
		creatures: make(map[uint32]ports.CreatureTemplate),
		spells:    make(map[uint32]ports.SpellTemplate),
		items:     make(map[uint32]ports.ItemTemplate),
		zones:     make(map[uint32]ports.ZoneTemplate),
		loot:      make(map[uint32]lootTable),
		rng:       rand.New(rand.NewSource(1)),
	}

	var cf creatureFile
	if err := readYAML(filepath.Join(dir, "creatures.yaml"), &cf); err != nil {
		return nil, err
	}
	for _, c := range cf.Creatures {
		s.creatures[c.ID] = c
	}

	var sf spellFile
	if err := readYAML(filepath.Join(dir, "spells.yaml"), &sf); err != nil {
		return nil, err
	}
	for _, sp := range sf.Spells {
		s.spells[sp.ID] = sp
	}

	var itf itemFile
	if err := readYAML(filepath.Join(dir, "items.yaml"), &itf); err != nil {
		return nil, err
	}
	for _, it := range itf.Items {
		s.items[it.ID] = it
	}

	var zf zoneFile
	if err := readYAML(filepath.Join(dir, "zones.yaml"), &zf); err != nil {
		return nil, err
	}
	for _, z := range zf.Zones {
		s.zones[z.MapID] = z
	}

	var lf lootFile
	if err := readYAML(filepath.Join(dir, "loot.yaml"), &lf); err != nil {
		return nil, err
	}
	for _, t := range lf.Tables {
		s.loot[t.ID] = t
	}

	return s, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("content: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("content: parsing %s: %w", path, err)
	}
	return nil
}

func (s *Store) GetCreatureTemplate(id uint32) (ports.CreatureTemplate, bool) {
	t, ok := s.creatures[id]
	return t, ok
}

func (s *Store) GetSpell(id uint32) (ports.SpellTemplate, bool) {
	t, ok := s.spells[id]
	return t, ok
}

func (s *Store) GetItem(id uint32) (ports.ItemTemplate, bool) {
	t, ok := s.items[id]
	return t, ok
}

func (s *Store) GetZone(id uint32) (ports.ZoneTemplate, bool) {
	t, ok := s.zones[id]
	return t, ok
}

// LootRoll independently rolls each entry of tableID against its chance
// and returns the drops that hit. An unknown table yields no drops.
func (s *Store) LootRoll(tableID uint32) []ports.LootDrop {
	t, ok := s.loot[tableID]
	if !ok {
		return nil
	}
	var drops []ports.LootDrop
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	for _, e := range t.Entries {
		if s.rng.Float64() < e.Chance {
			drops = append(drops, ports.LootDrop{ItemID: e.ItemID, Qty: e.Qty})
		}
	}
	return drops
}
