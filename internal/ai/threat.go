package ai

import "sync"

// ThreatTable accumulates per-attacker threat for one creature.
type ThreatTable struct {
	mu     sync.Mutex
	threat map[uint64]uint32
	order  []uint64 // touch order, most-recent last
}

// NewThreatTable returns an empty threat table.
func NewThreatTable() *ThreatTable {
	return &ThreatTable{threat: make(map[uint64]uint32)}
}

// Add accumulates amount of threat from guid.
func (t *ThreatTable) Add(guid uint64, amount uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.threat[guid] += amount
	t.touchLocked(guid)
}

func (t *ThreatTable) touchLocked(guid uint64) {
	for i, g := range t.order {
		if g == guid {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.order = append(t.order, guid)
}

// Remove drops guid from the table entirely.
func (t *ThreatTable) Remove(guid uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.threat, guid)
	for i, g := range t.order {
		if g == guid {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Clear empties the table.
func (t *ThreatTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.threat = make(map[uint64]uint32)
	t.order = nil
}

// Highest returns the GUID with maximum threat; ties are broken in
// favor of the most recently touched entry.
func (t *ThreatTable) Highest() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var best uint64
	var bestVal uint32
	found := false
	for i := len(t.order) - 1; i >= 0; i-- {
		g := t.order[i]
		v := t.threat[g]
		if !found || v > bestVal {
			best, bestVal, found = g, v, true
		}
	}
	return best, found
}

// Empty reports whether the table has no entries.
func (t *ThreatTable) Empty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.threat) == 0
}
