// Package worldmanager implements the process-wide session registry:
// four indices kept in lockstep (account, character name, entity GUID,
// zone membership), GUID generation, and whisper routing.
package worldmanager

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/udisondev/wildstar-worldd/internal/connection"
	"github.com/udisondev/wildstar-worldd/internal/entity"
	"github.com/udisondev/wildstar-worldd/internal/zone"
)

// Errors returned by whisper routing.
var (
	ErrRecipientOffline     = errors.New("worldmanager: recipient offline")
	ErrRecipientSameFaction = errors.New("worldmanager: whisper blocked by faction policy")
	ErrRecipientIgnoredYou  = errors.New("worldmanager: recipient is ignoring you")
)

// Record is the canonical session record every index points to.
type Record struct {
	SessionID     uint64
	AccountID     uint32
	CharacterName string
	EntityGUID    uint64
	ZoneKey       zone.Key
	Faction       entity.PlayerFaction
	Conn          *connection.Conn

	ignoring map[string]struct{}
}

// Ignores reports whether this session is ignoring senderName.
func (r *Record) Ignores(senderName string) bool {
	_, ok := r.ignoring[strings.ToLower(senderName)]
	return ok
}

// Manager is the singleton registry. One Manager exists per running
// world server process.
type Manager struct {
	mu         sync.RWMutex
	byAccount  map[uint32]*Record
	byCharName map[string]*Record // lower-cased keys
	byGUID     map[uint64]*Record
	byZone     map[zone.Key]map[uint64]*Record // keyed by SessionID

	guidSeq map[entity.Kind]*atomic.Uint64
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{
		byAccount:  make(map[uint32]*Record),
		byCharName: make(map[string]*Record),
		byGUID:     make(map[uint64]*Record),
		byZone:     make(map[zone.Key]map[uint64]*Record),
		guidSeq:    make(map[entity.Kind]*atomic.Uint64),
	}
}

// Register inserts rec into every index atomically.
func (m *Manager) Register(rec *Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byAccount[rec.AccountID] = rec
	m.byCharName[strings.ToLower(rec.CharacterName)] = rec
	m.byGUID[rec.EntityGUID] = rec

	set, ok := m.byZone[rec.ZoneKey]
	if !ok {
		set = make(map[uint64]*Record)
		m.byZone[rec.ZoneKey] = set
	}
	set[rec.SessionID] = rec
}

// Deregister removes rec from every index atomically.
func (m *Manager) Deregister(rec *Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.byAccount, rec.AccountID)
	delete(m.byCharName, strings.ToLower(rec.CharacterName))
	delete(m.byGUID, rec.EntityGUID)
	if set, ok := m.byZone[rec.ZoneKey]; ok {
		delete(set, rec.SessionID)
		if len(set) == 0 {
			delete(m.byZone, rec.ZoneKey)
		}
	}
}

// ChangeZone moves rec's zone-index membership from oldKey to rec.ZoneKey.
func (m *Manager) ChangeZone(rec *Record, oldKey zone.Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.byZone[oldKey]; ok {
		delete(set, rec.SessionID)
		if len(set) == 0 {
			delete(m.byZone, oldKey)
		}
	}
	set, ok := m.byZone[rec.ZoneKey]
	if !ok {
		set = make(map[uint64]*Record)
		m.byZone[rec.ZoneKey] = set
	}
	set[rec.SessionID] = rec
}

// LookupByAccount returns the session record for accountID.
func (m *Manager) LookupByAccount(accountID uint32) (*Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byAccount[accountID]
	return r, ok
}

// LookupByCharacterName is case-insensitive.
func (m *Manager) LookupByCharacterName(name string) (*Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byCharName[strings.ToLower(name)]
	return r, ok
}

// LookupByGUID returns the session record owning entity guid.
func (m *Manager) LookupByGUID(guid uint64) (*Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byGUID[guid]
	return r, ok
}

// ZoneMembers returns every session record currently in key's zone.
func (m *Manager) ZoneMembers(key zone.Key) []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.byZone[key]
	if !ok {
		return nil
	}
	out := make([]*Record, 0, len(set))
	for _, r := range set {
		out = append(out, r)
	}
	return out
}

// BroadcastToZone delivers packet to every connection registered in key's
// zone.
func (m *Manager) BroadcastToZone(key zone.Key, opcode uint16, payload []byte) {
	for _, r := range m.ZoneMembers(key) {
		if r.Conn != nil {
			r.Conn.Enqueue(connection.OutboundPacket{Opcode: opcode, Payload: payload})
		}
	}
}

// RouteWhisper resolves targetName and returns its record, subject to
// ignore-list and cross-faction whisper policy; delivering the text to
// the target's connection is left to the caller.
func (m *Manager) RouteWhisper(from *Record, targetName string, crossFactionAllowed bool) (*Record, error) {
	target, ok := m.LookupByCharacterName(targetName)
	if !ok {
		return nil, ErrRecipientOffline
	}
	if target.Ignores(from.CharacterName) {
		return nil, ErrRecipientIgnoredYou
	}
	if !crossFactionAllowed && target.Faction != from.Faction {
		return nil, ErrRecipientSameFaction
	}
	return target, nil
}

// GenerateGUID returns the next process-unique GUID for kind: the high
// byte encodes kind, the low 56 bits are a monotonic per-kind sequence.
func (m *Manager) GenerateGUID(kind entity.Kind) uint64 {
	m.mu.Lock()
	seq, ok := m.guidSeq[kind]
	if !ok {
		seq = &atomic.Uint64{}
		m.guidSeq[kind] = seq
	}
	m.mu.Unlock()
	return entity.MakeGUID(kind, seq.Add(1))
}
