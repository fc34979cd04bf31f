package handlers

import "github.com/udisondev/wildstar-worldd/internal/entity"

// NPCInteractRequest is a decoded NPC-interact payload: the player
// clicked on creatureGUID.
type NPCInteractRequest struct {
	PlayerGUID   uint64
	CreatureGUID uint64
}

// NPCInteractResult tells the caller what came of an interaction.
type NPCInteractResult struct {
	OK          bool
	LootEntries []entity.LootEntry
	DialogID    uint32
}

// NPCHandler resolves interactions against live creatures/corpses.
type NPCHandler struct {
	resolveEntity func(guid uint64) (*entity.Entity, bool)
	resolveCorpse func(guid uint64) (*entity.Corpse, bool)
	dialogFor     func(templateFaction string) uint32
}

// NewNPCHandler wires an NPCHandler to its entity/corpse/content sources.
func NewNPCHandler(
	resolveEntity func(uint64) (*entity.Entity, bool),
	resolveCorpse func(uint64) (*entity.Corpse, bool),
	dialogFor func(string) uint32,
) *NPCHandler {
	return &NPCHandler{resolveEntity: resolveEntity, resolveCorpse: resolveCorpse, dialogFor: dialogFor}
}

// Handle interacts playerGUID with req.CreatureGUID: looting a corpse
// takes priority over opening a dialog with a living creature.
func (h *NPCHandler) Handle(req NPCInteractRequest) NPCInteractResult {
	if corpse, ok := h.resolveCorpse(req.CreatureGUID); ok {
		return NPCInteractResult{OK: true, LootEntries: corpse.TakeLoot(req.PlayerGUID)}
	}
	creature, ok := h.resolveEntity(req.CreatureGUID)
	if !ok || creature.IsDead() {
		return NPCInteractResult{}
	}
	var dialog uint32
	if h.dialogFor != nil {
		dialog = h.dialogFor(creature.Faction)
	}
	return NPCInteractResult{OK: true, DialogID: dialog}
}
