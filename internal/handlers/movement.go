package handlers

import (
	"github.com/udisondev/wildstar-worldd/internal/spatial"
)

// MovementSubCommandKind is one entry in an EntityCommand's sub-command
// sequence.
type MovementSubCommandKind int

const (
	SetPosition MovementSubCommandKind = iota
	SetVelocity
	SetRotation
	SetState
)

// MovementSubCommand is one decoded sub-command.
type MovementSubCommand struct {
	Kind     MovementSubCommandKind
	Position spatial.Vec3
	Velocity spatial.Vec3
	Rotation float32
	State    uint32
}

// MaxPlausibleSpeed bounds how far an entity may move between two
// consecutive position updates, in world units per second, before the
// zone rejects the update as implausible.
const MaxPlausibleSpeed = 40.0

// ValidatePositionUpdate reports whether moving from prev to next over
// elapsedMs is physically plausible given MaxPlausibleSpeed.
func ValidatePositionUpdate(prev, next spatial.Vec3, elapsedMs int64) bool {
	if elapsedMs <= 0 {
		return prev == next
	}
	dist := prev.DistanceTo(next)
	maxDist := MaxPlausibleSpeed * float32(elapsedMs) / 1000
	return dist <= maxDist
}

// MovementHandler applies validated EntityCommand sub-commands to the
// owning zone.
type MovementHandler struct {
	move func(guid uint64, pos spatial.Vec3)
}

// NewMovementHandler wires a MovementHandler to the zone's Move call.
func NewMovementHandler(move func(uint64, spatial.Vec3)) *MovementHandler {
	return &MovementHandler{move: move}
}

// Apply validates and applies each sub-command in order for entity guid,
// currently positioned at prevPos, elapsedMs since its last update.
func (h *MovementHandler) Apply(guid uint64, prevPos spatial.Vec3, elapsedMs int64, cmds []MovementSubCommand) {
	for _, c := range cmds {
		if c.Kind != SetPosition {
			continue
		}
		if !ValidatePositionUpdate(prevPos, c.Position, elapsedMs) {
			continue
		}
		if h.move != nil {
			h.move(guid, c.Position)
		}
		prevPos = c.Position
	}
}
