// Package handlers implements the thin opcode-handler glue: movement,
// chat, spell, combat, and NPC-interact handlers that translate decoded
// payloads into ZoneInstance/WorldManager calls and outbound packets.
package handlers

import (
	"unicode/utf8"

	"github.com/udisondev/wildstar-worldd/internal/connection"
)

// ChatChannel is one chat command kind.
type ChatChannel int

const (
	ChatSay ChatChannel = iota
	ChatYell
	ChatEmote
	ChatWhisper
	ChatZone
	ChatSystem
)

// ChatRange is the broadcast radius for range-bounded channels; zero
// means unbounded (routed by WorldManager instead of the zone grid).
var ChatRange = map[ChatChannel]float32{
	ChatSay:   30,
	ChatYell:  100,
	ChatEmote: 30,
}

// MaxChatMessageCodePoints is the maximum accepted message length.
const MaxChatMessageCodePoints = 500

// ParseChatChannel maps a leading command token (without the slash) to
// its channel; an empty command (plain text) defaults to say.
func ParseChatChannel(command string) (ChatChannel, bool) {
	switch command {
	case "":
		return ChatSay, true
	case "say":
		return ChatSay, true
	case "yell":
		return ChatYell, true
	case "emote":
		return ChatEmote, true
	case "whisper", "w", "tell":
		return ChatWhisper, true
	case "zone":
		return ChatZone, true
	case "system":
		return ChatSystem, true
	default:
		return 0, false
	}
}

// ValidateChatMessage enforces the maximum message length in code
// points (not bytes, since the wire is UTF-16).
func ValidateChatMessage(msg string) bool {
	return utf8.RuneCountInString(msg) <= MaxChatMessageCodePoints
}

// IsRangeBounded reports whether ch is delivered via a spatial query
// (true) or routed by name through WorldManager (false).
func IsRangeBounded(ch ChatChannel) bool {
	_, ok := ChatRange[ch]
	return ok
}

// ChatHandler builds opcode handlers for say/yell/emote/whisper/zone/system.
type ChatHandler struct {
	broadcastRangeBounded func(channel ChatChannel, senderGUID uint64, text string)
	routeWhisper          func(senderGUID uint64, targetName, text string) error
	broadcastZone         func(senderGUID uint64, text string)
	broadcastSystem       func(text string)
}

// NewChatHandler wires a ChatHandler to the zone/world-level delivery
// functions it needs; each may be nil in tests that only exercise
// validation.
func NewChatHandler(
	broadcastRangeBounded func(ChatChannel, uint64, string),
	routeWhisper func(uint64, string, string) error,
	broadcastZone func(uint64, string),
	broadcastSystem func(string),
) *ChatHandler {
	return &ChatHandler{
		broadcastRangeBounded: broadcastRangeBounded,
		routeWhisper:          routeWhisper,
		broadcastZone:         broadcastZone,
		broadcastSystem:       broadcastSystem,
	}
}

// Handle dispatches one chat command from senderGUID.
func (h *ChatHandler) Handle(senderGUID uint64, command, targetName, text string) connection.HandlerResult {
	ch, ok := ParseChatChannel(command)
	if !ok || !ValidateChatMessage(text) {
		return connection.HandlerResult{}
	}

	switch {
	case IsRangeBounded(ch):
		if h.broadcastRangeBounded != nil {
			h.broadcastRangeBounded(ch, senderGUID, text)
		}
	case ch == ChatWhisper:
		if h.routeWhisper != nil {
			h.routeWhisper(senderGUID, targetName, text)
		}
	case ch == ChatZone:
		if h.broadcastZone != nil {
			h.broadcastZone(senderGUID, text)
		}
	case ch == ChatSystem:
		if h.broadcastSystem != nil {
			h.broadcastSystem(text)
		}
	}
	return connection.HandlerResult{}
}
