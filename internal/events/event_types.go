package events

import (
	"time"

	"github.com/spec-kit/community-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened  EventType = "ticket_opened"
	EventTicketClaimed EventType = "ticket_claimed"
	EventTicketClosed  EventType = "ticket_closed"
	EventLevelUp       EventType = "level_up"
	EventRolesUpdated  EventType = "roles_updated"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  int64     `json:"ticket_id,omitempty"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketOpenedPayload payload.
type TicketOpenedPayload struct {
	Category domain.Category   `json:"category"`
	Channel  domain.ChannelRef `json:"channel"`
}

// TicketClaimedPayload payload.
type TicketClaimedPayload struct {
	ClaimedBy string `json:"claimed_by"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	Category   domain.Category `json:"category"`
	Requester  string          `json:"requester"`
	ClaimedBy  *string         `json:"claimed_by,omitempty"`
	Transcript *string         `json:"transcript,omitempty"`
	Discarded  bool            `json:"discarded,omitempty"`
}

// LevelUpPayload payload.
type LevelUpPayload struct {
	NewLevel  int    `json:"new_level"`
	ChannelID string `json:"channel_id,omitempty"`
}

// RolesUpdatedPayload payload.
type RolesUpdatedPayload struct {
	Group   string   `json:"group"`
	Granted []string `json:"granted"`
	Revoked []string `json:"revoked"`
}
