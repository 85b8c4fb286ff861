package dto

import (
	"time"

	"github.com/spec-kit/community-bot/internal/domain"
)

// TicketSummary describes an active ticket.
type TicketSummary struct {
	ID            int64               `json:"id"`
	Requester     string              `json:"requester_id"`
	RequesterName string              `json:"requester_name"`
	Category      domain.Category     `json:"category"`
	Status        domain.TicketStatus `json:"status"`
	ClaimedBy     *string             `json:"claimed_by"`
	ChannelID     string              `json:"channel_id"`
	Answers       []domain.FormAnswer `json:"answers"`
	OpenedAt      time.Time           `json:"opened_at"`
	ClaimedAt     *time.Time          `json:"claimed_at,omitempty"`
}

// ArchiveResponse describes a closed ticket.
type ArchiveResponse struct {
	TicketID         int64               `json:"ticket_id"`
	Requester        string              `json:"requester_id"`
	Category         domain.Category     `json:"category"`
	ClaimedBy        *string             `json:"claimed_by"`
	ClosedBy         string              `json:"closed_by"`
	ChannelID        string              `json:"channel_id"`
	Answers          []domain.FormAnswer `json:"answers"`
	TranscriptName   *string             `json:"transcript_name"`
	TranscriptDigest *string             `json:"transcript_digest"`
	OpenedAt         time.Time           `json:"opened_at"`
	ClosedAt         time.Time           `json:"closed_at"`
}

// NewTicketSummary maps an active ticket.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	answers := t.Answers
	if answers == nil {
		answers = []domain.FormAnswer{}
	}
	return TicketSummary{
		ID:            t.ID,
		Requester:     t.Requester,
		RequesterName: t.RequesterName,
		Category:      t.Category,
		Status:        t.Status,
		ClaimedBy:     t.ClaimedBy,
		ChannelID:     string(t.Channel),
		Answers:       answers,
		OpenedAt:      t.OpenedAt,
		ClaimedAt:     t.ClaimedAt,
	}
}

// NewArchiveResponse maps an archive record.
func NewArchiveResponse(a *domain.TicketArchive) ArchiveResponse {
	answers := a.Answers
	if answers == nil {
		answers = []domain.FormAnswer{}
	}
	return ArchiveResponse{
		TicketID:         a.TicketID,
		Requester:        a.Requester,
		Category:         a.Category,
		ClaimedBy:        a.ClaimedBy,
		ClosedBy:         a.ClosedBy,
		ChannelID:        string(a.Channel),
		Answers:          answers,
		TranscriptName:   a.TranscriptName,
		TranscriptDigest: a.TranscriptDigest,
		OpenedAt:         a.OpenedAt,
		ClosedAt:         a.ClosedAt,
	}
}
