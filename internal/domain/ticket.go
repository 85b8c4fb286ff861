package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen    TicketStatus = "OPEN"
	TicketStatusClaimed TicketStatus = "CLAIMED"
	TicketStatusClosed  TicketStatus = "CLOSED"
)

// Active reports whether the status counts against the requester's single open slot.
func (s TicketStatus) Active() bool {
	return s == TicketStatusOpen || s == TicketStatusClaimed
}

// ChannelRef is the platform handle of a provisioned channel.
type ChannelRef string

// FormAnswer is one captured intake question/answer pair.
type FormAnswer struct {
	Label  string `json:"label"`
	Answer string `json:"answer"`
}

// Ticket is the aggregate for a support conversation.
type Ticket struct {
	ID            int64
	Requester     string
	RequesterName string
	Category      Category
	Status        TicketStatus
	ClaimedBy     *string
	Channel       ChannelRef
	Answers       []FormAnswer
	OpenedAt      time.Time
	ClaimedAt     *time.Time
	ClosedAt      *time.Time
}

// Clone returns a copy that shares no mutable state with t.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	if t.ClaimedBy != nil {
		claimedBy := *t.ClaimedBy
		cp.ClaimedBy = &claimedBy
	}
	if t.ClaimedAt != nil {
		claimedAt := *t.ClaimedAt
		cp.ClaimedAt = &claimedAt
	}
	if t.ClosedAt != nil {
		closedAt := *t.ClosedAt
		cp.ClosedAt = &closedAt
	}
	cp.Answers = append([]FormAnswer(nil), t.Answers...)
	return &cp
}

// TranscriptArtifact describes a delivered transcript.
type TranscriptArtifact struct {
	FileName     string
	MessageCount int
	Digest       string
	// Ref identifies the log-sink message carrying the file.
	Ref string
}

// TicketArchive is the record a closed ticket leaves behind.
type TicketArchive struct {
	TicketID         int64
	Requester        string
	Category         Category
	ClaimedBy        *string
	ClosedBy         string
	Channel          ChannelRef
	Answers          []FormAnswer
	TranscriptName   *string
	TranscriptDigest *string
	OpenedAt         time.Time
	ClosedAt         time.Time
}
