package domain

import "time"

// MessageAuthorType indicates who authored a message in a ticket channel.
type MessageAuthorType string

const (
	AuthorTypeUser  MessageAuthorType = "USER"
	AuthorTypeStaff MessageAuthorType = "STAFF"
	AuthorTypeBot   MessageAuthorType = "BOT"
)

// TicketMessage is one message of a ticket channel's history as rendered in a transcript.
type TicketMessage struct {
	ID          string
	AuthorID    string
	AuthorName  string
	AuthorType  MessageAuthorType
	Body        string
	Attachments []AttachmentReference
	CreatedAt   time.Time
}

// AttachmentReference stores metadata for message attachments.
type AttachmentReference struct {
	FileName  string
	URL       string
	SizeBytes int64
}
