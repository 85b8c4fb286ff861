package service

import (
	"context"

	"github.com/spec-kit/community-bot/internal/domain"
)

// ChannelProvisioner creates and tears down ticket channels.
type ChannelProvisioner interface {
	Create(ctx context.Context, spec domain.ChannelSpec) (domain.ChannelRef, error)
	// Delete is best effort; callers only log its error.
	Delete(ctx context.Context, channel domain.ChannelRef) error
}

// ArchiveRequest identifies the ticket whose channel history is archived.
type ArchiveRequest struct {
	Ticket   *domain.Ticket
	ClosedBy domain.Actor
}

// TranscriptArchiver renders a channel's history and delivers it to the log sink.
type TranscriptArchiver interface {
	Archive(ctx context.Context, req ArchiveRequest) (*domain.TranscriptArtifact, error)
}

// TicketMessenger posts lifecycle messages into ticket channels.
type TicketMessenger interface {
	PostIntake(ctx context.Context, ticket *domain.Ticket) error
	PostClaimNotice(ctx context.Context, ticket *domain.Ticket, claimer domain.Actor) error
}

// RoleGranter grants and revokes member roles. Both calls are idempotent.
type RoleGranter interface {
	Grant(ctx context.Context, userID, roleID string) error
	Revoke(ctx context.Context, userID, roleID string) error
}
