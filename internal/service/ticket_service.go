package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spec-kit/community-bot/internal/domain"
	"github.com/spec-kit/community-bot/internal/events"
	"github.com/spec-kit/community-bot/internal/observability"
	"github.com/spec-kit/community-bot/internal/repository"
	apperrors "github.com/spec-kit/community-bot/pkg/util"
)

const (
	maxChannelNameLength = 100
	teardownTimeout      = 30 * time.Second
)

// TicketSettings are the community identifiers the registry provisions against.
type TicketSettings struct {
	// GuildID doubles as the id of the default (everyone) role.
	GuildID         string
	ParentID        string
	PrivilegedRoles []string
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Provisioner ChannelProvisioner
	Archiver    TranscriptArchiver
	Messenger   TicketMessenger
	ArchiveRepo repository.TicketArchiveRepository
	Dispatcher  events.Dispatcher
	Clock       clockwork.Clock
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Settings    TicketSettings
}

// OpenTicketInput describes a completed intake form.
type OpenTicketInput struct {
	Requester     string
	RequesterName string
	Category      domain.Category
	Answers       []domain.FormAnswer
}

// ArchivedTicket is the outcome of a close.
type ArchivedTicket struct {
	Ticket     *domain.Ticket
	Transcript *domain.TranscriptArtifact
	ClosedBy   string
}

// TicketService is the registry of active tickets. It owns the active index
// and reserves a requester's slot before any collaborator is called.
type TicketService struct {
	provisioner ChannelProvisioner
	archiver    TranscriptArchiver
	messenger   TicketMessenger
	archives    repository.TicketArchiveRepository
	events      eventPublisher
	clock       clockwork.Clock
	logger      *zap.Logger
	metrics     *observability.Metrics
	settings    TicketSettings

	mu          sync.Mutex
	nextID      int64
	active      map[int64]*domain.Ticket
	byRequester map[string]int64
	byChannel   map[domain.ChannelRef]int64

	teardowns sync.WaitGroup
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clk := deps.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		provisioner: deps.Provisioner,
		archiver:    deps.Archiver,
		messenger:   deps.Messenger,
		archives:    deps.ArchiveRepo,
		events:      eventPublisher{dispatcher: deps.Dispatcher, clock: clk, logger: logger},
		clock:       clk,
		logger:      logger,
		metrics:     deps.Metrics,
		settings:    deps.Settings,
		active:      make(map[int64]*domain.Ticket),
		byRequester: make(map[string]int64),
		byChannel:   make(map[domain.ChannelRef]int64),
	}
}

// Restore seeds the id sequence from the archive so ids stay unique across restarts.
func (s *TicketService) Restore(ctx context.Context) error {
	if s.archives == nil {
		return nil
	}
	maxID, err := s.archives.MaxTicketID(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if maxID > s.nextID {
		s.nextID = maxID
	}
	s.mu.Unlock()
	return nil
}

// OpenTicket provisions a private channel for the requester's intake.
func (s *TicketService) OpenTicket(ctx context.Context, input OpenTicketInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.Requester) == "" {
		return nil, apperrors.NewValidationError("requester is required", nil)
	}
	if _, ok := domain.FormFor(input.Category); !ok {
		return nil, apperrors.NewValidationError("unknown ticket category", map[string]any{"category": input.Category})
	}

	s.mu.Lock()
	if existing, held := s.byRequester[input.Requester]; held {
		s.mu.Unlock()
		s.metrics.Incr(observability.CounterTicketsRejected)
		return nil, apperrors.NewAlreadyOpen(map[string]any{"ticket_id": existing})
	}
	s.nextID++
	id := s.nextID
	s.byRequester[input.Requester] = id
	s.mu.Unlock()

	ticket := &domain.Ticket{
		ID:            id,
		Requester:     input.Requester,
		RequesterName: input.RequesterName,
		Category:      input.Category,
		Status:        domain.TicketStatusOpen,
		Answers:       append([]domain.FormAnswer(nil), input.Answers...),
		OpenedAt:      s.clock.Now(),
	}

	channel, err := s.provisioner.Create(ctx, s.channelSpec(ticket))
	if err != nil {
		s.release(ticket)
		s.metrics.Incr(observability.CounterProvisionFailures)
		s.logger.Error("ticket channel provisioning failed",
			zap.Int64("ticket_id", id),
			zap.String("requester", input.Requester),
			zap.Error(err))
		return nil, apperrors.NewProvisioningFailure(err)
	}
	ticket.Channel = channel

	s.mu.Lock()
	s.active[id] = ticket
	s.byChannel[channel] = id
	snapshot := ticket.Clone()
	s.mu.Unlock()

	if err := s.messenger.PostIntake(ctx, snapshot); err != nil {
		s.release(ticket)
		s.deleteChannel(ctx, channel)
		s.metrics.Incr(observability.CounterProvisionFailures)
		s.logger.Error("ticket intake post failed",
			zap.Int64("ticket_id", id),
			zap.String("channel", string(channel)),
			zap.Error(err))
		return nil, apperrors.NewProvisioningFailure(err)
	}

	s.metrics.Incr(observability.CounterTicketsOpened)
	s.logger.Info("ticket opened",
		zap.Int64("ticket_id", id),
		zap.String("category", string(ticket.Category)),
		zap.String("requester", ticket.Requester),
		zap.String("channel", string(channel)))
	s.events.publish(ctx, events.Event{
		Type:     events.EventTicketOpened,
		TicketID: id,
		UserID:   ticket.Requester,
		Payload:  events.TicketOpenedPayload{Category: ticket.Category, Channel: channel},
	})
	return snapshot, nil
}

// ClaimTicket assigns a privileged handler. The first claim is terminal.
func (s *TicketService) ClaimTicket(ctx context.Context, id int64, actor domain.Actor) (*domain.Ticket, error) {
	s.mu.Lock()
	ticket, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	if ticket.ClaimedBy != nil {
		claimedBy := *ticket.ClaimedBy
		s.mu.Unlock()
		return nil, apperrors.NewAlreadyClaimed(map[string]any{"ticket_id": id, "claimed_by": claimedBy})
	}
	if !s.Privileged(actor) {
		s.mu.Unlock()
		return nil, apperrors.NewNotPrivileged("only staff can claim tickets")
	}
	now := s.clock.Now()
	claimer := actor.UserID
	ticket.ClaimedBy = &claimer
	ticket.ClaimedAt = &now
	ticket.Status = domain.TicketStatusClaimed
	snapshot := ticket.Clone()
	s.mu.Unlock()

	if err := s.messenger.PostClaimNotice(ctx, snapshot, actor); err != nil {
		s.logger.Warn("claim notice failed", zap.Int64("ticket_id", id), zap.Error(err))
	}
	s.metrics.Incr(observability.CounterTicketsClaimed)
	s.logger.Info("ticket claimed", zap.Int64("ticket_id", id), zap.String("claimed_by", claimer))
	s.events.publish(ctx, events.Event{
		Type:     events.EventTicketClaimed,
		TicketID: id,
		UserID:   claimer,
		Payload:  events.TicketClaimedPayload{ClaimedBy: claimer},
	})
	return snapshot, nil
}

// CloseTicket archives the transcript, then tears the channel down.
// An archival failure still closes the ticket; the result is returned
// alongside the error.
func (s *TicketService) CloseTicket(ctx context.Context, id int64, actor domain.Actor) (*ArchivedTicket, error) {
	ticket, err := s.detach(id, actor, "only staff can close tickets")
	if err != nil {
		return nil, err
	}

	result := &ArchivedTicket{Ticket: ticket, ClosedBy: actor.UserID}
	artifact, archiveErr := s.archiver.Archive(ctx, ArchiveRequest{Ticket: ticket, ClosedBy: actor})
	if archiveErr == nil {
		result.Transcript = artifact
	}
	s.deleteChannel(ctx, ticket.Channel)
	s.recordArchive(ctx, result)

	var transcript *string
	if result.Transcript != nil {
		transcript = &result.Transcript.FileName
	}
	s.metrics.Incr(observability.CounterTicketsClosed)
	s.events.publish(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: id,
		UserID:   actor.UserID,
		Payload: events.TicketClosedPayload{
			Category:   ticket.Category,
			Requester:  ticket.Requester,
			ClaimedBy:  ticket.ClaimedBy,
			Transcript: transcript,
		},
	})

	if archiveErr != nil {
		s.metrics.Incr(observability.CounterArchiveFailures)
		s.logger.Error("ticket transcript archival failed",
			zap.Int64("ticket_id", id),
			zap.String("channel", string(ticket.Channel)),
			zap.Error(archiveErr))
		return result, apperrors.NewArchivalFailure(archiveErr)
	}
	s.logger.Info("ticket closed", zap.Int64("ticket_id", id), zap.String("closed_by", actor.UserID))
	return result, nil
}

// DeleteTicket discards a ticket and its channel without a transcript.
func (s *TicketService) DeleteTicket(ctx context.Context, id int64, actor domain.Actor) (*domain.Ticket, error) {
	ticket, err := s.detach(id, actor, "only staff can delete tickets")
	if err != nil {
		return nil, err
	}
	s.deleteChannel(ctx, ticket.Channel)
	s.recordArchive(ctx, &ArchivedTicket{Ticket: ticket, ClosedBy: actor.UserID})

	s.metrics.Incr(observability.CounterTicketsClosed)
	s.logger.Info("ticket deleted", zap.Int64("ticket_id", id), zap.String("deleted_by", actor.UserID))
	s.events.publish(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: id,
		UserID:   actor.UserID,
		Payload: events.TicketClosedPayload{
			Category:  ticket.Category,
			Requester: ticket.Requester,
			ClaimedBy: ticket.ClaimedBy,
			Discarded: true,
		},
	})
	return ticket, nil
}

// GetTicket returns a copy of an active ticket.
func (s *TicketService) GetTicket(id int64) (*domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.active[id]
	if !ok {
		return nil, false
	}
	return ticket.Clone(), true
}

// TicketByChannel resolves the active ticket living in channel.
func (s *TicketService) TicketByChannel(channel domain.ChannelRef) (*domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byChannel[channel]
	if !ok {
		return nil, false
	}
	return s.active[id].Clone(), true
}

// ActiveTickets lists open and claimed tickets ordered by id.
func (s *TicketService) ActiveTickets() []*domain.Ticket {
	s.mu.Lock()
	out := make([]*domain.Ticket, 0, len(s.active))
	for _, ticket := range s.active {
		out = append(out, ticket.Clone())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Privileged reports whether actor holds one of the configured staff roles.
func (s *TicketService) Privileged(actor domain.Actor) bool {
	return actor.HasAnyRole(s.settings.PrivilegedRoles)
}

// Drain waits for in-flight channel teardowns.
func (s *TicketService) Drain() {
	s.teardowns.Wait()
}

// detach validates a close or delete and removes the ticket from every index.
func (s *TicketService) detach(id int64, actor domain.Actor, deniedMsg string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.active[id]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	if !s.Privileged(actor) {
		return nil, apperrors.NewNotPrivileged(deniedMsg)
	}
	delete(s.active, id)
	delete(s.byChannel, ticket.Channel)
	if s.byRequester[ticket.Requester] == id {
		delete(s.byRequester, ticket.Requester)
	}
	now := s.clock.Now()
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &now
	return ticket.Clone(), nil
}

// release undoes a reservation after a failed provisioning.
func (s *TicketService) release(ticket *domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, ticket.ID)
	if ticket.Channel != "" {
		delete(s.byChannel, ticket.Channel)
	}
	if s.byRequester[ticket.Requester] == ticket.ID {
		delete(s.byRequester, ticket.Requester)
	}
}

// deleteChannel fires the channel teardown without waiting for it.
func (s *TicketService) deleteChannel(ctx context.Context, channel domain.ChannelRef) {
	if channel == "" {
		return
	}
	s.teardowns.Add(1)
	go func() {
		defer s.teardowns.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
		defer cancel()
		if err := s.provisioner.Delete(ctx, channel); err != nil {
			s.logger.Warn("ticket channel teardown failed", zap.String("channel", string(channel)), zap.Error(err))
		}
	}()
}

func (s *TicketService) recordArchive(ctx context.Context, result *ArchivedTicket) {
	if s.archives == nil {
		return
	}
	ticket := result.Ticket
	archive := &domain.TicketArchive{
		TicketID:  ticket.ID,
		Requester: ticket.Requester,
		Category:  ticket.Category,
		ClaimedBy: ticket.ClaimedBy,
		ClosedBy:  result.ClosedBy,
		Channel:   ticket.Channel,
		Answers:   ticket.Answers,
		OpenedAt:  ticket.OpenedAt,
	}
	if ticket.ClosedAt != nil {
		archive.ClosedAt = *ticket.ClosedAt
	}
	if result.Transcript != nil {
		name, digest := result.Transcript.FileName, result.Transcript.Digest
		archive.TranscriptName = &name
		archive.TranscriptDigest = &digest
	}
	if err := s.archives.Create(ctx, archive); err != nil {
		s.logger.Warn("ticket archive record failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
	}
}

func (s *TicketService) channelSpec(ticket *domain.Ticket) domain.ChannelSpec {
	access := domain.PermissionViewChannel | domain.PermissionSendMessages |
		domain.PermissionReadHistory | domain.PermissionAttachFiles

	overwrites := []domain.PermissionOverwrite{
		{SubjectID: s.settings.GuildID, SubjectType: domain.OverwriteRole, Deny: domain.PermissionViewChannel},
		{SubjectID: ticket.Requester, SubjectType: domain.OverwriteMember, Allow: access},
	}
	for _, role := range s.settings.PrivilegedRoles {
		overwrites = append(overwrites, domain.PermissionOverwrite{
			SubjectID:   role,
			SubjectType: domain.OverwriteRole,
			Allow:       access,
		})
	}

	name := ticket.RequesterName
	if name == "" {
		name = ticket.Requester
	}
	return domain.ChannelSpec{
		Name:       ChannelName(ticket.Category, name),
		ParentID:   s.settings.ParentID,
		Topic:      "Ticket #" + strconv.FormatInt(ticket.ID, 10) + " opened by <@" + ticket.Requester + ">",
		Overwrites: overwrites,
	}
}

// ChannelName builds "<category>-<username>" reduced to the characters a
// text channel name accepts.
func ChannelName(category domain.Category, username string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(string(category) + "-" + username) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}
	name := strings.Trim(b.String(), "-")
	if runes := []rune(name); len(runes) > maxChannelNameLength {
		name = strings.TrimRight(string(runes[:maxChannelNameLength]), "-")
	}
	if name == "" {
		return "ticket"
	}
	return name
}
