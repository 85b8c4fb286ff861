package service

import (
	"context"
	"strconv"
	"sync"

	"github.com/spec-kit/community-bot/internal/domain"
	"github.com/spec-kit/community-bot/internal/events"
)

// callLog records collaborator calls across goroutines.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.snapshot() {
		if c == call {
			n++
		}
	}
	return n
}

type fakeProvisioner struct {
	log        *callLog
	mu         sync.Mutex
	specs      []domain.ChannelSpec
	CreateFunc func(ctx context.Context, spec domain.ChannelSpec) (domain.ChannelRef, error)
	DeleteFunc func(ctx context.Context, channel domain.ChannelRef) error
}

func (f *fakeProvisioner) Create(ctx context.Context, spec domain.ChannelSpec) (domain.ChannelRef, error) {
	f.log.add("create")
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	n := len(f.specs)
	f.mu.Unlock()
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, spec)
	}
	return domain.ChannelRef("chan-" + strconv.Itoa(n)), nil
}

func (f *fakeProvisioner) Delete(ctx context.Context, channel domain.ChannelRef) error {
	f.log.add("delete:" + string(channel))
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, channel)
	}
	return nil
}

func (f *fakeProvisioner) lastSpec() domain.ChannelSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.specs[len(f.specs)-1]
}

type fakeArchiver struct {
	log         *callLog
	ArchiveFunc func(ctx context.Context, req ArchiveRequest) (*domain.TranscriptArtifact, error)
}

func (f *fakeArchiver) Archive(ctx context.Context, req ArchiveRequest) (*domain.TranscriptArtifact, error) {
	f.log.add("archive:" + string(req.Ticket.Channel))
	if f.ArchiveFunc != nil {
		return f.ArchiveFunc(ctx, req)
	}
	return &domain.TranscriptArtifact{
		FileName:     "ticket-" + string(req.Ticket.Channel) + ".html",
		MessageCount: 3,
		Digest:       "digest",
	}, nil
}

type fakeMessenger struct {
	log            *callLog
	PostIntakeFunc func(ctx context.Context, ticket *domain.Ticket) error
}

func (f *fakeMessenger) PostIntake(ctx context.Context, ticket *domain.Ticket) error {
	f.log.add("intake:" + string(ticket.Channel))
	if f.PostIntakeFunc != nil {
		return f.PostIntakeFunc(ctx, ticket)
	}
	return nil
}

func (f *fakeMessenger) PostClaimNotice(ctx context.Context, ticket *domain.Ticket, claimer domain.Actor) error {
	f.log.add("claim-notice:" + claimer.UserID)
	return nil
}

type fakeArchiveRepo struct {
	mu       sync.Mutex
	created  []domain.TicketArchive
	maxID    int64
	CreateFn func(archive *domain.TicketArchive) error
}

func (f *fakeArchiveRepo) Create(_ context.Context, archive *domain.TicketArchive) error {
	if f.CreateFn != nil {
		if err := f.CreateFn(archive); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, *archive)
	return nil
}

func (f *fakeArchiveRepo) GetByTicketID(_ context.Context, ticketID int64) (*domain.TicketArchive, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.created {
		if a.TicketID == ticketID {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeArchiveRepo) ListByRequester(_ context.Context, requester string, _, _ int) ([]domain.TicketArchive, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TicketArchive
	for _, a := range f.created {
		if a.Requester == requester {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeArchiveRepo) MaxTicketID(context.Context) (int64, error) {
	return f.maxID, nil
}

func (f *fakeArchiveRepo) all() []domain.TicketArchive {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TicketArchive(nil), f.created...)
}

type fakeRoleGranter struct {
	log       *callLog
	GrantFunc func(userID, roleID string) error
}

func (f *fakeRoleGranter) Grant(_ context.Context, userID, roleID string) error {
	f.log.add("grant:" + userID + ":" + roleID)
	if f.GrantFunc != nil {
		return f.GrantFunc(userID, roleID)
	}
	return nil
}

func (f *fakeRoleGranter) Revoke(_ context.Context, userID, roleID string) error {
	f.log.add("revoke:" + userID + ":" + roleID)
	return nil
}

// recordingDispatcher captures published events and forwards to subscribers.
type recordingDispatcher struct {
	events.Dispatcher
	mu        sync.Mutex
	published []events.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{Dispatcher: events.NewInMemoryDispatcher()}
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	d.published = append(d.published, event)
	d.mu.Unlock()
	return d.Dispatcher.Publish(ctx, event)
}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.published))
	for _, e := range d.published {
		out = append(out, e.Type)
	}
	return out
}

func (d *recordingDispatcher) last() events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.published[len(d.published)-1]
}
