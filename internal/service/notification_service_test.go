package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/community-bot/internal/events"
	"github.com/spec-kit/community-bot/internal/pubsub"
)

type fakePublisher struct {
	mu    sync.Mutex
	packs map[string][]*pubsub.Pack
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, pack *pubsub.Pack) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.packs == nil {
		f.packs = map[string][]*pubsub.Pack{}
	}
	f.packs[topic] = append(f.packs[topic], pack)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) topic(name string) []*pubsub.Pack {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*pubsub.Pack(nil), f.packs[name]...)
}

// blockingPublisher holds every send until release is closed.
type blockingPublisher struct {
	release chan struct{}
	sent    chan *pubsub.Pack
}

func (b *blockingPublisher) Publish(_ context.Context, _ string, pack *pubsub.Pack) error {
	<-b.release
	b.sent <- pack
	return nil
}

func (b *blockingPublisher) Close() error { return nil }

func runNotifications(t *testing.T, svc *NotificationService) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestNotificationServiceExportsEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	publisher := &fakePublisher{}
	svc := NewNotificationService(dispatcher, publisher, "bot.events", zap.NewNop())
	svc.RegisterHandlers()
	runNotifications(t, svc)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		ID:       "evt-1",
		Type:     events.EventTicketOpened,
		TicketID: 7,
		UserID:   "user-1",
		Payload:  events.TicketOpenedPayload{Category: "bug", Channel: "chan-1"},
	}))
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		ID:      "evt-2",
		Type:    events.EventLevelUp,
		UserID:  "user-1",
		Payload: events.LevelUpPayload{NewLevel: 3},
	}))

	require.Eventually(t, func() bool { return len(publisher.topic("bot.events")) == 2 }, time.Second, 5*time.Millisecond)
	packs := publisher.topic("bot.events")
	require.Equal(t, "7", string(packs[0].Key))
	require.Equal(t, "user-1", string(packs[1].Key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(packs[0].Msg, &decoded))
	require.Equal(t, "ticket_opened", decoded["type"])
	require.Equal(t, "bug", decoded["payload"].(map[string]any)["category"])
}

func TestNotificationServiceExportFailureDoesNotFailPublish(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewNotificationService(dispatcher, &fakePublisher{err: errors.New("broker down")}, "t", nil)
	svc.RegisterHandlers()
	runNotifications(t, svc)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketClaimed, TicketID: 1}))
}

func TestNotificationServiceStalledBrokerDoesNotBlockPublish(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	publisher := &blockingPublisher{release: make(chan struct{}), sent: make(chan *pubsub.Pack, ExportQueueSize+1)}
	svc := NewNotificationService(dispatcher, publisher, "t", nil)
	svc.RegisterHandlers()
	runNotifications(t, svc)

	published := make(chan error, 1)
	go func() {
		published <- dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketClaimed, TicketID: 1})
	}()
	select {
	case err := <-published:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publish waited on the broker")
	}

	close(publisher.release)
	select {
	case pack := <-publisher.sent:
		require.Equal(t, "1", string(pack.Key))
	case <-time.After(time.Second):
		t.Fatal("event was never exported")
	}
}

func TestNotificationServiceDropsWhenQueueFull(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewNotificationService(dispatcher, &fakePublisher{}, "t", nil)
	svc.RegisterHandlers()

	for i := 0; i < ExportQueueSize; i++ {
		require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventLevelUp, UserID: "u"}))
	}
	err := dispatcher.Publish(context.Background(), events.Event{Type: events.EventLevelUp, UserID: "u"})
	require.ErrorContains(t, err, "queue full")
}

func TestNotificationServiceFlushesOnShutdown(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	publisher := &fakePublisher{}
	svc := NewNotificationService(dispatcher, publisher, "t", nil)
	svc.RegisterHandlers()
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketClosed, TicketID: 2}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Run(ctx)
	require.Len(t, publisher.topic("t"), 1)
}

func TestNotificationServiceWithoutPublisher(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, nil, "", nil).RegisterHandlers()
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketClosed, TicketID: 1}))
}
