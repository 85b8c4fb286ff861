package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spec-kit/community-bot/internal/events"
	"github.com/spec-kit/community-bot/internal/pubsub"
)

// ExportQueueSize bounds the events waiting for the broker. Events arriving
// while the queue is full are dropped.
const ExportQueueSize = 256

// NotificationService logs domain events and exports them to the broker when
// one is configured. Subscribers only enqueue; Run does the sending, so a
// slow broker never holds up the operation that emitted the event.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  pubsub.Publisher
	topic      string
	logger     *zap.Logger
	queue      chan events.Event
}

// NewNotificationService creates the service. A nil publisher only logs.
func NewNotificationService(dispatcher events.Dispatcher, publisher pubsub.Publisher, topic string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		topic:      topic,
		logger:     logger,
		queue:      make(chan events.Event, ExportQueueSize),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketOpened, n.handleTicketOpened)
	n.dispatcher.Subscribe(events.EventTicketClaimed, n.enqueue)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketClosed)
	n.dispatcher.Subscribe(events.EventLevelUp, n.enqueue)
	n.dispatcher.Subscribe(events.EventRolesUpdated, n.enqueue)
}

// Run sends queued events until ctx is cancelled, then flushes whatever is
// still queued.
func (n *NotificationService) Run(ctx context.Context) {
	for {
		select {
		case event := <-n.queue:
			n.send(ctx, event)
		case <-ctx.Done():
			n.flush()
			return
		}
	}
}

func (n *NotificationService) flush() {
	ctx := context.Background()
	for {
		select {
		case event := <-n.queue:
			n.send(ctx, event)
		default:
			return
		}
	}
}

func (n *NotificationService) handleTicketOpened(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketOpened", zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.enqueue(ctx, event)
}

func (n *NotificationService) handleTicketClosed(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketClosed", zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.enqueue(ctx, event)
}

func (n *NotificationService) enqueue(_ context.Context, event events.Event) error {
	if n.publisher == nil {
		return nil
	}
	select {
	case n.queue <- event:
		return nil
	default:
		return fmt.Errorf("export queue full, dropped event %s", event.Type)
	}
}

func (n *NotificationService) send(ctx context.Context, event events.Event) {
	if err := n.export(ctx, event); err != nil {
		n.logger.Warn("event export failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func (n *NotificationService) export(ctx context.Context, event events.Event) error {
	if n.publisher == nil {
		return nil
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	key := event.UserID
	if event.TicketID != 0 {
		key = strconv.FormatInt(event.TicketID, 10)
	}
	if err := n.publisher.Publish(ctx, n.topic, &pubsub.Pack{Key: []byte(key), Msg: raw}); err != nil {
		return fmt.Errorf("export event %s: %w", event.Type, err)
	}
	n.logger.Debug("event exported", zap.String("event_type", string(event.Type)), zap.String("topic", n.topic))
	return nil
}
