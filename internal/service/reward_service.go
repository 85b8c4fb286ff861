package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/community-bot/internal/domain"
	"github.com/spec-kit/community-bot/internal/events"
	"github.com/spec-kit/community-bot/internal/observability"
)

// RewardService grants the role configured for a level when a user reaches it.
// It keeps no record of past grants and never revokes.
type RewardService struct {
	rules      []domain.RewardRule
	granter    RoleGranter
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewRewardService creates the service.
func NewRewardService(rules []domain.RewardRule, granter RoleGranter, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *RewardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RewardService{
		rules:      append([]domain.RewardRule(nil), rules...),
		granter:    granter,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to level-up events.
func (r *RewardService) RegisterHandlers() {
	if r.dispatcher == nil {
		return
	}
	r.dispatcher.Subscribe(events.EventLevelUp, r.handleLevelUp)
}

// Resolve grants every role whose threshold equals the new level exactly.
func (r *RewardService) Resolve(ctx context.Context, event domain.LevelUpEvent) ([]domain.RewardRule, error) {
	var (
		granted []domain.RewardRule
		errs    []error
	)
	for _, rule := range r.rules {
		if rule.Level != event.NewLevel {
			continue
		}
		if err := r.granter.Grant(ctx, event.UserID, rule.RoleID); err != nil {
			errs = append(errs, fmt.Errorf("grant role %s: %w", rule.RoleID, err))
			continue
		}
		r.metrics.Incr(observability.CounterRewardsGranted)
		r.logger.Info("reward role granted",
			zap.String("user_id", event.UserID),
			zap.Int("level", event.NewLevel),
			zap.String("role_id", rule.RoleID))
		granted = append(granted, rule)
	}
	return granted, errors.Join(errs...)
}

func (r *RewardService) handleLevelUp(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.LevelUpPayload)
	if !ok {
		return fmt.Errorf("unexpected level_up payload %T", event.Payload)
	}
	_, err := r.Resolve(ctx, domain.LevelUpEvent{
		UserID:    event.UserID,
		ChannelID: payload.ChannelID,
		NewLevel:  payload.NewLevel,
	})
	return err
}
