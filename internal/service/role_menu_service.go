package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spec-kit/community-bot/internal/domain"
	"github.com/spec-kit/community-bot/internal/events"
	apperrors "github.com/spec-kit/community-bot/pkg/util"
)

// RoleMenuResult lists the roles changed by a menu selection.
type RoleMenuResult struct {
	Group   string
	Granted []string
	Revoked []string
}

// RoleMenuService applies self-assignable role selections.
type RoleMenuService struct {
	menus   []domain.RoleMenu
	granter RoleGranter
	events  eventPublisher
	logger  *zap.Logger
}

// NewRoleMenuService creates the service.
func NewRoleMenuService(menus []domain.RoleMenu, granter RoleGranter, dispatcher events.Dispatcher, clk clockwork.Clock, logger *zap.Logger) *RoleMenuService {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleMenuService{
		menus:   append([]domain.RoleMenu(nil), menus...),
		granter: granter,
		events:  eventPublisher{dispatcher: dispatcher, clock: clk, logger: logger},
		logger:  logger,
	}
}

// Menus returns every configured group.
func (s *RoleMenuService) Menus() []domain.RoleMenu {
	return append([]domain.RoleMenu(nil), s.menus...)
}

// Menu looks a group up by name.
func (s *RoleMenuService) Menu(name string) (domain.RoleMenu, bool) {
	for _, menu := range s.menus {
		if menu.Name == name {
			return menu, true
		}
	}
	return domain.RoleMenu{}, false
}

// Apply makes the actor's roles within group match selected: selected roles
// the actor lacks are granted and held roles left unselected are revoked.
func (s *RoleMenuService) Apply(ctx context.Context, actor domain.Actor, group string, selected []string) (*RoleMenuResult, error) {
	menu, ok := s.Menu(group)
	if !ok {
		return nil, apperrors.NewNotFound("role menu", map[string]any{"group": group})
	}
	if menu.MaxValues > 0 && len(selected) > menu.MaxValues {
		return nil, apperrors.NewValidationError("too many roles selected", map[string]any{"max": menu.MaxValues})
	}

	offered := make(map[string]struct{}, len(menu.Options))
	for _, option := range menu.Options {
		offered[option.RoleID] = struct{}{}
	}
	wanted := make(map[string]struct{}, len(selected))
	for _, roleID := range selected {
		if _, ok := offered[roleID]; !ok {
			return nil, apperrors.NewValidationError("role is not part of this menu", map[string]any{"role_id": roleID})
		}
		wanted[roleID] = struct{}{}
	}
	held := make(map[string]struct{}, len(actor.RoleIDs))
	for _, roleID := range actor.RoleIDs {
		held[roleID] = struct{}{}
	}

	result := &RoleMenuResult{Group: group, Granted: []string{}, Revoked: []string{}}
	var errs []error
	for _, option := range menu.Options {
		_, want := wanted[option.RoleID]
		_, has := held[option.RoleID]
		switch {
		case want && !has:
			if err := s.granter.Grant(ctx, actor.UserID, option.RoleID); err != nil {
				errs = append(errs, fmt.Errorf("grant role %s: %w", option.RoleID, err))
				continue
			}
			result.Granted = append(result.Granted, option.RoleID)
		case !want && has:
			if err := s.granter.Revoke(ctx, actor.UserID, option.RoleID); err != nil {
				errs = append(errs, fmt.Errorf("revoke role %s: %w", option.RoleID, err))
				continue
			}
			result.Revoked = append(result.Revoked, option.RoleID)
		}
	}

	if len(result.Granted) > 0 || len(result.Revoked) > 0 {
		s.logger.Info("role menu applied",
			zap.String("user_id", actor.UserID),
			zap.String("group", group),
			zap.Strings("granted", result.Granted),
			zap.Strings("revoked", result.Revoked))
		s.events.publish(ctx, events.Event{
			Type:    events.EventRolesUpdated,
			UserID:  actor.UserID,
			Payload: events.RolesUpdatedPayload{Group: group, Granted: result.Granted, Revoked: result.Revoked},
		})
	}
	return result, errors.Join(errs...)
}
