package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/community-bot/internal/api/dto"
	"github.com/spec-kit/community-bot/internal/service"
	apperrors "github.com/spec-kit/community-bot/pkg/util"
)

const maxLeaderboard = 100

// EngagementHandler serves leaderboard data.
type EngagementHandler struct {
	service *service.EngagementService
}

// NewEngagementHandler constructs handler.
func NewEngagementHandler(engagement *service.EngagementService) *EngagementHandler {
	return &EngagementHandler{service: engagement}
}

// Leaderboard GET /api/engagement/leaderboard?limit=.
func (h *EngagementHandler) Leaderboard(c *fiber.Ctx) error {
	limit := parseInt(c.Query("limit"), 10)
	if limit < 1 || limit > maxLeaderboard {
		return apperrors.NewValidationError("limit must be between 1 and 100", map[string]any{"limit": c.Query("limit")})
	}
	records := h.service.TopN(limit)
	items := make([]dto.EngagementRecordResponse, 0, len(records))
	for i, r := range records {
		items = append(items, dto.EngagementRecordResponse{
			UserID:   r.UserID,
			Level:    r.Level,
			XP:       r.XP,
			NeededXP: h.service.NeededXP(r.Level),
			Rank:     i + 1,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Record GET /api/engagement/:userID.
func (h *EngagementHandler) Record(c *fiber.Ctx) error {
	userID := c.Params("userID")
	record, ok := h.service.GetRecord(userID)
	if !ok {
		return apperrors.NewNotFound("engagement record", map[string]any{"user_id": userID})
	}
	rank, _ := h.service.Rank(userID)
	return c.JSON(fiber.Map{"data": dto.EngagementRecordResponse{
		UserID:   userID,
		Level:    record.Level,
		XP:       record.XP,
		NeededXP: h.service.NeededXP(record.Level),
		Rank:     rank,
	}})
}
