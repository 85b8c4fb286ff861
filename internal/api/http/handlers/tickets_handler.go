package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/community-bot/internal/api/dto"
	"github.com/spec-kit/community-bot/internal/repository"
	"github.com/spec-kit/community-bot/internal/service"
	apperrors "github.com/spec-kit/community-bot/pkg/util"
)

// TicketsHandler exposes read-only ticket views for dashboards.
type TicketsHandler struct {
	service  *service.TicketService
	archives repository.TicketArchiveRepository
}

// NewTicketsHandler constructs handler. archives may be nil when no database
// is configured.
func NewTicketsHandler(ticketService *service.TicketService, archives repository.TicketArchiveRepository) *TicketsHandler {
	return &TicketsHandler{service: ticketService, archives: archives}
}

// ListActive GET /api/tickets.
func (h *TicketsHandler) ListActive(c *fiber.Ctx) error {
	tickets := h.service.ActiveTickets()
	items := make([]dto.TicketSummary, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, dto.NewTicketSummary(t))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetActive GET /api/tickets/:id.
func (h *TicketsHandler) GetActive(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, ok := h.service.GetTicket(id)
	if !ok {
		return apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// ListArchives GET /api/archives?requester=.
func (h *TicketsHandler) ListArchives(c *fiber.Ctx) error {
	if h.archives == nil {
		return archiveUnavailable()
	}
	requester := c.Query("requester")
	if requester == "" {
		return apperrors.NewValidationError("requester required", nil)
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	archives, err := h.archives.ListByRequester(c.UserContext(), requester, pageSize, (page-1)*pageSize)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	items := make([]dto.ArchiveResponse, 0, len(archives))
	for i := range archives {
		items = append(items, dto.NewArchiveResponse(&archives[i]))
	}
	return c.JSON(fiber.Map{"data": items, "page": page, "page_size": pageSize})
}

// GetArchive GET /api/archives/:id.
func (h *TicketsHandler) GetArchive(c *fiber.Ctx) error {
	if h.archives == nil {
		return archiveUnavailable()
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	archive, err := h.archives.GetByTicketID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("ticket archive", map[string]any{"id": id})
		}
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewArchiveResponse(archive)})
}

func ticketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", map[string]any{"id": c.Params("id")})
	}
	return id, nil
}

func archiveUnavailable() error {
	return apperrors.NewDomainError("ARCHIVE_UNAVAILABLE", "ticket archive is not configured", http.StatusServiceUnavailable, nil)
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}
