package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/community-bot/internal/api/http/handlers"
	"github.com/spec-kit/community-bot/internal/auth"
	"github.com/spec-kit/community-bot/internal/config"
	"github.com/spec-kit/community-bot/internal/domain"
	"github.com/spec-kit/community-bot/internal/observability"
	"github.com/spec-kit/community-bot/internal/repository"
	"github.com/spec-kit/community-bot/internal/service"
)

type stubProvisioner struct{}

func (stubProvisioner) Create(context.Context, domain.ChannelSpec) (domain.ChannelRef, error) {
	return "chan-1", nil
}

func (stubProvisioner) Delete(context.Context, domain.ChannelRef) error { return nil }

type stubMessenger struct{}

func (stubMessenger) PostIntake(context.Context, *domain.Ticket) error { return nil }

func (stubMessenger) PostClaimNotice(context.Context, *domain.Ticket, domain.Actor) error {
	return nil
}

type stubArchives struct {
	archives map[int64]domain.TicketArchive
}

func (s *stubArchives) Create(context.Context, *domain.TicketArchive) error { return nil }

func (s *stubArchives) GetByTicketID(_ context.Context, id int64) (*domain.TicketArchive, error) {
	a, ok := s.archives[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (s *stubArchives) ListByRequester(_ context.Context, requester string, limit, offset int) ([]domain.TicketArchive, error) {
	var out []domain.TicketArchive
	for _, a := range s.archives {
		if a.Requester == requester {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubArchives) MaxTicketID(context.Context) (int64, error) { return 0, nil }

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type apiFixture struct {
	app        *fiber.App
	tickets    *service.TicketService
	engagement *service.EngagementService
}

func newAPIFixture(t *testing.T, archives repository.TicketArchiveRepository, deps map[string]handlers.Pinger) *apiFixture {
	return newGuardedAPIFixture(t, archives, deps, nil)
}

func newGuardedAPIFixture(t *testing.T, archives repository.TicketArchiveRepository, deps map[string]handlers.Pinger, guard *auth.AuthMiddleware) *apiFixture {
	t.Helper()
	clk := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	metrics := observability.NewMetrics()
	tickets := service.NewTicketService(service.TicketDependencies{
		Provisioner: stubProvisioner{},
		Messenger:   stubMessenger{},
		Clock:       clk,
		Metrics:     metrics,
		Settings:    service.TicketSettings{GuildID: "guild-1", PrivilegedRoles: []string{"staff"}},
	})
	engagement := service.NewEngagementService(service.EngagementDependencies{
		Clock:   clk,
		Metrics: metrics,
		Config:  config.EngagementConfig{MinLength: 1, BaseAward: 5, MaxAward: 25, CurveB: 50, CurveC: 100},
	})

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("community-bot", "test", deps),
		Tickets:        handlers.NewTicketsHandler(tickets, archives),
		Engagement:     handlers.NewEngagementHandler(engagement),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: guard,
	})
	return &apiFixture{app: app, tickets: tickets, engagement: engagement}
}

func (f *apiFixture) get(t *testing.T, path string) (int, map[string]any) {
	return f.getWithToken(t, path, "")
}

func (f *apiFixture) getWithToken(t *testing.T, path, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &body))
	} else {
		body["text"] = string(raw)
	}
	return resp.StatusCode, body
}

func TestRootUptimeProbe(t *testing.T) {
	f := newAPIFixture(t, nil, nil)

	status, body := f.get(t, "/")

	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "Bot is running.", body["text"])
}

func TestReadyReportsFailingDependency(t *testing.T) {
	f := newAPIFixture(t, nil, map[string]handlers.Pinger{
		"postgres": stubPinger{},
		"redis":    stubPinger{err: errors.New("connection refused")},
	})

	status, body := f.get(t, "/health/ready")

	require.Equal(t, fiber.StatusServiceUnavailable, status)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	require.Equal(t, "ok", details["postgres"])
	require.Equal(t, "connection refused", details["redis"])
}

func TestActiveTicketEndpoints(t *testing.T) {
	f := newAPIFixture(t, nil, nil)
	_, err := f.tickets.OpenTicket(context.Background(), service.OpenTicketInput{
		Requester: "user-1", RequesterName: "alice", Category: domain.CategoryBug,
	})
	require.NoError(t, err)

	status, body := f.get(t, "/api/tickets")
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, body["data"], 1)

	status, body = f.get(t, "/api/tickets/1")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "chan-1", body["data"].(map[string]any)["channel_id"])

	status, body = f.get(t, "/api/tickets/9")
	require.Equal(t, fiber.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])

	status, _ = f.get(t, "/api/tickets/abc")
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestArchiveEndpoints(t *testing.T) {
	name := "ticket-chan-3.html"
	f := newAPIFixture(t, &stubArchives{archives: map[int64]domain.TicketArchive{
		3: {TicketID: 3, Requester: "user-1", Category: domain.CategoryReport, ClosedBy: "mod", Channel: "chan-3", TranscriptName: &name},
	}}, nil)

	status, body := f.get(t, "/api/archives/3")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, name, body["data"].(map[string]any)["transcript_name"])

	status, _ = f.get(t, "/api/archives/4")
	require.Equal(t, fiber.StatusNotFound, status)

	status, body = f.get(t, "/api/archives?requester=user-1")
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, body["data"], 1)

	status, _ = f.get(t, "/api/archives")
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestArchiveEndpointsWithoutDatabase(t *testing.T) {
	f := newAPIFixture(t, nil, nil)

	status, body := f.get(t, "/api/archives/3")

	require.Equal(t, fiber.StatusServiceUnavailable, status)
	require.Equal(t, "ARCHIVE_UNAVAILABLE", body["error"].(map[string]any)["code"])
}

func TestEngagementEndpoints(t *testing.T) {
	f := newAPIFixture(t, nil, nil)
	for _, user := range []string{"a", "b"} {
		_, err := f.engagement.RecordActivity(context.Background(), domain.ActivitySample{UserID: user, Content: "hello"})
		require.NoError(t, err)
	}

	status, body := f.get(t, "/api/engagement/leaderboard?limit=5")
	require.Equal(t, fiber.StatusOK, status)
	board := body["data"].([]any)
	require.Len(t, board, 2)
	require.Equal(t, "a", board[0].(map[string]any)["user_id"])

	status, body = f.get(t, "/api/engagement/b")
	require.Equal(t, fiber.StatusOK, status)
	record := body["data"].(map[string]any)
	require.EqualValues(t, 5, record["xp"])
	require.EqualValues(t, 2, record["rank"])

	status, _ = f.get(t, "/api/engagement/nobody")
	require.Equal(t, fiber.StatusNotFound, status)

	status, _ = f.get(t, "/api/engagement/leaderboard?limit=0")
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	f := newAPIFixture(t, nil, nil)

	status, body := f.get(t, "/nope")

	require.Equal(t, fiber.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestMetricsSnapshot(t *testing.T) {
	f := newAPIFixture(t, nil, nil)
	f.get(t, "/health/live")

	status, body := f.get(t, "/api/metrics")

	require.Equal(t, fiber.StatusOK, status)
	require.NotEmpty(t, body["requests"])
}

func TestAPIRequiresTokenWhenGuarded(t *testing.T) {
	tokens := auth.NewTokenManager("secret", time.Hour, nil)
	f := newGuardedAPIFixture(t, nil, nil, auth.NewAuthMiddleware(tokens))
	reader, _, err := tokens.GenerateToken("dashboard", auth.ScopeRead)
	require.NoError(t, err)
	admin, _, err := tokens.GenerateToken("ops", auth.ScopeAdmin)
	require.NoError(t, err)

	status, body := f.get(t, "/api/tickets")
	require.Equal(t, fiber.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHORIZED", body["error"].(map[string]any)["code"])

	status, _ = f.getWithToken(t, "/api/tickets", reader)
	require.Equal(t, fiber.StatusOK, status)

	status, _ = f.getWithToken(t, "/api/metrics", reader)
	require.Equal(t, fiber.StatusForbidden, status)

	status, _ = f.getWithToken(t, "/api/metrics", admin)
	require.Equal(t, fiber.StatusOK, status)

	status, _ = f.get(t, "/health/live")
	require.Equal(t, fiber.StatusOK, status)
}
