package discord

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/community-bot/internal/config"
	"github.com/spec-kit/community-bot/internal/domain"
	"github.com/spec-kit/community-bot/internal/interaction"
	"github.com/spec-kit/community-bot/internal/service"
)

type stubProvisioner struct {
	mu sync.Mutex
	n  int
}

func (p *stubProvisioner) Create(context.Context, domain.ChannelSpec) (domain.ChannelRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	return domain.ChannelRef("chan-" + strconv.Itoa(p.n)), nil
}

func (p *stubProvisioner) Delete(context.Context, domain.ChannelRef) error { return nil }

type stubArchiver struct {
	ArchiveFunc func(req service.ArchiveRequest) (*domain.TranscriptArtifact, error)
}

func (a *stubArchiver) Archive(_ context.Context, req service.ArchiveRequest) (*domain.TranscriptArtifact, error) {
	if a.ArchiveFunc != nil {
		return a.ArchiveFunc(req)
	}
	return &domain.TranscriptArtifact{FileName: "ticket-" + string(req.Ticket.Channel) + ".html"}, nil
}

type stubMessenger struct{}

func (stubMessenger) PostIntake(context.Context, *domain.Ticket) error { return nil }

func (stubMessenger) PostClaimNotice(context.Context, *domain.Ticket, domain.Actor) error {
	return nil
}

type stubGranter struct{}

func (stubGranter) Grant(context.Context, string, string) error  { return nil }
func (stubGranter) Revoke(context.Context, string, string) error { return nil }

type recordingAnnouncer struct {
	mu        sync.Mutex
	announced []domain.LevelUpEvent
}

func (a *recordingAnnouncer) AnnounceLevelUp(_ context.Context, event domain.LevelUpEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.announced = append(a.announced, event)
	return nil
}

var (
	requester = domain.Actor{UserID: "user-1", Username: "alice", RoleIDs: []string{"role-member"}}
	moderator = domain.Actor{UserID: "mod-1", Username: "mod", RoleIDs: []string{"role-staff"}}
)

type routerFixture struct {
	router    *Router
	tickets   *service.TicketService
	archiver  *stubArchiver
	announcer *recordingAnnouncer
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	clk := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	archiver := &stubArchiver{}
	tickets := service.NewTicketService(service.TicketDependencies{
		Provisioner: &stubProvisioner{},
		Archiver:    archiver,
		Messenger:   stubMessenger{},
		Clock:       clk,
		Settings: service.TicketSettings{
			GuildID:         "guild-1",
			PrivilegedRoles: []string{"role-staff"},
		},
	})
	t.Cleanup(tickets.Drain)
	engagement := service.NewEngagementService(service.EngagementDependencies{
		Clock: clk,
		Config: config.EngagementConfig{
			MinLength: 5, BaseAward: 5, CharsPerXP: 10, MaxAward: 25,
			CurveC: 5,
		},
	})
	menus := []domain.RoleMenu{{
		Name:      "pings",
		MaxValues: 2,
		Options:   []domain.RoleOption{{RoleID: "role-news"}, {RoleID: "role-events"}},
	}}
	announcer := &recordingAnnouncer{}
	router := NewRouter(context.Background(), RouterDeps{
		Tickets:        tickets,
		Engagement:     engagement,
		RoleMenus:      service.NewRoleMenuService(menus, stubGranter{}, nil, clk, zap.NewNop()),
		Announcer:      announcer,
		AnnounceLevels: true,
	})
	return &routerFixture{router: router, tickets: tickets, archiver: archiver, announcer: announcer}
}

func (f *routerFixture) dispatch(actor domain.Actor, channel string, action interaction.Action) *discordgo.InteractionResponse {
	return f.router.Dispatch(context.Background(), Inbound{Actor: actor, ChannelID: channel, Action: action})
}

func (f *routerFixture) openBugTicket(t *testing.T) *discordgo.InteractionResponse {
	t.Helper()
	return f.dispatch(requester, "panel-channel", interaction.IntakeSubmit{
		Category: domain.CategoryBug,
		Values:   map[string]string{"ign": "alice", "summary": "falls through floor"},
	})
}

func TestDispatchTicketOpenShowsIntakeModal(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.dispatch(requester, "panel-channel", interaction.TicketOpen{Category: domain.CategoryReport})

	require.Equal(t, discordgo.InteractionResponseModal, resp.Type)
	require.Equal(t, interaction.IntakeToken(domain.CategoryReport), resp.Data.CustomID)
	require.Len(t, resp.Data.Components, 4)
}

func TestDispatchIntakeSubmitOpensTicket(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.openBugTicket(t)

	require.Equal(t, "✅ Ticket created: <#chan-1>", resp.Data.Content)
	require.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	ticket, ok := f.tickets.TicketByChannel("chan-1")
	require.True(t, ok)
	require.Equal(t, []domain.FormAnswer{
		{Label: "In-game name", Answer: "alice"},
		{Label: "Describe the bug", Answer: "falls through floor"},
	}, ticket.Answers)
}

func TestDispatchSecondTicketIsRejected(t *testing.T) {
	f := newRouterFixture(t)
	f.openBugTicket(t)

	resp := f.dispatch(requester, "panel-channel", interaction.IntakeSubmit{
		Category: domain.CategoryPurchase,
		Values:   map[string]string{"ign": "alice", "transaction": "tx-1", "issue": "no rank"},
	})

	require.Contains(t, resp.Data.Content, "⛔")
	require.Len(t, f.tickets.ActiveTickets(), 1)
}

func TestDispatchIntakeMissingRequiredField(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.dispatch(requester, "panel-channel", interaction.IntakeSubmit{
		Category: domain.CategoryBug,
		Values:   map[string]string{"ign": "alice"},
	})

	require.Contains(t, resp.Data.Content, "⛔")
	require.Empty(t, f.tickets.ActiveTickets())
}

func TestDispatchClaimResolvesTicketByChannel(t *testing.T) {
	f := newRouterFixture(t)
	f.openBugTicket(t)

	resp := f.dispatch(moderator, "chan-1", interaction.TicketClaim{})
	require.Equal(t, "You claimed ticket #1.", resp.Data.Content)

	again := f.dispatch(moderator, "chan-1", interaction.TicketClaim{TicketID: 1})
	require.Contains(t, again.Data.Content, "⛔")
}

func TestDispatchCloseRequiresPrivilege(t *testing.T) {
	f := newRouterFixture(t)
	f.openBugTicket(t)

	resp := f.dispatch(requester, "chan-1", interaction.TicketClose{TicketID: 1})
	require.Contains(t, resp.Data.Content, "⛔")

	resp = f.dispatch(moderator, "chan-1", interaction.TicketClose{TicketID: 1})
	require.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	require.Len(t, resp.Data.Components, 1)
	_, open := f.tickets.GetTicket(1)
	require.True(t, open)
}

func TestDispatchConfirmCloseArchivesTicket(t *testing.T) {
	f := newRouterFixture(t)
	f.openBugTicket(t)

	resp := f.dispatch(moderator, "chan-1", interaction.TicketConfirmClose{TicketID: 1})

	require.Equal(t, "🔒 Ticket #1 closed. Transcript saved as ticket-chan-1.html.", resp.Data.Content)
	_, open := f.tickets.GetTicket(1)
	require.False(t, open)
}

func TestDispatchConfirmCloseReportsArchivalFailure(t *testing.T) {
	f := newRouterFixture(t)
	f.archiver.ArchiveFunc = func(service.ArchiveRequest) (*domain.TranscriptArtifact, error) {
		return nil, errors.New("log channel gone")
	}
	f.openBugTicket(t)

	resp := f.dispatch(moderator, "chan-1", interaction.TicketConfirmClose{TicketID: 1})

	require.Contains(t, resp.Data.Content, "could not be saved")
	require.Empty(t, f.tickets.ActiveTickets())
}

func TestDispatchDeleteUnknownTicket(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.dispatch(moderator, "random-channel", interaction.TicketDelete{})

	require.Contains(t, resp.Data.Content, "⛔")
}

func TestDispatchRoleSelect(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.dispatch(requester, "roles", interaction.RoleSelect{Group: "pings", Values: []string{"role-news"}})
	require.Equal(t, "Roles updated: added <@&role-news>.", resp.Data.Content)

	resp = f.dispatch(requester, "roles", interaction.RoleSelect{Group: "missing", Values: nil})
	require.Contains(t, resp.Data.Content, "⛔")
}

func TestDispatchCommands(t *testing.T) {
	f := newRouterFixture(t)

	panel := f.dispatch(moderator, "support", interaction.Command{Name: interaction.CommandPanel})
	require.Zero(t, panel.Data.Flags)
	require.Len(t, panel.Data.Components, 2)

	rank := f.dispatch(requester, "chat", interaction.Command{Name: interaction.CommandRank})
	require.Equal(t, discordgo.MessageFlagsEphemeral, rank.Data.Flags)
	require.Equal(t, "unranked", rank.Data.Embeds[0].Fields[2].Value)

	board := f.dispatch(requester, "chat", interaction.Command{Name: interaction.CommandLeaderboard})
	require.Equal(t, "Nobody has earned XP yet.", board.Data.Embeds[0].Description)

	roles := f.dispatch(moderator, "roles", interaction.Command{Name: interaction.CommandRoles})
	require.Len(t, roles.Data.Components, 1)
}

func TestHandleMessageAnnouncesLevelUp(t *testing.T) {
	f := newRouterFixture(t)

	event := f.router.HandleMessage(context.Background(), domain.ActivitySample{
		UserID:    "user-1",
		ChannelID: "general",
		Content:   "hello there, this message is long enough",
	})

	require.NotNil(t, event)
	require.Equal(t, 1, event.NewLevel)
	require.Len(t, f.announcer.announced, 1)
	require.Equal(t, "general", f.announcer.announced[0].ChannelID)

	require.Nil(t, f.router.HandleMessage(context.Background(), domain.ActivitySample{UserID: "user-1", Content: "hi"}))
}

func TestDeferredActions(t *testing.T) {
	require.True(t, deferred(interaction.IntakeSubmit{}))
	require.True(t, deferred(interaction.TicketConfirmClose{}))
	require.True(t, deferred(interaction.TicketDelete{}))
	require.False(t, deferred(interaction.TicketOpen{}))
	require.False(t, deferred(interaction.Command{Name: interaction.CommandRank}))
}
