package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/community-bot/internal/domain"
	"github.com/spec-kit/community-bot/internal/interaction"
	"github.com/spec-kit/community-bot/internal/service"
	apperrors "github.com/spec-kit/community-bot/pkg/util"
)

const (
	leaderboardSize = 10
	genericFailure  = "Something went wrong. Please try again or contact staff."
)

// LevelAnnouncer posts level-up congratulations.
type LevelAnnouncer interface {
	AnnounceLevelUp(ctx context.Context, event domain.LevelUpEvent) error
}

// RouterDeps bundles what the gateway router calls into.
type RouterDeps struct {
	Tickets        *service.TicketService
	Engagement     *service.EngagementService
	RoleMenus      *service.RoleMenuService
	Announcer      LevelAnnouncer
	Logger         *zap.Logger
	PanelTitle     string
	AnnounceLevels bool
	HandlerTimeout time.Duration
}

// Router turns gateway events into service calls.
type Router struct {
	tickets    *service.TicketService
	engagement *service.EngagementService
	roleMenus  *service.RoleMenuService
	announcer  LevelAnnouncer
	logger     *zap.Logger
	panelTitle string
	announce   bool
	timeout    time.Duration
	baseCtx    context.Context
}

// Inbound is a parsed interaction together with who sent it and where.
type Inbound struct {
	Actor     domain.Actor
	ChannelID string
	Action    interaction.Action
}

// NewRouter builds the router. baseCtx bounds every handler.
func NewRouter(baseCtx context.Context, deps RouterDeps) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.HandlerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	title := deps.PanelTitle
	if title == "" {
		title = "Support"
	}
	return &Router{
		tickets:    deps.Tickets,
		engagement: deps.Engagement,
		roleMenus:  deps.RoleMenus,
		announcer:  deps.Announcer,
		logger:     logger,
		panelTitle: title,
		announce:   deps.AnnounceLevels,
		timeout:    timeout,
		baseCtx:    baseCtx,
	}
}

// Attach registers the router's gateway handlers on session.
func (r *Router) Attach(session *discordgo.Session) {
	session.AddHandler(r.onReady)
	session.AddHandler(r.onInteraction)
	session.AddHandler(r.onMessage)
}

func (r *Router) onReady(_ *discordgo.Session, ready *discordgo.Ready) {
	r.logger.Info("gateway ready", zap.String("user", ready.User.Username), zap.Int("guilds", len(ready.Guilds)))
}

func (r *Router) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(r.baseCtx, r.timeout)
	defer cancel()

	action, err := parseInteraction(ic.Interaction)
	if err != nil {
		r.logger.Debug("unrecognised interaction", zap.Error(err))
		r.respond(s, ic.Interaction, ephemeral("This control is no longer supported."))
		return
	}
	in := Inbound{Actor: actorFromInteraction(ic.Interaction), ChannelID: ic.ChannelID, Action: action}

	if !deferred(action) {
		r.respond(s, ic.Interaction, r.Dispatch(ctx, in))
		return
	}

	// Provisioning and archiving can outlast the acknowledgement window.
	if err := s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		r.logger.Warn("defer interaction failed", zap.Error(err))
		return
	}
	resp := r.Dispatch(ctx, in)
	edit := &discordgo.WebhookEdit{Content: &resp.Data.Content}
	if len(resp.Data.Embeds) > 0 {
		edit.Embeds = &resp.Data.Embeds
	}
	if _, err := s.InteractionResponseEdit(ic.Interaction, edit); err != nil {
		r.logger.Debug("edit deferred interaction failed", zap.Error(err))
	}
}

func (r *Router) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(r.baseCtx, r.timeout)
	defer cancel()
	r.HandleMessage(ctx, domain.ActivitySample{UserID: m.Author.ID, ChannelID: m.ChannelID, Content: m.Content})
}

func (r *Router) respond(s *discordgo.Session, i *discordgo.Interaction, resp *discordgo.InteractionResponse) {
	if err := s.InteractionRespond(i, resp); err != nil {
		r.logger.Warn("interaction response failed", zap.Error(err))
	}
}

// HandleMessage feeds a chat message to the engagement ledger and announces
// any level-up.
func (r *Router) HandleMessage(ctx context.Context, sample domain.ActivitySample) *domain.LevelUpEvent {
	event, err := r.engagement.RecordActivity(ctx, sample)
	if err != nil {
		r.logger.Error("record activity failed", zap.String("user_id", sample.UserID), zap.Error(err))
	}
	if event == nil {
		return nil
	}
	if r.announce && r.announcer != nil {
		if err := r.announcer.AnnounceLevelUp(ctx, *event); err != nil {
			r.logger.Warn("level-up announcement failed", zap.String("user_id", event.UserID), zap.Error(err))
		}
	}
	return event
}

// Dispatch runs one parsed interaction and builds the reply.
func (r *Router) Dispatch(ctx context.Context, in Inbound) *discordgo.InteractionResponse {
	switch a := in.Action.(type) {
	case interaction.TicketOpen:
		return r.showIntake(a)
	case interaction.IntakeSubmit:
		return r.openTicket(ctx, in.Actor, a)
	case interaction.TicketClaim:
		return r.claimTicket(ctx, in, a.TicketID)
	case interaction.TicketClose:
		return r.confirmClose(in, a.TicketID)
	case interaction.TicketConfirmClose:
		return r.closeTicket(ctx, in, a.TicketID)
	case interaction.TicketDelete:
		return r.deleteTicket(ctx, in, a.TicketID)
	case interaction.RoleSelect:
		return r.applyRoles(ctx, in.Actor, a)
	case interaction.Command:
		return r.runCommand(in.Actor, a.Name)
	}
	r.logger.Error("unhandled interaction action", zap.String("action", fmt.Sprintf("%T", in.Action)))
	return ephemeral(genericFailure)
}

func (r *Router) showIntake(a interaction.TicketOpen) *discordgo.InteractionResponse {
	form, ok := domain.FormFor(a.Category)
	if !ok {
		return ephemeral(genericFailure)
	}
	return &discordgo.InteractionResponse{Type: discordgo.InteractionResponseModal, Data: intakeModal(form)}
}

func (r *Router) openTicket(ctx context.Context, actor domain.Actor, a interaction.IntakeSubmit) *discordgo.InteractionResponse {
	form, _ := domain.FormFor(a.Category)
	answers, err := interaction.IntakeAnswers(form, a.Values)
	if err != nil {
		return r.failure(err)
	}
	ticket, err := r.tickets.OpenTicket(ctx, service.OpenTicketInput{
		Requester:     actor.UserID,
		RequesterName: actor.Username,
		Category:      a.Category,
		Answers:       answers,
	})
	if err != nil {
		return r.failure(err)
	}
	return ephemeral("✅ Ticket created: <#" + string(ticket.Channel) + ">")
}

func (r *Router) claimTicket(ctx context.Context, in Inbound, id int64) *discordgo.InteractionResponse {
	ticket, err := r.tickets.ClaimTicket(ctx, r.resolveTicket(in.ChannelID, id), in.Actor)
	if err != nil {
		return r.failure(err)
	}
	return ephemeral("You claimed ticket #" + strconv.FormatInt(ticket.ID, 10) + ".")
}

func (r *Router) confirmClose(in Inbound, id int64) *discordgo.InteractionResponse {
	id = r.resolveTicket(in.ChannelID, id)
	if _, ok := r.tickets.GetTicket(id); !ok {
		return r.failure(apperrors.NewNotFound("ticket", nil))
	}
	if !r.tickets.Privileged(in.Actor) {
		return r.failure(apperrors.NewNotPrivileged("only staff can close tickets"))
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: closeConfirmation(id),
	}
}

func (r *Router) closeTicket(ctx context.Context, in Inbound, id int64) *discordgo.InteractionResponse {
	result, err := r.tickets.CloseTicket(ctx, r.resolveTicket(in.ChannelID, id), in.Actor)
	if err != nil && apperrors.IsCode(err, apperrors.CodeArchivalFailure) && result != nil {
		r.logger.Warn("ticket closed without transcript", zap.Int64("ticket_id", result.Ticket.ID), zap.Error(err))
		return ephemeral("🔒 Ticket #" + strconv.FormatInt(result.Ticket.ID, 10) + " closed, but the transcript could not be saved.")
	}
	if err != nil {
		return r.failure(err)
	}
	return ephemeral("🔒 Ticket #" + strconv.FormatInt(result.Ticket.ID, 10) + " closed. Transcript saved as " + result.Transcript.FileName + ".")
}

func (r *Router) deleteTicket(ctx context.Context, in Inbound, id int64) *discordgo.InteractionResponse {
	ticket, err := r.tickets.DeleteTicket(ctx, r.resolveTicket(in.ChannelID, id), in.Actor)
	if err != nil {
		return r.failure(err)
	}
	return ephemeral("🗑️ Ticket #" + strconv.FormatInt(ticket.ID, 10) + " deleted.")
}

func (r *Router) applyRoles(ctx context.Context, actor domain.Actor, a interaction.RoleSelect) *discordgo.InteractionResponse {
	if r.roleMenus == nil {
		return r.failure(apperrors.NewNotFound("role menu", nil))
	}
	result, err := r.roleMenus.Apply(ctx, actor, a.Group, a.Values)
	if err != nil {
		return r.failure(err)
	}
	if len(result.Granted) == 0 && len(result.Revoked) == 0 {
		return ephemeral("Your roles are unchanged.")
	}
	var parts []string
	if len(result.Granted) > 0 {
		parts = append(parts, "added "+mentionRoles(result.Granted))
	}
	if len(result.Revoked) > 0 {
		parts = append(parts, "removed "+mentionRoles(result.Revoked))
	}
	return ephemeral("Roles updated: " + strings.Join(parts, ", ") + ".")
}

func (r *Router) runCommand(actor domain.Actor, name interaction.CommandName) *discordgo.InteractionResponse {
	switch name {
	case interaction.CommandPanel:
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: panelMessage(r.panelTitle),
		}
	case interaction.CommandRank:
		record, ok := r.engagement.GetRecord(actor.UserID)
		if !ok {
			record = domain.EngagementRecord{UserID: actor.UserID}
		}
		rank, _ := r.engagement.Rank(actor.UserID)
		return ephemeralEmbed(rankEmbed(actor.UserID, record, rank, r.engagement.NeededXP(record.Level)))
	case interaction.CommandLeaderboard:
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{leaderboardEmbed(r.engagement.TopN(leaderboardSize))},
			},
		}
	case interaction.CommandRoles:
		if r.roleMenus == nil || len(r.roleMenus.Menus()) == 0 {
			return ephemeral("No role menus are configured.")
		}
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:    "Pick your roles:",
				Components: roleMenuComponents(r.roleMenus.Menus()),
			},
		}
	}
	return ephemeral(genericFailure)
}

// resolveTicket maps a bare lifecycle control to the ticket of its channel.
func (r *Router) resolveTicket(channelID string, id int64) int64 {
	if id != 0 {
		return id
	}
	if ticket, ok := r.tickets.TicketByChannel(domain.ChannelRef(channelID)); ok {
		return ticket.ID
	}
	return 0
}

// failure renders rejections verbatim and hides everything else behind a
// generic notice.
func (r *Router) failure(err error) *discordgo.InteractionResponse {
	de := apperrors.ToDomainError(err)
	if de.Rejection() {
		return ephemeral("⛔ " + capitalize(de.Message))
	}
	r.logger.Error("interaction failed", zap.String("code", de.Code), zap.Error(err))
	return ephemeral(genericFailure)
}

func parseInteraction(i *discordgo.Interaction) (interaction.Action, error) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		return interaction.ParseCommand(i.ApplicationCommandData().Name)
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		return interaction.ParseComponent(data.CustomID, data.Values)
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		return interaction.ParseModal(data.CustomID, modalValues(data.Components))
	}
	return nil, fmt.Errorf("%w: interaction type %d", interaction.ErrUnknownToken, i.Type)
}

func deferred(action interaction.Action) bool {
	switch action.(type) {
	case interaction.IntakeSubmit, interaction.TicketConfirmClose, interaction.TicketDelete:
		return true
	}
	return false
}

func ephemeral(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral},
	}
}

func ephemeralEmbed(embed *discordgo.MessageEmbed) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	}
}

func mentionRoles(ids []string) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = "<@&" + id + ">"
	}
	return strings.Join(out, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
