package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spec-kit/community-bot/internal/domain"
	"github.com/spec-kit/community-bot/internal/service"
	"github.com/spec-kit/community-bot/internal/transcript"
)

const historyPageSize = 100

// ChannelProvisioner creates ticket channels under the configured category.
type ChannelProvisioner struct {
	session *discordgo.Session
	guildID string
}

// NewChannelProvisioner builds the provisioner.
func NewChannelProvisioner(session *discordgo.Session, guildID string) *ChannelProvisioner {
	return &ChannelProvisioner{session: session, guildID: guildID}
}

var _ service.ChannelProvisioner = (*ChannelProvisioner)(nil)

func (p *ChannelProvisioner) Create(ctx context.Context, spec domain.ChannelSpec) (domain.ChannelRef, error) {
	channel, err := p.session.GuildChannelCreateComplex(p.guildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                spec.Topic,
		ParentID:             spec.ParentID,
		PermissionOverwrites: toPermissionOverwrites(spec.Overwrites),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create channel %s: %w", spec.Name, err)
	}
	return domain.ChannelRef(channel.ID), nil
}

func (p *ChannelProvisioner) Delete(ctx context.Context, channel domain.ChannelRef) error {
	if _, err := p.session.ChannelDelete(string(channel), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete channel %s: %w", channel, err)
	}
	return nil
}

// TranscriptArchiver renders a ticket channel's history and posts it to the
// log channel with a summary embed.
type TranscriptArchiver struct {
	session         *discordgo.Session
	renderer        *transcript.Renderer
	logChannelID    string
	privilegedRoles []string
	clock           clockwork.Clock
	logger          *zap.Logger
}

// NewTranscriptArchiver builds the archiver.
func NewTranscriptArchiver(session *discordgo.Session, renderer *transcript.Renderer, logChannelID string, privilegedRoles []string, clk clockwork.Clock, logger *zap.Logger) *TranscriptArchiver {
	return &TranscriptArchiver{
		session:         session,
		renderer:        renderer,
		logChannelID:    logChannelID,
		privilegedRoles: privilegedRoles,
		clock:           clk,
		logger:          logger,
	}
}

var _ service.TranscriptArchiver = (*TranscriptArchiver)(nil)

func (a *TranscriptArchiver) Archive(ctx context.Context, req service.ArchiveRequest) (*domain.TranscriptArtifact, error) {
	ticket := req.Ticket
	channelID := string(ticket.Channel)

	history, err := a.history(ctx, channelID)
	if err != nil {
		return nil, err
	}
	rendered, err := a.renderer.Render(transcript.Document{
		Ticket:      ticket,
		ChannelName: a.channelName(ticket),
		ClosedBy:    req.ClosedBy.Username,
		Messages:    history,
		GeneratedAt: a.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	artifact := &domain.TranscriptArtifact{
		FileName:     rendered.FileName,
		MessageCount: rendered.MessageCount,
		Digest:       rendered.Digest,
	}
	if a.logChannelID == "" {
		a.logger.Warn("no log channel configured, transcript not delivered", zap.Int64("ticket_id", ticket.ID))
		return artifact, nil
	}
	msg, err := a.session.ChannelMessageSendComplex(a.logChannelID, &discordgo.MessageSend{
		Content: "📄 Transcript for **" + a.channelName(ticket) + "**",
		Embeds:  []*discordgo.MessageEmbed{transcriptSummary(ticket, req.ClosedBy.UserID, rendered.MessageCount)},
		Files: []*discordgo.File{{
			Name:        rendered.FileName,
			ContentType: "text/html",
			Reader:      bytes.NewReader(rendered.HTML),
		}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("deliver transcript: %w", err)
	}
	artifact.Ref = msg.ID
	return artifact, nil
}

// history pages backwards through the channel and returns messages oldest first.
func (a *TranscriptArchiver) history(ctx context.Context, channelID string) ([]domain.TicketMessage, error) {
	var collected []*discordgo.Message
	before := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := a.session.ChannelMessages(channelID, historyPageSize, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("fetch channel history: %w", err)
		}
		collected = append(collected, page...)
		if len(page) < historyPageSize {
			break
		}
		before = page[len(page)-1].ID
	}

	out := make([]domain.TicketMessage, 0, len(collected))
	for i := len(collected) - 1; i >= 0; i-- {
		out = append(out, toTicketMessage(collected[i], a.privilegedRoles))
	}
	return out, nil
}

func (a *TranscriptArchiver) channelName(ticket *domain.Ticket) string {
	if ch, err := a.session.State.Channel(string(ticket.Channel)); err == nil && ch.Name != "" {
		return ch.Name
	}
	return service.ChannelName(ticket.Category, ticket.RequesterName)
}

// Messenger posts ticket lifecycle messages.
type Messenger struct {
	session *discordgo.Session
}

// NewMessenger builds the messenger.
func NewMessenger(session *discordgo.Session) *Messenger {
	return &Messenger{session: session}
}

var _ service.TicketMessenger = (*Messenger)(nil)

func (m *Messenger) PostIntake(ctx context.Context, ticket *domain.Ticket) error {
	_, err := m.session.ChannelMessageSendComplex(string(ticket.Channel), intakeMessage(ticket), discordgo.WithContext(ctx))
	return err
}

func (m *Messenger) PostClaimNotice(ctx context.Context, ticket *domain.Ticket, claimer domain.Actor) error {
	_, err := m.session.ChannelMessageSendComplex(string(ticket.Channel), claimNotice(ticket, claimer), discordgo.WithContext(ctx))
	return err
}

// AnnounceLevelUp congratulates a user in the channel they levelled up in.
func (m *Messenger) AnnounceLevelUp(ctx context.Context, event domain.LevelUpEvent) error {
	if event.ChannelID == "" {
		return errors.New("level-up event has no channel")
	}
	_, err := m.session.ChannelMessageSend(event.ChannelID, levelUpText(event), discordgo.WithContext(ctx))
	return err
}

// RoleGranter adds and removes guild member roles.
type RoleGranter struct {
	session *discordgo.Session
	guildID string
}

// NewRoleGranter builds the granter.
func NewRoleGranter(session *discordgo.Session, guildID string) *RoleGranter {
	return &RoleGranter{session: session, guildID: guildID}
}

var _ service.RoleGranter = (*RoleGranter)(nil)

func (g *RoleGranter) Grant(ctx context.Context, userID, roleID string) error {
	if err := g.session.GuildMemberRoleAdd(g.guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add role %s to %s: %w", roleID, userID, err)
	}
	return nil
}

func (g *RoleGranter) Revoke(ctx context.Context, userID, roleID string) error {
	if err := g.session.GuildMemberRoleRemove(g.guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("remove role %s from %s: %w", roleID, userID, err)
	}
	return nil
}
