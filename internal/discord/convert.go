package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/community-bot/internal/domain"
)

var permissionBits = []struct {
	domain   domain.Permission
	platform int64
}{
	{domain.PermissionViewChannel, discordgo.PermissionViewChannel},
	{domain.PermissionSendMessages, discordgo.PermissionSendMessages},
	{domain.PermissionReadHistory, discordgo.PermissionReadMessageHistory},
	{domain.PermissionAttachFiles, discordgo.PermissionAttachFiles},
}

func toPlatformPermissions(p domain.Permission) int64 {
	var out int64
	for _, bit := range permissionBits {
		if p&bit.domain != 0 {
			out |= bit.platform
		}
	}
	return out
}

func toPermissionOverwrites(overwrites []domain.PermissionOverwrite) []*discordgo.PermissionOverwrite {
	out := make([]*discordgo.PermissionOverwrite, 0, len(overwrites))
	for _, ow := range overwrites {
		if ow.SubjectID == "" {
			continue
		}
		kind := discordgo.PermissionOverwriteTypeRole
		if ow.SubjectType == domain.OverwriteMember {
			kind = discordgo.PermissionOverwriteTypeMember
		}
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    ow.SubjectID,
			Type:  kind,
			Allow: toPlatformPermissions(ow.Allow),
			Deny:  toPlatformPermissions(ow.Deny),
		})
	}
	return out
}

// actorFromInteraction identifies the member behind an interaction.
func actorFromInteraction(i *discordgo.Interaction) domain.Actor {
	if i.Member != nil && i.Member.User != nil {
		return domain.Actor{
			UserID:   i.Member.User.ID,
			Username: i.Member.User.Username,
			RoleIDs:  append([]string(nil), i.Member.Roles...),
		}
	}
	if i.User != nil {
		return domain.Actor{UserID: i.User.ID, Username: i.User.Username}
	}
	return domain.Actor{}
}

// toTicketMessage converts a channel message for the transcript.
func toTicketMessage(m *discordgo.Message, privilegedRoles []string) domain.TicketMessage {
	msg := domain.TicketMessage{
		ID:         m.ID,
		AuthorType: domain.AuthorTypeUser,
		Body:       messageBody(m),
		CreatedAt:  m.Timestamp,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorName = m.Author.Username
		if m.Author.Bot {
			msg.AuthorType = domain.AuthorTypeBot
		}
	}
	if m.Member != nil && msg.AuthorType == domain.AuthorTypeUser {
		actor := domain.Actor{RoleIDs: m.Member.Roles}
		if actor.HasAnyRole(privilegedRoles) {
			msg.AuthorType = domain.AuthorTypeStaff
		}
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, domain.AttachmentReference{
			FileName:  a.Filename,
			URL:       a.URL,
			SizeBytes: int64(a.Size),
		})
	}
	return msg
}

// messageBody folds embeds into the text so bot panels show up in transcripts.
func messageBody(m *discordgo.Message) string {
	parts := []string{}
	if strings.TrimSpace(m.Content) != "" {
		parts = append(parts, m.Content)
	}
	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		if e.Title != "" {
			parts = append(parts, "**"+e.Title+"**")
		}
		if e.Description != "" {
			parts = append(parts, e.Description)
		}
		for _, f := range e.Fields {
			if f != nil {
				parts = append(parts, "**"+f.Name+"**: "+f.Value)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// modalValues flattens a modal submission into field id -> value.
func modalValues(components []discordgo.MessageComponent) map[string]string {
	values := map[string]string{}
	for _, c := range components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok {
				values[input.CustomID] = input.Value
			}
		}
	}
	return values
}
