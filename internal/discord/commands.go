package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/community-bot/internal/interaction"
)

var commandDescriptions = map[interaction.CommandName]string{
	interaction.CommandPanel:       "Post the support ticket panel",
	interaction.CommandRank:        "Show your level and XP",
	interaction.CommandLeaderboard: "Show the most active members",
	interaction.CommandRoles:       "Post the self-assignable role menus",
}

// ApplicationCommands lists the slash commands the bot answers.
func ApplicationCommands() []*discordgo.ApplicationCommand {
	var staffOnly int64 = discordgo.PermissionManageChannels
	out := make([]*discordgo.ApplicationCommand, 0, len(interaction.Commands()))
	for _, name := range interaction.Commands() {
		cmd := &discordgo.ApplicationCommand{
			Name:        string(name),
			Description: commandDescriptions[name],
		}
		if name == interaction.CommandPanel || name == interaction.CommandRoles {
			cmd.DefaultMemberPermissions = &staffOnly
		}
		out = append(out, cmd)
	}
	return out
}

// RegisterCommands replaces the guild's command set with ApplicationCommands.
func RegisterCommands(session *discordgo.Session, applicationID, guildID string) ([]*discordgo.ApplicationCommand, error) {
	registered, err := session.ApplicationCommandBulkOverwrite(applicationID, guildID, ApplicationCommands())
	if err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}
	return registered, nil
}
