package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Intents are the gateway intents the bot depends on. Message content is
// privileged and must be enabled for the application.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent

// NewSession creates a gateway session for a bot token. It does not connect.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("discord token is empty")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = Intents
	session.StateEnabled = true
	return session, nil
}
