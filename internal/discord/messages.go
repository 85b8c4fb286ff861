package discord

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/community-bot/internal/domain"
	"github.com/spec-kit/community-bot/internal/interaction"
)

const (
	colorPanel   = 0x2b2d31
	colorTicket  = 0x5865f2
	colorSuccess = 0x23a55a
	colorDanger  = 0xda373c

	maxButtonsPerRow = 5
	maxActionRows    = 5
)

var categoryLabels = map[domain.Category]string{
	domain.CategoryBanAppeal:       "⚖️ Ban Appeal",
	domain.CategoryReport:          "🚨 Report",
	domain.CategoryBug:             "🐛 Bug",
	domain.CategoryPurchase:        "💳 Purchase",
	domain.CategoryMedia:           "🎥 Media",
	domain.CategoryConnectionIssue: "🔌 Connection",
}

var categoryStyles = map[domain.Category]discordgo.ButtonStyle{
	domain.CategoryBanAppeal: discordgo.DangerButton,
	domain.CategoryReport:    discordgo.DangerButton,
	domain.CategoryPurchase:  discordgo.SuccessButton,
	domain.CategoryMedia:     discordgo.PrimaryButton,
}

func categoryLabel(c domain.Category) string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// panelMessage is the support panel with one button per category.
func panelMessage(title string) *discordgo.InteractionResponseData {
	var lines []string
	var buttons []discordgo.MessageComponent
	for _, category := range domain.Categories() {
		lines = append(lines, "• "+categoryLabel(category))
		style, ok := categoryStyles[category]
		if !ok {
			style = discordgo.SecondaryButton
		}
		buttons = append(buttons, discordgo.Button{
			Label:    categoryLabel(category),
			Style:    style,
			CustomID: interaction.OpenToken(category),
		})
	}
	return &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       title,
			Description: "Open a ticket below.\n\n" + strings.Join(lines, "\n"),
			Color:       colorPanel,
		}},
		Components: buttonRows(buttons),
	}
}

func buttonRows(buttons []discordgo.MessageComponent) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons); start += maxButtonsPerRow {
		end := start + maxButtonsPerRow
		if end > len(buttons) {
			end = len(buttons)
		}
		rows = append(rows, discordgo.ActionsRow{Components: buttons[start:end]})
	}
	return rows
}

// intakeModal renders a category's intake form.
func intakeModal(form domain.IntakeForm) *discordgo.InteractionResponseData {
	rows := make([]discordgo.MessageComponent, 0, len(form.Fields))
	for _, field := range form.Fields {
		style := discordgo.TextInputShort
		if field.Paragraph {
			style = discordgo.TextInputParagraph
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    field.ID,
				Label:       field.Label,
				Style:       style,
				Placeholder: field.Placeholder,
				Required:    field.Required,
				MaxLength:   interaction.MaxAnswerLength,
			},
		}})
	}
	return &discordgo.InteractionResponseData{
		CustomID:   interaction.IntakeToken(form.Category),
		Title:      form.Title,
		Components: rows,
	}
}

// intakeMessage is posted into a fresh ticket channel.
func intakeMessage(ticket *domain.Ticket) *discordgo.MessageSend {
	fields := make([]*discordgo.MessageEmbedField, 0, len(ticket.Answers))
	for _, answer := range ticket.Answers {
		fields = append(fields, &discordgo.MessageEmbedField{Name: answer.Label, Value: answer.Answer})
	}
	return &discordgo.MessageSend{
		Content: "<@" + ticket.Requester + ">",
		Embeds: []*discordgo.MessageEmbed{{
			Title: fmt.Sprintf("📩 %s TICKET #%d", strings.ToUpper(string(ticket.Category)), ticket.ID),
			Description: fmt.Sprintf("Hello <@%s>, thanks for reaching out.\n\nA staff member will assist you shortly.",
				ticket.Requester),
			Color:  colorTicket,
			Fields: fields,
		}},
		Components: []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "🙋 Claim", Style: discordgo.SuccessButton, CustomID: interaction.ClaimToken(ticket.ID)},
			discordgo.Button{Label: "❌ Close Ticket", Style: discordgo.DangerButton, CustomID: interaction.CloseToken(ticket.ID)},
		}}},
	}
}

func claimNotice(ticket *domain.Ticket, claimer domain.Actor) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Description: fmt.Sprintf("Ticket #%d claimed by <@%s>.", ticket.ID, claimer.UserID),
			Color:       colorSuccess,
		}},
	}
}

// closeConfirmation asks staff to confirm archiving or discarding a ticket.
func closeConfirmation(ticketID int64) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		Content: "Close this ticket? The transcript is saved to the log channel.",
		Flags:   discordgo.MessageFlagsEphemeral,
		Components: []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Confirm Close", Style: discordgo.DangerButton, CustomID: interaction.ConfirmCloseToken(ticketID)},
			discordgo.Button{Label: "Delete Without Transcript", Style: discordgo.SecondaryButton, CustomID: interaction.DeleteToken(ticketID)},
		}}},
	}
}

// transcriptSummary accompanies a transcript in the log channel.
func transcriptSummary(ticket *domain.Ticket, closedBy string, messageCount int) *discordgo.MessageEmbed {
	claimant := "unclaimed"
	if ticket.ClaimedBy != nil {
		claimant = "<@" + *ticket.ClaimedBy + ">"
	}
	return &discordgo.MessageEmbed{
		Title: "Ticket #" + strconv.FormatInt(ticket.ID, 10) + " closed",
		Color: colorDanger,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Category", Value: string(ticket.Category), Inline: true},
			{Name: "Requester", Value: "<@" + ticket.Requester + ">", Inline: true},
			{Name: "Claimed by", Value: claimant, Inline: true},
			{Name: "Closed by", Value: "<@" + closedBy + ">", Inline: true},
			{Name: "Messages", Value: strconv.Itoa(messageCount), Inline: true},
		},
	}
}

func rankEmbed(userID string, record domain.EngagementRecord, rank int, needed int) *discordgo.MessageEmbed {
	position := "unranked"
	if rank > 0 {
		position = "#" + strconv.Itoa(rank)
	}
	return &discordgo.MessageEmbed{
		Title:       "Rank",
		Description: "<@" + userID + ">",
		Color:       colorTicket,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Level", Value: strconv.Itoa(record.Level), Inline: true},
			{Name: "XP", Value: fmt.Sprintf("%d / %d", record.XP, needed), Inline: true},
			{Name: "Position", Value: position, Inline: true},
		},
	}
}

func leaderboardEmbed(records []domain.EngagementRecord) *discordgo.MessageEmbed {
	if len(records) == 0 {
		return &discordgo.MessageEmbed{Title: "Leaderboard", Description: "Nobody has earned XP yet.", Color: colorTicket}
	}
	lines := make([]string, 0, len(records))
	for i, r := range records {
		lines = append(lines, fmt.Sprintf("**%d.** <@%s> level %d (%d xp)", i+1, r.UserID, r.Level, r.XP))
	}
	return &discordgo.MessageEmbed{Title: "Leaderboard", Description: strings.Join(lines, "\n"), Color: colorTicket}
}

// roleMenuComponents renders one select menu per group, up to the
// platform's row limit.
func roleMenuComponents(menus []domain.RoleMenu) []discordgo.MessageComponent {
	if len(menus) > maxActionRows {
		menus = menus[:maxActionRows]
	}
	rows := make([]discordgo.MessageComponent, 0, len(menus))
	for _, menu := range menus {
		options := make([]discordgo.SelectMenuOption, 0, len(menu.Options))
		for _, opt := range menu.Options {
			label := opt.Label
			if label == "" {
				label = opt.RoleID
			}
			options = append(options, discordgo.SelectMenuOption{Label: label, Value: opt.RoleID})
		}
		maxValues := menu.MaxValues
		if maxValues <= 0 || maxValues > len(options) {
			maxValues = len(options)
		}
		minValues := 0
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    interaction.RoleMenuToken(menu.Name),
				Placeholder: menu.Placeholder,
				MinValues:   &minValues,
				MaxValues:   maxValues,
				Options:     options,
			},
		}})
	}
	return rows
}

func levelUpText(event domain.LevelUpEvent) string {
	return fmt.Sprintf("🎉 <@%s> reached level **%d**!", event.UserID, event.NewLevel)
}
