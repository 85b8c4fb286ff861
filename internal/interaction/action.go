// Package interaction maps the opaque UI tokens carried by buttons, menus,
// modals and slash commands onto a closed set of actions.
package interaction

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spec-kit/community-bot/internal/domain"
)

// ErrUnknownToken is returned for tokens outside the namespace.
var ErrUnknownToken = errors.New("unknown interaction token")

// Action is one parsed interaction.
type Action interface {
	action()
}

// TicketOpen asks for the intake form of a category.
type TicketOpen struct {
	Category domain.Category
}

// IntakeSubmit carries a completed intake form keyed by field id.
type IntakeSubmit struct {
	Category domain.Category
	Values   map[string]string
}

// A zero TicketID in the lifecycle actions means "the ticket of the channel
// the control was used in".

// TicketClaim claims a ticket.
type TicketClaim struct{ TicketID int64 }

// TicketClose asks for close confirmation.
type TicketClose struct{ TicketID int64 }

// TicketConfirmClose archives and closes a ticket.
type TicketConfirmClose struct{ TicketID int64 }

// TicketDelete discards a ticket without a transcript.
type TicketDelete struct{ TicketID int64 }

// RoleSelect applies a role menu selection.
type RoleSelect struct {
	Group  string
	Values []string
}

// CommandName enumerates slash commands.
type CommandName string

const (
	CommandPanel       CommandName = "panel"
	CommandRank        CommandName = "rank"
	CommandLeaderboard CommandName = "leaderboard"
	CommandRoles       CommandName = "roles"
)

// Commands lists every slash command in registration order.
func Commands() []CommandName {
	return []CommandName{CommandPanel, CommandRank, CommandLeaderboard, CommandRoles}
}

// Command is a slash command invocation.
type Command struct {
	Name CommandName
}

func (TicketOpen) action()         {}
func (IntakeSubmit) action()       {}
func (TicketClaim) action()        {}
func (TicketClose) action()        {}
func (TicketConfirmClose) action() {}
func (TicketDelete) action()       {}
func (RoleSelect) action()         {}
func (Command) action()            {}

const (
	prefixTicket = "ticket"
	prefixIntake = "intake"
	prefixRoles  = "roles"

	verbOpen         = "open"
	verbClaim        = "claim"
	verbClose        = "close"
	verbConfirmClose = "confirm-close"
	verbDelete       = "delete"
)

// OpenToken is the button token of a category on the support panel.
func OpenToken(category domain.Category) string {
	return prefixTicket + ":" + verbOpen + ":" + string(category)
}

// IntakeToken is the modal token of a category's intake form.
func IntakeToken(category domain.Category) string {
	return prefixIntake + ":" + string(category)
}

// ClaimToken is the claim button token of a ticket.
func ClaimToken(ticketID int64) string { return lifecycleToken(verbClaim, ticketID) }

// CloseToken is the close button token of a ticket.
func CloseToken(ticketID int64) string { return lifecycleToken(verbClose, ticketID) }

// ConfirmCloseToken is the close confirmation token of a ticket.
func ConfirmCloseToken(ticketID int64) string { return lifecycleToken(verbConfirmClose, ticketID) }

// DeleteToken is the discard token of a ticket.
func DeleteToken(ticketID int64) string { return lifecycleToken(verbDelete, ticketID) }

// RoleMenuToken is the select menu token of a role group.
func RoleMenuToken(group string) string {
	return prefixRoles + ":" + group
}

func lifecycleToken(verb string, ticketID int64) string {
	return prefixTicket + ":" + verb + ":" + strconv.FormatInt(ticketID, 10)
}

// ParseComponent parses a button or select menu token.
func ParseComponent(customID string, values []string) (Action, error) {
	customID = strings.TrimSpace(customID)
	head, rest, hasRest := strings.Cut(customID, ":")

	if !hasRest {
		// Bare tokens as sent by panels posted before namespacing.
		switch head {
		case verbClaim:
			return TicketClaim{}, nil
		case verbClose, "close_ticket":
			return TicketClose{}, nil
		case verbConfirmClose:
			return TicketConfirmClose{}, nil
		case verbDelete:
			return TicketDelete{}, nil
		}
		if category, ok := domain.ParseCategory(head); ok {
			return TicketOpen{Category: category}, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownToken, customID)
	}

	switch head {
	case prefixTicket:
		return parseTicketToken(customID, rest)
	case prefixRoles:
		if rest == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnknownToken, customID)
		}
		return RoleSelect{Group: rest, Values: append([]string{}, values...)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownToken, customID)
}

func parseTicketToken(customID, rest string) (Action, error) {
	verb, arg, ok := strings.Cut(rest, ":")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownToken, customID)
	}
	if verb == verbOpen {
		category, ok := domain.ParseCategory(arg)
		if !ok {
			return nil, fmt.Errorf("%w: unknown category %q", ErrUnknownToken, arg)
		}
		return TicketOpen{Category: category}, nil
	}

	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: bad ticket id in %q", ErrUnknownToken, customID)
	}
	switch verb {
	case verbClaim:
		return TicketClaim{TicketID: id}, nil
	case verbClose:
		return TicketClose{TicketID: id}, nil
	case verbConfirmClose:
		return TicketConfirmClose{TicketID: id}, nil
	case verbDelete:
		return TicketDelete{TicketID: id}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownToken, customID)
}

// ParseModal parses a modal submission.
func ParseModal(customID string, values map[string]string) (Action, error) {
	head, rest, ok := strings.Cut(strings.TrimSpace(customID), ":")
	if !ok || head != prefixIntake {
		return nil, fmt.Errorf("%w: %q", ErrUnknownToken, customID)
	}
	category, ok := domain.ParseCategory(rest)
	if !ok {
		return nil, fmt.Errorf("%w: unknown category %q", ErrUnknownToken, rest)
	}
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return IntakeSubmit{Category: category, Values: copied}, nil
}

// ParseCommand parses a slash command name.
func ParseCommand(name string) (Action, error) {
	for _, known := range Commands() {
		if string(known) == name {
			return Command{Name: known}, nil
		}
	}
	return nil, fmt.Errorf("%w: command %q", ErrUnknownToken, name)
}
