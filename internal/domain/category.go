package domain

import "strings"

// Category is the closed set of ticket types offered on the support panel.
type Category string

const (
	CategoryBanAppeal       Category = "ban-appeal"
	CategoryReport          Category = "report"
	CategoryBug             Category = "bug"
	CategoryPurchase        Category = "purchase"
	CategoryMedia           Category = "media"
	CategoryConnectionIssue Category = "connection-issue"
)

// MaxFormFields mirrors the platform's modal component limit.
const MaxFormFields = 5

// FormField is one intake question.
type FormField struct {
	ID          string
	Label       string
	Placeholder string
	Paragraph   bool
	Required    bool
}

// IntakeForm is the question set shown before a ticket is opened.
type IntakeForm struct {
	Category Category
	Title    string
	Fields   []FormField
}

var intakeForms = []IntakeForm{
	{
		Category: CategoryBanAppeal,
		Title:    "Ban Appeal",
		Fields: []FormField{
			{ID: "ign", Label: "In-game name", Required: true},
			{ID: "reason", Label: "Why were you banned?", Paragraph: true, Required: true},
			{ID: "appeal", Label: "Why should we unban you?", Paragraph: true, Required: true},
		},
	},
	{
		Category: CategoryReport,
		Title:    "Player Report",
		Fields: []FormField{
			{ID: "ign", Label: "Your in-game name", Required: true},
			{ID: "target", Label: "Who are you reporting?", Required: true},
			{ID: "details", Label: "What happened?", Paragraph: true, Required: true},
			{ID: "evidence", Label: "Evidence (links)", Paragraph: true},
		},
	},
	{
		Category: CategoryBug,
		Title:    "Bug Report",
		Fields: []FormField{
			{ID: "ign", Label: "In-game name", Required: true},
			{ID: "summary", Label: "Describe the bug", Paragraph: true, Required: true},
			{ID: "steps", Label: "How can we reproduce it?", Paragraph: true},
		},
	},
	{
		Category: CategoryPurchase,
		Title:    "Purchase Support",
		Fields: []FormField{
			{ID: "ign", Label: "In-game name", Required: true},
			{ID: "transaction", Label: "Transaction ID", Required: true},
			{ID: "issue", Label: "What went wrong?", Paragraph: true, Required: true},
		},
	},
	{
		Category: CategoryMedia,
		Title:    "Media Application",
		Fields: []FormField{
			{ID: "channel", Label: "Channel link", Required: true},
			{ID: "audience", Label: "Average viewers / subscribers", Required: true},
			{ID: "content", Label: "What content do you plan to make?", Paragraph: true},
		},
	},
	{
		Category: CategoryConnectionIssue,
		Title:    "Connection Issue",
		Fields: []FormField{
			{ID: "ign", Label: "In-game name", Required: true},
			{ID: "version", Label: "Game version / platform", Required: true},
			{ID: "error", Label: "Error message", Paragraph: true, Required: true},
		},
	},
}

// Categories returns all categories in panel order.
func Categories() []Category {
	out := make([]Category, 0, len(intakeForms))
	for _, form := range intakeForms {
		out = append(out, form.Category)
	}
	return out
}

// ParseCategory resolves a token to a known category.
func ParseCategory(raw string) (Category, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for _, form := range intakeForms {
		if string(form.Category) == raw {
			return form.Category, true
		}
	}
	return "", false
}

// FormFor returns the intake form of a category.
func FormFor(category Category) (IntakeForm, bool) {
	for _, form := range intakeForms {
		if form.Category == category {
			return form, true
		}
	}
	return IntakeForm{}, false
}
