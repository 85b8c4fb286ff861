// Package transcript renders a ticket channel's history as a standalone
// HTML page.
package transcript

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/zeebo/blake3"

	"github.com/spec-kit/community-bot/internal/domain"
)

// DigestPrefix tags digests with the hash that produced them.
const DigestPrefix = "blake3:"

// Document is everything a transcript shows.
type Document struct {
	Ticket      *domain.Ticket
	ChannelName string
	ClosedBy    string
	// Messages are in chronological order.
	Messages    []domain.TicketMessage
	GeneratedAt time.Time
}

// Rendered is a finished transcript file.
type Rendered struct {
	FileName     string
	HTML         []byte
	Digest       string
	MessageCount int
}

// Renderer converts documents to HTML. It is safe for concurrent use.
type Renderer struct {
	markdown goldmark.Markdown
	page     *template.Template
}

// NewRenderer builds a renderer. Raw HTML inside message bodies is dropped.
func NewRenderer() *Renderer {
	return &Renderer{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		page: template.Must(template.New("transcript").Parse(pageTemplate)),
	}
}

// FileName is the attachment name used for a channel's transcript.
func FileName(channelName string) string {
	return "ticket-" + channelName + ".html"
}

// Render produces the HTML page and its digest.
func (r *Renderer) Render(doc Document) (*Rendered, error) {
	view := pageView{
		ChannelName: doc.ChannelName,
		ClosedBy:    doc.ClosedBy,
		GeneratedAt: doc.GeneratedAt.UTC().Format(time.RFC1123),
	}
	if t := doc.Ticket; t != nil {
		view.TicketID = t.ID
		view.Category = string(t.Category)
		view.Requester = t.Requester
		view.OpenedAt = t.OpenedAt.UTC().Format(time.RFC1123)
		if t.ClaimedBy != nil {
			view.ClaimedBy = *t.ClaimedBy
		}
		view.Answers = t.Answers
	}

	for _, msg := range doc.Messages {
		body, err := r.renderBody(msg.Body)
		if err != nil {
			return nil, fmt.Errorf("render message %s: %w", msg.ID, err)
		}
		view.Messages = append(view.Messages, messageView{
			AuthorName:  msg.AuthorName,
			AuthorClass: strings.ToLower(string(msg.AuthorType)),
			Timestamp:   msg.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			Body:        body,
			Attachments: msg.Attachments,
		})
	}

	var buf bytes.Buffer
	if err := r.page.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("execute transcript template: %w", err)
	}
	page := buf.Bytes()
	return &Rendered{
		FileName:     FileName(doc.ChannelName),
		HTML:         page,
		Digest:       Digest(page),
		MessageCount: len(doc.Messages),
	}, nil
}

// Digest hashes content with BLAKE3-256.
func Digest(content []byte) string {
	sum := blake3.Sum256(content)
	return DigestPrefix + hex.EncodeToString(sum[:])
}

func (r *Renderer) renderBody(body string) (template.HTML, error) {
	if strings.TrimSpace(body) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	// goldmark escapes text and omits raw HTML, so its output is trusted.
	return template.HTML(buf.String()), nil //nolint:gosec
}

type pageView struct {
	TicketID    int64
	Category    string
	Requester   string
	ClaimedBy   string
	ClosedBy    string
	ChannelName string
	OpenedAt    string
	GeneratedAt string
	Answers     []domain.FormAnswer
	Messages    []messageView
}

type messageView struct {
	AuthorName  string
	AuthorClass string
	Timestamp   string
	Body        template.HTML
	Attachments []domain.AttachmentReference
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Transcript #{{.ChannelName}}</title>
<style>
body{background:#313338;color:#dbdee1;font-family:"gg sans","Helvetica Neue",Arial,sans-serif;margin:0;padding:24px}
header{border-bottom:1px solid #3f4147;margin-bottom:16px;padding-bottom:12px}
dl{display:grid;grid-template-columns:max-content auto;gap:4px 12px}
dt{color:#949ba4}
.message{padding:6px 0}
.author{font-weight:600;color:#f2f3f5}
.bot .author{color:#5865f2}
.staff .author{color:#23a55a}
.time{color:#949ba4;font-size:12px;margin-left:8px}
.attachment a{color:#00a8fc}
</style>
</head>
<body>
<header>
<h1>#{{.ChannelName}}</h1>
<dl>
{{- if .TicketID}}<dt>Ticket</dt><dd>#{{.TicketID}}</dd>{{end}}
{{- if .Category}}<dt>Category</dt><dd>{{.Category}}</dd>{{end}}
{{- if .Requester}}<dt>Requester</dt><dd>{{.Requester}}</dd>{{end}}
<dt>Claimed by</dt><dd>{{if .ClaimedBy}}{{.ClaimedBy}}{{else}}unclaimed{{end}}</dd>
{{- if .ClosedBy}}<dt>Closed by</dt><dd>{{.ClosedBy}}</dd>{{end}}
{{- if .OpenedAt}}<dt>Opened</dt><dd>{{.OpenedAt}}</dd>{{end}}
<dt>Generated</dt><dd>{{.GeneratedAt}}</dd>
</dl>
{{- if .Answers}}
<h2>Intake</h2>
<dl>
{{- range .Answers}}<dt>{{.Label}}</dt><dd>{{.Answer}}</dd>{{end}}
</dl>
{{- end}}
</header>
<main>
{{- range .Messages}}
<div class="message {{.AuthorClass}}">
<span class="author">{{.AuthorName}}</span><span class="time">{{.Timestamp}}</span>
<div class="body">{{.Body}}</div>
{{- range .Attachments}}
<div class="attachment"><a href="{{.URL}}">{{.FileName}}</a> ({{.SizeBytes}} bytes)</div>
{{- end}}
</div>
{{- else}}
<p>No messages.</p>
{{- end}}
</main>
</body>
</html>
`
