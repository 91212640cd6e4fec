package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"
	texttemplate "text/template"
	"time"

	"cinotify/internal/types"
)

//go:embed templates/event.html templates/event.txt
var templateFS embed.FS

// RenderedEmail holds the pre-rendered email content ready for transmission.
type RenderedEmail struct {
	Subject  string
	BodyHTML string
	BodyText string
}

type templateFact struct {
	Label string
	Value string
}

// templateData is the struct passed into the templates.
type templateData struct {
	Subject   string
	Title     string
	Message   string
	Details   string
	Color     string
	Facts     []templateFact
	SourceURL string
	Timestamp string
	RequestID string
}

// Renderer renders events with the embedded templates.
type Renderer struct {
	html *template.Template
	text *texttemplate.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	html, err := template.ParseFS(templateFS, "templates/event.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse event.html: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/event.txt")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse event.txt: %w", err)
	}
	return &Renderer{html: html, text: text}, nil
}

// Render produces the subject and both bodies for e.
func (r *Renderer) Render(e *types.NotificationEvent) (*RenderedEmail, error) {
	if e == nil {
		return nil, fmt.Errorf("renderer: event is nil")
	}
	data := buildTemplateData(e)

	var htmlBuf bytes.Buffer
	if err := r.html.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("renderer: failed to render HTML: %w", err)
	}
	var txtBuf bytes.Buffer
	if err := r.text.Execute(&txtBuf, data); err != nil {
		return nil, fmt.Errorf("renderer: failed to render text: %w", err)
	}

	return &RenderedEmail{
		Subject:  data.Subject,
		BodyHTML: htmlBuf.String(),
		BodyText: txtBuf.String(),
	}, nil
}

// Subject format: "[FAILED] Pipeline failed: acme/api (main)".
func buildTemplateData(e *types.NotificationEvent) templateData {
	subject := fmt.Sprintf("[%s] %s", subjectTag(e.Status), e.DisplayTitle())
	if e.Repository != "" {
		subject += ": " + e.Repository
		if e.Branch != "" {
			subject += " (" + e.Branch + ")"
		}
	}

	ts := e.Metadata.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	data := templateData{
		Subject:   subject,
		Title:     e.DisplayTitle(),
		Message:   e.Message,
		Details:   e.Details,
		Color:     statusColor(e.Status),
		SourceURL: e.SourceURL,
		Timestamp: ts.UTC().Format("Mon, 02 Jan 2006 15:04 MST"),
		RequestID: e.Metadata.RequestID,
	}
	add := func(label, value string) {
		if value != "" {
			data.Facts = append(data.Facts, templateFact{label, value})
		}
	}
	add("Repository", e.Repository)
	add("Branch", e.Branch)
	add("Target", e.Target)

	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, fmt.Sprint(e.Context[k]))
	}
	return data
}

func subjectTag(s types.EventStatus) string {
	switch s {
	case types.EventStatusSuccess:
		return "SUCCESS"
	case types.EventStatusError:
		return "FAILED"
	case types.EventStatusWarning:
		return "WARNING"
	default:
		return "INFO"
	}
}

func statusColor(s types.EventStatus) string {
	switch s {
	case types.EventStatusSuccess:
		return "#2da44e"
	case types.EventStatusError:
		return "#cf222e"
	case types.EventStatusWarning:
		return "#bf8700"
	default:
		return "#0969da"
	}
}
