package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type stageAdvancedEmailData struct {
	baseEmailData
	AgentName    string
	ConsumerName string
	FromStage    string
	ToStage      string
}

type followUpReminderEmailData struct {
	baseEmailData
	AgentName    string
	ConsumerName string
	Reason       string
}

type leadAssignedEmailData struct {
	baseEmailData
	AgentName    string
	ConsumerName string
	Source       string
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

// humanizeStage turns "proposal_sent" into "Proposal sent" for subjects and
// bodies.
func humanizeStage(stage string) string {
	joined := strings.Join(strings.Split(stage, "_"), " ")
	if joined == "" {
		return joined
	}
	return strings.ToUpper(joined[:1]) + joined[1:]
}
