package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"path/filepath"
	"strings"

	"postgame-agent/internal/models"
	"postgame-agent/shared/config"
)

type Sender struct {
	config *config.EmailConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSender(cfg *config.EmailConfig) *Sender {
	return &Sender{
		config: cfg,
		send:   smtp.SendMail,
	}
}

const scriptTemplate = `<html>
<body style="font-family: Arial, sans-serif; max-width: 720px; margin: auto;">
<h1>{{.Script.Title}}</h1>
<p><strong>Thumbnail:</strong> {{.Script.ThumbnailText}}<br>
<strong>Estimated duration:</strong> {{printf "%.1f" .Script.EstimatedDurationMinutes}} min
{{if .Script.QualityReport}}<br><strong>Quality:</strong> {{printf "%.0f" .Script.QualityReport.OverallScore}}/100, retention {{printf "%.0f" (pct .Script.QualityReport.RetentionEstimate)}}%{{end}}</p>
{{range .Script.Sections}}
<h3>{{.Name}} <small>[{{.Timestamp}}]</small></h3>
{{if .StageDirection}}<p><em>{{.StageDirection}}</em></p>{{end}}
<p style="white-space: pre-wrap;">{{.Content}}</p>
{{end}}
<hr>
<p><strong>Description:</strong><br>{{.Script.Description}}</p>
<p><strong>Tags:</strong> {{join .Script.Tags}}</p>
{{if .File}}<p style="color: #888;">Saved as {{.File}}</p>{{end}}
</body>
</html>`

// SendScript e-mails the finished script. path is the saved artifact, if any.
func (s *Sender) SendScript(script *models.FinalScript, path string) error {
	if script == nil {
		return fmt.Errorf("script cannot be nil")
	}

	subject := fmt.Sprintf("Post-game script ready: %s", script.Title)

	body, err := s.generateEmailBody(script, path)
	if err != nil {
		return fmt.Errorf("failed to generate email body: %w", err)
	}

	return s.SendHTML(subject, body)
}

// SendHTML sends an email with custom HTML content
func (s *Sender) SendHTML(subject, htmlBody string) error {
	return s.sendViaSMTP(subject, htmlBody)
}

func (s *Sender) sendViaSMTP(subject, body string) error {
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.SMTPServer)

	to := []string{s.config.ToEmail}
	msg := []byte(fmt.Sprintf(`To: %s
From: %s
Subject: %s
MIME-Version: 1.0
Content-Type: text/html; charset=UTF-8

%s`, s.config.ToEmail, s.config.FromEmail, subject, body))

	addr := fmt.Sprintf("%s:%d", s.config.SMTPServer, s.config.SMTPPort)
	return s.send(addr, auth, s.config.FromEmail, to, msg)
}

func (s *Sender) generateEmailBody(script *models.FinalScript, path string) (string, error) {
	tmpl, err := template.New("email").Funcs(template.FuncMap{
		"pct": func(v float64) float64 { return v * 100 },
		"join": func(tags []string) string { return strings.Join(tags, ", ") },
	}).Parse(scriptTemplate)
	if err != nil {
		return "", err
	}

	data := struct {
		Script *models.FinalScript
		File   string
	}{Script: script}
	if path != "" {
		data.File = filepath.Base(path)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
