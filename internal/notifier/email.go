package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"text/template"

	"repo-watcher/internal/config"
)

var emailTemplate = template.Must(template.New("email").Parse(`{{.Title}}

{{.Description}}
Link: {{.URL}}
{{if .Files}}
Files changed ({{len .Files}}):
{{range .Files}}  {{.}}
{{end}}{{end}}{{if .CommitMessage}}
Commit {{.CommitSHA}}:
{{.CommitMessage}}
{{end}}{{with .Author}}{{if .Name}}
Author: {{.Name}}{{if .URL}} ({{.URL}}){{end}}
{{end}}{{end}}
This is an automated notification from repo-watcher for {{.Repository}}.
`))

// EmailNotifier implements email notifications
type EmailNotifier struct {
	config *config.Config
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.Config) *EmailNotifier {
	return &EmailNotifier{config: cfg}
}

// Notify sends one email per notification
func (e *EmailNotifier) Notify(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("[%s] %s", e.config.GitHub.Repository, n.Title)
	body, err := e.generateEmailBody(n)
	if err != nil {
		return fmt.Errorf("error generating email body: %w", err)
	}

	return e.sendEmail(subject, body)
}

// generateEmailBody creates the email content
func (e *EmailNotifier) generateEmailBody(n Notification) (string, error) {
	data := struct {
		Notification
		Repository string
	}{
		Notification: n,
		Repository:   e.config.GitHub.Repository,
	}

	var body strings.Builder
	if err := emailTemplate.Execute(&body, data); err != nil {
		return "", err
	}
	return body.String(), nil
}

// sendEmail sends the email using SMTP
func (e *EmailNotifier) sendEmail(subject, body string) error {
	smtpCfg := e.config.Notifiers.SMTP
	msg := fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\n\r\n%s",
		strings.Join(smtpCfg.To, ","), smtpCfg.From, subject, body)
	addr := fmt.Sprintf("%s:%d", smtpCfg.Host, smtpCfg.Port)

	var auth smtp.Auth
	if smtpCfg.User != "" && smtpCfg.Password != "" {
		auth = smtp.PlainAuth("", smtpCfg.User, smtpCfg.Password, smtpCfg.Host)
	}

	var err error
	if auth != nil && smtpCfg.Port == 465 {
		// Implicit TLS; SendMail upgrades with STARTTLS on other ports when offered
		err = e.sendWithTLS(addr, auth, smtpCfg.From, smtpCfg.To, []byte(msg))
	} else {
		err = smtp.SendMail(addr, auth, smtpCfg.From, smtpCfg.To, []byte(msg))
	}

	if err != nil {
		slog.Error("Failed to send email", "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("Email notification sent successfully", "recipients", smtpCfg.To)
	return nil
}

// sendWithTLS sends email over an implicit TLS connection
func (e *EmailNotifier) sendWithTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	host := e.config.Notifiers.SMTP.Host

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Close()

	if err = client.Auth(auth); err != nil {
		return err
	}
	if err = client.Mail(from); err != nil {
		return err
	}
	for _, recipient := range to {
		if err = client.Rcpt(recipient); err != nil {
			return err
		}
	}

	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err = writer.Write(msg); err != nil {
		writer.Close()
		return err
	}
	if err = writer.Close(); err != nil {
		return err
	}
	return client.Quit()
}
