package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"repo-watcher/internal/config"
)

const (
	embedColor    = 0x4CAF50
	footerText    = "GitHub Notifications"
	unknownAuthor = "Unknown Author"
	unknownSHA    = "unknown"

	// Discord rejects embeds above these lengths, counted in characters
	maxDescriptionLength = 4096
	maxFieldValueLength  = 1024
	ellipsis             = "…"
)

// ErrUnexpectedStatus is returned when the webhook answers anything but 204 No Content
var ErrUnexpectedStatus = errors.New("unexpected webhook status")

// DiscordNotifier posts rich embeds to a Discord webhook
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(cfg *config.Config) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: cfg.Discord.WebhookURL,
		client:     &http.Client{Timeout: cfg.Discord.Timeout},
	}
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

type embed struct {
	Type        string       `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color"`
	Author      embedAuthor  `json:"author"`
	Fields      []embedField `json:"fields"`
	Footer      embedFooter  `json:"footer"`
}

type embedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text string `json:"text"`
}

// Notify sends one embed for the notification
func (d *DiscordNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(buildPayload(n))
	if err != nil {
		return fmt.Errorf("error generating Discord payload: %w", err)
	}
	return d.send(ctx, payload)
}

// buildPayload creates the webhook message for a notification
func buildPayload(n Notification) webhookPayload {
	author := embedAuthor{Name: unknownAuthor}
	if n.Author != nil {
		if n.Author.Name != "" {
			author.Name = n.Author.Name
		}
		author.URL = n.Author.URL
		author.IconURL = n.Author.AvatarURL
	}

	sha := n.CommitSHA
	if sha == "" {
		sha = unknownSHA
	}

	return webhookPayload{Embeds: []embed{{
		Type:        "rich",
		Title:       n.Title,
		Description: buildDescription(n.Description, n.Files),
		URL:         n.URL,
		Color:       embedColor,
		Author:      author,
		Fields: []embedField{
			{Name: "`Commit SHA`", Value: "`" + sha + "`", Inline: true},
			{Name: "Commit Message", Value: codeBlock("fix", n.CommitMessage, maxFieldValueLength), Inline: false},
		},
		Footer: embedFooter{Text: footerText},
	}}}
}

// buildDescription quotes the summary and lists the files in a diff block,
// clipping the file list first so the block stays closed.
func buildDescription(summary string, files []string) string {
	prefix := truncate(">>> "+summary+"\n", maxDescriptionLength-len("```diff\n\n```"))
	return prefix + codeBlock("diff", strings.Join(files, "\n"), maxDescriptionLength-utf8.RuneCountInString(prefix))
}

// codeBlock fences body with the given language, clipping body to fit in limit characters
func codeBlock(lang, body string, limit int) string {
	open := "```" + lang + "\n"
	const closing = "\n```"
	return open + truncate(body, limit-utf8.RuneCountInString(open)-utf8.RuneCountInString(closing)) + closing
}

// truncate clips s to at most limit characters, ending with an ellipsis when clipped
func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + ellipsis
}

// send posts the payload to the webhook
func (d *DiscordNotifier) send(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error creating Discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Discord notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %d - %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	slog.Info("Embed notification sent successfully.")
	return nil
}
