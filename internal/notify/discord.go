package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ibrahim-sec/thcsub/internal/pacing"
)

const (
	maxBatchSize  = 25
	maxDescLen    = 4000
	rateLimitWait = 2 * time.Second
	maxRetries    = 3
)

// ColorGreen marks new domains in Discord embeds.
const ColorGreen = 3066993

// Notifier delivers lists of newly discovered subdomains to the configured
// channels. Channels left empty are skipped.
type Notifier struct {
	httpClient *http.Client

	webhookURL     string
	telegramToken  string
	telegramChatID string
	telegramAPI    string
	retryWait      time.Duration
}

// New creates a notifier. It returns nil when no channel is configured.
func New(webhookURL, telegramToken, telegramChatID string) *Notifier {
	webhookURL = strings.TrimSpace(webhookURL)
	hasTelegram := telegramToken != "" && telegramChatID != ""
	if webhookURL == "" && !hasTelegram {
		return nil
	}

	n := &Notifier{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		webhookURL:  webhookURL,
		telegramAPI: "https://api.telegram.org",
		retryWait:   rateLimitWait,
	}
	if hasTelegram {
		n.telegramToken = telegramToken
		n.telegramChatID = telegramChatID
	}
	return n
}

// NewDomains sends domains in batches to every configured channel. The
// first delivery error is returned after all batches were attempted.
func (n *Notifier) NewDomains(ctx context.Context, target string, domains []string) error {
	if n == nil || len(domains) == 0 {
		return nil
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, batch := range Batches(domains, maxBatchSize) {
		if n.webhookURL != "" {
			keep(n.sendDiscord(ctx, BuildDiscordPayload(target, batch)))
		}
		if n.telegramToken != "" {
			keep(n.sendTelegram(ctx, BuildTelegramMessage(target, batch)))
		}
	}
	return firstErr
}

// Batches splits items into chunks of at most size entries.
func Batches(items []string, size int) [][]string {
	var out [][]string
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

// BuildDiscordPayload builds a Discord embed payload
func BuildDiscordPayload(target string, domains []string) map[string]interface{} {
	domainList := Truncate(strings.Join(domains, "\n"), maxDescLen)

	return map[string]interface{}{
		"tts": false,
		"embeds": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("🔍 %s  [%d new]", target, len(domains)),
				"description": fmt.Sprintf("```\n%s\n```", domainList),
				"color":       ColorGreen,
				"timestamp":   time.Now().Format(time.RFC3339),
				"footer":      map[string]string{"text": "thcsub"},
			},
		},
	}
}

func (n *Notifier) sendDiscord(ctx context.Context, payload map[string]interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return n.post(ctx, n.webhookURL, jsonData, "discord")
}

// post delivers a JSON body and retries on 429.
func (n *Notifier) post(ctx context.Context, url string, jsonData []byte, channel string) error {
	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return fmt.Errorf("%s: failed to create request: %w", channel, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s: request failed: %w", channel, err)
		}
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK, http.StatusNoContent:
			return nil
		case http.StatusTooManyRequests:
			if err := pacing.Sleep(ctx, n.retryWait*time.Duration(attempt+1)); err != nil {
				return err
			}
			continue
		default:
			return fmt.Errorf("%s returned status %d", channel, resp.StatusCode)
		}
	}
	return fmt.Errorf("%s: still rate limited after %d attempts", channel, maxRetries)
}

// Truncate truncates a string to maxLen
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
