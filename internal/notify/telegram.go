package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// BuildTelegramMessage builds a Telegram message
func BuildTelegramMessage(target string, domains []string) string {
	domainList := Truncate(strings.Join(domains, "\n"), maxDescLen)
	return fmt.Sprintf("🔍 *%s* [%d new]\n```\n%s\n```", target, len(domains), domainList)
}

func (n *Notifier) sendTelegram(ctx context.Context, text string) error {
	payload := map[string]interface{}{
		"chat_id":                  n.telegramChatID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.telegramAPI, n.telegramToken)
	return n.post(ctx, url, jsonData, "telegram")
}
