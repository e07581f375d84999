package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/avirj/libra/internal/model"
)

// Ensure DiscordNotifier implements model.Notifier.
var _ model.Notifier = (*DiscordNotifier)(nil)

// DiscordNotifier posts run summaries to a Discord channel via webhook.
type DiscordNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDiscordNotifier returns a notifier that posts each summary to Discord.
func NewDiscordNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// discordPayload is the minimal webhook body Discord accepts.
type discordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// embedColor is Discord's blurple.
const embedColor = 0x5865F2

// discordMaxDescription is the embed description limit enforced by the API.
const discordMaxDescription = 4096

// discordMaxRetryWait caps how long a 429's Retry-After can stall the
// end-of-run notification.
const discordMaxRetryWait = 30 * time.Second

// retryWait converts a Retry-After header value into a bounded wait.
func retryWait(value string) time.Duration {
	secs, _ := strconv.Atoi(value)
	wait := time.Duration(secs) * time.Second
	if wait <= 0 {
		wait = time.Second
	}
	if wait > discordMaxRetryWait {
		wait = discordMaxRetryWait
	}
	return wait
}

// Notify posts the summary as a single embed. Discord rate limits webhooks
// aggressively, so a 429 is retried once after the advertised delay.
func (d *DiscordNotifier) Notify(summary string) error {
	if summary == "" {
		return nil
	}
	if len(summary) > discordMaxDescription {
		summary = summary[:discordMaxDescription-3] + "..."
	}

	payload := discordPayload{
		Embeds: []discordEmbed{{
			Title:       "Aggregation run complete",
			Description: summary,
			Color:       embedColor,
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	resp, err := d.httpClient.Post(d.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post to discord: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := retryWait(resp.Header.Get("Retry-After"))
		d.logger.Warn("discord rate limited, retrying", "wait", wait)
		time.Sleep(wait)

		resp2, err := d.httpClient.Post(d.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("post to discord (retry): %w", err)
		}
		defer resp2.Body.Close()

		if resp2.StatusCode < 200 || resp2.StatusCode >= 300 {
			return fmt.Errorf("discord returned %d on retry", resp2.StatusCode)
		}
		d.logger.Info("discord summary sent", "retried", true)
		return nil
	}

	// Webhooks answer 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord returned %d", resp.StatusCode)
	}
	d.logger.Info("discord summary sent")
	return nil
}

// SendTestSummary sends a dummy summary to verify the integration works.
func SendTestSummary(n model.Notifier) error {
	return n.Notify("Test notification: webhook integration verified at " +
		time.Now().Format(time.RFC1123))
}
