// Package notify delivers verified Coinbase Commerce webhook events to
// downstream systems and records webhook telemetry.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"commercepay/internal/types"
)

// discordColor is the embed accent color (0x5865F2, Discord blurple).
const discordColor = 5793266

// maxResponseBody bounds how much of an error response is kept.
const maxResponseBody = 1024

// Circuit breaker settings for the Discord webhook. After
// discordBreakerThreshold consecutive failures deliveries fail fast for
// discordBreakerCooldown, then a single probe request is let through.
const (
	discordBreakerThreshold = 5
	discordBreakerCooldown  = 30 * time.Second
)

// DiscordPayload is the body of a Discord webhook execution.
type DiscordPayload struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

// DiscordEmbed is a rich embed in a Discord message.
type DiscordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Footer      *DiscordFooter `json:"footer,omitempty"`
	Fields      []DiscordField `json:"fields"`
}

// DiscordField is one name/value row of an embed.
type DiscordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// DiscordFooter is the footer line of an embed.
type DiscordFooter struct {
	Text string `json:"text"`
}

// DiscordSink posts a payment confirmation embed to a Discord webhook for
// every charge:confirmed event. Other event types are ignored.
type DiscordSink struct {
	client     *http.Client
	webhookURL types.SecretString
	footer     string
	breaker    *gobreaker.CircuitBreaker[struct{}]
	logger     *slog.Logger
}

// NewDiscordSink creates a DiscordSink. The webhook URL embeds a token and
// is kept as a SecretString so it is never logged.
func NewDiscordSink(client *http.Client, webhookURL types.SecretString, footer string, logger *slog.Logger) *DiscordSink {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "discord",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     discordBreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= discordBreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &DiscordSink{
		client:     client,
		webhookURL: webhookURL,
		footer:     footer,
		breaker:    breaker,
		logger:     logger,
	}
}

// Name returns the sink identifier used in logs and metrics.
func (s *DiscordSink) Name() string { return "discord" }

// Deliver posts the confirmation embed. A non-2xx response is an error.
// While the circuit breaker is open Deliver fails without a request.
func (s *DiscordSink) Deliver(ctx context.Context, event *types.WebhookEvent, _ []byte) error {
	if event.Event.Type != types.EventChargeConfirmed {
		return nil
	}

	body, err := json.Marshal(DiscordPayload{Embeds: []DiscordEmbed{s.confirmationEmbed(event)}})
	if err != nil {
		return fmt.Errorf("discord: failed to marshal payload: %w", err)
	}

	_, err = s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.post(ctx, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamSink, "discord: circuit open", err)
	}
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "discord payment confirmation sent",
		"event_id", event.Event.ID,
		"charge_id", event.Event.Data.ID,
	)
	return nil
}

func (s *DiscordSink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL.Unmask(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// The *url.Error would carry the tokenized URL.
		return types.NewAppError(types.ErrCodeUpstreamSink, "discord: request failed", unwrapURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		return types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamSink,
			fmt.Sprintf("discord: unexpected status %d", resp.StatusCode),
			nil,
			map[string]any{
				types.DetailStatusCode:   resp.StatusCode,
				types.DetailResponseBody: string(respBody),
			},
		)
	}
	return nil
}

func (s *DiscordSink) confirmationEmbed(event *types.WebhookEvent) DiscordEmbed {
	data := event.Event.Data

	embed := DiscordEmbed{
		Title:       "Payment Confirmation",
		Description: fmt.Sprintf("A $%s Payment has been received for %s.", data.LocalAmount().StringFixed(2), data.Name),
		Color:       discordColor,
		Fields: []DiscordField{
			{Name: "Transaction ID", Value: data.ID},
			{Name: "UserID", Value: data.Metadata.CustomerID.String(), Inline: true},
			{Name: "Username", Value: data.Metadata.CustomerName.String(), Inline: true},
		},
	}
	if s.footer != "" {
		embed.Footer = &DiscordFooter{Text: s.footer}
	}
	return embed
}
