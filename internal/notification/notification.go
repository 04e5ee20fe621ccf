// Package notification delivers budget and audit alerts to Slack, email and
// generic webhooks.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Channel represents a notification delivery channel.
type Channel string

const (
	ChannelSlack   Channel = "slack"
	ChannelEmail   Channel = "email"
	ChannelWebhook Channel = "webhook"
)

// EventType represents the type of notification event.
type EventType string

const (
	EventBudgetWarning  EventType = "budget.warning"
	EventBudgetExceeded EventType = "budget.exceeded"
	EventAuditFindings  EventType = "audit.findings"
	EventForecastGrowth EventType = "forecast.growth"
)

// Message represents a notification message.
type Message struct {
	EventType EventType      `json:"event_type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Severity  string         `json:"severity,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Config holds notification service configuration.
type Config struct {
	SlackWebhookURL string
	EmailSMTPHost   string
	EmailSMTPPort   int
	EmailFrom       string
	EmailPassword   string
	EmailRecipients []string
	WebhookURLs     []string
}

// Service fans a message out to every configured channel.
type Service struct {
	cfg        Config
	httpClient *http.Client
	sendMail   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger     *slog.Logger
	channels   []Channel
}

// NewService creates a new notification service.
func NewService(cfg Config, logger *slog.Logger) *Service {
	s := &Service{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		sendMail:   smtp.SendMail,
		logger:     logger,
	}

	if cfg.SlackWebhookURL != "" {
		s.channels = append(s.channels, ChannelSlack)
	}
	if cfg.EmailSMTPHost != "" {
		s.channels = append(s.channels, ChannelEmail)
	}
	if len(cfg.WebhookURLs) > 0 {
		s.channels = append(s.channels, ChannelWebhook)
	}

	return s
}

// Enabled reports whether at least one channel is configured.
func (s *Service) Enabled() bool {
	return len(s.channels) > 0
}

// HasChannel returns true if the specified channel is configured.
func (s *Service) HasChannel(ch Channel) bool {
	return lo.Contains(s.channels, ch)
}

// Send sends a notification to all configured channels. Every channel is
// attempted; failures are joined into the returned error.
func (s *Service) Send(ctx context.Context, msg Message) error {
	msg.Timestamp = time.Now().UTC()
	var errs []string

	for _, ch := range s.channels {
		var err error
		switch ch {
		case ChannelSlack:
			err = s.sendSlack(ctx, msg)
		case ChannelEmail:
			err = s.sendEmail(msg)
		case ChannelWebhook:
			err = s.sendWebhook(ctx, msg)
		}
		if err != nil {
			s.logger.Error("notification send failed", "channel", ch, "event", msg.EventType, "error", err)
			errs = append(errs, fmt.Sprintf("%s: %v", ch, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s *Service) sendSlack(ctx context.Context, msg Message) error {
	color := "#2196F3"
	switch msg.Severity {
	case "high":
		color = "#FF9800"
	case "medium":
		color = "#FFC107"
	}

	payload := map[string]any{
		"attachments": []map[string]any{
			{
				"color":  color,
				"title":  msg.Title,
				"text":   msg.Body,
				"footer": "costengine",
				"ts":     msg.Timestamp.Unix(),
				"fields": slackFields(msg.Data),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.SlackWebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}

	s.logger.Info("slack notification sent", "event", msg.EventType)
	return nil
}

func (s *Service) sendEmail(msg Message) error {
	subject := fmt.Sprintf("[costengine] %s", msg.Title)
	body := fmt.Sprintf("Subject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n\r\nEvent: %s\r\nTime: %s",
		subject, msg.Body, msg.EventType, msg.Timestamp.Format(time.RFC3339))

	addr := fmt.Sprintf("%s:%d", s.cfg.EmailSMTPHost, s.cfg.EmailSMTPPort)

	var auth smtp.Auth
	if s.cfg.EmailPassword != "" {
		auth = smtp.PlainAuth("", s.cfg.EmailFrom, s.cfg.EmailPassword, s.cfg.EmailSMTPHost)
	}

	recipients := s.cfg.EmailRecipients
	if len(recipients) == 0 {
		recipients = []string{s.cfg.EmailFrom}
	}

	if err := s.sendMail(addr, auth, s.cfg.EmailFrom, recipients, []byte(body)); err != nil {
		return fmt.Errorf("email send failed: %w", err)
	}

	s.logger.Info("email notification sent", "event", msg.EventType, "recipients", len(recipients))
	return nil
}

func (s *Service) sendWebhook(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	var errs []string
	for _, webhookURL := range s.cfg.WebhookURLs {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Costengine-Event", string(msg.EventType))

		resp, err := s.httpClient.Do(req)
		if err != nil {
			errs = append(errs, fmt.Sprintf("webhook %s: %v", webhookURL, err))
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 300 {
			errs = append(errs, fmt.Sprintf("webhook %s: status %d", webhookURL, resp.StatusCode))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("webhook errors: %s", strings.Join(errs, "; "))
	}

	s.logger.Info("webhook notifications sent", "event", msg.EventType, "count", len(s.cfg.WebhookURLs))
	return nil
}

// slackFields renders data as Slack attachment fields in key order.
func slackFields(data map[string]any) []map[string]any {
	keys := lo.Keys(data)
	sort.Strings(keys)
	fields := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, map[string]any{
			"title": k,
			"value": fmt.Sprintf("%v", data[k]),
			"short": true,
		})
	}
	return fields
}
