package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultUsername = "TCGPlayer Last Sold Monitor"

type webhookPayload struct {
	Content  string `json:"content"`
	Username string `json:"username"`
}

// WebhookNotifier posts chat messages to a Discord style webhook.
type WebhookNotifier struct {
	client   *resty.Client
	url      string
	username string
	logger   *slog.Logger
}

func NewWebhookNotifier(webhookURL, username string, timeout time.Duration) *WebhookNotifier {
	if username == "" {
		username = DefaultUsername
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)

	return &WebhookNotifier{
		client:   client,
		url:      webhookURL,
		username: username,
		logger:   slog.Default().With("component", "webhook"),
	}
}

func (w *WebhookNotifier) NotifySale(ctx context.Context, ev SaleEvent) error {
	return w.send(ctx, SaleMessage(ev))
}

func (w *WebhookNotifier) NotifyStartup(ctx context.Context, s Startup) error {
	return w.send(ctx, StartupMessage(s))
}

// NotifyGraph uploads the chart image as a multipart message with the
// caption in payload_json.
func (w *WebhookNotifier) NotifyGraph(ctx context.Context, ev GraphEvent) error {
	if w.url == "" {
		w.logger.Debug("no webhook configured, skipping graph")
		return nil
	}

	payload, err := json.Marshal(webhookPayload{Content: GraphMessage(ev), Username: w.username})
	if err != nil {
		return fmt.Errorf("failed to marshal graph payload: %w", err)
	}

	res, err := w.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"payload_json": string(payload)}).
		SetFile("file", ev.Path).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("failed to upload graph: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("webhook returned %s", res.Status())
	}

	w.logger.Info("graph uploaded", "url", ev.URL, "file", ev.Path, "status", res.StatusCode())
	return nil
}

func (w *WebhookNotifier) send(ctx context.Context, content string) error {
	if w.url == "" {
		w.logger.Debug("no webhook configured, skipping message")
		return nil
	}

	res, err := w.client.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetBody(webhookPayload{Content: content, Username: w.username}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("webhook returned %s", res.Status())
	}

	w.logger.Info("webhook message sent", "status", res.StatusCode())
	return nil
}
