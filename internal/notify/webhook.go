// Package notify posts run summaries to a webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/auditor-cli/internal/model"
)

// Severity values.
const (
	SeverityInfo = "info"
	SeverityHigh = "high"
)

// Message is the webhook payload for one finished run.
type Message struct {
	RunID     string          `json:"run_id"`
	Status    model.RunStatus `json:"status"`
	Severity  string          `json:"severity"`
	Dry       bool            `json:"dry"`
	Text      string          `json:"text"`
	Details   map[string]any  `json:"details,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage builds the payload for run. Failed and interrupted runs are
// high severity.
func NewMessage(run *model.Run) Message {
	severity := SeverityInfo
	if run.Status == model.RunStatusFailed || run.Status == model.RunStatusInterrupted {
		severity = SeverityHigh
	}

	text := run.Summary
	if run.Error != "" {
		text = run.Error
		if run.Summary != "" {
			text = run.Summary + "\n" + run.Error
		}
	}

	details := map[string]any{"item_count": run.ItemCount}
	if len(run.FixCounts) > 0 {
		details["fix_counts"] = run.FixCounts
	}
	if len(run.DuplicateTitles) > 0 {
		details["duplicate_titles"] = len(run.DuplicateTitles)
	}

	return Message{
		RunID:     run.ID,
		Status:    run.Status,
		Severity:  severity,
		Dry:       run.Dry,
		Text:      text,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// Webhook sends run summaries to URL. A Webhook with no URL does nothing.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a Webhook posting to url.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a webhook URL is configured.
func (w *Webhook) Enabled() bool {
	return w != nil && w.url != ""
}

// Notify posts the summary of run.
func (w *Webhook) Notify(ctx context.Context, run *model.Run) error {
	if !w.Enabled() {
		return nil
	}

	msg := NewMessage(run)
	if err := w.send(ctx, msg); err != nil {
		zap.L().Error("notify: failed to send summary",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
		return err
	}
	zap.L().Info("notify: summary sent",
		zap.String("run_id", run.ID),
		zap.String("severity", msg.Severity),
	)
	return nil
}

func (w *Webhook) send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "notify: marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
