// Package notify delivers the run completion callback.
//
// A mirror run is usually one task inside a larger corpus-building job;
// the orchestration layer that queued it learns the outcome from a single
// JSON POST to its callback URL. Delivery is best effort: the mirror on
// disk is already complete when the callback fires, so a failed POST is
// logged and swallowed rather than failing the run.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/wikimirror/internal/config"
	"github.com/nao1215/wikimirror/internal/model"
)

// Payload is the completion callback body.
type Payload struct {
	// RunID identifies the mirror run.
	RunID string `json:"run_id"`

	// Status is the final run status: completed, failed, or canceled.
	Status string `json:"status"`

	// StartURL is the page the run was pointed at.
	StartURL string `json:"start_url"`

	// OutputDir is the absolute mirror root.
	OutputDir string `json:"output_dir"`

	// PagesSaved counts pages exported this run.
	PagesSaved int `json:"pages_saved"`

	// PagesSkipped counts pages skipped as unchanged.
	PagesSkipped int `json:"pages_skipped"`

	// PagesFailed counts pages that failed after all retries.
	PagesFailed int `json:"pages_failed"`

	// Attachments counts attachments whose text was extracted.
	Attachments int `json:"attachments"`

	// DurationSeconds is the wall-clock run duration.
	DurationSeconds float64 `json:"duration_seconds"`

	// FinishedAt is the completion time in RFC 3339 UTC.
	FinishedAt string `json:"finished_at"`
}

// NewPayload summarizes a run result into the callback body.
func NewPayload(result *model.MirrorResult) Payload {
	return Payload{
		RunID:           result.RunID,
		Status:          result.Status,
		StartURL:        result.StartURL,
		OutputDir:       result.OutputDir,
		PagesSaved:      result.CountByStatus(model.StatusMirrored),
		PagesSkipped:    result.CountByStatus(model.StatusUnchanged),
		PagesFailed:     result.CountByStatus(model.StatusFailed),
		Attachments:     result.AttachmentsExtracted(),
		DurationSeconds: result.Duration().Seconds(),
		FinishedAt:      result.FinishedAt.UTC().Format(time.RFC3339),
	}
}

// Notifier posts run summaries to the configured callback URL.
type Notifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// New builds a Notifier from the callback configuration. A zero timeout
// falls back to the default.
func New(cfg config.NotifyConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultNotifyTimeout
	}
	return &Notifier{
		url:    cfg.CallbackURL,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Enabled reports whether a callback URL is configured.
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// Send posts the completion payload. A disabled notifier returns nil
// without a request. The error is for the caller's log line; nothing
// downstream depends on delivery.
func (n *Notifier) Send(ctx context.Context, result *model.MirrorResult) error {
	if !n.Enabled() {
		return nil
	}

	body, err := json.Marshal(NewPayload(result))
	if err != nil {
		return fmt.Errorf("encode callback payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver callback: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}

	n.logger.Info("completion callback delivered",
		"url", n.url, "status", resp.StatusCode)
	return nil
}
