// Package generate calls the external workflow webhook that turns a
// natural-language description into program source code.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Mode selects the kind of program the workflow should generate.
type Mode string

const (
	ModeApp  Mode = "app"
	ModeGame Mode = "game"
)

// ParseMode validates a mode string from the API.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeApp, ModeGame:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid mode %q (want \"app\" or \"game\")", s)
	}
}

// ErrGenerationFailed covers every way a generation call can fail:
// transport error, timeout, non-2xx status, malformed body, or a
// missing/blank code field. Callers treat them all the same.
var ErrGenerationFailed = errors.New("generation failed")

// Client exchanges a description for generated source code.
type Client interface {
	Generate(ctx context.Context, description string, mode Mode) (string, error)
}

type request struct {
	Prompt string `json:"prompt"`
	Mode   Mode   `json:"mode"`
}

type response struct {
	Code string `json:"code"`
}

// WebhookClient posts {"prompt", "mode"} to a fixed workflow webhook
// and expects a JSON body with a "code" field back.
type WebhookClient struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

func NewWebhookClient(url string, timeout time.Duration, log *zap.Logger) *WebhookClient {
	return &WebhookClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Generate performs a single generation call. There are no retries;
// any failure is wrapped in ErrGenerationFailed with a diagnostic.
func (c *WebhookClient) Generate(ctx context.Context, description string, mode Mode) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", fmt.Errorf("%w: empty description", ErrGenerationFailed)
	}

	body, err := json.Marshal(request{Prompt: description, Mode: mode})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrGenerationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrGenerationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("webhook call failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("webhook returned error status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet))
		return "", fmt.Errorf("%w: webhook status %d", ErrGenerationFailed, resp.StatusCode)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrGenerationFailed, err)
	}

	code := stripFence(strings.TrimSpace(out.Code))
	if code == "" {
		return "", fmt.Errorf("%w: response had no code", ErrGenerationFailed)
	}

	c.log.Info("code generated",
		zap.String("mode", string(mode)),
		zap.Int("bytes", len(code)),
		zap.Duration("elapsed", time.Since(start)))
	return code, nil
}

// stripFence removes a surrounding markdown code fence, which some
// workflow configurations wrap around the generated source.
func stripFence(code string) string {
	if !strings.HasPrefix(code, "```") {
		return code
	}
	lines := strings.Split(code, "\n")
	if len(lines) < 2 {
		return code
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
