package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/oshokin/garage-alert/internal/channel"
	"github.com/oshokin/garage-alert/internal/domain/alert"
	"github.com/oshokin/garage-alert/internal/logger"
	"github.com/oshokin/garage-alert/internal/version"
)

// statusEntry is the subset of the last-status answer we rely on.
type statusEntry struct {
	Status string `json:"status"`
}

// ReadField returns the last value the backend stored for field.
// Reads are diagnostic: any failure yields zero.
func (c *Channel) ReadField(ctx context.Context, field int) float64 {
	ctx = logger.WithKV(logger.WithName(ctx, "telemetry"), "field", field)

	if !alert.ValidField(field) || !c.readable(ctx) {
		return 0
	}

	body, err := c.get(ctx, "/channels/"+url.PathEscape(c.cfg.ChannelID)+"/fields/"+strconv.Itoa(field)+"/last.txt")
	if err != nil {
		logger.WarnKV(ctx, "Telemetry field read failed", "error", err)

		return 0
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(string(body)), 64)
	if err != nil {
		logger.WarnKV(ctx, "Telemetry field is not a number", "error", err)

		return 0
	}

	return value
}

// ReadStatus returns the last status text the backend stored.
// Reads are diagnostic: any failure yields an empty string.
func (c *Channel) ReadStatus(ctx context.Context) string {
	ctx = logger.WithName(ctx, "telemetry")

	if !c.readable(ctx) {
		return ""
	}

	body, err := c.get(ctx, "/channels/"+url.PathEscape(c.cfg.ChannelID)+"/status/last.json")
	if err != nil {
		logger.WarnKV(ctx, "Telemetry status read failed", "error", err)

		return ""
	}

	var entry statusEntry
	if err = json.Unmarshal(body, &entry); err != nil {
		logger.WarnKV(ctx, "Telemetry status is malformed", "error", err)

		return ""
	}

	return entry.Status
}

func (c *Channel) readable(ctx context.Context) bool {
	return strings.TrimSpace(c.cfg.ChannelID) != "" && c.probe.Connected(ctx)
}

// get performs a read call; any answer other than 200 is a failure.
func (c *Channel) get(ctx context.Context, path string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := c.cfg.BaseURL + path
	if c.cfg.ReadKey != "" {
		endpoint += "?" + url.Values{"api_key": []string{c.cfg.ReadKey}}.Encode()
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", channel.RedactURL(endpoint), err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
	}

	return body, nil
}
