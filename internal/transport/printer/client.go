// Package printer polls a 3D printer's HTTP telemetry endpoint for the
// device status and the cumulative extrusion counter.
package printer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/spooltrack/internal/metrics"
)

// ErrUnavailable wraps any transport or protocol failure talking to the
// printer. The poll loop treats it as a skipped tick, never as fatal.
var ErrUnavailable = errors.New("printer unavailable")

// StatusReport is one telemetry snapshot from the printer.
type StatusReport struct {
	Status     string  `json:"status"`      // e.g. "idle", "printing", "completed"
	ExtrudedMM float64 `json:"extruded_mm"` // cumulative since device boot
	File       string  `json:"file"`        // currently loaded file, may be empty
}

// Client is an HTTP telemetry source.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// Config holds the printer connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a printer telemetry client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Fetch retrieves the current telemetry snapshot.
func (c *Client) Fetch(ctx context.Context) (StatusReport, error) {
	start := time.Now()

	report, err := c.get(ctx)

	duration := time.Since(start)

	if err != nil {
		metrics.PrinterRequestsTotal.WithLabelValues("error").Inc()
		return StatusReport{}, err
	}

	metrics.PrinterRequestsTotal.WithLabelValues("success").Inc()
	metrics.PrinterRequestDuration.Observe(duration.Seconds())
	c.logger.Debug("telemetry fetched",
		zap.String("status", report.Status),
		zap.Float64("extruded_mm", report.ExtrudedMM),
		zap.Duration("latency", duration))
	return report, nil
}

// HealthCheck verifies the telemetry endpoint responds.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.get(ctx); err != nil {
		return fmt.Errorf("printer health check: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context) (StatusReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/telemetry", nil)
	if err != nil {
		return StatusReport{}, fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return StatusReport{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return StatusReport{}, fmt.Errorf("%w: status %d: %s",
			ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var report StatusReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return StatusReport{}, fmt.Errorf("%w: decode telemetry: %v", ErrUnavailable, err)
	}
	return report, nil
}
