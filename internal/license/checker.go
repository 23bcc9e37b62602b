// Package license polls the entitlement server at a fixed interval
// and reports the result to the host through the status notifier.
package license

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"facebridge/server/internal/notify"
)

const defaultInterval = 20 * time.Second

// startupDelay gives the host UI time to subscribe before the first
// license result is emitted.
const startupDelay = 2 * time.Second

type validateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Checker validates a license key against the cloud endpoint.
type Checker struct {
	log      *zap.SugaredLogger
	notifier *notify.Notifier
	http     *http.Client
	baseURL  string
	key      string
	interval time.Duration
}

func NewChecker(log *zap.SugaredLogger, n *notify.Notifier, baseURL, key string, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Checker{
		log:      log.Named("license"),
		notifier: n,
		http:     &http.Client{Timeout: 15 * time.Second},
		baseURL:  baseURL,
		key:      key,
		interval: interval,
	}
}

// Check performs one validation round trip and returns the server's
// message, or an error describing why validation failed.
func (c *Checker) Check(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{"key": c.key})
	if err != nil {
		return "", fmt.Errorf("encoding license request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/validate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building license request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("license network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("license HTTP error: %s", resp.Status)
	}

	var parsed validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding license response: %w", err)
	}
	if !parsed.Success {
		return "", fmt.Errorf("license invalid: %s", parsed.Message)
	}
	return parsed.Message, nil
}

// Run polls forever at the configured interval, emitting every result
// (valid or not) as a license-status event. It returns when ctx is
// cancelled.
func (c *Checker) Run(ctx context.Context) {
	select {
	case <-time.After(startupDelay):
	case <-ctx.Done():
		return
	}
	c.checkAndNotify(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.checkAndNotify(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Checker) checkAndNotify(ctx context.Context) {
	msg, err := c.Check(ctx)
	if err != nil {
		c.log.Warnf("license check failed: %v", err)
		c.notifier.LicenseStatus(err.Error())
		return
	}
	c.notifier.LicenseStatus(msg)
}
