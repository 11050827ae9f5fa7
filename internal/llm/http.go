package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

const maxRequestSize = 200000 // ~200KB

var retryBaseDelay = 500 * time.Millisecond

const (
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 900
)

// requestTimeout bounds every provider call, falling back to defaultTimeout.
func requestTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}

// tokenLimit is the configured limit, or defaultMaxTokens when unset.
func tokenLimit(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Provider, e.Status, truncateString(e.Body, 500))
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// postJSON sends payload and returns the raw body of a 2xx reply. Network
// errors, 429 and 5xx are retried with exponential backoff; other 4xx are
// returned at once.
func postJSON(ctx context.Context, hc *http.Client, logger zerolog.Logger, provider, url string, headers map[string]string, payload any, maxTries int) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	if maxTries <= 0 {
		maxTries = 1
	}
	logger.Debug().
		Str("provider", provider).
		Int("payload_size", len(body)).
		Msg("API request")

	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		logger.Debug().
			Int("status", resp.StatusCode).
			Int("response_size", len(data)).
			Msg("API response")
		if resp.StatusCode >= 400 {
			se := &StatusError{Provider: provider, Status: resp.StatusCode, Body: string(data)}
			logger.Error().
				Int("status", resp.StatusCode).
				Str("raw_response", truncateString(se.Body, 500)).
				Msg("API error")
			if se.Retryable() {
				return nil, se
			}
			return nil, backoff.Permanent(se)
		}
		return data, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryBaseDelay
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(maxTries)),
		backoff.WithNotify(func(err error, d time.Duration) {
			logger.Info().Err(err).Dur("delay", d).Str("provider", provider).Msg("retrying API call")
		}),
	)
}

func clip(s string) string {
	if len(s) > maxRequestSize {
		return s[:maxRequestSize] + "... [truncated]"
	}
	return s
}
