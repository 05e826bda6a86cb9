package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// upstreamError is a non-2xx response from a provider server. Timeouts and
// connection problems never reach this type; they surface as transport
// errors from the HTTP client.
type upstreamError struct {
	status int
	body   string
}

func (e *upstreamError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("server returned %d", e.status)
	}
	return fmt.Sprintf("server returned %d: %s", e.status, e.body)
}

func (e *upstreamError) retryable() bool {
	return e.status >= 500
}

// StatusCode reports the upstream HTTP status for callers that branch on it.
func statusCode(err error) (int, bool) {
	var upstream *upstreamError
	if errors.As(err, &upstream) {
		return upstream.status, true
	}
	return 0, false
}

func retryableFailure(err error) bool {
	var upstream *upstreamError
	if errors.As(err, &upstream) {
		return upstream.retryable()
	}
	// Transport-level failures: timeouts, refused connections, resets.
	return err != nil
}

// httpJSON posts a JSON payload and decodes a JSON reply. The response body
// tail is carried in upstreamError for diagnosis of non-2xx replies.
func httpJSON(ctx context.Context, client *http.Client, url string, payload any, reply any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &upstreamError{status: resp.StatusCode, body: truncateBody(raw)}
	}
	if reply == nil {
		return nil
	}
	if err := json.Unmarshal(raw, reply); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func httpGetJSON(ctx context.Context, client *http.Client, url string, reply any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &upstreamError{status: resp.StatusCode, body: truncateBody(raw)}
	}
	if reply == nil {
		return nil
	}
	if err := json.Unmarshal(raw, reply); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncateBody(raw []byte) string {
	const max = 200
	if len(raw) > max {
		return string(raw[:max])
	}
	return string(raw)
}

// backoffDelay grows linearly with the attempt number: 2s, 4s, 6s, ...
func backoffDelay(attempt int) time.Duration {
	return time.Duration(2*(attempt+1)) * time.Second
}

// classifyWithRetry runs op up to maxRetries times, sleeping between
// attempts on retryable failures. A shouldRetry hook lets providers veto
// retries for terminal statuses. Returns op's text on first success, or
// empty text with the final error once attempts are exhausted.
func classifyWithRetry(
	ctx context.Context,
	log *zap.Logger,
	maxRetries int,
	sleep func(context.Context, time.Duration) error,
	shouldRetry func(error) bool,
	op func(context.Context) (string, error),
) (string, error) {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	if shouldRetry == nil {
		shouldRetry = retryableFailure
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		text, err := op(ctx)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return "", err
		}
		if attempt == maxRetries-1 {
			break
		}

		log.Warn("provider request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))
		if err := sleep(ctx, backoffDelay(attempt)); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("retries exhausted: %w", lastErr)
}

// sleepContext waits for d unless the context ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
