package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spherical/doc-converter/internal/domain"
)

// backoff doubles from base on every retry, capped at max.
type backoff struct {
	base time.Duration
	max  time.Duration
}

var defaultBackoff = backoff{base: time.Second, max: 30 * time.Second}

// delay returns the wait before retry n (zero-based).
func (b backoff) delay(n int) time.Duration {
	d := b.base
	for i := 0; i < n && d < b.max; i++ {
		d *= 2
	}
	return min(d, b.max)
}

// attemptError is a failed transcription attempt. Only transient failures
// (rate limits, 5xx, dropped connections or streams) are retried.
type attemptError struct {
	err       error
	transient bool
}

func (e *attemptError) Error() string { return e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }

func transient(err error) error { return &attemptError{err: err, transient: true} }
func permanent(err error) error { return &attemptError{err: err} }

// transientStatus reports whether a response status may succeed on retry.
func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		(code >= 500 && code != http.StatusNotImplemented && code != http.StatusHTTPVersionNotSupported)
}

// withRetries runs attempt once plus up to c.retries more times while it
// fails transiently. The last failure is returned unwrapped.
func (c *Client) withRetries(ctx context.Context, attempt func(context.Context) (string, error)) (string, error) {
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := attempt(ctx)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		var ae *attemptError
		if !errors.As(err, &ae) {
			return "", err
		}
		if !ae.transient || n >= c.retries {
			return "", ae.err
		}

		wait := c.backoff.delay(n)
		c.logger.Warn().
			Int("attempt", n+1).
			Int("max_retries", c.retries).
			Dur("backoff", wait).
			Err(ae.err).
			Msg("Transcription failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

// statusError describes a non-200 response.
func statusError(code int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		detail = http.StatusText(code)
	}
	return domain.APIError(fmt.Sprintf("API returned status %d: %s", code, detail), nil)
}
