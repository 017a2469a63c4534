package ocr

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// RetryPolicy controls how OCR API calls are retried with exponential
// backoff and jitter. Zero fields take the defaults.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first. Default 3.
	Attempts int
	// Backoff is the delay before the first retry. Default 500ms.
	Backoff time.Duration
	// MaxBackoff caps the delay. Default 30s.
	MaxBackoff time.Duration
}

// statusError is a non-200 response from an OCR API.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ocr: mistral API returned %d: %s", e.Code, e.Body)
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Backoff <= 0 {
		p.Backoff = 500 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	return p
}

// do runs fn until it succeeds, fails with a permanent error, or runs out of
// attempts. Context cancellation stops retries immediately.
func (p RetryPolicy) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil || ctx.Err() != nil || !isTransient(lastErr) {
			return lastErr
		}
		if attempt == p.Attempts-1 {
			break
		}

		zap.L().Warn("ocr: retrying request",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

// delay doubles per attempt with ±25% jitter.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := math.Min(float64(p.Backoff)*math.Pow(2, float64(attempt)), float64(p.MaxBackoff))
	d += (rand.Float64()*2 - 1) * d * 0.25
	return time.Duration(math.Max(d, 0))
}

// isTransient reports whether err is worth retrying: throttling, server
// errors, timeouts and dropped connections.
func isTransient(err error) bool {
	if cause := eris.Cause(err); cause != nil {
		err = cause
	}

	var se *statusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return true
		}
		return se.Code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED)
}
