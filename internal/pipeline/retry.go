package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
)

// RetryConfig describes the backoff applied to every external model call.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
}

// DefaultRetryConfig waits 1s, 2s and 4s between four attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     4,
		InitialInterval: time.Second,
		Multiplier:      2,
	}
}

// StatusError carries an HTTP status from a collaborator that does not return
// googleapi errors.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Retrier retries transient failures of a single call with exponential backoff.
type Retrier struct {
	cfg RetryConfig
	log *logrus.Entry

	// notify observes every scheduled retry; tests use it to record delays.
	notify func(err error, wait time.Duration)
}

func NewRetrier(cfg RetryConfig, log *logrus.Entry) *Retrier {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = time.Second
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2
	}
	return &Retrier{cfg: cfg, log: log}
}

// Do calls op until it succeeds, fails with a non-transient error, or runs out of
// attempts. The error of the last attempt is returned unchanged.
func (r *Retrier) Do(ctx context.Context, name string, op func() error) error {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(r.cfg.InitialInterval),
		backoff.WithMultiplier(r.cfg.Multiplier),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(time.Minute),
		backoff.WithMaxElapsedTime(0),
	)
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.MaxAttempts-1)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		if r.log != nil {
			r.log.WithFields(logrus.Fields{
				"call":    name,
				"attempt": attempt,
				"wait":    wait.String(),
			}).WithError(err).Warn("transient error, retrying")
		}
		if r.notify != nil {
			r.notify(err, wait)
		}
	}

	return backoff.RetryNotify(operation, policy, notify)
}

// IsTransient reports whether err is worth retrying: rate limiting, a server-side
// fault, or a dropped connection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return transientStatus(gerr.Code)
	}
	var serr *StatusError
	if errors.As(err, &serr) {
		return transientStatus(serr.Code)
	}
	// gax apierror.APIError and similar wrappers expose the HTTP status this way.
	var coded interface{ HTTPCode() int }
	if errors.As(err, &coded) && coded.HTTPCode() > 0 {
		return transientStatus(coded.HTTPCode())
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "econnreset") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "network")
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
