// Copyright 2025 The Storeforge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dns

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Registrar maintains hostname mappings for store ingress. Lifecycle
// sequences call it best-effort: a registrar failure is logged by the
// caller but never fails a provision or teardown.
type Registrar interface {
	Register(ctx context.Context, host string) error
	Deregister(ctx context.Context, host string) error
}

// NewRegistrar returns an HTTP registrar when an endpoint is
// configured, otherwise the no-op registrar.
func NewRegistrar(endpoint string, log *zap.Logger) Registrar {
	if endpoint == "" {
		return NopRegistrar{}
	}
	return NewHTTPRegistrar(endpoint, log)
}

// NopRegistrar ignores all mappings. Used when hostname resolution is
// handled out of band, e.g. wildcard DNS for the base domain or
// hand-maintained hosts entries.
type NopRegistrar struct{}

func (NopRegistrar) Register(context.Context, string) error   { return nil }
func (NopRegistrar) Deregister(context.Context, string) error { return nil }

// RetryConfig defines the retry behavior for registrar calls.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// HTTPRegistrar manages records through a small REST endpoint
// (PUT/DELETE {endpoint}/records/{host}). Transient failures are
// retried with exponential backoff.
type HTTPRegistrar struct {
	endpoint string
	client   *http.Client
	retry    RetryConfig
	log      *zap.Logger
}

// NewHTTPRegistrar creates a registrar against the given endpoint.
func NewHTTPRegistrar(endpoint string, log *zap.Logger) *HTTPRegistrar {
	return &HTTPRegistrar{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
		retry: RetryConfig{
			MaxRetries:     3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     30 * time.Second,
		},
		log: log,
	}
}

// Register creates or refreshes the record for a hostname.
func (r *HTTPRegistrar) Register(ctx context.Context, host string) error {
	err := r.executeWithRetry(ctx, func() error {
		return r.do(ctx, http.MethodPut, host)
	})
	if err != nil {
		return fmt.Errorf("failed to register hostname %s: %w", host, err)
	}

	r.log.Info("registered hostname", zap.String("host", host))
	return nil
}

// Deregister removes the record for a hostname. A record the registrar
// does not know is treated as already removed.
func (r *HTTPRegistrar) Deregister(ctx context.Context, host string) error {
	err := r.executeWithRetry(ctx, func() error {
		err := r.do(ctx, http.MethodDelete, host)
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to deregister hostname %s: %w", host, err)
	}

	r.log.Info("deregistered hostname", zap.String("host", host))
	return nil
}

func (r *HTTPRegistrar) do(ctx context.Context, method, host string) error {
	u := fmt.Sprintf("%s/records/%s", r.endpoint, url.PathEscape(host))
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &statusError{code: resp.StatusCode}
}

// statusError is a non-2xx registrar response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("registrar returned status %d", e.code)
}

// executeWithRetry executes an operation with exponential backoff retry.
func (r *HTTPRegistrar) executeWithRetry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.retry.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		if !isRetryableError(lastErr) {
			return lastErr
		}

		if attempt == r.retry.MaxRetries {
			break
		}

		backoff := r.calculateBackoff(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", r.retry.MaxRetries, lastErr)
}

// isRetryableError determines if an error should trigger a retry.
// Server-side and transport failures are retryable; any other HTTP
// status is not.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		switch se.code {
		case http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	return true
}

// calculateBackoff calculates the backoff duration for a retry attempt.
func (r *HTTPRegistrar) calculateBackoff(attempt int) time.Duration {
	multiplier := 1 << uint(attempt) // 2^attempt
	base := float64(r.retry.InitialBackoff) * float64(multiplier)

	// Add jitter (±20%)
	jitter := (rand.Float64() * 0.4) - 0.2
	backoff := time.Duration(base * (1 + jitter))

	if backoff > r.retry.MaxBackoff {
		backoff = r.retry.MaxBackoff
	}

	return backoff
}
