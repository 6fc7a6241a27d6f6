// Package timeouts provides centralized timeout values for backend calls
// and handler operations.
//
// Timeouts can be configured at startup using Configure(). If not
// configured, the defaults below are used.
//
// Guidelines for choosing a timeout:
//   - Ping: health checks and connectivity verification
//   - Store: one call into the group backend (a read or a single write)
//   - Request: one engine operation, which may span several store calls
//   - Batch: provisioning, allocation and course-wide repair
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing    = 2 * time.Second
	DefaultStore   = 5 * time.Second
	DefaultRequest = 20 * time.Second
	DefaultBatch   = 2 * time.Minute
)

// mu protects all timeout values from concurrent access.
var mu sync.RWMutex

var (
	ping    = DefaultPing
	store   = DefaultStore
	request = DefaultRequest
	batch   = DefaultBatch
)

// Ping returns the timeout for health checks.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Store returns the deadline applied to each individual backend call.
func Store() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return store
}

// Request returns the timeout for a whole membership operation such as a
// join or a transfer, including its re-reads and repair writes.
func Request() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return request
}

// Batch returns the timeout for course-wide operations.
// Examples: creating empty groups, auto-allocation, the repair sweep.
func Batch() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return batch
}

// Config holds timeout configuration values.
// Zero values are ignored (defaults are kept).
type Config struct {
	Ping    time.Duration
	Store   time.Duration
	Request time.Duration
	Batch   time.Duration
}

// Configure sets custom timeout values. Zero values in the config are
// ignored, keeping the current (or default) values. Call it during startup
// before handlers are registered.
//
// Example:
//
//	timeouts.Configure(timeouts.Config{
//	    Store: 3 * time.Second,
//	})
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		ping = cfg.Ping
	}
	if cfg.Store > 0 {
		store = cfg.Store
	}
	if cfg.Request > 0 {
		request = cfg.Request
	}
	if cfg.Batch > 0 {
		batch = cfg.Batch
	}
}

// Reset restores all timeouts to their default values.
// Useful for testing.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	store = DefaultStore
	request = DefaultRequest
	batch = DefaultBatch
}

// ConfigureFromEnv reads timeout overrides from the environment:
//   - PROJECTHUB_TIMEOUT_PING: e.g. "2s", "500ms"
//   - PROJECTHUB_TIMEOUT_STORE: e.g. "5s"
//   - PROJECTHUB_TIMEOUT_REQUEST: e.g. "20s"
//   - PROJECTHUB_TIMEOUT_BATCH: e.g. "2m"
//
// Unset or invalid values are ignored. Returns the number of timeouts
// configured from the environment.
func ConfigureFromEnv() int {
	mu.Lock()
	defer mu.Unlock()
	configured := 0

	for _, v := range []struct {
		key string
		dst *time.Duration
	}{
		{"PROJECTHUB_TIMEOUT_PING", &ping},
		{"PROJECTHUB_TIMEOUT_STORE", &store},
		{"PROJECTHUB_TIMEOUT_REQUEST", &request},
		{"PROJECTHUB_TIMEOUT_BATCH", &batch},
	} {
		raw := os.Getenv(v.key)
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			*v.dst = d
			configured++
		}
	}

	return configured
}

// Current returns the current timeout configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{
		Ping:    ping,
		Store:   store,
		Request: request,
		Batch:   batch,
	}
}

// WithTimeout creates a context with timeout and returns a cancel function
// that logs a warning if the context ended because the deadline passed.
//
// Example:
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Batch(), h.Log, "auto allocate")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
