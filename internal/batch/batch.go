// Package batch provides a rate-limited batch execution engine for
// calling embedding and completion APIs safely under provider
// throttling.
//
// A Runner partitions work items into token-bounded batches, executes
// them through a concurrency-bounded queue paced by a request-rate
// limiter, retries throttled and transient failures with exponential
// backoff and jitter, and adaptively shrinks batches under sustained
// throttling. Results are scattered back into input order regardless of
// completion order.
package batch

import (
	"errors"
	"math"
)

// Sentinel errors classifying provider failures. Providers wrap these
// (fmt.Errorf("...: %w", batch.ErrThrottled)) so the retry loop can
// recognize them with errors.Is. Any error matching neither sentinel is
// terminal immediately.
var (
	// ErrThrottled signals a provider rate limit (HTTP 429 equivalent).
	// Retried with backoff; multi-item batches additionally shrink.
	ErrThrottled = errors.New("rate limited by provider")

	// ErrTransient signals a retryable server-side failure (HTTP 5xx
	// equivalent). Retried with backoff only.
	ErrTransient = errors.New("transient provider error")
)

// retryable reports whether err may be retried at all.
func retryable(err error) bool {
	return errors.Is(err, ErrThrottled) || errors.Is(err, ErrTransient)
}

// Config controls rate limiting and retry behavior.
type Config struct {
	// RequestsPerMinute caps how many executor calls are started per
	// minute across all workers.
	RequestsPerMinute int

	// TokensPerMinute is the nominal provider token budget per minute.
	TokensPerMinute int

	// Concurrency bounds the number of in-flight batch executions.
	Concurrency int

	// MaxRetries caps backoff retry attempts per batch.
	MaxRetries int

	// BaseBackoffMs is the first backoff delay in milliseconds;
	// subsequent attempts double it up to a 60s cap.
	BaseBackoffMs int

	// SafetyFactor in (0,1] scales the effective token budget below the
	// nominal limit to leave headroom.
	SafetyFactor float64
}

// DefaultConfig returns conservative defaults suitable for most
// embedding providers.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 300,
		TokensPerMinute:   150000,
		Concurrency:       4,
		MaxRetries:        5,
		BaseBackoffMs:     500,
		SafetyFactor:      0.8,
	}
}

// Validation errors for Config.
var (
	ErrInvalidConcurrency  = errors.New("concurrency must be at least 1")
	ErrInvalidSafetyFactor = errors.New("safety factor must be in (0, 1]")
	ErrInvalidRate         = errors.New("rate limits must be positive")
)

// Validate checks config invariants.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.SafetyFactor <= 0 || c.SafetyFactor > 1 {
		return ErrInvalidSafetyFactor
	}
	if c.RequestsPerMinute <= 0 || c.TokensPerMinute <= 0 {
		return ErrInvalidRate
	}
	if c.MaxRetries < 0 {
		return ErrInvalidRate
	}
	return nil
}

// maxTokensPerBatch derives a conservative per-call token ceiling: a
// one-second slice of the per-worker share of the scaled token budget,
// never below 1000 so small budgets still form useful batches.
func (c Config) maxTokensPerBatch() int {
	perWorker := float64(c.TokensPerMinute) * c.SafetyFactor / float64(c.Concurrency)
	ceiling := int(math.Floor(perWorker / 60))
	if ceiling < 1000 {
		return 1000
	}
	return ceiling
}

// fallbackBatchSize is the fixed batch length used when no token
// counter is available for the item type.
const fallbackBatchSize = 128

// EstimateTokens is the executor's conservative character-based token
// estimate, ceil(len/4). It is deliberately distinct from the chunker's
// estimation ratio; the two serve different conservatism goals and must
// not be unified.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}
