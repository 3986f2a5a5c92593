package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Func executes one batch of items and returns one result per item, in
// item order. It may fail with an error wrapping ErrThrottled or
// ErrTransient to request a retry; any other error is terminal.
type Func[T, R any] func(ctx context.Context, items []T) ([]R, error)

// TokenCounter counts tokens in a text. Providers with a precise
// tokenizer implement this; when absent the Runner falls back to
// EstimateTokens.
type TokenCounter interface {
	CountTokens(text string) int
}

// Failure records one batch that exhausted its retries. Start and Count
// locate the failed items in the original input slice.
type Failure struct {
	Start int
	Count int
	Err   error
}

// Result carries the scattered outputs plus an explicit account of any
// failed ranges. Output slots covered by a Failure hold the zero value
// and must not be trusted.
type Result[R any] struct {
	Outputs  []R
	Failures []Failure
}

// Failed reports whether any batch ultimately failed.
func (r *Result[R]) Failed() bool {
	return len(r.Failures) > 0
}

// Runner executes batched work under request- and token-rate limits.
// Safe for concurrent use; a single Runner may serve many Execute calls.
type Runner[T, R any] struct {
	cfg     Config
	counter TokenCounter // nil: use EstimateTokens
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRunner creates a Runner. counter may be nil; logger nil means
// slog.Default().
func NewRunner[T, R any](cfg Config, counter TokenCounter, logger *slog.Logger) (*Runner[T, R], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Request pacing: refill at the per-second share of the minute
	// budget, with a burst matching the worker count so idle periods
	// do not forfeit capacity.
	limiter := rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.Concurrency)

	return &Runner[T, R]{
		cfg:     cfg,
		counter: counter,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// span is one batch plus its starting offset into the output slice.
// Spans partition the input with no gaps and no overlaps, so workers
// write to disjoint output ranges without locking.
type span[T any] struct {
	start int
	items []T
}

// Execute runs items through fn in rate-limited batches and returns one
// output per item, in input order.
//
// extract maps an item to its text for token counting; pass nil to use
// fixed-size batches instead. Partial failure is explicit: the returned
// Result lists every failed range. An error is returned only when the
// context is cancelled before submission or when every batch failed, in
// which case it is the first batch's terminal error.
func (r *Runner[T, R]) Execute(ctx context.Context, items []T, fn Func[T, R], extract func(T) string) (*Result[R], error) {
	result := &Result[R]{Outputs: make([]R, len(items))}
	if len(items) == 0 {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spans := r.partition(items, extract)
	r.logger.Debug("executing batches",
		"items", len(items),
		"batches", len(spans),
		"concurrency", r.cfg.Concurrency)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []Failure
	)
	sem := make(chan struct{}, r.cfg.Concurrency)

	for _, sp := range spans {
		wg.Add(1)
		go func(sp span[T]) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				failures = append(failures, Failure{Start: sp.start, Count: len(sp.items), Err: ctx.Err()})
				mu.Unlock()
				return
			}

			outs, err := r.runBatch(ctx, sp.items, fn)
			if err != nil {
				r.logger.Warn("batch failed",
					"start", sp.start,
					"count", len(sp.items),
					"error", err)
				mu.Lock()
				failures = append(failures, Failure{Start: sp.start, Count: len(sp.items), Err: err})
				mu.Unlock()
				return
			}
			copy(result.Outputs[sp.start:], outs)
		}(sp)
	}

	// Full drain barrier: every batch settles before Execute returns.
	wg.Wait()

	sort.Slice(failures, func(i, j int) bool { return failures[i].Start < failures[j].Start })
	result.Failures = failures

	if len(failures) == len(spans) {
		return result, failures[0].Err
	}
	return result, nil
}

// partition groups items into spans. With an extractor, batches
// accumulate greedily up to the token ceiling without ever splitting a
// single item; without one, fixed-size batches are used.
func (r *Runner[T, R]) partition(items []T, extract func(T) string) []span[T] {
	var spans []span[T]

	if extract == nil {
		for start := 0; start < len(items); start += fallbackBatchSize {
			end := start + fallbackBatchSize
			if end > len(items) {
				end = len(items)
			}
			spans = append(spans, span[T]{start: start, items: items[start:end]})
		}
		return spans
	}

	ceiling := r.cfg.maxTokensPerBatch()
	start := 0
	tokens := 0
	for i, item := range items {
		n := r.countTokens(extract(item))
		// A batch always holds at least one item, even one alone above
		// the ceiling.
		if i > start && tokens+n > ceiling {
			spans = append(spans, span[T]{start: start, items: items[start:i]})
			start = i
			tokens = 0
		}
		tokens += n
	}
	spans = append(spans, span[T]{start: start, items: items[start:]})
	return spans
}

func (r *Runner[T, R]) countTokens(text string) int {
	if r.counter != nil {
		return r.counter.CountTokens(text)
	}
	return EstimateTokens(text)
}

// runBatch executes one batch with backoff retry, and on sustained
// throttling degrades by halving the batch (round up) and running the
// halves sequentially after a short randomized pause. A single-item
// batch that stays throttled surfaces its error.
func (r *Runner[T, R]) runBatch(ctx context.Context, items []T, fn Func[T, R]) ([]R, error) {
	outs, err := r.callWithBackoff(ctx, items, fn)
	if err == nil {
		return outs, nil
	}

	if !isThrottled(err) || len(items) <= 1 {
		return nil, err
	}

	mid := (len(items) + 1) / 2
	r.logger.Debug("shrinking throttled batch", "from", len(items), "to", mid)

	if serr := sleepCtx(ctx, shrinkPause()); serr != nil {
		return nil, serr
	}
	left, err := r.runBatch(ctx, items[:mid], fn)
	if err != nil {
		return nil, err
	}
	right, err := r.runBatch(ctx, items[mid:], fn)
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

// callWithBackoff paces the call through the request limiter and
// retries throttled or transient failures with capped exponential
// backoff plus jitter. A sleeping attempt keeps its concurrency slot;
// throughput under pressure is traded for strict parallelism bounds.
func (r *Runner[T, R]) callWithBackoff(ctx context.Context, items []T, fn Func[T, R]) ([]R, error) {
	for attempt := 0; ; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		outs, err := fn(ctx, items)
		if err == nil {
			if len(outs) != len(items) {
				return nil, fmt.Errorf("executor returned %d results for %d items", len(outs), len(items))
			}
			return outs, nil
		}

		if !retryable(err) || attempt >= r.cfg.MaxRetries {
			return nil, err
		}

		delay := r.backoffDelay(attempt)
		r.logger.Debug("retrying batch",
			"attempt", attempt+1,
			"max", r.cfg.MaxRetries,
			"delay", delay,
			"error", err)
		if serr := sleepCtx(ctx, delay); serr != nil {
			return nil, serr
		}
	}
}

// backoffCap bounds a single backoff sleep.
const backoffCap = 60 * time.Second

// backoffDelay computes min(60s, base*2^attempt) plus up to 300ms of
// jitter.
func (r *Runner[T, R]) backoffDelay(attempt int) time.Duration {
	base := time.Duration(r.cfg.BaseBackoffMs) * time.Millisecond
	delay := base << uint(attempt)
	if delay > backoffCap || delay <= 0 {
		delay = backoffCap
	}
	return delay + rand.N(300*time.Millisecond)
}

// shrinkPause returns the randomized 200-400ms pause taken before
// retrying a halved batch.
func shrinkPause() time.Duration {
	return 200*time.Millisecond + rand.N(200*time.Millisecond)
}

func isThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
