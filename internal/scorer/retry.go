package scorer

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/labelkit/zeroshot/internal/model"
)

// ErrBackendCooldown is returned when a batch is rejected because the
// backend tripped the cooldown after repeated unavailability.
var ErrBackendCooldown = eris.New("scoring backend is cooling down")

// RetryConfig controls retry behavior with exponential backoff and jitter.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per batch (including the
	// first try). A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// InitialBackoff is the base delay before the first retry. Default: 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration. Default: 30s.
	MaxBackoff time.Duration

	// Multiplier scales the backoff after each attempt. Default: 2.0.
	Multiplier float64

	// JitterFraction adds random jitter as a fraction of the computed delay
	// (0.0 = no jitter, 0.5 = ±50%). Default: 0.25.
	JitterFraction float64

	// FailureThreshold is the number of consecutive exhausted batches before
	// the scorer starts rejecting batches outright. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long batches are rejected before the backend gets
	// another probe. Default: 30s.
	ResetTimeout time.Duration
}

// DefaultRetryConfig returns a sensible retry configuration for inference
// API calls. The model-loading 503 on cold Hugging Face models typically
// clears within the second retry.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:      3,
		InitialBackoff:   500 * time.Millisecond,
		MaxBackoff:       30 * time.Second,
		Multiplier:       2.0,
		JitterFraction:   0.25,
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// RetryScorer wraps a Scorer with retries on transient backend failures and
// a cooldown that fails fast once the backend looks down for good. Only
// UnavailableError triggers either mechanism; rejections (bad labels, bad
// request) pass through untouched.
type RetryScorer struct {
	inner Scorer
	cfg   RetryConfig

	mu                  sync.Mutex
	consecutiveFailures int
	lastFailureTime     time.Time

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewRetryScorer wraps inner with the given retry configuration.
func NewRetryScorer(inner Scorer, cfg RetryConfig) *RetryScorer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &RetryScorer{
		inner:   inner,
		cfg:     cfg,
		nowFunc: time.Now,
	}
}

func (r *RetryScorer) ScoreBatch(ctx context.Context, texts []string, labels model.LabelSet) ([][]model.LabelScore, error) {
	if err := r.allowBatch(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		scores, err := r.inner.ScoreBatch(ctx, texts, labels)
		if err == nil {
			r.recordSuccess()
			return scores, nil
		}
		lastErr = err

		// Cancellation and outright rejections are not retried.
		if ctx.Err() != nil || !IsUnavailable(err) {
			return nil, lastErr
		}

		if attempt >= r.cfg.MaxAttempts-1 {
			break
		}

		delay := r.backoff(attempt)
		zap.L().Warn("retrying batch after backend failure",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, lastErr
		case <-timer.C:
		}
	}

	r.recordFailure()
	return nil, lastErr
}

// allowBatch rejects the batch while the cooldown window is active.
func (r *RetryScorer) allowBatch() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.consecutiveFailures < r.cfg.FailureThreshold {
		return nil
	}
	if r.nowFunc().Sub(r.lastFailureTime) >= r.cfg.ResetTimeout {
		// Let one probe batch through.
		return nil
	}
	return ErrBackendCooldown
}

func (r *RetryScorer) recordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consecutiveFailures = 0
}

func (r *RetryScorer) recordFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consecutiveFailures++
	r.lastFailureTime = r.nowFunc()
	if r.consecutiveFailures == r.cfg.FailureThreshold {
		zap.L().Warn("scoring backend entering cooldown",
			zap.Int("consecutive_failures", r.consecutiveFailures),
			zap.Duration("reset_timeout", r.cfg.ResetTimeout),
		)
	}
}

func (r *RetryScorer) backoff(attempt int) time.Duration {
	delay := float64(r.cfg.InitialBackoff) * math.Pow(r.cfg.Multiplier, float64(attempt))
	if delay > float64(r.cfg.MaxBackoff) {
		delay = float64(r.cfg.MaxBackoff)
	}

	// Apply jitter: ±JitterFraction of delay.
	if r.cfg.JitterFraction > 0 {
		jitterRange := delay * r.cfg.JitterFraction
		delay += (rand.Float64()*2 - 1) * jitterRange
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
