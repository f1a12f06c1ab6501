package scorer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelkit/zeroshot/internal/model"
)

// flakyScorer fails the first failures calls with err, then succeeds.
type flakyScorer struct {
	failures int
	err      error
	calls    int
}

func (f *flakyScorer) ScoreBatch(_ context.Context, texts []string, labels model.LabelSet) ([][]model.LabelScore, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	out := make([][]model.LabelScore, len(texts))
	for i := range texts {
		for _, label := range labels {
			out[i] = append(out[i], model.LabelScore{Label: label, Score: 0.5})
		}
	}
	return out, nil
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:      3,
		InitialBackoff:   time.Millisecond,
		MaxBackoff:       5 * time.Millisecond,
		Multiplier:       2.0,
		JitterFraction:   0,
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
	}
}

func TestRetryScorer_RecoversFromTransientFailure(t *testing.T) {
	inner := &flakyScorer{failures: 2, err: &UnavailableError{Backend: "huggingface", StatusCode: 503}}
	r := NewRetryScorer(inner, fastRetryConfig())

	scores, err := r.ScoreBatch(context.Background(), []string{"some text"}, model.LabelSet{"a", "b"})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryScorer_DoesNotRetryRejections(t *testing.T) {
	inner := &flakyScorer{failures: 10, err: errors.New("request rejected: unknown label")}
	r := NewRetryScorer(inner, fastRetryConfig())

	_, err := r.ScoreBatch(context.Background(), []string{"some text"}, model.LabelSet{"a"})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryScorer_ExhaustsAttempts(t *testing.T) {
	inner := &flakyScorer{failures: 10, err: &UnavailableError{Backend: "huggingface", StatusCode: 503}}
	r := NewRetryScorer(inner, fastRetryConfig())

	_, err := r.ScoreBatch(context.Background(), []string{"some text"}, model.LabelSet{"a"})
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, 3, inner.calls)
}

func TestRetryScorer_CooldownRejectsBatches(t *testing.T) {
	inner := &flakyScorer{failures: 100, err: &UnavailableError{Backend: "huggingface", StatusCode: 503}}
	r := NewRetryScorer(inner, fastRetryConfig())

	ctx := context.Background()
	labels := model.LabelSet{"a"}

	// Two exhausted batches reach the failure threshold.
	for range 2 {
		_, err := r.ScoreBatch(ctx, []string{"x"}, labels)
		require.Error(t, err)
	}
	callsBefore := inner.calls

	_, err := r.ScoreBatch(ctx, []string{"x"}, labels)
	require.ErrorIs(t, err, ErrBackendCooldown)
	assert.Equal(t, callsBefore, inner.calls, "cooldown must not hit the backend")
}

func TestRetryScorer_ProbeAfterResetTimeout(t *testing.T) {
	inner := &flakyScorer{failures: 6, err: &UnavailableError{Backend: "huggingface", StatusCode: 503}}
	r := NewRetryScorer(inner, fastRetryConfig())

	now := time.Now()
	r.nowFunc = func() time.Time { return now }

	ctx := context.Background()
	labels := model.LabelSet{"a"}

	for range 2 {
		_, err := r.ScoreBatch(ctx, []string{"x"}, labels)
		require.Error(t, err)
	}
	_, err := r.ScoreBatch(ctx, []string{"x"}, labels)
	require.ErrorIs(t, err, ErrBackendCooldown)

	// After the reset timeout a probe batch goes through and succeeds
	// (the inner scorer has recovered by then).
	now = now.Add(2 * time.Minute)
	_, err = r.ScoreBatch(ctx, []string{"x"}, labels)
	require.NoError(t, err)

	// Success closes the cooldown.
	_, err = r.ScoreBatch(ctx, []string{"x"}, labels)
	assert.NoError(t, err)
}

func TestRetryScorer_ContextCancellationStopsRetries(t *testing.T) {
	inner := &flakyScorer{failures: 100, err: &UnavailableError{Backend: "huggingface", StatusCode: 503}}
	r := NewRetryScorer(inner, RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Hour, // never elapses
		JitterFraction: 0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.ScoreBatch(ctx, []string{"x"}, model.LabelSet{"a"})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}
