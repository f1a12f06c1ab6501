package scorer

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/labelkit/zeroshot/internal/model"
	"github.com/labelkit/zeroshot/pkg/huggingface"
)

// HFScorer scores texts through the Hugging Face Inference API zero-shot
// pipeline (an NLI model reframing labeling as entailment).
type HFScorer struct {
	client     huggingface.Client
	multiLabel bool
}

// NewHFScorer creates a scorer backed by the given Inference API client.
// With multiLabel set, labels are scored independently and need not sum
// to one; otherwise the backend softmax-normalizes across labels.
func NewHFScorer(client huggingface.Client, multiLabel bool) *HFScorer {
	return &HFScorer{client: client, multiLabel: multiLabel}
}

// ScoreBatch implements Scorer. The whole batch goes to the API in a single
// request.
func (s *HFScorer) ScoreBatch(ctx context.Context, texts []string, labels model.LabelSet) ([][]model.LabelScore, error) {
	if len(labels) == 0 {
		return nil, eris.New("scorer: empty label set")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := s.client.ZeroShot(ctx, huggingface.ZeroShotRequest{
		Inputs: texts,
		Parameters: huggingface.Parameters{
			CandidateLabels: labels,
			MultiLabel:      s.multiLabel,
		},
		Options: huggingface.Options{WaitForModel: true},
	})
	if err != nil {
		return nil, s.classifyError(err)
	}

	if len(resp) != len(texts) {
		return nil, eris.Errorf("scorer: huggingface returned %d results for %d inputs", len(resp), len(texts))
	}

	vectors := make([][]model.LabelScore, len(resp))
	for i, r := range resp {
		vec, err := toDeclaredOrder(r, labels)
		if err != nil {
			return nil, eris.Wrapf(err, "scorer: input %d", i)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// classifyError maps transport failures and transient API statuses to
// UnavailableError so callers can distinguish "backend down" from
// "request wrong".
func (s *HFScorer) classifyError(err error) error {
	var apiErr *huggingface.APIError
	if errors.As(err, &apiErr) {
		if isTransientStatus(apiErr.StatusCode) {
			if apiErr.EstimatedTime > 0 {
				zap.L().Warn("scorer: model loading on backend",
					zap.Float64("estimated_secs", apiErr.EstimatedTime),
				)
			}
			return &UnavailableError{Backend: "huggingface", StatusCode: apiErr.StatusCode, Err: err}
		}
		return eris.Wrap(err, "scorer: huggingface request rejected")
	}
	if isTransportError(err) {
		return &UnavailableError{Backend: "huggingface", Err: err}
	}
	return eris.Wrap(err, "scorer: huggingface")
}

// toDeclaredOrder remaps the API's descending-score ordering onto the
// declared candidate order and validates the contract: one score per label,
// each in [0,1].
func toDeclaredOrder(r huggingface.ZeroShotResponse, labels model.LabelSet) ([]model.LabelScore, error) {
	if len(r.Labels) != len(r.Scores) {
		return nil, eris.Errorf("mismatched labels (%d) and scores (%d)", len(r.Labels), len(r.Scores))
	}

	byLabel := make(map[string]float64, len(r.Labels))
	for i, l := range r.Labels {
		byLabel[l] = r.Scores[i]
	}

	vec := make([]model.LabelScore, 0, len(labels))
	for _, l := range labels {
		score, ok := byLabel[l]
		if !ok {
			return nil, eris.Errorf("backend returned no score for label %q", l)
		}
		if score < 0 || score > 1 {
			return nil, eris.Errorf("score %f for label %q outside [0,1]", score, l)
		}
		vec = append(vec, model.LabelScore{Label: l, Score: score})
	}
	return vec, nil
}
