package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/labelkit/zeroshot/internal/model"
	"github.com/labelkit/zeroshot/pkg/anthropic"
)

const llmSystemPrompt = `You are a zero-shot text classifier. Given a text and a list of candidate labels, estimate how well each label applies to the text. Respond with only a JSON object mapping every candidate label to a confidence between 0.0 and 1.0. Confidences are independent per label and need not sum to 1.`

const llmUserPrompt = `Candidate labels: %s

Text:
%s`

// LLMScorer scores texts by prompting a Claude model for per-label
// confidences.
type LLMScorer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewLLMScorer creates a Claude-backed scorer.
func NewLLMScorer(client anthropic.Client, modelID string, maxTokens int64) *LLMScorer {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	return &LLMScorer{client: client, model: modelID, maxTokens: maxTokens}
}

// ScoreBatch implements Scorer. Texts are scored one message at a time; a
// batch is a unit of failure, not of parallelism.
func (s *LLMScorer) ScoreBatch(ctx context.Context, texts []string, labels model.LabelSet) ([][]model.LabelScore, error) {
	if len(labels) == 0 {
		return nil, eris.New("scorer: empty label set")
	}

	vectors := make([][]model.LabelScore, 0, len(texts))
	for i, text := range texts {
		vec, err := s.scoreOne(ctx, text, labels)
		if err != nil {
			return nil, eris.Wrapf(err, "scorer: text %d", i)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func (s *LLMScorer) scoreOne(ctx context.Context, text string, labels model.LabelSet) ([]model.LabelScore, error) {
	temp := 0.0
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		System:      llmSystemPrompt,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(llmUserPrompt, strings.Join(labels, ", "), text)},
		},
	})
	if err != nil {
		// API and transport failures alike mean the backend cannot score
		// right now; the caller decides whether to retry the run.
		return nil, &UnavailableError{Backend: "anthropic", Err: err}
	}

	vec, err := parseConfidences(resp.Text, labels)
	if err != nil {
		zap.L().Warn("scorer: unparseable model response",
			zap.String("model", resp.Model),
			zap.Error(err),
		)
		return nil, err
	}
	return vec, nil
}

// parseConfidences extracts a label→confidence JSON object from model
// output, validates coverage of the label set, and clamps values to [0,1].
func parseConfidences(text string, labels model.LabelSet) ([]model.LabelScore, error) {
	var byLabel map[string]float64
	if err := json.Unmarshal([]byte(cleanJSON(text)), &byLabel); err != nil {
		return nil, eris.Wrap(err, "parse confidences")
	}

	vec := make([]model.LabelScore, 0, len(labels))
	for _, l := range labels {
		score, ok := byLabel[l]
		if !ok {
			return nil, eris.Errorf("model returned no confidence for label %q", l)
		}
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		vec = append(vec, model.LabelScore{Label: l, Score: score})
	}
	return vec, nil
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
