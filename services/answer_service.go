package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github/itish2003/autorag/logger"
	"github/itish2003/autorag/models"
)

const (
	// DefaultReviewThreshold is the confidence below which an answer needs review.
	DefaultReviewThreshold = 0.6

	NoContextAnswer = "I cannot answer this because there is no relevant context yet. Please upload some documents first."
	// GenericFollowup is used when no generation model is configured.
	GenericFollowup = "Can you clarify or provide more details?"
	// EmptyFollowup is used when the model returned no follow-up text.
	EmptyFollowup = "Can you clarify your question?"

	fallbackConfidence = 0.5
)

// AnswerGenerator produces a grounded, confidence-gated answer from context hits.
type AnswerGenerator interface {
	Generate(ctx context.Context, question string, hits []models.ContextHit) (*models.AnswerResult, error)
}

type answerGeneratorImpl struct {
	llm       TextGenerator
	threshold float64
}

// NewAnswerGenerator builds an AnswerGenerator. A nil llm behaves like an
// unconfigured model.
func NewAnswerGenerator(llm TextGenerator, threshold float64) AnswerGenerator {
	if threshold < 0 || threshold > 1 {
		threshold = DefaultReviewThreshold
	}
	return &answerGeneratorImpl{llm: llm, threshold: threshold}
}

func (a *answerGeneratorImpl) available() bool {
	return a.llm != nil && a.llm.Available()
}

func (a *answerGeneratorImpl) Generate(ctx context.Context, question string, hits []models.ContextHit) (*models.AnswerResult, error) {
	ctx, span := otel.Tracer("autorag/services").Start(ctx, "answer.generate")
	defer span.End()
	log := logger.FromContext(ctx)

	if len(hits) == 0 {
		followup := GenericFollowup
		span.SetAttributes(attribute.String("answer.state", string(models.StateNoContext)))
		return &models.AnswerResult{
			Answer:           NoContextAnswer,
			Confidence:       0,
			Citations:        []models.Citation{},
			NeedsHumanReview: true,
			FollowupQuestion: &followup,
			State:            models.StateNoContext,
		}, nil
	}

	var result *models.AnswerResult
	if !a.available() {
		log.Warn("answer generation skipped: model not configured")
		result = &models.AnswerResult{Citations: []models.Citation{}}
	} else {
		prompt, err := buildAnswerPrompt(question, hits, a.threshold)
		if err != nil {
			return nil, err
		}
		raw, err := a.llm.Generate(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("failed to generate answer: %w", err)
		}
		result = ParseAnswer(raw)
	}

	result.NeedsHumanReview = result.Confidence < a.threshold
	result.State = models.StateAnswered
	if result.NeedsHumanReview {
		result.State = models.StateNeedsReview
		followup := a.followup(ctx, question, result.Answer, hits)
		result.FollowupQuestion = &followup
	}
	span.SetAttributes(
		attribute.Float64("answer.confidence", result.Confidence),
		attribute.String("answer.state", string(result.State)),
	)
	log.Debug("answer generated", "confidence", result.Confidence, "state", result.State, "citations", len(result.Citations))
	return result, nil
}

// followup asks the model for one clarifying question. It never fails: an
// unconfigured model yields GenericFollowup, while a generation error or empty
// output yields EmptyFollowup so the answer itself is still returned.
func (a *answerGeneratorImpl) followup(ctx context.Context, question, answer string, hits []models.ContextHit) string {
	if !a.available() {
		return GenericFollowup
	}
	prompt, err := buildFollowupPrompt(question, answer, hits)
	if err != nil {
		logger.FromContext(ctx).Warn("follow-up prompt failed", "error", err)
		return EmptyFollowup
	}
	text, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		logger.FromContext(ctx).Warn("follow-up generation failed", "error", err)
		return EmptyFollowup
	}
	if text = strings.TrimSpace(text); text == "" {
		return EmptyFollowup
	}
	return text
}

// ParseAnswer decodes a model response into an AnswerResult. When no JSON
// object can be recovered the raw text becomes the answer with confidence 0.5
// and no citations. The review flag and state are left for the caller to set.
func ParseAnswer(raw string) *models.AnswerResult {
	raw = strings.TrimSpace(raw)
	obj, ok := ExtractJSONObject(raw)
	if !ok {
		return degraded(raw)
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return degraded(raw)
	}

	answer, _ := fields["answer"].(string)
	return &models.AnswerResult{
		Answer:     answer,
		Confidence: parseConfidence(fields["confidence"]),
		Citations:  parseCitations(fields["citations"]),
	}
}

func degraded(raw string) *models.AnswerResult {
	return &models.AnswerResult{
		Answer:     raw,
		Confidence: fallbackConfidence,
		Citations:  []models.Citation{},
	}
}

// parseConfidence accepts numbers, numeric strings and booleans (true is 1);
// anything else is 0. Values are clamped to [0, 1].
func parseConfidence(v any) float64 {
	var c float64
	switch t := v.(type) {
	case float64:
		c = t
	case bool:
		if t {
			c = 1
		}
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		c = f
	default:
		return 0
	}
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

func parseCitations(v any) []models.Citation {
	items, ok := v.([]any)
	if !ok {
		return []models.Citation{}
	}
	out := make([]models.Citation, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		source, _ := m["source"].(string)
		idx := -1
		switch n := m["chunk_index"].(type) {
		case float64:
			idx = int(n)
		case string:
			if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				idx = parsed
			}
		}
		out = append(out, models.Citation{Source: source, ChunkIndex: idx})
	}
	return out
}
