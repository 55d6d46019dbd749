package services

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github/itish2003/autorag/config"
	"github/itish2003/autorag/logger"
	"github/itish2003/autorag/models"
)

const reviewTimeout = 30 * time.Second

// ReviewEscalator submits low-confidence answers to an external review
// workflow. Review never fails the request: any problem yields an empty result.
type ReviewEscalator interface {
	Configured() bool
	Review(ctx context.Context, question string, base *models.AnswerResult) models.ReviewResult
}

type reviewRequest struct {
	WorkflowID string      `json:"workflow_id"`
	Input      reviewInput `json:"input"`
}

type reviewInput struct {
	Question   string            `json:"question"`
	Answer     string            `json:"answer"`
	Confidence float64           `json:"confidence"`
	Citations  []models.Citation `json:"citations"`
}

type reviewEscalatorImpl struct {
	client     *resty.Client
	runURL     string
	apiKey     string
	workflowID string
}

// NewReviewEscalator creates the review workflow client from cfg.
func NewReviewEscalator(cfg *config.Config) ReviewEscalator {
	return &reviewEscalatorImpl{
		client:     resty.New().SetTimeout(reviewTimeout),
		runURL:     cfg.OpusRunURL,
		apiKey:     strings.TrimSpace(cfg.OpusAPIKey),
		workflowID: strings.TrimSpace(cfg.OpusWorkflowID),
	}
}

func (r *reviewEscalatorImpl) Configured() bool {
	return r.apiKey != "" && r.workflowID != "" && r.runURL != ""
}

func (r *reviewEscalatorImpl) Review(ctx context.Context, question string, base *models.AnswerResult) models.ReviewResult {
	if !r.Configured() || base == nil {
		return models.ReviewResult{}
	}
	ctx, span := otel.Tracer("autorag/services").Start(ctx, "review.escalate")
	defer span.End()
	log := logger.FromContext(ctx)

	citations := base.Citations
	if citations == nil {
		citations = []models.Citation{}
	}
	var out models.ReviewResult
	resp, err := r.client.R().
		SetContext(ctx).
		SetAuthToken(r.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(reviewRequest{
			WorkflowID: r.workflowID,
			Input: reviewInput{
				Question:   question,
				Answer:     base.Answer,
				Confidence: base.Confidence,
				Citations:  citations,
			},
		}).
		SetResult(&out).
		Post(r.runURL)
	if err != nil {
		log.Warn("review workflow unreachable", "error", err)
		span.SetAttributes(attribute.Bool("review.failed", true))
		return models.ReviewResult{}
	}
	if resp.IsError() {
		log.Warn("review workflow rejected request", "status", resp.StatusCode())
		span.SetAttributes(attribute.Bool("review.failed", true), attribute.Int("review.status", resp.StatusCode()))
		return models.ReviewResult{}
	}
	span.SetAttributes(attribute.Bool("review.empty", out.IsEmpty()))
	return out
}

// ApplyReview overlays a non-empty review onto base. Blank or absent fields
// keep the base values.
func ApplyReview(base *models.AnswerResult, review models.ReviewResult) *models.AnswerResult {
	if base == nil || review.IsEmpty() {
		return base
	}
	merged := *base
	if review.ApprovedAnswer != nil && strings.TrimSpace(*review.ApprovedAnswer) != "" {
		merged.Answer = *review.ApprovedAnswer
	}
	if review.NeedsHumanReview != nil {
		merged.NeedsHumanReview = *review.NeedsHumanReview
	}
	if review.ReviewComment != nil {
		merged.ReviewComment = *review.ReviewComment
	}
	if len(review.Citations) > 0 {
		merged.Citations = review.Citations
	}
	merged.State = models.StateEscalated
	return &merged
}
