package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github/itish2003/autorag/logger"
	"github/itish2003/autorag/models"
	"github/itish2003/autorag/vectorstore"
)

const DefaultSearchLimit = 5

// RAGService answers questions against a single workspace.
type RAGService interface {
	Ask(ctx context.Context, workspaceID, question string) (*models.AskResponse, error)
}

type ragServiceImpl struct {
	embedder Embedder
	store    vectorstore.Store
	answers  AnswerGenerator
	reviewer ReviewEscalator
	limit    int
}

// NewRAGService wires the query pipeline. reviewer may be nil.
func NewRAGService(embedder Embedder, store vectorstore.Store, answers AnswerGenerator, reviewer ReviewEscalator, limit int) RAGService {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return &ragServiceImpl{
		embedder: embedder,
		store:    store,
		answers:  answers,
		reviewer: reviewer,
		limit:    limit,
	}
}

func (r *ragServiceImpl) Ask(ctx context.Context, workspaceID, question string) (*models.AskResponse, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	question = strings.TrimSpace(question)
	if workspaceID == "" {
		return nil, ErrMissingWorkspace
	}
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	ctx, span := otel.Tracer("autorag/services").Start(ctx, "ask")
	defer span.End()
	span.SetAttributes(attribute.String("workspace_id", workspaceID))
	log := logger.FromContext(ctx).With("workspace_id", workspaceID)

	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vector) == 0 {
		return nil, ErrEmbeddingUnavailable
	}

	payloads, err := r.store.Search(ctx, workspaceID, vector, r.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search workspace: %w", err)
	}
	hits := make([]models.ContextHit, 0, len(payloads))
	for _, p := range payloads {
		hits = append(hits, models.ContextHitFromPayload(p))
	}
	span.SetAttributes(attribute.Int("ask.context_chunks", len(hits)))

	result, err := r.answers.Generate(ctx, question, hits)
	if err != nil {
		return nil, err
	}

	if result.NeedsHumanReview && result.State == models.StateNeedsReview && r.reviewer != nil && r.reviewer.Configured() {
		review := r.reviewer.Review(ctx, question, result)
		if !review.IsEmpty() {
			result = ApplyReview(result, review)
			log.Info("answer escalated to review workflow", "needs_human_review", result.NeedsHumanReview)
		}
	}
	log.Info("question answered", "context_chunks", len(hits), "state", result.State, "confidence", result.Confidence)

	return &models.AskResponse{
		WorkspaceID:   workspaceID,
		Question:      question,
		ContextChunks: hits,
		RAGResult:     *result,
	}, nil
}
