package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/itish2003/autorag/models"
	"github/itish2003/autorag/vectorstore"
)

func seed(t *testing.T, store vectorstore.Store, workspace, filename, text string) {
	t.Helper()
	chunk := models.Chunk{WorkspaceID: workspace, Filename: filename, ChunkIndex: 0, Text: text}
	_, err := store.Upsert(context.Background(), workspace, histogram(text), chunk.Payload())
	require.NoError(t, err)
}

func TestRAGService_Ask(t *testing.T) {
	ctx := context.Background()

	t.Run("ShouldReturnNoContextResultForEmptyWorkspace", func(t *testing.T) {
		llm := newFakeLLM()
		svc := NewRAGService(&fakeEmbedder{}, vectorstore.NewMemoryStore(testDim), NewAnswerGenerator(llm, DefaultReviewThreshold), nil, 5)

		resp, err := svc.Ask(ctx, "fresh", "  What is covered?  ")
		require.NoError(t, err)
		assert.Equal(t, "fresh", resp.WorkspaceID)
		assert.Equal(t, "What is covered?", resp.Question)
		assert.Empty(t, resp.ContextChunks)
		assert.Equal(t, 0.0, resp.RAGResult.Confidence)
		assert.True(t, resp.RAGResult.NeedsHumanReview)
		require.NotNil(t, resp.RAGResult.FollowupQuestion)
		assert.NotEmpty(t, *resp.RAGResult.FollowupQuestion)
		assert.Zero(t, llm.calls())
	})

	t.Run("ShouldRetrieveOnlyFromOwnWorkspace", func(t *testing.T) {
		store := vectorstore.NewMemoryStore(testDim)
		seed(t, store, "ws-a", "a.txt", "shared words")
		seed(t, store, "ws-b", "b.txt", "shared words")
		llm := newFakeLLM(`{"answer":"from a","confidence":0.9,"citations":[{"source":"a.txt","chunk_index":0}]}`)
		svc := NewRAGService(&fakeEmbedder{}, store, NewAnswerGenerator(llm, DefaultReviewThreshold), nil, 5)

		resp, err := svc.Ask(ctx, "ws-a", "shared words")
		require.NoError(t, err)
		require.Len(t, resp.ContextChunks, 1)
		assert.Equal(t, models.ContextHit{Text: "shared words", Source: "a.txt", ChunkIndex: 0}, resp.ContextChunks[0])
		assert.Equal(t, models.StateAnswered, resp.RAGResult.State)
		assert.NotContains(t, llm.prompts[0], "b.txt")
	})

	t.Run("ShouldRespectSearchLimit", func(t *testing.T) {
		store := vectorstore.NewMemoryStore(testDim)
		for _, text := range []string{"one", "two", "three", "four"} {
			seed(t, store, "ws", text+".txt", text)
		}
		svc := NewRAGService(&fakeEmbedder{}, store, NewAnswerGenerator(newFakeLLM(`{"answer":"a","confidence":1}`), DefaultReviewThreshold), nil, 2)

		resp, err := svc.Ask(ctx, "ws", "one")
		require.NoError(t, err)
		assert.Len(t, resp.ContextChunks, 2)
	})

	t.Run("ShouldEscalateLowConfidenceAnswers", func(t *testing.T) {
		store := vectorstore.NewMemoryStore(testDim)
		seed(t, store, "ws", "policy.md", "refunds within 30 days")
		reviewer := &fakeReviewer{configured: true, result: models.ReviewResult{
			ApprovedAnswer: strPtr("Refunds are accepted within 30 days."),
			ReviewComment:  strPtr("confirmed"),
		}}
		llm := newFakeLLM(`{"answer":"maybe 30 days","confidence":0.3}`, "Which purchase?")
		svc := NewRAGService(&fakeEmbedder{}, store, NewAnswerGenerator(llm, DefaultReviewThreshold), reviewer, 5)

		resp, err := svc.Ask(ctx, "ws", "refund window?")
		require.NoError(t, err)
		assert.Equal(t, 1, reviewer.calls)
		r := resp.RAGResult
		assert.Equal(t, models.StateEscalated, r.State)
		assert.Equal(t, "Refunds are accepted within 30 days.", r.Answer)
		assert.Equal(t, "confirmed", r.ReviewComment)
		assert.True(t, r.NeedsHumanReview)
		require.NotNil(t, r.FollowupQuestion)
		assert.Equal(t, "Which purchase?", *r.FollowupQuestion)
	})

	t.Run("ShouldKeepBaseResultWhenReviewEmpty", func(t *testing.T) {
		store := vectorstore.NewMemoryStore(testDim)
		seed(t, store, "ws", "policy.md", "refunds")
		reviewer := &fakeReviewer{configured: true}
		llm := newFakeLLM(`{"answer":"unsure","confidence":0.2}`, "More detail?")
		svc := NewRAGService(&fakeEmbedder{}, store, NewAnswerGenerator(llm, DefaultReviewThreshold), reviewer, 5)

		resp, err := svc.Ask(ctx, "ws", "refunds")
		require.NoError(t, err)
		assert.Equal(t, 1, reviewer.calls)
		assert.Equal(t, models.StateNeedsReview, resp.RAGResult.State)
		assert.Equal(t, "unsure", resp.RAGResult.Answer)
	})

	t.Run("ShouldNotEscalateConfidentOrEmptyContextAnswers", func(t *testing.T) {
		store := vectorstore.NewMemoryStore(testDim)
		seed(t, store, "ws", "a.txt", "alpha")
		reviewer := &fakeReviewer{configured: true, result: models.ReviewResult{ReviewComment: strPtr("x")}}
		svc := NewRAGService(&fakeEmbedder{}, store, NewAnswerGenerator(newFakeLLM(`{"answer":"a","confidence":0.95}`), DefaultReviewThreshold), reviewer, 5)

		_, err := svc.Ask(ctx, "ws", "alpha")
		require.NoError(t, err)
		_, err = svc.Ask(ctx, "empty-ws", "alpha")
		require.NoError(t, err)
		assert.Zero(t, reviewer.calls)
	})

	t.Run("ShouldRejectBlankQuestion", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		svc := NewRAGService(embedder, vectorstore.NewMemoryStore(testDim), NewAnswerGenerator(nil, DefaultReviewThreshold), nil, 5)
		_, err := svc.Ask(ctx, "ws", "   ")
		assert.ErrorIs(t, err, ErrEmptyQuestion)
		assert.Empty(t, embedder.calls)
	})

	t.Run("ShouldFailWhenQuestionCannotBeEmbedded", func(t *testing.T) {
		svc := NewRAGService(&fakeEmbedder{empty: true}, vectorstore.NewMemoryStore(testDim), NewAnswerGenerator(nil, DefaultReviewThreshold), nil, 5)
		_, err := svc.Ask(ctx, "ws", "anything")
		assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
		assert.False(t, IsValidationError(err))

		svc = NewRAGService(&fakeEmbedder{err: errors.New("network down")}, vectorstore.NewMemoryStore(testDim), NewAnswerGenerator(nil, DefaultReviewThreshold), nil, 5)
		_, err = svc.Ask(ctx, "ws", "anything")
		require.ErrorIs(t, err, ErrEmbeddingUnavailable)
		assert.Contains(t, err.Error(), "network down")
	})
}
