package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/itish2003/autorag/models"
	"github/itish2003/autorag/services"
	"github/itish2003/autorag/vectorstore"
)

type stubIngest struct {
	workspace string
	files     []models.UploadedFile
	n         int
	err       error
}

func (s *stubIngest) Ingest(_ context.Context, workspaceID string, files []models.UploadedFile) (int, error) {
	s.workspace = workspaceID
	s.files = files
	if len(files) == 0 {
		return 0, services.ErrNoFiles
	}
	return s.n, s.err
}

type stubRAG struct {
	resp *models.AskResponse
	err  error
}

func (s *stubRAG) Ask(_ context.Context, workspaceID, question string) (*models.AskResponse, error) {
	if strings.TrimSpace(question) == "" {
		return nil, services.ErrEmptyQuestion
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.resp != nil {
		return s.resp, nil
	}
	return &models.AskResponse{WorkspaceID: workspaceID, Question: question, ContextChunks: []models.ContextHit{}}, nil
}

func newTestRouter(ingest services.IngestService, rag services.RAGService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewRAGController(ingest, rag), []string{"*"})
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&stubIngest{}, &stubRAG{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestUpload(t *testing.T) {
	t.Run("ShouldIndexUploadedFiles", func(t *testing.T) {
		ingest := &stubIngest{n: 3}
		router := newTestRouter(ingest, &stubRAG{})
		body, contentType := multipartBody(t, map[string]string{"notes.txt": "hello"})

		req := httptest.NewRequest(http.MethodPost, "/api/workspaces/acme/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"workspace_id":"acme","chunks_indexed":3}`, rec.Body.String())
		assert.Equal(t, "acme", ingest.workspace)
		require.Len(t, ingest.files, 1)
		assert.Equal(t, "notes.txt", ingest.files[0].Filename)
		assert.Equal(t, "hello", string(ingest.files[0].Data))
	})

	t.Run("ShouldRejectUploadWithoutFiles", func(t *testing.T) {
		router := newTestRouter(&stubIngest{}, &stubRAG{})
		body, contentType := multipartBody(t, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/workspaces/acme/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"At least one file must be provided."}`, rec.Body.String())
	})

	t.Run("ShouldRejectNonMultipartBody", func(t *testing.T) {
		router := newTestRouter(&stubIngest{}, &stubRAG{})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/workspaces/acme/upload", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "At least one file must be provided.")
	})

	t.Run("ShouldHideInternalFailures", func(t *testing.T) {
		router := newTestRouter(&stubIngest{err: errors.New("qdrant down")}, &stubRAG{})
		body, contentType := multipartBody(t, map[string]string{"a.txt": "x"})

		req := httptest.NewRequest(http.MethodPost, "/api/workspaces/acme/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "qdrant")
	})
}

func TestAsk(t *testing.T) {
	t.Run("ShouldReturnRAGResponse", func(t *testing.T) {
		followup := "Which product?"
		rag := &stubRAG{resp: &models.AskResponse{
			WorkspaceID:   "acme",
			Question:      "warranty?",
			ContextChunks: []models.ContextHit{{Text: "two years", Source: "w.pdf", ChunkIndex: 1}},
			RAGResult: models.AnswerResult{
				Answer:           "Two years.",
				Confidence:       0.5,
				Citations:        []models.Citation{{Source: "w.pdf", ChunkIndex: 1}},
				NeedsHumanReview: true,
				FollowupQuestion: &followup,
				State:            models.StateNeedsReview,
			},
		}}
		router := newTestRouter(&stubIngest{}, rag)

		req := httptest.NewRequest(http.MethodPost, "/api/workspaces/acme/ask", strings.NewReader(`{"question":"warranty?"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var got map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "acme", got["workspace_id"])
		chunks := got["context_chunks"].([]any)
		assert.Equal(t, "w.pdf", chunks[0].(map[string]any)["source"])
		result := got["rag_result"].(map[string]any)
		assert.Equal(t, true, result["needs_human_review"])
		assert.Equal(t, "Which product?", result["followup_question"])
	})

	t.Run("ShouldRejectBlankQuestion", func(t *testing.T) {
		router := newTestRouter(&stubIngest{}, &stubRAG{})
		for _, body := range []string{`{"question":"   "}`, `{}`, ``} {
			req := httptest.NewRequest(http.MethodPost, "/api/workspaces/acme/ask", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
			assert.JSONEq(t, `{"error":"Question is required."}`, rec.Body.String())
		}
	})

	t.Run("ShouldRejectMalformedJSON", func(t *testing.T) {
		router := newTestRouter(&stubIngest{}, &stubRAG{})
		req := httptest.NewRequest(http.MethodPost, "/api/workspaces/acme/ask", strings.NewReader(`{"question":`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ShouldMapPipelineFailureTo500", func(t *testing.T) {
		router := newTestRouter(&stubIngest{}, &stubRAG{err: services.ErrEmbeddingUnavailable})
		req := httptest.NewRequest(http.MethodPost, "/api/workspaces/acme/ask", strings.NewReader(`{"question":"hi"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := vectorstore.NewMemoryStore(4)
	embedder := constantEmbedder{vec: []float32{1, 0, 0, 0}}
	ingest := services.NewIngestService(services.NewExtractor(nil, nil, ""), embedder, store, services.DefaultMaxChars)
	rag := services.NewRAGService(embedder, store, services.NewAnswerGenerator(nil, services.DefaultReviewThreshold), nil, 5)
	router := NewRouter(NewRAGController(ingest, rag), []string{"*"})

	t.Run("ShouldAnswerFromEmptyWorkspaceWithFollowup", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/workspaces/new-ws/ask", strings.NewReader(`{"question":"anything?"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var got models.AskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Empty(t, got.ContextChunks)
		assert.Equal(t, 0.0, got.RAGResult.Confidence)
		assert.True(t, got.RAGResult.NeedsHumanReview)
		require.NotNil(t, got.RAGResult.FollowupQuestion)
		assert.NotEmpty(t, *got.RAGResult.FollowupQuestion)
	})

	t.Run("ShouldIndexOneChunkForShortDocument", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string]string{"doc.txt": "Intro.\n\nBody text here.\n\nConclusion."})
		req := httptest.NewRequest(http.MethodPost, "/api/workspaces/ws-1/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"workspace_id":"ws-1","chunks_indexed":1}`, rec.Body.String())
		assert.Equal(t, 1, store.Len())
	})
}

type constantEmbedder struct{ vec []float32 }

func (c constantEmbedder) Embed(context.Context, string) ([]float32, error) {
	return c.vec, nil
}
