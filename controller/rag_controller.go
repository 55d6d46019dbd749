package controller

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github/itish2003/autorag/logger"
	"github/itish2003/autorag/models"
	"github/itish2003/autorag/services"
)

const (
	msgNoFiles       = "At least one file must be provided."
	msgNoQuestion    = "Question is required."
	msgNoWorkspace   = "Workspace id is required."
	msgIngestFailed  = "Failed to ingest files"
	msgAskFailed     = "Failed to answer question"
	workspaceIDParam = "workspace_id"
)

// RAGController exposes ingestion and question answering over HTTP.
type RAGController struct {
	ingestService services.IngestService
	ragService    services.RAGService
}

// NewRAGController creates a controller over the ingest and query services.
func NewRAGController(ingest services.IngestService, rag services.RAGService) *RAGController {
	return &RAGController{
		ingestService: ingest,
		ragService:    rag,
	}
}

// RegisterRoutes mounts the API on router.
func (c *RAGController) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", c.Health)
	workspaces := router.Group("/api/workspaces/:" + workspaceIDParam)
	{
		workspaces.POST("/upload", c.Upload)
		workspaces.POST("/ask", c.Ask)
	}
}

// Health handles GET /health.
func (c *RAGController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Upload handles POST /api/workspaces/:workspace_id/upload with multipart "files".
func (c *RAGController) Upload(ctx *gin.Context) {
	workspaceID := strings.TrimSpace(ctx.Param(workspaceIDParam))
	log := logger.FromContext(ctx.Request.Context()).With("workspace_id", workspaceID)

	files, err := readUploadedFiles(ctx)
	if err != nil {
		log.Error("failed to read uploaded files", "error", err)
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid multipart body: " + err.Error()})
		return
	}

	n, err := c.ingestService.Ingest(ctx.Request.Context(), workspaceID, files)
	if err != nil {
		if status, msg, ok := validationResponse(err); ok {
			ctx.JSON(status, models.ErrorResponse{Error: msg})
			return
		}
		log.Error("ingestion failed", "error", err, "chunks_indexed", n)
		ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msgIngestFailed})
		return
	}

	ctx.JSON(http.StatusOK, models.UploadResponse{WorkspaceID: workspaceID, ChunksIndexed: n})
}

// Ask handles POST /api/workspaces/:workspace_id/ask.
func (c *RAGController) Ask(ctx *gin.Context) {
	workspaceID := strings.TrimSpace(ctx.Param(workspaceIDParam))
	log := logger.FromContext(ctx.Request.Context()).With("workspace_id", workspaceID)

	var req models.AskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	resp, err := c.ragService.Ask(ctx.Request.Context(), workspaceID, req.Question)
	if err != nil {
		if status, msg, ok := validationResponse(err); ok {
			ctx.JSON(status, models.ErrorResponse{Error: msg})
			return
		}
		log.Error("ask failed", "error", err)
		ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msgAskFailed})
		return
	}

	ctx.JSON(http.StatusOK, resp)
}

func readUploadedFiles(ctx *gin.Context) ([]models.UploadedFile, error) {
	form, err := ctx.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return nil, nil
		}
		return nil, err
	}
	headers := form.File["files"]
	files := make([]models.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, models.UploadedFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

func validationResponse(err error) (int, string, bool) {
	switch {
	case errors.Is(err, services.ErrNoFiles):
		return http.StatusBadRequest, msgNoFiles, true
	case errors.Is(err, services.ErrEmptyQuestion):
		return http.StatusBadRequest, msgNoQuestion, true
	case errors.Is(err, services.ErrMissingWorkspace):
		return http.StatusBadRequest, msgNoWorkspace, true
	}
	return 0, "", false
}
