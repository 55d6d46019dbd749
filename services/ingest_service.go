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

// IngestService indexes uploaded files into a workspace.
type IngestService interface {
	// Ingest extracts, chunks, embeds and stores every file in order and
	// returns how many chunks were written. The first hard failure aborts the
	// batch; chunks already written stay indexed.
	Ingest(ctx context.Context, workspaceID string, files []models.UploadedFile) (int, error)
}

type ingestServiceImpl struct {
	extractor Extractor
	embedder  Embedder
	store     vectorstore.Store
	maxChars  int
}

// NewIngestService wires the extract, chunk, embed and upsert pipeline.
func NewIngestService(extractor Extractor, embedder Embedder, store vectorstore.Store, maxChars int) IngestService {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &ingestServiceImpl{
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		maxChars:  maxChars,
	}
}

func (s *ingestServiceImpl) Ingest(ctx context.Context, workspaceID string, files []models.UploadedFile) (int, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return 0, ErrMissingWorkspace
	}
	if len(files) == 0 {
		return 0, ErrNoFiles
	}
	ctx, span := otel.Tracer("autorag/services").Start(ctx, "ingest")
	defer span.End()
	span.SetAttributes(attribute.String("workspace_id", workspaceID), attribute.Int("ingest.files", len(files)))
	log := logger.FromContext(ctx).With("workspace_id", workspaceID)

	indexed := 0
	for _, file := range files {
		n, err := s.ingestFile(ctx, workspaceID, file)
		indexed += n
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.Int("ingest.chunks_indexed", indexed))
			return indexed, err
		}
		log.Info("file ingested", "filename", file.Filename, "chunks", n)
	}
	span.SetAttributes(attribute.Int("ingest.chunks_indexed", indexed))
	return indexed, nil
}

func (s *ingestServiceImpl) ingestFile(ctx context.Context, workspaceID string, file models.UploadedFile) (int, error) {
	log := logger.FromContext(ctx)
	text, err := s.extractor.Extract(ctx, file)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(text) == "" {
		log.Warn("no text extracted; skipping file", "filename", file.Filename)
		return 0, nil
	}

	indexed := 0
	chunks := ChunkText(text, s.maxChars)
	for i, chunkText := range chunks {
		vector, err := s.embedder.Embed(ctx, chunkText)
		if err != nil {
			return indexed, fmt.Errorf("failed to embed chunk %d of %s: %w", i, file.Filename, err)
		}
		if len(vector) == 0 {
			log.Warn("embedding unavailable; skipping chunk", "filename", file.Filename, "chunk_index", i)
			continue
		}
		chunk := models.Chunk{
			WorkspaceID: workspaceID,
			Filename:    file.Filename,
			ChunkIndex:  i,
			Text:        chunkText,
		}
		if _, err := s.store.Upsert(ctx, workspaceID, vector, chunk.Payload()); err != nil {
			return indexed, fmt.Errorf("failed to store chunk %d of %s: %w", i, file.Filename, err)
		}
		indexed++
	}
	return indexed, nil
}
