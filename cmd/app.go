package cmd

import (
	"context"
	"fmt"

	"github/itish2003/autorag/config"
	"github/itish2003/autorag/logger"
	"github/itish2003/autorag/services"
	"github/itish2003/autorag/vectorstore"
)

// app owns every long-lived dependency built from configuration.
type app struct {
	store  vectorstore.Store
	ingest services.IngestService
	rag    services.RAGService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := vectorstore.New(ctx, vectorstore.OptionsFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	logger.Info("vector store ready", "provider", cfg.VectorProvider, "collection", cfg.VectorCollection, "dimension", cfg.VectorDimension)

	gemini, err := services.NewGeminiClient(ctx, cfg)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	reviewer := services.NewReviewEscalator(cfg)
	if !cfg.ReviewConfigured() {
		logger.Info("review workflow not configured; low-confidence answers are not escalated")
	}

	extractor := services.NewExtractor(gemini, gemini, cfg.UnidocLicenseKey)
	answers := services.NewAnswerGenerator(gemini, cfg.ReviewThreshold)
	return &app{
		store:  store,
		ingest: services.NewIngestService(extractor, gemini, store, cfg.ChunkMaxChars),
		rag:    services.NewRAGService(gemini, store, answers, reviewer, cfg.SearchLimit),
	}, nil
}

func (a *app) Close(ctx context.Context) {
	if err := a.store.Close(ctx); err != nil {
		logger.Warn("failed to close vector store", "error", err)
	}
}
