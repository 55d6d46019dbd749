// Package vectorstore provides workspace-partitioned vector storage. Every
// backend filters on the payload's workspace_id before ranking, so a search
// never returns points that belong to another workspace.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github/itish2003/autorag/config"
)

// WorkspaceKey is the payload field every point is partitioned by.
const WorkspaceKey = "workspace_id"

const defaultLimit = 5

var (
	errMissingWorkspace = errors.New("vectorstore: workspace id is required")
	errInvalidDimension = errors.New("vectorstore: dimension must be greater than zero")
)

// Store is the contract ingestion and retrieval depend on. Points are
// append-only: there is no update or delete.
type Store interface {
	// EnsureCollection idempotently creates the collection with the configured
	// dimension and cosine distance. Safe to call before every operation.
	EnsureCollection(ctx context.Context) error
	// Upsert stores one point under a freshly generated id and returns the id.
	// The payload's workspace_id is always overwritten with workspaceID.
	Upsert(ctx context.Context, workspaceID string, vector []float32, payload map[string]any) (string, error)
	// Search returns at most limit payloads from workspaceID ordered by
	// descending similarity.
	Search(ctx context.Context, workspaceID string, vector []float32, limit int) ([]map[string]any, error)
	Close(ctx context.Context) error
}

// Options captures connection details for a backend.
type Options struct {
	Provider    string
	Collection  string
	Dimension   int
	URL         string
	APIKey      string
	DSN         string
	HTTPTimeout time.Duration
}

// OptionsFromConfig maps service configuration onto store options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Provider:   cfg.VectorProvider,
		Collection: cfg.VectorCollection,
		Dimension:  cfg.VectorDimension,
	}
	switch cfg.VectorProvider {
	case config.ProviderQdrant:
		opts.URL = cfg.QdrantURL
		opts.APIKey = cfg.QdrantAPIKey
	case config.ProviderChroma:
		opts.URL = cfg.ChromaURL
	case config.ProviderPGVector:
		opts.DSN = cfg.PGVectorDSN
	}
	return opts
}

// New constructs the requested backend and ensures its collection exists.
// The caller owns the returned store and must Close it.
func New(ctx context.Context, opts Options) (Store, error) {
	if opts.Dimension <= 0 {
		return nil, errInvalidDimension
	}
	if strings.TrimSpace(opts.Collection) == "" {
		opts.Collection = "rag_chunks"
	}
	var (
		store Store
		err   error
	)
	switch opts.Provider {
	case config.ProviderQdrant:
		store, err = newQdrantStore(opts)
	case config.ProviderChroma:
		store, err = newChromaStore(opts)
	case config.ProviderPGVector:
		store, err = newPGStore(ctx, opts)
	case config.ProviderMemory, "":
		store = NewMemoryStore(opts.Dimension)
	default:
		return nil, fmt.Errorf("vectorstore: provider %q is not supported", opts.Provider)
	}
	if err != nil {
		return nil, err
	}
	if err := store.EnsureCollection(ctx); err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	return store, nil
}

// preparePayload copies payload and stamps the workspace id over any caller value.
func preparePayload(workspaceID string, payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out[WorkspaceKey] = workspaceID
	return out
}

func validateWrite(workspaceID string, vector []float32, dimension int) error {
	if strings.TrimSpace(workspaceID) == "" {
		return errMissingWorkspace
	}
	if len(vector) != dimension {
		return fmt.Errorf("vectorstore: vector dimension mismatch (got %d want %d)", len(vector), dimension)
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

// sameWorkspace guards isolation on results coming back from remote backends.
func sameWorkspace(payload map[string]any, workspaceID string) bool {
	ws, ok := payload[WorkspaceKey].(string)
	return ok && ws == workspaceID
}
