package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type pgStore struct {
	pool       *pgxpool.Pool
	table      string
	tableIdent string
	indexIdent string
	dimension  int

	mu      sync.Mutex
	ensured bool
}

func newPGStore(ctx context.Context, opts Options) (*pgStore, error) {
	if strings.TrimSpace(opts.DSN) == "" {
		return nil, errors.New("vectorstore: pgvector dsn is required")
	}
	pool, err := pgxpool.New(ctx, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: failed to connect to postgres: %w", err)
	}
	store := &pgStore{
		pool:      pool,
		table:     opts.Collection,
		dimension: opts.Dimension,
	}
	store.tableIdent = pgx.Identifier{store.table}.Sanitize()
	store.indexIdent = pgx.Identifier{store.table + "_workspace_idx"}.Sanitize()
	return store, nil
}

// EnsureCollection creates the extension, table and workspace index with
// IF NOT EXISTS so concurrent callers converge on the same schema.
func (p *pgStore) EnsureCollection(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ensured {
		return nil
	}
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("pgvector: acquire connection: %w", err)
	}
	defer conn.Release()
	if _, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("pgvector: enable extension: %w", err)
	}
	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		embedding vector(%d),
		document TEXT,
		metadata JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`, p.tableIdent, p.dimension)
	if _, err = conn.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("pgvector: create table: %w", err)
	}
	createIndex := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (workspace_id)", p.indexIdent, p.tableIdent)
	if _, err = conn.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("pgvector: create index: %w", err)
	}
	p.ensured = true
	return nil
}

func (p *pgStore) Upsert(ctx context.Context, workspaceID string, vector []float32, payload map[string]any) (string, error) {
	if err := validateWrite(workspaceID, vector, p.dimension); err != nil {
		return "", err
	}
	if err := p.EnsureCollection(ctx); err != nil {
		return "", err
	}
	prepared := preparePayload(workspaceID, payload)
	text, _ := prepared[textKey].(string)
	metadata, err := json.Marshal(prepared)
	if err != nil {
		return "", fmt.Errorf("pgvector: marshal metadata: %w", err)
	}
	id := uuid.New().String()
	stmt := fmt.Sprintf(
		"INSERT INTO %s (id, workspace_id, embedding, document, metadata) VALUES ($1, $2, $3, $4, $5)",
		p.tableIdent,
	)
	if _, err := p.pool.Exec(ctx, stmt, id, workspaceID, pgvector.NewVector(vector), text, metadata); err != nil {
		return "", fmt.Errorf("pgvector: insert: %w", err)
	}
	return id, nil
}

func (p *pgStore) Search(ctx context.Context, workspaceID string, vector []float32, limit int) ([]map[string]any, error) {
	if err := validateWrite(workspaceID, vector, p.dimension); err != nil {
		return nil, err
	}
	if err := p.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		"SELECT document, metadata, 1 - (embedding <=> $1) AS score FROM %s WHERE workspace_id = $2 ORDER BY embedding <=> $1 ASC LIMIT $3",
		p.tableIdent,
	)
	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vector), workspaceID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("pgvector: query: %w", err)
	}
	defer rows.Close()

	var payloads []map[string]any
	for rows.Next() {
		var (
			document    *string
			metadataRaw []byte
			score       float64
		)
		if err := rows.Scan(&document, &metadataRaw, &score); err != nil {
			return nil, fmt.Errorf("pgvector: scan: %w", err)
		}
		payload := map[string]any{}
		if len(metadataRaw) > 0 {
			if err := decodeJSON(metadataRaw, &payload); err != nil {
				return nil, fmt.Errorf("pgvector: decode metadata: %w", err)
			}
		}
		if document != nil {
			payload[textKey] = *document
		}
		payload[WorkspaceKey] = workspaceID
		payloads = append(payloads, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: rows: %w", err)
	}
	return payloads, nil
}

func (p *pgStore) Close(context.Context) error {
	p.pool.Close()
	return nil
}
