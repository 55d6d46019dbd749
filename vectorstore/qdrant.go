package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const defaultHTTPTimeout = 30 * time.Second

type qdrantStore struct {
	client     *resty.Client
	collection string
	dimension  int

	mu      sync.Mutex
	ensured bool
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

type qdrantError struct {
	Status struct {
		Error string `json:"error"`
	} `json:"status"`
}

func newQdrantStore(opts Options) (*qdrantStore, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if base == "" {
		return nil, errors.New("vectorstore: qdrant url is required")
	}
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if opts.APIKey != "" {
		client.SetHeader("api-key", opts.APIKey)
	}
	return &qdrantStore{
		client:     client,
		collection: opts.Collection,
		dimension:  opts.Dimension,
	}, nil
}

func (q *qdrantStore) collectionPath(suffix string) string {
	return "/collections/" + url.PathEscape(q.collection) + suffix
}

// EnsureCollection creates the collection when absent. A 409 from a
// concurrent creator counts as success.
func (q *qdrantStore) EnsureCollection(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ensured {
		return nil
	}
	resp, err := q.client.R().SetContext(ctx).Get(q.collectionPath(""))
	if err != nil {
		return fmt.Errorf("vectorstore: qdrant get collection: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		q.ensured = true
		return nil
	case http.StatusNotFound:
	default:
		return q.statusError("get collection", resp)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.dimension,
			"distance": "Cosine",
		},
	}
	resp, err = q.client.R().SetContext(ctx).SetBody(body).Put(q.collectionPath(""))
	if err != nil {
		return fmt.Errorf("vectorstore: qdrant create collection: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusConflict {
		return q.statusError("create collection", resp)
	}
	q.ensured = true
	return nil
}

func (q *qdrantStore) Upsert(ctx context.Context, workspaceID string, vector []float32, payload map[string]any) (string, error) {
	if err := validateWrite(workspaceID, vector, q.dimension); err != nil {
		return "", err
	}
	if err := q.EnsureCollection(ctx); err != nil {
		return "", err
	}
	id := uuid.New().String()
	body := map[string]any{
		"points": []qdrantPoint{{ID: id, Vector: vector, Payload: preparePayload(workspaceID, payload)}},
	}
	resp, err := q.client.R().
		SetContext(ctx).
		SetQueryParam("wait", "true").
		SetBody(body).
		Put(q.collectionPath("/points"))
	if err != nil {
		return "", fmt.Errorf("vectorstore: qdrant upsert: %w", err)
	}
	if resp.IsError() {
		return "", q.statusError("upsert", resp)
	}
	return id, nil
}

func (q *qdrantStore) Search(ctx context.Context, workspaceID string, vector []float32, limit int) ([]map[string]any, error) {
	if err := validateWrite(workspaceID, vector, q.dimension); err != nil {
		return nil, err
	}
	if err := q.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        normalizeLimit(limit),
		"with_payload": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": WorkspaceKey, "match": map[string]any{"value": workspaceID}},
			},
		},
	}
	var out qdrantSearchResponse
	resp, err := q.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(q.collectionPath("/points/search"))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: qdrant search: %w", err)
	}
	if resp.IsError() {
		return nil, q.statusError("search", resp)
	}
	payloads := make([]map[string]any, 0, len(out.Result))
	for _, hit := range out.Result {
		if hit.Payload == nil || !sameWorkspace(hit.Payload, workspaceID) {
			continue
		}
		payloads = append(payloads, hit.Payload)
	}
	return payloads, nil
}

func (q *qdrantStore) Close(context.Context) error {
	return nil
}

func (q *qdrantStore) statusError(op string, resp *resty.Response) error {
	var apiErr qdrantError
	msg := strings.TrimSpace(resp.String())
	if err := decodeJSON(resp.Body(), &apiErr); err == nil && apiErr.Status.Error != "" {
		msg = apiErr.Status.Error
	}
	return fmt.Errorf("vectorstore: qdrant %s failed (status %d): %s", op, resp.StatusCode(), msg)
}
