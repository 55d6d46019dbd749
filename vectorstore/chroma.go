package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/google/uuid"
)

const textKey = "text"

type chromaStore struct {
	client     chromago.Client
	name       string
	dimension  int
	mu         sync.Mutex
	collection chromago.Collection
}

func newChromaStore(opts Options) (*chromaStore, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if base == "" {
		return nil, errors.New("vectorstore: chroma url is required")
	}
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(base))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: failed to create chroma client: %w", err)
	}
	return &chromaStore{client: client, name: opts.Collection, dimension: opts.Dimension}, nil
}

// EnsureCollection relies on GetOrCreateCollection, which is idempotent on
// the server side. The handle is cached after the first success.
func (c *chromaStore) EnsureCollection(ctx context.Context) error {
	_, err := c.ensure(ctx)
	return err
}

func (c *chromaStore) ensure(ctx context.Context) (chromago.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.collection != nil {
		return c.collection, nil
	}
	col, err := c.client.GetOrCreateCollection(
		ctx,
		c.name,
		chromago.WithEmbeddingFunctionCreate(precomputedEmbeddings{}),
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("hnsw:space", "cosine"),
				chromago.NewIntAttribute("dimension", int64(c.dimension)),
				chromago.NewStringAttribute("created_by", "autorag"),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: chroma get or create collection %q: %w", c.name, err)
	}
	c.collection = col
	return col, nil
}

func (c *chromaStore) Upsert(ctx context.Context, workspaceID string, vector []float32, payload map[string]any) (string, error) {
	if err := validateWrite(workspaceID, vector, c.dimension); err != nil {
		return "", err
	}
	col, err := c.ensure(ctx)
	if err != nil {
		return "", err
	}
	prepared := preparePayload(workspaceID, payload)
	text, _ := prepared[textKey].(string)
	id := uuid.New().String()
	err = col.Add(ctx,
		chromago.WithIDs(chromago.DocumentID(id)),
		chromago.WithTexts(text),
		chromago.WithEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chromago.WithMetadatas(chromaMetadata(prepared)),
	)
	if err != nil {
		return "", fmt.Errorf("vectorstore: chroma add: %w", err)
	}
	return id, nil
}

func (c *chromaStore) Search(ctx context.Context, workspaceID string, vector []float32, limit int) ([]map[string]any, error) {
	if err := validateWrite(workspaceID, vector, c.dimension); err != nil {
		return nil, err
	}
	col, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}
	results, err := col.Query(ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chromago.WithNResults(normalizeLimit(limit)),
		chromago.WithWhereQuery(chromago.EqString(WorkspaceKey, workspaceID)),
	)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: chroma query: %w", err)
	}

	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	if len(documentGroups) == 0 {
		return nil, nil
	}
	payloads := make([]map[string]any, 0, len(documentGroups[0]))
	for i, doc := range documentGroups[0] {
		var meta any
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) {
			meta = metadataGroups[0][i]
		}
		payload := metadataToMap(meta)
		if !sameWorkspace(payload, workspaceID) {
			continue
		}
		if doc != nil {
			payload[textKey] = doc.ContentString()
		}
		payloads = append(payloads, payload)
	}
	return payloads, nil
}

// precomputedEmbeddings stands in for chroma's default embedder, which would
// otherwise be loaded on collection creation. Vectors always come from the caller.
type precomputedEmbeddings struct{}

var errPrecomputedOnly = errors.New("vectorstore: chroma only accepts precomputed embeddings")

func (precomputedEmbeddings) EmbedDocuments(context.Context, []string) ([]embeddings.Embedding, error) {
	return nil, errPrecomputedOnly
}

func (precomputedEmbeddings) EmbedQuery(context.Context, string) (embeddings.Embedding, error) {
	return nil, errPrecomputedOnly
}

func (c *chromaStore) Close(context.Context) error {
	return c.client.Close()
}

// chromaMetadata flattens a payload into chroma attributes. The chunk text is
// stored as the document itself, so it is left out of the metadata.
func chromaMetadata(payload map[string]any) chromago.DocumentMetadata {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if k != textKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	attrs := make([]*chromago.MetaAttribute, 0, len(keys))
	for _, k := range keys {
		switch v := payload[k].(type) {
		case string:
			attrs = append(attrs, chromago.NewStringAttribute(k, v))
		case int:
			attrs = append(attrs, chromago.NewIntAttribute(k, int64(v)))
		case int64:
			attrs = append(attrs, chromago.NewIntAttribute(k, v))
		case int32:
			attrs = append(attrs, chromago.NewIntAttribute(k, int64(v)))
		default:
			attrs = append(attrs, chromago.NewStringAttribute(k, fmt.Sprint(v)))
		}
	}
	return chromago.NewDocumentMetadata(attrs...)
}

// metadataToMap converts chroma metadata into a plain map. DocumentMetadata
// exposes no accessor for all values, so it goes through JSON.
func metadataToMap(meta any) map[string]any {
	out := map[string]any{}
	if meta == nil {
		return out
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return out
	}
	if err := decodeJSON(raw, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

func decodeJSON(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}
