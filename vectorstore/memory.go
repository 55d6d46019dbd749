package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryPoint struct {
	id      string
	vector  []float32
	payload map[string]any
}

// MemoryStore is an in-process Store used for local runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	points    []memoryPoint
}

// NewMemoryStore creates an empty store for vectors of the given dimension.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{dimension: dimension}
}

func (m *MemoryStore) EnsureCollection(context.Context) error {
	if m.dimension <= 0 {
		return errInvalidDimension
	}
	return nil
}

func (m *MemoryStore) Upsert(_ context.Context, workspaceID string, vector []float32, payload map[string]any) (string, error) {
	if err := validateWrite(workspaceID, vector, m.dimension); err != nil {
		return "", err
	}
	id := uuid.New().String()
	vec := make([]float32, len(vector))
	copy(vec, vector)
	m.mu.Lock()
	m.points = append(m.points, memoryPoint{id: id, vector: vec, payload: preparePayload(workspaceID, payload)})
	m.mu.Unlock()
	return id, nil
}

func (m *MemoryStore) Search(_ context.Context, workspaceID string, vector []float32, limit int) ([]map[string]any, error) {
	if err := validateWrite(workspaceID, vector, m.dimension); err != nil {
		return nil, err
	}
	type scored struct {
		score   float64
		payload map[string]any
	}
	m.mu.RLock()
	candidates := make([]scored, 0, len(m.points))
	for _, p := range m.points {
		if !sameWorkspace(p.payload, workspaceID) {
			continue
		}
		candidates = append(candidates, scored{score: cosine(vector, p.vector), payload: p.payload})
	}
	m.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	limit = normalizeLimit(limit)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]map[string]any, len(candidates))
	for i, c := range candidates {
		out[i] = preparePayload(workspaceID, c.payload)
	}
	return out, nil
}

// Len returns the number of stored points across all workspaces.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

func (m *MemoryStore) Close(context.Context) error {
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
