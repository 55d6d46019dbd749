package models

// Chunk is one indexed slice of a source document. Chunks are append-only:
// they are created at ingestion and never updated in place.
type Chunk struct {
	WorkspaceID string    `json:"workspace_id"`
	Filename    string    `json:"filename"`
	ChunkIndex  int       `json:"chunk_index"`
	Text        string    `json:"text"`
	Vector      []float32 `json:"-"`
}

// Payload returns the metadata stored alongside the chunk's vector.
func (c Chunk) Payload() map[string]any {
	return map[string]any{
		"workspace_id": c.WorkspaceID,
		"filename":     c.Filename,
		"chunk_index":  c.ChunkIndex,
		"text":         c.Text,
	}
}

// ContextHit is a retrieved chunk reduced to what answer generation needs.
type ContextHit struct {
	Text       string `json:"text"`
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
}

// ContextHitFromPayload maps a stored payload back to a ContextHit. A missing
// chunk index is reported as -1.
func ContextHitFromPayload(payload map[string]any) ContextHit {
	hit := ContextHit{ChunkIndex: -1}
	if text, ok := payload["text"].(string); ok {
		hit.Text = text
	}
	if source, ok := payload["filename"].(string); ok {
		hit.Source = source
	}
	if idx, ok := asInt(payload["chunk_index"]); ok {
		hit.ChunkIndex = idx
	}
	return hit
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	default:
		return 0, false
	}
}

// UploadedFile is a document handed to ingestion before text extraction.
type UploadedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
