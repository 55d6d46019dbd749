package models

type UploadResponse struct {
	WorkspaceID   string `json:"workspace_id"`
	ChunksIndexed int    `json:"chunks_indexed"`
}

type AskResponse struct {
	WorkspaceID   string       `json:"workspace_id"`
	Question      string       `json:"question"`
	ContextChunks []ContextHit `json:"context_chunks"`
	RAGResult     AnswerResult `json:"rag_result"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
