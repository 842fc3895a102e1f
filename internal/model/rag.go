package model

import (
	"bytes"
	"encoding/json"
)

// Payload is an opaque JSON value returned by the RAG service. It is relayed to
// clients as-is so this API does not depend on the upstream schema.
type Payload = json.RawMessage

// Citation ties an answer back to the chunk that supported it.
type Citation struct {
	DocID      string  `json:"doc_id"`
	DocName    string  `json:"doc_name"`
	ChunkID    string  `json:"chunk_id,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// IsJSONObject reports whether p holds a JSON object.
func IsJSONObject(p Payload) bool {
	trimmed := bytes.TrimSpace(p)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}
