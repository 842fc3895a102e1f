package model

// DependencyStatus is the probe result for one dependency.
type DependencyStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// HealthStatus is computed per request and never persisted.
type HealthStatus struct {
	OK       bool             `json:"ok"`
	API      DependencyStatus `json:"api"`
	Database DependencyStatus `json:"database"`
	RAG      DependencyStatus `json:"rag"`
	LLM      DependencyStatus `json:"llm"`
}
