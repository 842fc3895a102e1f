package model

import "time"

// MimeTextPlain is the only media type accepted for uploads.
const MimeTextPlain = "text/plain"

// DocumentMeta is the listing view of a document. It never carries the text,
// so list responses stay small.
type DocumentMeta struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mimeType"`
	SizeBytes int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Document is one uploaded text artifact including its full (trimmed) text.
// Documents are immutable once stored.
type Document struct {
	DocumentMeta
	Text string `json:"text"`
}

// Meta returns the document without its text.
func (d *Document) Meta() DocumentMeta {
	return d.DocumentMeta
}
