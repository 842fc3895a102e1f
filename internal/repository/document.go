package repository

import (
	"context"
	"errors"

	"ragapi/internal/model"
)

// ErrEmptyText is returned by Create when the document text is blank.
var ErrEmptyText = errors.New("document text is empty")

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here, only persistence operations.
type DocumentRepository interface {
	// Create inserts a new document record. The ID and timestamps are assigned by the
	// database and returned in the stored document.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document, including its text, by ID.
	// It returns sql.ErrNoRows if the document does not exist.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// List returns the metadata of all documents, newest first.
	List(ctx context.Context) ([]model.DocumentMeta, error)

	// Delete removes a document by ID. It returns sql.ErrNoRows if nothing was deleted.
	Delete(ctx context.Context, id string) error
}
