package postgres

import (
	"context"
	"database/sql"
	"strings"

	"ragapi/internal/model"
	"ragapi/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, repository.ErrEmptyText
	}

	const q = `
		INSERT INTO documents (name, mime_type, size_bytes, text)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, mime_type, size_bytes, text, created_at, updated_at
	`
	row := r.db.QueryRowContext(ctx, q,
		doc.Name,
		doc.MimeType,
		doc.SizeBytes,
		doc.Text,
	)
	var out model.Document
	if err := row.Scan(
		&out.ID,
		&out.Name,
		&out.MimeType,
		&out.SizeBytes,
		&out.Text,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `
		SELECT id, name, mime_type, size_bytes, text, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, q, id)
	var d model.Document
	if err := row.Scan(
		&d.ID,
		&d.Name,
		&d.MimeType,
		&d.SizeBytes,
		&d.Text,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

// List returns document metadata ordered by creation time, newest first.
// The text column is never selected.
func (r *DocumentPostgres) List(ctx context.Context) ([]model.DocumentMeta, error) {
	const q = `
		SELECT id, name, mime_type, size_bytes, created_at, updated_at
		FROM documents
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.DocumentMeta, 0)
	for rows.Next() {
		var d model.DocumentMeta
		if err := rows.Scan(
			&d.ID,
			&d.Name,
			&d.MimeType,
			&d.SizeBytes,
			&d.CreatedAt,
			&d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a document by ID.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
