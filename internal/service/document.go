package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ragapi/internal/model"
	"ragapi/internal/ragclient"
	"ragapi/internal/repository"
	"ragapi/internal/storage"
)

// rawURLExpiry is how long a presigned download link stays valid.
const rawURLExpiry = 15 * time.Minute

// IngestResult is the outcome of a successful upload.
type IngestResult struct {
	Document model.DocumentMeta `json:"document"`
	Ingest   model.Payload      `json:"ingest"`
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Upload validates and stores a text file, then asks the RAG service to ingest it.
	// The document stays stored when ingestion fails; the returned *UpstreamError
	// carries its ID so the client can retry ingestion or delete it.
	Upload(ctx context.Context, in *UploadInput) (*IngestResult, error)

	// List returns document metadata, newest first.
	List(ctx context.Context) ([]model.DocumentMeta, error)

	// Get returns a single document, including its text.
	Get(ctx context.Context, id string) (*model.Document, error)

	// Delete removes a document record and its archived upload.
	Delete(ctx context.Context, id string) error

	// RawURL returns a short-lived download link for the archived upload.
	RawURL(ctx context.Context, id string) (string, error)
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	repo      repository.DocumentRepository
	rag       ragclient.Client
	archive   storage.Storage
	log       *zap.Logger
	maxUpload int64
}

// NewDocumentService constructs a new DocumentService. archive may be nil, in which
// case raw uploads are not kept.
func NewDocumentService(repo repository.DocumentRepository, rag ragclient.Client, archive storage.Storage, log *zap.Logger, maxUploadBytes int64) DocumentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &documentService{
		repo:      repo,
		rag:       rag,
		archive:   archive,
		log:       log.Named("documents"),
		maxUpload: maxUploadBytes,
	}
}

func (s *documentService) Upload(ctx context.Context, in *UploadInput) (*IngestResult, error) {
	doc, err := prepareUpload(in, s.maxUpload)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.Create(ctx, doc)
	if err != nil {
		if errors.Is(err, repository.ErrEmptyText) {
			return nil, NewValidationError("File is empty").Add("file", "must contain text")
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	log := s.log.With(zap.String("document_id", stored.ID))

	if s.archive != nil {
		key := storage.DocumentKey(stored.ID)
		_, err := s.archive.Put(ctx, key, bytes.NewReader(in.Data), storage.PutObjectOptions{
			Size:        int64(len(in.Data)),
			ContentType: model.MimeTextPlain,
			Metadata: map[string]string{
				"original-filename": url.QueryEscape(in.Filename),
			},
		})
		if err != nil {
			// Rollback: the upstream has not seen the document yet.
			if delErr := s.repo.Delete(ctx, stored.ID); delErr != nil {
				return nil, fmt.Errorf("archive upload failed: %v; rollback delete failed: %v", err, delErr)
			}
			return nil, fmt.Errorf("archive upload failed: %w", err)
		}
	}

	payload, err := s.rag.Ingest(ctx, stored.ID)
	if err != nil {
		log.Warn("ingestion failed, document kept", zap.Error(err))
		return nil, toUpstreamError("ingest", stored.ID, err)
	}

	log.Info("document ingested", zap.String("name", stored.Name), zap.Int64("size_bytes", stored.SizeBytes))
	return &IngestResult{Document: stored.Meta(), Ingest: payload}, nil
}

func (s *documentService) List(ctx context.Context) ([]model.DocumentMeta, error) {
	return s.repo.List(ctx)
}

func (s *documentService) Get(ctx context.Context, id string) (*model.Document, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// Delete removes the record first; a leftover archived object is only logged.
func (s *documentService) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if s.archive != nil {
		if err := s.archive.Delete(ctx, storage.DocumentKey(id)); err != nil {
			s.log.Warn("archived upload not removed", zap.String("document_id", id), zap.Error(err))
		}
	}
	return nil
}

func (s *documentService) RawURL(ctx context.Context, id string) (string, error) {
	if s.archive == nil {
		return "", ErrArchiveDisabled
	}
	if _, err := s.Get(ctx, id); err != nil {
		return "", err
	}
	u, err := s.archive.PresignGet(ctx, storage.DocumentKey(id), rawURLExpiry)
	if err != nil {
		return "", fmt.Errorf("presign: %w", err)
	}
	return u, nil
}

// validID reports whether id can name a stored document. Anything that is not a
// UUID cannot exist, so callers treat it as not found.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
