package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ragapi/internal/model"
	"ragapi/internal/ragclient"
	ragMocks "ragapi/internal/ragclient/mocks"
	"ragapi/internal/repository"
	repoMocks "ragapi/internal/repository/mocks"
	"ragapi/internal/storage"
	storeMocks "ragapi/internal/storage/mocks"
)

const testDocID = "6f1c2d4e-8a3b-4c5d-9e0f-1a2b3c4d5e6f"

func storedDoc(text string) *model.Document {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &model.Document{
		DocumentMeta: model.DocumentMeta{
			ID:        testDocID,
			Name:      "notes.txt",
			MimeType:  model.MimeTextPlain,
			SizeBytes: int64(len(text)),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Text: text,
	}
}

func TestDocumentService_Upload(t *testing.T) {
	ctx := context.Background()
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

	tests := []struct {
		name        string
		input       *UploadInput
		withArchive bool
		setupMocks  func(mRepo *repoMocks.MockDocumentRepository, mRAG *ragMocks.MockClient, mStore *storeMocks.MockStorage)
		wantErr     error
		wantErrMsg  string
		check       func(t *testing.T, res *IngestResult, err error)
	}{
		{
			name:  "happy path without archive",
			input: &UploadInput{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("  hello world\n")},
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository, mRAG *ragMocks.MockClient, _ *storeMocks.MockStorage) {
				mRepo.On("Create", ctx, mock.MatchedBy(func(doc *model.Document) bool {
					return doc.Name == "notes.txt" && doc.Text == "hello world" && doc.SizeBytes == 14 && doc.MimeType == model.MimeTextPlain
				})).Return(storedDoc("hello world"), nil)
				mRAG.On("Ingest", ctx, testDocID).Return(model.Payload(`{"ok":true,"chunks":3}`), nil)
			},
			check: func(t *testing.T, res *IngestResult, err error) {
				require.NoError(t, err)
				assert.Equal(t, testDocID, res.Document.ID)
				assert.JSONEq(t, `{"ok":true,"chunks":3}`, string(res.Ingest))
			},
		},
		{
			name:        "happy path with archive",
			input:       &UploadInput{Filename: "my notes.txt", ContentType: "text/plain; charset=utf-8", Data: []byte("hello")},
			withArchive: true,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository, mRAG *ragMocks.MockClient, mStore *storeMocks.MockStorage) {
				mRepo.On("Create", ctx, mock.Anything).Return(storedDoc("hello"), nil)
				mStore.On("Put", ctx, "documents/"+testDocID+".txt", mock.Anything, storage.PutObjectOptions{
					Size:        5,
					ContentType: "text/plain",
					Metadata:    map[string]string{"original-filename": "my+notes.txt"},
				}).Return(storage.ObjectInfo{Key: "documents/" + testDocID + ".txt"}, nil)
				mRAG.On("Ingest", ctx, testDocID).Return(model.Payload(`{"ok":true}`), nil)
			},
		},
		{
			name:       "missing file",
			input:      nil,
			setupMocks: func(*repoMocks.MockDocumentRepository, *ragMocks.MockClient, *storeMocks.MockStorage) {},
			wantErr:    ErrValidation,
			wantErrMsg: "Missing file",
		},
		{
			name:       "wrong media type",
			input:      &UploadInput{Filename: "report.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
			setupMocks: func(*repoMocks.MockDocumentRepository, *ragMocks.MockClient, *storeMocks.MockStorage) {},
			wantErr:    ErrValidation,
			wantErrMsg: "Only .txt files supported",
		},
		{
			name:       "whitespace only",
			input:      &UploadInput{Filename: "blank.txt", ContentType: "text/plain", Data: []byte(" \n\t \r\n")},
			setupMocks: func(*repoMocks.MockDocumentRepository, *ragMocks.MockClient, *storeMocks.MockStorage) {},
			wantErr:    ErrValidation,
			wantErrMsg: "File is empty",
		},
		{
			name:       "too large",
			input:      &UploadInput{Filename: "big.txt", ContentType: "text/plain", Data: []byte(strings.Repeat("a", 65))},
			setupMocks: func(*repoMocks.MockDocumentRepository, *ragMocks.MockClient, *storeMocks.MockStorage) {},
			wantErr:    ErrValidation,
			wantErrMsg: "File too large",
		},
		{
			name:       "binary content labelled as text",
			input:      &UploadInput{Filename: "image.txt", ContentType: "text/plain", Data: png},
			setupMocks: func(*repoMocks.MockDocumentRepository, *ragMocks.MockClient, *storeMocks.MockStorage) {},
			wantErr:    ErrValidation,
			wantErrMsg: "Only .txt files supported",
		},
		{
			name:  "text that starts like a binary signature",
			input: &UploadInput{Filename: "cars.txt", ContentType: "text/plain", Data: []byte("BMW released a new model today.")},
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository, mRAG *ragMocks.MockClient, _ *storeMocks.MockStorage) {
				mRepo.On("Create", ctx, mock.MatchedBy(func(doc *model.Document) bool {
					return doc.Text == "BMW released a new model today."
				})).Return(storedDoc("BMW released a new model today."), nil)
				mRAG.On("Ingest", ctx, testDocID).Return(model.Payload(`{"ok":true}`), nil)
			},
		},
		{
			name:  "repository rejects empty text",
			input: &UploadInput{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hello")},
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository, _ *ragMocks.MockClient, _ *storeMocks.MockStorage) {
				mRepo.On("Create", ctx, mock.Anything).Return(nil, repository.ErrEmptyText)
			},
			wantErr: ErrValidation,
		},
		{
			name:  "repository error",
			input: &UploadInput{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hello")},
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository, _ *ragMocks.MockClient, _ *storeMocks.MockStorage) {
				mRepo.On("Create", ctx, mock.Anything).Return(nil, errors.New("db fail"))
			},
			wantErrMsg: "db save failed: db fail",
		},
		{
			name:        "archive error with successful rollback",
			input:       &UploadInput{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hello")},
			withArchive: true,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository, _ *ragMocks.MockClient, mStore *storeMocks.MockStorage) {
				mRepo.On("Create", ctx, mock.Anything).Return(storedDoc("hello"), nil)
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, errors.New("storage fail"))
				mRepo.On("Delete", ctx, testDocID).Return(nil)
			},
			wantErrMsg: "archive upload failed: storage fail",
		},
		{
			name:        "archive error with failed rollback",
			input:       &UploadInput{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hello")},
			withArchive: true,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository, _ *ragMocks.MockClient, mStore *storeMocks.MockStorage) {
				mRepo.On("Create", ctx, mock.Anything).Return(storedDoc("hello"), nil)
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, errors.New("storage fail"))
				mRepo.On("Delete", ctx, testDocID).Return(errors.New("delete fail"))
			},
			wantErrMsg: "rollback delete failed: delete fail",
		},
		{
			name:  "rag rejects ingestion and the document is kept",
			input: &UploadInput{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hello")},
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository, mRAG *ragMocks.MockClient, _ *storeMocks.MockStorage) {
				mRepo.On("Create", ctx, mock.Anything).Return(storedDoc("hello"), nil)
				mRAG.On("Ingest", ctx, testDocID).Return(nil, &ragclient.StatusError{StatusCode: 500, Body: []byte(`{"detail":"embedding failed"}`)})
			},
			wantErr: ErrUpstreamRejected,
			check: func(t *testing.T, _ *IngestResult, err error) {
				var ue *UpstreamError
				require.ErrorAs(t, err, &ue)
				assert.Equal(t, testDocID, ue.DocumentID)
				assert.Equal(t, 500, ue.StatusCode)
				assert.JSONEq(t, `{"detail":"embedding failed"}`, string(ue.Details))
			},
		},
		{
			name:  "rag unreachable and the document is kept",
			input: &UploadInput{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hello")},
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository, mRAG *ragMocks.MockClient, _ *storeMocks.MockStorage) {
				mRepo.On("Create", ctx, mock.Anything).Return(storedDoc("hello"), nil)
				mRAG.On("Ingest", ctx, testDocID).Return(nil, fmt.Errorf("%w: %w", ragclient.ErrUnavailable, errors.New("connection refused")))
			},
			wantErr: ErrUpstreamUnavailable,
			check: func(t *testing.T, _ *IngestResult, err error) {
				var ue *UpstreamError
				require.ErrorAs(t, err, &ue)
				assert.Equal(t, testDocID, ue.DocumentID)
				assert.Contains(t, string(ue.Details), "connection refused")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockDocumentRepository)
			mRAG := new(ragMocks.MockClient)
			mStore := new(storeMocks.MockStorage)
			var archive storage.Storage
			if tt.withArchive {
				archive = mStore
			}
			svc := NewDocumentService(mRepo, mRAG, archive, nil, 64)

			tt.setupMocks(mRepo, mRAG, mStore)

			res, err := svc.Upload(ctx, tt.input)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
			}
			if tt.wantErrMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			}
			if tt.wantErr == nil && tt.wantErrMsg == "" && tt.check == nil {
				assert.NoError(t, err)
				assert.NotNil(t, res)
			}
			if tt.check != nil {
				tt.check(t, res, err)
			}

			// Rejected input never reaches the store.
			if tt.wantErrMsg != "" && errors.Is(err, ErrValidation) {
				mRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			}
			if errors.Is(err, ErrUpstreamRejected) || errors.Is(err, ErrUpstreamUnavailable) {
				mRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
			}
			if strings.Contains(tt.name, "archive error") {
				mRAG.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
			}
			mRepo.AssertExpectations(t)
			mRAG.AssertExpectations(t)
			mStore.AssertExpectations(t)
		})
	}
}

func TestDocumentService_List(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		setupMocks func(mRepo *repoMocks.MockDocumentRepository)
		wantLen    int
		wantErr    bool
	}{
		{
			name: "happy path",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", ctx).Return([]model.DocumentMeta{{ID: "2"}, {ID: "1"}}, nil)
			},
			wantLen: 2,
		},
		{
			name: "empty store",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", ctx).Return([]model.DocumentMeta{}, nil)
			},
		},
		{
			name: "repository error",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", ctx).Return(nil, errors.New("db fail"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := NewDocumentService(mRepo, nil, nil, nil, 0)

			tt.setupMocks(mRepo)

			items, err := svc.List(ctx)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Len(t, items, tt.wantLen)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_Get(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         string
		setupMocks func(mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
	}{
		{
			name: "happy path",
			id:   testDocID,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, testDocID).Return(storedDoc("hello"), nil)
			},
		},
		{
			name:       "malformed id is not found",
			id:         "not-a-uuid",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrNotFound,
		},
		{
			name: "not found - mapping sql.ErrNoRows",
			id:   testDocID,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, testDocID).Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "generic repository error",
			id:   testDocID,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, testDocID).Return(nil, errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := NewDocumentService(mRepo, nil, nil, nil, 0)

			tt.setupMocks(mRepo)

			doc, err := svc.Get(ctx, tt.id)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrNotFound) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.EqualError(t, err, tt.wantErr.Error())
				}
				assert.Nil(t, doc)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.id, doc.ID)
				assert.Equal(t, "hello", doc.Text)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_Delete(t *testing.T) {
	ctx := context.Background()
	key := "documents/" + testDocID + ".txt"

	tests := []struct {
		name        string
		id          string
		withArchive bool
		setupMocks  func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository)
		wantErr     error
	}{
		{
			name: "happy path without archive",
			id:   testDocID,
			setupMocks: func(_ *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("Delete", ctx, testDocID).Return(nil)
			},
		},
		{
			name:        "happy path with archive",
			id:          testDocID,
			withArchive: true,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("Delete", ctx, testDocID).Return(nil)
				mStore.On("Delete", ctx, key).Return(nil)
			},
		},
		{
			name:        "archive delete error is ignored",
			id:          testDocID,
			withArchive: true,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("Delete", ctx, testDocID).Return(nil)
				mStore.On("Delete", ctx, key).Return(errors.New("storage fail"))
			},
		},
		{
			name:       "malformed id is not found",
			id:         "42",
			setupMocks: func(*storeMocks.MockStorage, *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrNotFound,
		},
		{
			name:        "not found",
			id:          testDocID,
			withArchive: true,
			setupMocks: func(_ *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("Delete", ctx, testDocID).Return(sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "repository delete error",
			id:   testDocID,
			setupMocks: func(_ *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("Delete", ctx, testDocID).Return(errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockDocumentRepository)
			var archive storage.Storage
			if tt.withArchive {
				archive = mStore
			}
			svc := NewDocumentService(mRepo, nil, archive, nil, 0)

			tt.setupMocks(mStore, mRepo)

			err := svc.Delete(ctx, tt.id)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrNotFound) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.EqualError(t, err, tt.wantErr.Error())
				}
				mStore.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
			} else {
				assert.NoError(t, err)
			}
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_RawURL(t *testing.T) {
	ctx := context.Background()

	t.Run("archive disabled", func(t *testing.T) {
		svc := NewDocumentService(new(repoMocks.MockDocumentRepository), nil, nil, nil, 0)
		_, err := svc.RawURL(ctx, testDocID)
		assert.ErrorIs(t, err, ErrArchiveDisabled)
	})

	t.Run("presigned link", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		mStore := new(storeMocks.MockStorage)
		mRepo.On("FindByID", ctx, testDocID).Return(storedDoc("hello"), nil)
		mStore.On("PresignGet", ctx, "documents/"+testDocID+".txt", 15*time.Minute).Return("http://minio/signed", nil)

		svc := NewDocumentService(mRepo, nil, mStore, nil, 0)
		u, err := svc.RawURL(ctx, testDocID)

		require.NoError(t, err)
		assert.Equal(t, "http://minio/signed", u)
		mRepo.AssertExpectations(t)
		mStore.AssertExpectations(t)
	})

	t.Run("unknown document", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		mStore := new(storeMocks.MockStorage)
		mRepo.On("FindByID", ctx, testDocID).Return(nil, sql.ErrNoRows)

		svc := NewDocumentService(mRepo, nil, mStore, nil, 0)
		_, err := svc.RawURL(ctx, testDocID)

		assert.ErrorIs(t, err, ErrNotFound)
		mStore.AssertNotCalled(t, "PresignGet", mock.Anything, mock.Anything, mock.Anything)
	})
}
