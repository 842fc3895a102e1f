package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragapi/internal/ragclient"
)

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{name: "trimmed", in: []byte("\n  hello\n\n"), want: "hello"},
		{name: "byte order mark", in: []byte("\xef\xbb\xbfhello"), want: "hello"},
		{name: "invalid utf-8 replaced", in: []byte("caf\xe9"), want: "caf\uFFFD"},
		{name: "nul dropped", in: []byte("a\x00b"), want: "ab"},
		{name: "inner whitespace kept", in: []byte("line one\n\nline two"), want: "line one\n\nline two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeText(tt.in))
		})
	}
}

func TestPrepareUpload_ContentTypeParameters(t *testing.T) {
	doc, err := prepareUpload(&UploadInput{
		Filename:    "notes.txt",
		ContentType: "text/plain; charset=utf-8",
		Data:        []byte("hello\n"),
	}, 0)

	require.NoError(t, err)
	assert.Equal(t, "text/plain", doc.MimeType)
	assert.Equal(t, int64(6), doc.SizeBytes)
	assert.Equal(t, "hello", doc.Text)
}

func TestQARequest_ValidateMessages(t *testing.T) {
	r := QARequest{Question: "", TopK: intPtr(11)}
	err := r.Validate()

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid input", verr.Message)
	assert.Equal(t, []string{"is required"}, verr.Fields["question"])
	assert.Equal(t, []string{"must be at most 10"}, verr.Fields["topK"])
	assert.ErrorIs(t, err, ErrValidation)
}

func TestToUpstreamError(t *testing.T) {
	t.Run("rejected with json body", func(t *testing.T) {
		err := toUpstreamError("ingest", testDocID, &ragclient.StatusError{StatusCode: 422, Body: []byte(`{"detail":"bad"}`)})
		var ue *UpstreamError
		require.ErrorAs(t, err, &ue)
		assert.ErrorIs(t, err, ErrUpstreamRejected)
		assert.Equal(t, 422, ue.StatusCode)
		assert.JSONEq(t, `{"detail":"bad"}`, string(ue.Details))
	})

	t.Run("rejected with plain text body", func(t *testing.T) {
		body := []byte("Internal Server Error")

		ingestErr := toUpstreamError("ingest", testDocID, &ragclient.StatusError{StatusCode: 500, Body: body})
		qaErr := toUpstreamError("qa", "", &ragclient.StatusError{StatusCode: 500, Body: body})

		var ue *UpstreamError
		require.ErrorAs(t, ingestErr, &ue)
		assert.JSONEq(t, `{"ok":false}`, string(ue.Details))
		require.ErrorAs(t, qaErr, &ue)
		assert.JSONEq(t, `{}`, string(ue.Details))
	})

	t.Run("unavailable", func(t *testing.T) {
		err := toUpstreamError("qa", "", fmt.Errorf("%w: %w", ragclient.ErrUnavailable, context.DeadlineExceeded))
		var ue *UpstreamError
		require.ErrorAs(t, err, &ue)
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.JSONEq(t, fmt.Sprintf("%q", ue.Err.Error()), string(ue.Details))
	})

	t.Run("other errors stay internal", func(t *testing.T) {
		err := toUpstreamError("qa", "", errors.New("encode request"))
		var ue *UpstreamError
		assert.False(t, errors.As(err, &ue))
		assert.EqualError(t, err, "qa: encode request")
	})
}

func TestPrepareUpload_SignatureLookalikes(t *testing.T) {
	texts := []string{
		"BMW released a new model today.",
		"ID3 tags hold the artist and title.",
		"MZ is the DOS executable magic.",
		"GIF89a is an image format from 1989.",
		"%PDF notes: remember the appendix.",
		"col\tvalue\fnext page\x1b[0m",
	}
	for _, text := range texts {
		t.Run(text[:3], func(t *testing.T) {
			doc, err := prepareUpload(&UploadInput{Filename: "notes.txt", ContentType: "text/plain", Data: []byte(text)}, 0)
			require.NoError(t, err)
			assert.Equal(t, text, doc.Text)
		})
	}
}

func TestPrepareUpload_BinaryContent(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

	_, err := prepareUpload(&UploadInput{Filename: "image.txt", ContentType: "text/plain", Data: png}, 0)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Only .txt files supported", verr.Message)
	assert.Equal(t, []string{"content is not plain text (image/png)"}, verr.Fields["file"])
}
