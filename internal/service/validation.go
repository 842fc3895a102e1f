package service

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"reflect"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"ragapi/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names so clients can map errors to inputs.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// QARequest is the schema of a question.
type QARequest struct {
	Question string `json:"question" validate:"required,max=2000"`
	TopK     *int   `json:"topK,omitempty" validate:"omitempty,min=1,max=10"`
}

// Validate trims the question in place and checks the request. It returns a
// *ValidationError with per-field messages, or nil.
func (r *QARequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)

	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := NewValidationError("Invalid input")
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), fieldMessage(fe))
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s%s", fe.Param(), unit)
	case "max":
		return fmt.Sprintf("must be at most %s%s", fe.Param(), unit)
	default:
		return "is invalid"
	}
}

// UploadInput is a file received from a client.
type UploadInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// prepareUpload validates an upload and returns the document to store.
// A nil input means no file was attached.
func prepareUpload(in *UploadInput, maxBytes int64) (*model.Document, error) {
	if in == nil {
		return nil, NewValidationError("Missing file").Add("file", "is required")
	}

	mediaType, _, err := mime.ParseMediaType(in.ContentType)
	if err != nil || mediaType != model.MimeTextPlain {
		return nil, NewValidationError("Only .txt files supported").Add("file", "must be text/plain")
	}

	if maxBytes > 0 && int64(len(in.Data)) > maxBytes {
		return nil, NewValidationError("File too large").Add("file", fmt.Sprintf("must be at most %d bytes", maxBytes))
	}

	text := decodeText(in.Data)
	if text == "" {
		return nil, NewValidationError("File is empty").Add("file", "must contain text")
	}

	if kind, ok := binaryContent(in.Data); ok {
		return nil, NewValidationError("Only .txt files supported").Add("file", "content is not plain text ("+kind+")")
	}

	return &model.Document{
		DocumentMeta: model.DocumentMeta{
			Name:      in.Filename,
			MimeType:  model.MimeTextPlain,
			SizeBytes: int64(len(in.Data)),
		},
		Text: text,
	}, nil
}

// decodeText reads data as UTF-8, replacing invalid sequences, and trims it.
// NUL bytes are dropped because PostgreSQL text cannot hold them.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	s := strings.ToValidUTF8(string(data), "\uFFFD")
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}

// sniffLen is the resource header size inspected by the WHATWG MIME sniffing rules.
const sniffLen = 1445

// binaryContent reports whether the header of data holds binary data bytes
// (control characters other than tab, line feed, form feed, carriage return and
// escape). File signatures alone never make text binary, so notes starting with
// "BM" or "GIF89a" are accepted. The detected type is returned for the message.
func binaryContent(data []byte) (string, bool) {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	for _, b := range head {
		if isBinaryDataByte(b) {
			return mimetype.Detect(data).String(), true
		}
	}
	return "", false
}

func isBinaryDataByte(b byte) bool {
	switch {
	case b <= 0x08, b == 0x0B, b >= 0x0E && b <= 0x1A, b >= 0x1C && b <= 0x1F:
		return true
	}
	return false
}
