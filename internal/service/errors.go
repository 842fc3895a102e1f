package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"ragapi/internal/model"
	"ragapi/internal/ragclient"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrUpstreamUnavailable matches an *UpstreamError for an unreachable or timed out RAG service.
	ErrUpstreamUnavailable = errors.New("rag service unreachable")
	// ErrUpstreamRejected matches an *UpstreamError for a non-success RAG response.
	ErrUpstreamRejected = errors.New("rag service rejected the request")
	// ErrArchiveDisabled is returned by RawURL when no object storage is configured.
	ErrArchiveDisabled = errors.New("raw upload archive is not configured")
)

// ValidationError reports bad caller input. Message is the summary shown to clients,
// Form holds problems with the input as a whole and Fields the per-field problems
// keyed by the JSON field name.
type ValidationError struct {
	Message string
	Form    []string
	Fields  map[string][]string
}

// NewValidationError returns a validation error with the given summary message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// Add records a problem with one field.
func (e *ValidationError) Add(field, problem string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], problem)
	return e
}

// AddForm records a problem that is not tied to a single field.
func (e *ValidationError) AddForm(problem string) *ValidationError {
	e.Form = append(e.Form, problem)
	return e
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 && len(e.Form) == 0 {
		return e.Message
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := append([]string(nil), e.Form...)
	for _, name := range names {
		parts = append(parts, name+" "+strings.Join(e.Fields[name], ", "))
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UpstreamError is a failed call to the RAG service. Kind is ErrUpstreamUnavailable
// or ErrUpstreamRejected. DocumentID is set when the failure happened after a
// document was persisted.
type UpstreamError struct {
	Kind       error
	Op         string
	DocumentID string
	StatusCode int
	Details    model.Payload
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *UpstreamError) Is(target error) bool {
	return target == e.Kind
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// toUpstreamError classifies a ragclient error. Anything else is returned wrapped
// and ends up as an internal error.
func toUpstreamError(op, documentID string, err error) error {
	var se *ragclient.StatusError
	if errors.As(err, &se) {
		return &UpstreamError{
			Kind:       ErrUpstreamRejected,
			Op:         op,
			DocumentID: documentID,
			StatusCode: se.StatusCode,
			Details:    rejectionDetails(op, se.Body),
			Err:        err,
		}
	}
	if errors.Is(err, ragclient.ErrUnavailable) {
		details, _ := json.Marshal(err.Error())
		return &UpstreamError{
			Kind:       ErrUpstreamUnavailable,
			Op:         op,
			DocumentID: documentID,
			Details:    details,
			Err:        err,
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// rejectionDetails is the upstream body when it is JSON. Otherwise ingestion reports
// {"ok":false} and every other call an empty object.
func rejectionDetails(op string, body []byte) model.Payload {
	if op == "ingest" {
		return ragclient.AsPayload(body, false)
	}
	if len(body) > 0 && json.Valid(body) {
		return model.Payload(body)
	}
	return model.Payload(`{}`)
}
