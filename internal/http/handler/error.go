package handler

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"ragapi/internal/http/middleware"
	"ragapi/internal/model"
	"ragapi/internal/service"
)

// Machine-readable error codes.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamRejected    = "UPSTREAM_REJECTED"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	OK         bool   `json:"ok"`
	Error      string `json:"error"`
	Code       string `json:"code"`
	RequestID  string `json:"request_id"`
	Details    any    `json:"details,omitempty"`
	DocumentID string `json:"documentId,omitempty"`
}

type validationDetails struct {
	Form   []string            `json:"form"`
	Fields map[string][]string `json:"fields"`
}

// writeError writes a standardized JSON error response without leaking internal errors.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		Error:     message,
		Code:      code,
		RequestID: middleware.RequestIDFrom(c),
	})
}

// writeServiceError maps the service error taxonomy to a response.
func writeServiceError(c *fiber.Ctx, err error) error {
	res := errorPayload{RequestID: middleware.RequestIDFrom(c)}
	status := fiber.StatusInternalServerError

	var verr *service.ValidationError
	var uerr *service.UpstreamError
	switch {
	case errors.As(err, &verr):
		status, res.Code, res.Error = fiber.StatusBadRequest, CodeValidation, verr.Message
		res.Details = newValidationDetails(verr)
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrArchiveDisabled):
		status, res.Code, res.Error = fiber.StatusNotFound, CodeNotFound, "Not found"
	case errors.As(err, &uerr):
		status = fiber.StatusBadGateway
		res.Error = upstreamMessage(uerr)
		res.DocumentID = uerr.DocumentID
		if len(uerr.Details) > 0 {
			res.Details = json.RawMessage(uerr.Details)
		}
		res.Code = CodeUpstreamRejected
		if errors.Is(uerr, service.ErrUpstreamUnavailable) {
			res.Code = CodeUpstreamUnavailable
		}
		middleware.LoggerFrom(c).Warn("upstream failure", zap.Error(err))
	default:
		res.Code, res.Error = CodeInternal, "internal server error"
		middleware.LoggerFrom(c).Error("request failed", zap.Error(err))
	}

	return c.Status(status).JSON(res)
}

func upstreamMessage(e *service.UpstreamError) string {
	switch {
	case errors.Is(e, service.ErrUpstreamUnavailable):
		return "Could not reach RAG service"
	case e.Op == "ingest":
		return "Ingestion failed"
	default:
		return "RAG service error"
	}
}

func newValidationDetails(e *service.ValidationError) validationDetails {
	d := validationDetails{Form: e.Form, Fields: e.Fields}
	if d.Form == nil {
		d.Form = []string{}
	}
	if d.Fields == nil {
		d.Fields = map[string][]string{}
	}
	return d
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if !errors.As(err, &fe) {
			return writeServiceError(c, err)
		}

		switch fe.Code {
		case fiber.StatusBadRequest:
			return writeServiceError(c, service.NewValidationError("Invalid input").AddForm("malformed request"))
		case fiber.StatusRequestEntityTooLarge:
			return writeServiceError(c, service.NewValidationError("File too large").Add("file", "exceeds the upload limit"))
		case fiber.StatusNotFound:
			return writeError(c, fe.Code, CodeNotFound, "Not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, fe.Code, CodeMethodNotAllowed, "method not allowed")
		default:
			if fe.Code >= fiber.StatusInternalServerError {
				middleware.LoggerFrom(c).Error("request failed", zap.Error(err))
				return writeError(c, fiber.StatusInternalServerError, CodeInternal, "internal server error")
			}
			code := strings.ToUpper(strings.ReplaceAll(utils.StatusMessage(fe.Code), " ", "_"))
			return writeError(c, fe.Code, code, fe.Message)
		}
	}
}

// okBody merges "ok": true into an upstream JSON object.
func okBody(p model.Payload) (map[string]json.RawMessage, error) {
	body := map[string]json.RawMessage{}
	if model.IsJSONObject(p) {
		if err := json.Unmarshal(p, &body); err != nil {
			return nil, err
		}
	}
	body["ok"] = json.RawMessage("true")
	return body, nil
}
