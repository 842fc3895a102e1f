package handler

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/gofiber/fiber/v2"

	"ragapi/internal/service"
)

// AskQuestion godoc
// @Summary      Ask a question
// @Description  Answers from the ingested documents. The upstream answer is relayed with
// @Description  its citations in upstream order.
// @Tags         qa
// @Accept       json
// @Produce      json
// @Param        request  body      service.QARequest  true  "Question"
// @Success      200      {object}  map[string]any
// @Failure      400      {object}  errorPayload
// @Failure      502      {object}  errorPayload
// @Router       /qa [post]
func AskQuestion(svc service.QAService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := decodeQARequest(c.Body())
		if err != nil {
			return writeServiceError(c, err)
		}

		answer, err := svc.Answer(c.UserContext(), req.Question, req.TopK)
		if err != nil {
			return writeServiceError(c, err)
		}

		body, err := okBody(answer)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(body)
	}
}

// decodeQARequest reports type mismatches per field instead of failing on the
// first one. An empty body is an empty object.
func decodeQARequest(raw []byte) (*service.QARequest, error) {
	req := &service.QARequest{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return req, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, service.NewValidationError("Invalid input").AddForm("body must be a JSON object")
	}

	verr := service.NewValidationError("Invalid input")
	if v, ok := fields["question"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &req.Question); err != nil {
			verr.Add("question", "must be a string")
		}
	}
	if v, ok := fields["topK"]; ok && !isNull(v) {
		if k, ok := integral(v); ok {
			req.TopK = &k
		} else {
			verr.Add("topK", "must be an integer")
		}
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return req, nil
}

// integral accepts any JSON number with an integer value, so 4 and 4.0 are the
// same. Values beyond the int32 range are left to the range check as out of bounds.
func integral(v json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(v, &f); err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(math.Max(math.Min(f, math.MaxInt32), math.MinInt32)), true
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
