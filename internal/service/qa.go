package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"ragapi/internal/model"
	"ragapi/internal/ragclient"
)

// QAService answers questions through the RAG service.
type QAService interface {
	// Answer validates the question and forwards it once. The upstream JSON object
	// is returned untouched, citation order included.
	Answer(ctx context.Context, question string, topK *int) (model.Payload, error)
}

type qaService struct {
	rag ragclient.Client
	log *zap.Logger
}

// NewQAService constructs a QAService.
func NewQAService(rag ragclient.Client, log *zap.Logger) QAService {
	if log == nil {
		log = zap.NewNop()
	}
	return &qaService{rag: rag, log: log.Named("qa")}
}

func (s *qaService) Answer(ctx context.Context, question string, topK *int) (model.Payload, error) {
	req := QARequest{Question: question, TopK: topK}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload, err := s.rag.Answer(ctx, req.Question, req.TopK)
	if err != nil {
		s.log.Warn("question not answered", zap.Error(err))
		return nil, toUpstreamError("qa", "", err)
	}

	if !model.IsJSONObject(payload) {
		s.log.Warn("rag answer is not a JSON object", zap.Int("bytes", len(payload)))
		return model.Payload(`{}`), nil
	}

	var peek struct {
		Citations []model.Citation `json:"citations"`
	}
	if err := json.Unmarshal(payload, &peek); err == nil {
		s.log.Debug("question answered", zap.Int("citations", len(peek.Citations)))
	}
	return payload, nil
}
