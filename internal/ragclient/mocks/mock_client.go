package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ragapi/internal/model"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Ingest(ctx context.Context, documentID string) (model.Payload, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.Payload), args.Error(1)
}

func (m *MockClient) Answer(ctx context.Context, question string, topK *int) (model.Payload, error) {
	args := m.Called(ctx, question, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.Payload), args.Error(1)
}

func (m *MockClient) Health(ctx context.Context) error {
	args := m.Called(ctx)
	if f, ok := args.Get(0).(func(context.Context) error); ok {
		return f(ctx)
	}
	return args.Error(0)
}

func (m *MockClient) LLMHealth(ctx context.Context) error {
	args := m.Called(ctx)
	if f, ok := args.Get(0).(func(context.Context) error); ok {
		return f(ctx)
	}
	return args.Error(0)
}
