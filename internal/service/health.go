package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ragapi/internal/database"
	"ragapi/internal/model"
	"ragapi/internal/ragclient"
)

// DBProbe is the view of the database handle the health check needs.
type DBProbe interface {
	Connected() bool
	PingContext(ctx context.Context) error
}

// HealthService aggregates the status of every dependency.
type HealthService interface {
	// Check never fails; probe failures are reported in the returned status.
	Check(ctx context.Context) model.HealthStatus
}

type healthService struct {
	db      DBProbe
	rag     ragclient.Client
	timeout time.Duration
	log     *zap.Logger
}

// NewHealthService constructs a HealthService; each probe is bounded by timeout.
func NewHealthService(db DBProbe, rag ragclient.Client, timeout time.Duration, log *zap.Logger) HealthService {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &healthService{db: db, rag: rag, timeout: timeout, log: log.Named("health")}
}

func (s *healthService) Check(ctx context.Context) model.HealthStatus {
	st := model.HealthStatus{API: model.DependencyStatus{OK: true}}

	// Each goroutine owns one field of st.
	var g errgroup.Group
	g.Go(func() error {
		st.Database = s.probe(ctx, "database", s.checkDatabase)
		return nil
	})
	g.Go(func() error {
		st.RAG = s.probe(ctx, "rag", s.rag.Health)
		return nil
	})
	g.Go(func() error {
		st.LLM = s.probe(ctx, "llm", s.rag.LLMHealth)
		return nil
	})
	_ = g.Wait()

	st.OK = st.Database.OK && st.RAG.OK && st.LLM.OK
	return st
}

func (s *healthService) checkDatabase(ctx context.Context) error {
	if s.db == nil || !s.db.Connected() {
		return database.ErrNotConnected
	}
	return s.db.PingContext(ctx)
}

func (s *healthService) probe(ctx context.Context, name string, fn func(context.Context) error) (status model.DependencyStatus) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("dependency probe panicked", zap.String("dependency", name), zap.Any("panic", r))
			status = model.DependencyStatus{Error: fmt.Sprintf("probe failed: %v", r)}
		}
	}()

	if err := fn(ctx); err != nil {
		s.log.Warn("dependency probe failed", zap.String("dependency", name), zap.Error(err))
		return model.DependencyStatus{Error: err.Error()}
	}
	return model.DependencyStatus{OK: true}
}
