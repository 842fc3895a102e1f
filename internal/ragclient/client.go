package ragclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ragapi/internal/logger"
	"ragapi/internal/model"
)

// maxBodyBytes caps how much of an upstream response is read into memory.
const maxBodyBytes = 4 << 20

// ErrUnavailable is returned when the RAG service could not be reached or did not
// answer in time.
var ErrUnavailable = errors.New("rag service unreachable")

// StatusError is returned when the RAG service answered with a non-success status.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rag service returned status %d", e.StatusCode)
}

// Client talks to the external retrieval-augmented generation service.
type Client interface {
	// Ingest asks the service to chunk and index a stored document.
	Ingest(ctx context.Context, documentID string) (model.Payload, error)
	// Answer forwards a question; topK is omitted from the request when nil.
	Answer(ctx context.Context, question string, topK *int) (model.Payload, error)
	// Health checks the service's own health endpoint.
	Health(ctx context.Context) error
	// LLMHealth checks the service's language-model connectivity endpoint.
	LLMHealth(ctx context.Context) error
}

// Options configure New.
type Options struct {
	BaseURL string
	// Timeout bounds Ingest and Answer. Health probes are bounded by the caller's context.
	Timeout time.Duration
	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Logger    *zap.Logger
	Metrics   *Metrics
	// RateLimit caps Ingest and Answer calls per second; zero disables the limit.
	// Callers wait for a slot until their context ends.
	RateLimit float64
	RateBurst int
}

type httpClient struct {
	base    string
	timeout time.Duration
	client  *retryablehttp.Client
	metrics *Metrics
	limiter *rate.Limiter
}

var _ Client = (*httpClient)(nil)

// New builds a Client. Requests are traced and never retried.
func New(opts Options) (Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse rag base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid rag base url %q", opts.BaseURL)
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.CheckRetry = noRetry
	rc.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(transport)}
	if opts.Logger != nil {
		rc.Logger = logger.NewLeveled(opts.Logger.Named("ragclient"))
	} else {
		rc.Logger = nil
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &httpClient{
		base:    strings.TrimRight(u.String(), "/"),
		timeout: opts.Timeout,
		client:  rc,
		metrics: opts.Metrics,
		limiter: limiter,
	}, nil
}

// noRetry hands every response back to the caller; retrying is the client's decision.
func noRetry(ctx context.Context, _ *http.Response, _ error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, nil
}

func (c *httpClient) Ingest(ctx context.Context, documentID string) (model.Payload, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.wait(ctx, "ingest"); err != nil {
		return nil, err
	}
	body, err := c.do(ctx, "ingest", http.MethodPost, "/ingest/"+url.PathEscape(documentID), nil)
	if err != nil {
		return nil, err
	}
	return AsPayload(body, true), nil
}

type qaRequest struct {
	Question string `json:"question"`
	TopK     *int   `json:"top_k,omitempty"`
}

func (c *httpClient) Answer(ctx context.Context, question string, topK *int) (model.Payload, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	reqBody, err := json.Marshal(qaRequest{Question: question, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("encode qa request: %w", err)
	}
	if err := c.wait(ctx, "qa"); err != nil {
		return nil, err
	}
	body, err := c.do(ctx, "qa", http.MethodPost, "/qa", reqBody)
	if err != nil {
		return nil, err
	}
	return model.Payload(body), nil
}

func (c *httpClient) Health(ctx context.Context) error {
	_, err := c.do(ctx, "health", http.MethodGet, "/health", nil)
	return err
}

func (c *httpClient) LLMHealth(ctx context.Context) error {
	_, err := c.do(ctx, "llm_health", http.MethodGet, "/llm-health", nil)
	return err
}

// wait blocks until the limiter grants a slot. Running out of time while queued
// counts as the service being unavailable.
func (c *httpClient) wait(ctx context.Context, op string) error {
	if c.limiter == nil {
		return nil
	}
	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.observe(op, outcomeUnavailable, time.Since(start))
		return fmt.Errorf("%w: rate limited: %w", ErrUnavailable, err)
	}
	return nil
}

func (c *httpClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *httpClient) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	var raw interface{}
	if body != nil {
		raw = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.base+path, raw)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.observe(op, outcomeUnavailable, time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.observe(op, outcomeUnavailable, time.Since(start))
		return nil, fmt.Errorf("%w: read %s response: %w", ErrUnavailable, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.observe(op, outcomeRejected, time.Since(start))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: respBody}
	}

	c.metrics.observe(op, outcomeSuccess, time.Since(start))
	return respBody, nil
}

// AsPayload returns body when it is valid JSON, otherwise a minimal {"ok":<ok>} object.
func AsPayload(body []byte, ok bool) model.Payload {
	if len(body) > 0 && json.Valid(body) {
		return model.Payload(body)
	}
	if ok {
		return model.Payload(`{"ok":true}`)
	}
	return model.Payload(`{"ok":false}`)
}
