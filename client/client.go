package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/tsuiseki/tracing"
)

const tracesPath = "/api/3.0/traces"

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the trace store (e.g. "https://traces.example.com").
	BaseURL string

	// APIKey is the secret used to obtain a bearer token.
	APIKey string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with a 30-second timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the trace-store API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL  string
	client   *http.Client
	tokenMgr *tokenManager
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL or APIKey is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("client: BaseURL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("client: APIKey is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:  baseURL,
		client:   httpClient,
		tokenMgr: newTokenManager(baseURL, cfg.APIKey, httpClient),
	}, nil
}

// createTraceBody is the wire format for trace submission.
type createTraceBody struct {
	Trace tracing.Trace `json:"trace"`
}

// traceInfoEnvelope wraps the server's response to trace submission.
type traceInfoEnvelope struct {
	TraceInfo json.RawMessage `json:"trace_info"`
}

// traceEnvelope wraps the server's response to trace retrieval.
type traceEnvelope struct {
	Trace json.RawMessage `json:"trace"`
}

// CreateTrace submits a fully assembled trace to the store and returns the
// trace info the server recorded. The Idempotency-Key is derived from the
// trace id, so resubmitting the same trace after a failed flush is
// deduplicated server-side.
func (c *Client) CreateTrace(ctx context.Context, trace tracing.Trace) (*tracing.TraceInfo, error) {
	body, err := json.Marshal(createTraceBody{Trace: trace})
	if err != nil {
		return nil, fmt.Errorf("client: marshal trace body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tracesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("client: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey(trace))

	respBody, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	var envelope traceInfoEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("client: decode response envelope: %w", err)
	}
	info, err := tracing.DecodeTraceInfo(envelope.TraceInfo)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// idempotencyKey maps a trace id to a deterministic v5 UUID so every
// submission of the same trace presents the same key. Traces without an id
// fall back to a random key.
func idempotencyKey(t tracing.Trace) string {
	if t.Info.TraceID == "" {
		return uuid.New().String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(t.Info.TraceID)).String()
}

// GetTrace retrieves a stored trace by id.
func (c *Client) GetTrace(ctx context.Context, traceID string) (*tracing.Trace, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+tracesPath+"/"+url.PathEscape(traceID), nil)
	if err != nil {
		return nil, fmt.Errorf("client: create request: %w", err)
	}

	respBody, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	var envelope traceEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("client: decode response envelope: %w", err)
	}
	trace, err := tracing.DecodeTrace(envelope.Trace)
	if err != nil {
		return nil, err
	}
	return &trace, nil
}

// SubmitBatch submits traces concurrently, at most concurrency requests in
// flight. The returned infos are positionally aligned with the input. The
// first failure cancels the remaining submissions.
func (c *Client) SubmitBatch(ctx context.Context, traces []tracing.Trace, concurrency int) ([]tracing.TraceInfo, error) {
	if concurrency <= 0 {
		concurrency = 4
	}

	infos := make([]tracing.TraceInfo, len(traces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, trace := range traces {
		i, trace := i, trace
		g.Go(func() error {
			info, err := c.CreateTrace(gctx, trace)
			if err != nil {
				return fmt.Errorf("client: submit trace %s: %w", trace.Info.TraceID, err)
			}
			infos[i] = *info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	token, err := c.tokenMgr.getToken(req.Context())
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, parseErrorResponse(resp.StatusCode, body)
	}
	return body, nil
}

// apiErrorEnvelope is the server's standard error response wrapper.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
