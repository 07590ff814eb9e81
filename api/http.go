// Package api talks to the remote blog API over JSON HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cppla/blogdeck/config"
	"github.com/cppla/blogdeck/utils"
)

const tracerName = "github.com/cppla/blogdeck/api"

// TransportError is returned for any non-2xx response from the blog API.
// Status is the only discriminator between not-found, validation and server failures.
type TransportError struct {
	Status  int
	URL     string
	Message string
}

func (e *TransportError) Error() string {
	return e.Message
}

// DecodeError is returned when a successful response body does not match the expected shape.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// RequestOptions customises a single request. Body must already be JSON encoded.
type RequestOptions struct {
	Method  string
	Body    []byte
	Headers map[string]string
}

// Transport issues JSON requests against the configured blog API base URL.
type Transport struct {
	client  *http.Client
	baseURL func() string
	logger  *zap.Logger
	tracer  trace.Tracer
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *Transport) {
		t.client = c
	}
}

// WithBaseURL overrides how the base URL is resolved. It is still called per request.
func WithBaseURL(fn func() string) TransportOption {
	return func(t *Transport) {
		t.baseURL = fn
	}
}

// WithLogger sets the logger used for per-request debug output.
func WithLogger(l *zap.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = l
	}
}

// WithTracer sets the OpenTelemetry tracer; the global tracer is used otherwise.
func WithTracer(tr trace.Tracer) TransportOption {
	return func(t *Transport) {
		t.tracer = tr
	}
}

// NewTransport creates a Transport. Without options it uses http.DefaultClient,
// resolves the base URL from configuration on every call and logs nothing.
func NewTransport(opts ...TransportOption) *Transport {
	t := &Transport{
		client:  http.DefaultClient,
		baseURL: config.APIBaseURL,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ResolveURL joins the current base URL and path with exactly one slash between them.
func (t *Transport) ResolveURL(path string) string {
	return JoinURL(t.baseURL(), path)
}

// JoinURL trims one trailing slash from base and inserts a slash before path when it has none.
func JoinURL(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// RequestJSON performs one round trip and decodes the JSON response into T.
func RequestJSON[T any](ctx context.Context, t *Transport, path string, opts *RequestOptions) (T, error) {
	var out T
	body, err := t.do(ctx, path, opts)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body.data, &out); err != nil {
		return out, &DecodeError{URL: body.url, Err: err}
	}
	return out, nil
}

type response struct {
	url  string
	data []byte
}

func (t *Transport) do(ctx context.Context, path string, opts *RequestOptions) (*response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	url := t.ResolveURL(path)

	ctx, span := t.tracer.Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.full", url),
	)

	var reqBody io.Reader
	if opts.Body != nil {
		reqBody = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("build request %s %s: %w", method, url, err)
	}
	// Default first, caller headers layered on top.
	req.Header.Set("Content-Type", "application/json")
	if id := utils.RequestIDFrom(ctx); id != "" {
		req.Header.Set(utils.RequestIDHeader, id)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	res, err := t.client.Do(req)
	if err != nil {
		observeRequest(method, "error", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.logger.Debug("blog api request failed", zap.String("method", method), zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer res.Body.Close()

	status := strconv.Itoa(res.StatusCode)
	observeRequest(method, status, start)
	span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode))
	t.logger.Debug("blog api request",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", res.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		terr := &TransportError{Status: res.StatusCode, URL: url, Message: errorMessage(res)}
		span.SetStatus(codes.Error, terr.Message)
		return nil, terr
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}
	return &response{url: url, data: data}, nil
}

// maxErrorBody caps how much of a failed response becomes the error message.
const maxErrorBody = 64 << 10

// errorMessage reads the body as the error message. A read failure or empty body
// falls back to a synthesized message and never surfaces as an error itself.
func errorMessage(res *http.Response) string {
	b, err := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	if err == nil && len(b) > 0 {
		return string(b)
	}
	return fmt.Sprintf("Request failed with status %d", res.StatusCode)
}
