package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/bnema/taskflow-cli/internal/version"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxResponseBytes      = 1 << 20
	tracerName            = "github.com/bnema/taskflow-cli/internal/gateway"
	refreshPath           = "/auth/refresh"
)

var numericSegment = regexp.MustCompile(`/\d+(/|$)`)

// TokenSource is the read-only view of the session the gateway needs.
type TokenSource interface {
	AccessToken() string
}

type Config struct {
	BaseURL        string
	Timeout        time.Duration
	HTTPClient     *http.Client
	Tokens         TokenSource
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	UserAgent      string
}

type Gateway struct {
	baseURL   *url.URL
	timeout   time.Duration
	client    *http.Client
	tokens    TokenSource
	logger    *slog.Logger
	tracer    trace.Tracer
	userAgent string
	refreshes singleflight.Group
}

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Anonymous requests never carry the Authorization header.
	Anonymous bool
}

func New(cfg Config) (*Gateway, error) {
	baseURL, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		baseURL:   baseURL,
		timeout:   cfg.Timeout,
		client:    cfg.HTTPClient,
		tokens:    cfg.Tokens,
		logger:    cfg.Logger,
		userAgent: cfg.UserAgent,
	}
	if g.timeout <= 0 {
		g.timeout = defaultRequestTimeout
	}
	if g.client == nil {
		g.client = http.DefaultClient
	}
	if g.logger == nil {
		g.logger = slog.New(slog.DiscardHandler)
	}
	if g.userAgent == "" {
		g.userAgent = version.UserAgent()
	}
	provider := cfg.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	g.tracer = provider.Tracer(tracerName)

	return g, nil
}

// Do sends one request and decodes a 2xx JSON body into out. Failures are
// always returned as *Error.
func (g *Gateway) Do(ctx context.Context, req Request, out any) error {
	endpoint, err := g.endpoint(req.Path, req.Query)
	if err != nil {
		return &Error{Kind: ErrValidation, Err: err}
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return &Error{Kind: ErrValidation, Detail: "encode request body", Err: err}
		}
		body = bytes.NewReader(payload)
	}

	requestCtx, cancel := g.requestContext(ctx)
	defer cancel()

	route := routeTemplate(req.Path)
	requestCtx, span := g.tracer.Start(requestCtx, "HTTP "+req.Method+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.route", route),
		),
	)
	defer span.End()

	httpReq, err := http.NewRequestWithContext(requestCtx, req.Method, endpoint, body)
	if err != nil {
		return g.fail(span, &Error{Kind: ErrNetwork, Err: fmt.Errorf("create request: %w", err)})
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", g.userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if !req.Anonymous && g.tokens != nil {
		if token := g.tokens.AccessToken(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	started := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.logger.DebugContext(ctx, "api request failed", "method", req.Method, "route", route, "request_id", requestID, "error", err)
		return g.fail(span, &Error{Kind: ErrNetwork, Err: err})
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	g.logger.DebugContext(ctx, "api request", "method", req.Method, "route", route, "status", resp.StatusCode,
		"request_id", requestID, "duration", time.Since(started))

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return g.fail(span, &Error{Kind: ErrNetwork, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)})
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return g.fail(span, classifyStatus(resp.StatusCode, payload))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return g.fail(span, &Error{Kind: ErrServer, StatusCode: resp.StatusCode, Detail: "empty response body"})
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return g.fail(span, &Error{Kind: ErrServer, StatusCode: resp.StatusCode, Detail: "decode response", Err: err})
	}

	return nil
}

// Refresh exchanges a refresh token for a new token pair. Concurrent calls
// with the same refresh token share one request. The shared request is
// detached from the caller's cancellation and bounded by the gateway timeout;
// a cancelled caller stops waiting without aborting it for the others.
func (g *Gateway) Refresh(ctx context.Context, refreshToken string) (domain.Tokens, error) {
	if refreshToken == "" {
		return domain.Tokens{}, &Error{Kind: ErrUnauthenticated, Detail: "no refresh token"}
	}

	shared := context.WithoutCancel(ctx)
	results := g.refreshes.DoChan(refreshToken, func() (any, error) {
		var tokens domain.Tokens
		err := g.Do(shared, Request{
			Method:    http.MethodPost,
			Path:      refreshPath,
			Body:      map[string]string{"refresh_token": refreshToken},
			Anonymous: true,
		}, &tokens)
		if err != nil {
			return domain.Tokens{}, err
		}
		if tokens.AccessToken == "" {
			return domain.Tokens{}, &Error{Kind: ErrServer, StatusCode: http.StatusOK, Detail: "refresh response has no access token"}
		}
		return tokens, nil
	})

	select {
	case result := <-results:
		if result.Err != nil {
			return domain.Tokens{}, result.Err
		}
		return result.Val.(domain.Tokens), nil
	case <-ctx.Done():
		return domain.Tokens{}, &Error{Kind: ErrNetwork, Err: ctx.Err()}
	}
}

func (g *Gateway) fail(span trace.Span, err *Error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Kind.Error())
	return err
}

func (g *Gateway) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, g.timeout)
}

func (g *Gateway) endpoint(path string, query url.Values) (string, error) {
	if path == "" {
		return "", errors.New("api path is required")
	}

	endpoint := g.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	return endpoint.String(), nil
}

func parseBaseURL(baseURL string) (*url.URL, error) {
	if baseURL == "" {
		return nil, errors.New("api base url is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("api base url must use http or https")
	}
	if parsed.Host == "" {
		return nil, errors.New("api base url host is required")
	}

	parsed.Path = strings.TrimRight(parsed.Path, "/")
	return parsed, nil
}

// routeTemplate replaces numeric path segments so span names stay low
// cardinality.
func routeTemplate(path string) string {
	return numericSegment.ReplaceAllString(path, "/{id}$1")
}
