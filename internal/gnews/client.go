// Package gnews forwards validated news queries to the GNews REST API and
// returns its JSON responses unchanged.
package gnews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/RobinCoderZhao/gnews-mcp/internal/gnews"

// Config holds configuration for the upstream client.
type Config struct {
	BaseURL        string        `yaml:"base_url" env:"GNEWS_BASE_URL"`
	Timeout        time.Duration `yaml:"timeout" env:"GNEWS_TIMEOUT"`
	MaxRetries     int           `yaml:"max_retries" env:"GNEWS_MAX_RETRIES"`
	InitialBackoff time.Duration `yaml:"backoff" env:"GNEWS_BACKOFF"`
	UserAgent      string        `yaml:"user_agent" env:"GNEWS_USER_AGENT"`

	TracerProvider trace.TracerProvider `yaml:"-"`
	MeterProvider  metric.MeterProvider `yaml:"-"`
	Logger         *slog.Logger         `yaml:"-"`
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://gnews.io/api/v4",
		Timeout:        20 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		UserAgent:      "gnews-mcp/1.0",
	}
}

// maxRetryWait bounds any single wait between attempts, Retry-After included.
const maxRetryWait = 30 * time.Second

// retryableStatus is the set of transient upstream statuses.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Client performs GET requests against the GNews API. It is safe for
// concurrent use; the underlying connection pool is shared by all calls.
type Client struct {
	baseURL        string
	http           *http.Client
	transport      *http.Transport
	maxRetries     int
	initialBackoff time.Duration
	maxWait        time.Duration
	userAgent      string
	tracer         trace.Tracer
	attempts       metric.Int64Counter
	logger         *slog.Logger
	closed         atomic.Bool
}

// NewClient creates the long-lived upstream client. Call Close at shutdown.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16

	attempts, err := cfg.MeterProvider.Meter(instrumentationName).Int64Counter(
		"gnews.upstream.attempts",
		metric.WithDescription("HTTP attempts sent to the GNews API"),
	)
	if err != nil {
		otel.Handle(err)
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		http:           &http.Client{Timeout: cfg.Timeout, Transport: transport},
		transport:      transport,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxWait:        maxRetryWait,
		userAgent:      cfg.UserAgent,
		tracer:         cfg.TracerProvider.Tracer(instrumentationName),
		attempts:       attempts,
		logger:         cfg.Logger,
	}
}

// Close releases pooled connections.
func (c *Client) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.transport.CloseIdleConnections()
	}
	return nil
}

// Get issues GET {baseURL}{path}?{params}, retrying transient failures, and
// returns the response body once it is known to be valid JSON.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, &DeliveryError{Kind: KindNetwork, Err: errors.New("client closed")}
	}

	ctx, span := c.tracer.Start(ctx, "gnews.get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodGet),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	policy := newRetryPolicy(ctx, c.initialBackoff, c.maxWait, c.maxRetries)
	attempt := 0
	var body json.RawMessage

	op := func() error {
		attempt++
		raw, retryAfter, err := c.do(ctx, endpoint)
		if err == nil {
			body = raw
			return nil
		}
		var derr *DeliveryError
		if errors.As(err, &derr) && derr.Kind == KindHTTPStatus && !retryableStatus[derr.StatusCode] {
			return backoff.Permanent(err)
		}
		if errors.As(err, &derr) && derr.Kind == KindBadResponse {
			return backoff.Permanent(err)
		}
		policy.retryAfter = retryAfter
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("GNews request failed, retrying",
			"path", path,
			"attempt", attempt,
			"max_retries", c.maxRetries,
			"delay", wait,
			"error", err,
		)
	}

	err := backoff.RetryNotify(op, policy, notify)
	span.SetAttributes(attribute.Int("gnews.attempts", attempt))
	if err != nil {
		err = classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return body, nil
}

// do performs one attempt.
func (c *Client) do(ctx context.Context, endpoint string) (json.RawMessage, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.count(ctx, 0)
		return nil, 0, classify(err)
	}
	defer resp.Body.Close()
	c.count(ctx, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, classify(err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), &DeliveryError{
			Kind:       KindHTTPStatus,
			StatusCode: resp.StatusCode,
			Detail:     parseErrorDetail(raw),
		}
	}

	if !json.Valid(raw) {
		return nil, 0, &DeliveryError{Kind: KindBadResponse, StatusCode: resp.StatusCode}
	}
	return json.RawMessage(raw), 0, nil
}

func (c *Client) count(ctx context.Context, status int) {
	if c.attempts == nil {
		return
	}
	c.attempts.Add(ctx, 1, metric.WithAttributes(attribute.Int("http.response.status_code", status)))
}

// classify maps transport failures onto DeliveryError kinds.
func classify(err error) error {
	var derr *DeliveryError
	if errors.As(err, &derr) {
		return err
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = redactKey(urlErr.URL)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &DeliveryError{Kind: KindTimeout, Err: err}
	}
	return &DeliveryError{Kind: KindNetwork, Err: err}
}

// redactKey hides the apikey query parameter of a request URL.
func redactKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("apikey") {
		q.Set("apikey", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// retryPolicy is an exponential backoff bounded by a retry budget. A
// Retry-After hint from the last response replaces the next computed delay,
// capped at maxWait.
type retryPolicy struct {
	backoff.BackOff
	ctx        context.Context
	retryAfter time.Duration
	maxWait    time.Duration
}

func newRetryPolicy(ctx context.Context, initial, maxWait time.Duration, maxRetries int) *retryPolicy {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initial
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = maxWait
	exp.MaxElapsedTime = 0
	exp.Reset()

	return &retryPolicy{
		BackOff: backoff.WithContext(backoff.WithMaxRetries(exp, uint64(maxRetries)), ctx),
		ctx:     ctx,
		maxWait: maxWait,
	}
}

// Context lets backoff.RetryNotify stop waiting once ctx is done.
func (p *retryPolicy) Context() context.Context { return p.ctx }

func (p *retryPolicy) NextBackOff() time.Duration {
	next := p.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if p.retryAfter > 0 {
		next, p.retryAfter = min(p.retryAfter, p.maxWait), 0
	}
	return next
}
