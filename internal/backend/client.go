package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout = 10 * time.Second
	maxBodyBytes   = 8 << 20
)

// Config wires the client into its execution context. Token, Fingerprint and
// OnRelogin are optional; the CLI leaves Fingerprint nil so no fingerprint
// headers are ever sent from it.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Token       func(ctx context.Context) string
	Fingerprint func(ctx context.Context) (Fingerprint, bool)
	OnRelogin   func(ctx context.Context, err *ReloginError)
	Logger      *logrus.Entry
}

type Client struct {
	cfg    Config
	http   *http.Client
	tracer trace.Tracer
	log    *logrus.Entry
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("backend: BaseURL is required")
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("backend: invalid BaseURL %q", cfg.BaseURL)
	}
	cfg.BaseURL = base
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		cfg:    cfg,
		http:   hc,
		tracer: otel.Tracer("library-web/backend"),
		log:    log.WithField("component", "backend"),
	}, nil
}

func (c *Client) Timeout() time.Duration { return c.cfg.Timeout }

// Request sends one JSON request and returns the raw response body on 2xx.
// An empty token sends the request unauthenticated.
func (c *Client) Request(ctx context.Context, endpoint, method string, body any, token string) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "backend.request", trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("backend.endpoint", endpoint),
	))
	defer span.End()

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("backend: encode %s %s: %w", method, endpoint, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), rdr)
	if err != nil {
		return nil, fmt.Errorf("backend: build %s %s: %w", method, endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Fingerprint != nil {
		if fp, ok := c.cfg.Fingerprint(parent); ok {
			fp.apply(req.Header)
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		err = c.transportError(parent, ctx, method, endpoint, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		err = c.transportError(parent, ctx, method, endpoint, err)
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	entry := c.log.WithFields(logrus.Fields{
		"method":   method,
		"endpoint": endpoint,
		"status":   resp.StatusCode,
		"latency":  time.Since(start).Milliseconds(),
	})

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		entry.Debug("backend request")
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil, nil
		}
		return json.RawMessage(raw), nil
	}

	errBody := map[string]any{}
	_ = json.Unmarshal(raw, &errBody)
	msg := errorMessage(errBody)

	if resp.StatusCode == http.StatusUnauthorized && requireRelogin(errBody) {
		rerr := &ReloginError{Message: msg}
		entry.Warn("backend requested relogin; invalidating session")
		span.SetStatus(codes.Error, "relogin required")
		if c.cfg.OnRelogin != nil {
			c.cfg.OnRelogin(parent, rerr)
		}
		return nil, rerr
	}

	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode >= 500 {
		entry.WithField("message", msg).Warn("backend request failed")
	} else {
		entry.WithField("message", msg).Info("backend request rejected")
	}
	span.SetStatus(codes.Error, msg)
	return nil, &HTTPError{Status: resp.StatusCode, Message: msg, Body: errBody}
}

// Call resolves the token from Config.Token and decodes a 2xx body into out.
func (c *Client) Call(ctx context.Context, method, endpoint string, body, out any) error {
	token := ""
	if c.cfg.Token != nil {
		token = c.cfg.Token(ctx)
	}
	raw, err := c.Request(ctx, endpoint, method, body, token)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("backend: decode %s %s: %w", method, endpoint, err)
	}
	return nil
}

func (c *Client) url(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.cfg.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
}

// transportError separates our own deadline from caller cancellation and
// plain network failures.
func (c *Client) transportError(parent, ctx context.Context, method, endpoint string, err error) error {
	if perr := parent.Err(); perr != nil {
		return fmt.Errorf("backend: %s %s: %w", method, endpoint, perr)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.log.WithFields(logrus.Fields{
			"method":   method,
			"endpoint": endpoint,
			"timeout":  c.cfg.Timeout.String(),
		}).Warn("backend request timed out")
		return fmt.Errorf("%w after %s (%s %s)", ErrTimeout, c.cfg.Timeout, method, endpoint)
	}
	c.log.WithError(err).WithField("endpoint", endpoint).Warn("backend unreachable")
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

func errorMessage(body map[string]any) string {
	for _, k := range []string{"message", "Message", "error", "Error", "title", "detail"} {
		switch v := body[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case map[string]any:
			if s, ok := v["message"].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func requireRelogin(body map[string]any) bool {
	for _, k := range []string{"requireRelogin", "RequireRelogin", "require_relogin"} {
		switch v := body[k].(type) {
		case bool:
			return v
		case string:
			return strings.EqualFold(v, "true")
		}
	}
	return false
}
