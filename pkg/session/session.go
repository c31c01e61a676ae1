// Package session is the authenticated transport to a Chef server.
//
// Every request is signed with the Chef authentication protocol and sent
// through a retrying HTTP client. Callers get back the status and body; they
// decide what a non-2xx answer means.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	// DefaultChefVersion is sent as X-Chef-Version
	DefaultChefVersion = "12.0.2"
	// DefaultAPIVersion is sent as X-Ops-Server-API-Version
	DefaultAPIVersion = 1
	// DefaultTimeout bounds a single HTTP attempt
	DefaultTimeout = 30 * time.Second
	// DefaultRetryMax is the retry count chefkit configures by default
	DefaultRetryMax = 3
)

// Config holds the settings for a Session
type Config struct {
	UserID      string
	PrivateKey  []byte // PEM encoded
	SignVersion string
	ChefVersion string
	APIVersion  int
	Timeout     time.Duration
	RetryMax    int // retries after the first attempt, 0 disables them
	Logger      *zap.Logger
}

// Session performs signed calls against a Chef server
type Session struct {
	client      *retryablehttp.Client
	signer      *Signer
	chefVersion string
	logger      *zap.Logger
	now         func() time.Time
}

// New creates a Session from cfg
func New(cfg Config) (*Session, error) {
	if cfg.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	key, err := ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	if cfg.ChefVersion == "" {
		cfg.ChefVersion = DefaultChefVersion
	}
	if cfg.APIVersion == 0 {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultPooledClient()
	client.HTTPClient.Timeout = cfg.Timeout
	client.RetryMax = cfg.RetryMax
	client.Logger = leveledLogger{cfg.Logger.Sugar()}
	client.CheckRetry = retryPolicy
	// Hand the last response back instead of a "giving up" error
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Session{
		client: client,
		signer: &Signer{
			UserID:     cfg.UserID,
			Key:        key,
			Version:    cfg.SignVersion,
			APIVersion: cfg.APIVersion,
		},
		chefVersion: cfg.ChefVersion,
		logger:      cfg.Logger,
		now:         time.Now,
	}, nil
}

// Get fetches rawURL with optional query parameters
func (s *Session) Get(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	return s.do(ctx, http.MethodGet, rawURL, params, nil)
}

// Post sends body as JSON to rawURL with optional query parameters
func (s *Session) Post(ctx context.Context, rawURL string, params url.Values, body any) (*Response, error) {
	return s.do(ctx, http.MethodPost, rawURL, params, body)
}

// Put replaces the document at rawURL with body
func (s *Session) Put(ctx context.Context, rawURL string, body any) (*Response, error) {
	return s.do(ctx, http.MethodPut, rawURL, nil, body)
}

// Delete removes the document at rawURL
func (s *Session) Delete(ctx context.Context, rawURL string) (*Response, error) {
	return s.do(ctx, http.MethodDelete, rawURL, nil, nil)
}

func (s *Session) do(ctx context.Context, method, rawURL string, params url.Values, body any) (*Response, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if len(params) > 0 {
		q := target.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Chef-Version", s.chefVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := s.signer.Sign(req.Request, payload, s.now()); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("chef request failed",
			zap.String("method", method),
			zap.String("url", target.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s %s: %w", method, target.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	s.logger.Debug("chef request",
		zap.String("method", method),
		zap.String("url", target.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// retryPolicy is the retryablehttp default, except that a 5xx answer to a
// POST or PATCH is returned as is: the server may have applied the request,
// and sending it again would create twice or fail with a conflict.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp != nil && resp.StatusCode >= 500 && !idempotent(resp.Request) {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func idempotent(req *http.Request) bool {
	if req == nil {
		return true
	}
	switch req.Method {
	case http.MethodPost, http.MethodPatch:
		return false
	default:
		return true
	}
}

// leveledLogger routes retryablehttp logging into zap
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
