package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/torosent/loaded/internal/config"
	"github.com/torosent/loaded/internal/httpclient"
	"golang.org/x/net/http/httpguts"
)

// Simple sends the same request on every iteration.
type Simple struct {
	target string
	cfg    config.SimpleConfig
	spec   RequestSpec
	ready  bool
}

func NewSimple(target string, cfg config.SimpleConfig) *Simple {
	return &Simple{target: strings.TrimSpace(target), cfg: cfg}
}

func (s *Simple) Name() string { return string(config.EngineSimple) }

// Setup validates the method and headers and reads the body into memory once.
func (s *Simple) Setup(_ context.Context) error {
	if s.target == "" {
		return fmt.Errorf("target URL is required")
	}

	method := strings.ToUpper(strings.TrimSpace(s.cfg.Method))
	if method == "" {
		method = http.MethodGet
	}
	if !httpguts.ValidHeaderFieldName(method) {
		return fmt.Errorf("invalid method %q", s.cfg.Method)
	}

	headers := http.Header{}
	for key, value := range s.cfg.Headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || !httpguts.ValidHeaderFieldName(trimmedKey) {
			return fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if !httpguts.ValidHeaderFieldValue(value) {
			return fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		headers.Set(canonicalKey, value)
	}
	if headers.Get("User-Agent") == "" {
		headers.Set("User-Agent", httpclient.UserAgent())
	}

	source, err := httpclient.NewBodySource(s.cfg)
	if err != nil {
		return err
	}
	body, err := materialize(source)
	if err != nil {
		return err
	}

	s.spec = RequestSpec{
		Op:     OpRequest,
		Method: method,
		URL:    s.target,
		Header: headers,
		Body:   body,
	}
	s.ready = true
	return nil
}

func (s *Simple) Request(_ context.Context) (RequestSpec, error) {
	if !s.ready {
		return RequestSpec{}, fmt.Errorf("simple engine used before setup")
	}
	return s.spec, nil
}

// Response drains the body. Any 2xx or 3xx status is a success.
func (s *Simple) Response(resp *http.Response) (Outcome, error) {
	read, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("read response body: %w", err)
	}
	return statusOutcome(resp, read, resp.StatusCode >= 200 && resp.StatusCode < 400), nil
}

func (s *Simple) Cleanup() error { return nil }

func materialize(source httpclient.BodySource) (httpclient.BodySource, error) {
	if n, ok := source.ContentLength(); ok && n == 0 {
		return httpclient.EmptyBody(), nil
	}
	rc, err := source.NewReader()
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}
	return httpclient.NewBytesSource(data), nil
}
