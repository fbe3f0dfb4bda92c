// Package engine defines the request generators a connection drives.
//
// An Engine is owned by exactly one connection. The connection asks it for a
// request, sends it (possibly several times when attempts fail at the
// transport level) and hands the response back for classification. Two
// variants exist: [Simple] repeats one fixed request and [S3] writes and
// reads deterministically named objects.
package engine

import (
	"context"
	"fmt"
	"net/http"

	"github.com/torosent/loaded/internal/config"
	"github.com/torosent/loaded/internal/httpclient"
	"github.com/torosent/loaded/internal/metrics"
)

// Op names the kind of request an engine produced.
type Op string

const (
	OpRequest Op = "request"
	OpPut     Op = "put"
	OpGet     Op = "get"
)

// RequestSpec describes one logical request. The same spec is re-sent on
// every attempt of a retried exchange.
type RequestSpec struct {
	Op     Op
	Method string
	URL    string
	Header http.Header
	Body   httpclient.BodySource
}

// Build creates a fresh *http.Request for one send attempt.
func (s RequestSpec) Build(ctx context.Context) (*http.Request, error) {
	return httpclient.NewRequest(ctx, s.Method, s.URL, s.Header, s.Body)
}

// BytesToWrite returns the size of the request body.
func (s RequestSpec) BytesToWrite() int64 {
	if s.Body == nil {
		return 0
	}
	if n, ok := s.Body.ContentLength(); ok {
		return n
	}
	return 0
}

// Outcome is the classification of a received response.
type Outcome struct {
	Kind       metrics.Kind
	Reason     string
	StatusCode int
	BytesRead  int64
}

// Success reports whether the response met the engine's expectations.
func (o Outcome) Success() bool {
	return o.Kind == metrics.KindSuccess
}

// Engine generates requests and judges responses for one connection.
//
// Response must fully consume resp.Body. A non-nil error means the body could
// not be read; the exchange is then treated as a failed transport attempt and
// the engine must expect the same request to be sent again.
type Engine interface {
	Name() string
	Setup(ctx context.Context) error
	Request(ctx context.Context) (RequestSpec, error)
	Response(resp *http.Response) (Outcome, error)
	Cleanup() error
}

// Params identify the connection an engine is built for.
type Params struct {
	Config  *config.Config
	Index   int
	Count   int
	SubSeed uint64
}

// New returns the engine selected by p.Config.Engine. The engine is not set up.
func New(p Params) (Engine, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("engine: config cannot be nil")
	}
	switch p.Config.Engine {
	case config.EngineSimple:
		return NewSimple(p.Config.TargetURL, p.Config.Simple), nil
	case config.EngineS3:
		if p.Count < 1 || p.Index < 0 || p.Index >= p.Count {
			return nil, fmt.Errorf("engine: connection %d out of range [0, %d)", p.Index, p.Count)
		}
		return NewS3(p.Config.TargetURL, p.Config.S3, uint64(p.Index), uint64(p.Count), p.SubSeed), nil
	default:
		return nil, fmt.Errorf("engine: unknown engine %q", p.Config.Engine)
	}
}

func statusOutcome(resp *http.Response, read int64, ok bool) Outcome {
	if ok {
		return Outcome{Kind: metrics.KindSuccess, StatusCode: resp.StatusCode, BytesRead: read}
	}
	return Outcome{
		Kind:       metrics.KindStatus,
		Reason:     resp.Status,
		StatusCode: resp.StatusCode,
		BytesRead:  read,
	}
}

func is2xx(code int) bool {
	return code >= 200 && code < 300
}
