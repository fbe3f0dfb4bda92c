package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"sync/atomic"
	"time"
)

// Version is the release reported in the User-Agent header. It is set at
// build time with -ldflags "-X .../httpclient.Version=...".
var Version = "dev"

// UserAgent returns the User-Agent sent with every request.
func UserAgent() string {
	return "loaded/" + Version
}

// Options configures the client of one connection.
type Options struct {
	Timeout  time.Duration
	Insecure bool
}

// NewTransport returns a transport that keeps at most one TCP or TLS session
// to the target, so a connection never has more than one request in flight.
func NewTransport(opts Options) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     false,
		MaxIdleConns:          1,
		MaxIdleConnsPerHost:   1,
		MaxConnsPerHost:       1,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    true,
	}
	if opts.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return transport
}

// NewClient returns a client over a fresh single-session transport.
// Redirects are not followed; a 3xx is reported as the response.
func NewClient(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout < 0 {
		timeout = 0
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: NewTransport(opts),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// NewRequest builds a request whose body can be replayed from source.
func NewRequest(ctx context.Context, method, target string, header http.Header, source BodySource) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if source == nil {
		source = EmptyBody()
	}

	reader, err := source.NewReader()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	if header != nil {
		req.Header = header.Clone()
	}

	if length, ok := source.ContentLength(); ok {
		req.ContentLength = length
		if length == 0 {
			_ = reader.Close()
			req.Body = http.NoBody
		}
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return source.NewReader()
	}

	return req, nil
}

// Timing captures the time to first response byte of one exchange.
type Timing struct {
	start     time.Time
	firstByte atomic.Int64
}

// WithTiming attaches a client trace to ctx that records when the first
// response byte arrives.
func WithTiming(ctx context.Context) (context.Context, *Timing) {
	t := &Timing{start: time.Now()}
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			t.firstByte.CompareAndSwap(0, int64(time.Since(t.start)))
		},
	}
	return httptrace.WithClientTrace(ctx, trace), t
}

// Start returns when the exchange began.
func (t *Timing) Start() time.Time {
	return t.start
}

// TTFB returns the time to first byte, or zero if no byte was received.
func (t *Timing) TTFB() time.Duration {
	return time.Duration(t.firstByte.Load())
}

// Probe dials the host of target once, failing when it is unreachable.
func Probe(ctx context.Context, target string, timeout time.Duration) error {
	addr, err := hostPort(target)
	if err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("target %s is unreachable: %w", addr, err)
	}
	return conn.Close()
}

func hostPort(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if host == "" {
		return "", errors.New("target URL has no host")
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		case "http":
			port = "80"
		default:
			return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
	}
	return net.JoinHostPort(host, port), nil
}
