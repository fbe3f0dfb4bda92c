package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/torosent/loaded/internal/config"
	"github.com/torosent/loaded/internal/httpclient"
	"github.com/torosent/loaded/internal/metrics"
)

const amzDateFormat = "20060102T150405Z"

// S3 writes and reads objects over the S3 REST API using path-style URLs.
// Requests are unsigned.
type S3 struct {
	target  string
	cfg     config.S3Config
	subSeed uint64

	keys    KeySpace
	traffic *traffic
	payload *Payload
	header  string

	// now is replaced in tests.
	now func() time.Time
}

// NewS3 returns the engine of connection index out of count connections.
func NewS3(target string, cfg config.S3Config, index, count, subSeed uint64) *S3 {
	return &S3{
		target:  strings.TrimSpace(target),
		cfg:     cfg,
		subSeed: subSeed,
		keys:    NewKeySpace(cfg),
		traffic: newTraffic(cfg.TrafficPattern, index, count),
		now:     time.Now,
	}
}

func (s *S3) Name() string { return string(config.EngineS3) }

func (s *S3) Setup(_ context.Context) error {
	if s.target == "" {
		return fmt.Errorf("target URL is required")
	}
	if s.cfg.Bucket == "" || strings.Contains(s.cfg.Bucket, "/") {
		return fmt.Errorf("invalid bucket %q", s.cfg.Bucket)
	}
	if s.cfg.ObjectSize < 0 {
		return fmt.Errorf("object size must be >= 0")
	}
	switch s.cfg.TrafficPattern {
	case config.TrafficPut, config.TrafficGet, config.TrafficBoth:
	default:
		return fmt.Errorf("unknown traffic pattern %q", s.cfg.TrafficPattern)
	}
	if s.keys.Depth < 0 || s.keys.PerFolder < 1 || (s.keys.Depth > 0 && s.keys.Branches < 1) {
		return fmt.Errorf("invalid folder layout: depth %d, branches %d, objects per folder %d",
			s.keys.Depth, s.keys.Branches, s.keys.PerFolder)
	}
	if s.cfg.ChecksumAlgorithm != config.ChecksumNone && newHash(s.cfg.ChecksumAlgorithm) == nil {
		return fmt.Errorf("unknown checksum algorithm %q", s.cfg.ChecksumAlgorithm)
	}

	s.header = ChecksumHeader(s.cfg.ChecksumAlgorithm)
	s.payload = NewPayload(s.subSeed, s.cfg.ObjectSize, s.cfg.ChecksumAlgorithm)
	return nil
}

func (s *S3) Request(_ context.Context) (RequestSpec, error) {
	if s.payload == nil {
		return RequestSpec{}, fmt.Errorf("s3 engine used before setup")
	}

	st := s.traffic.current()
	url := ObjectURL(s.target, s.cfg.Bucket, s.keys.Key(st.key))

	header := http.Header{}
	header.Set("User-Agent", httpclient.UserAgent())

	if st.op == OpGet {
		header.Set("Accept", "application/octet-stream")
		return RequestSpec{
			Op:     OpGet,
			Method: http.MethodGet,
			URL:    url,
			Header: header,
			Body:   httpclient.EmptyBody(),
		}, nil
	}

	header.Set("Content-Type", "application/octet-stream")
	header.Set("Content-Length", strconv.FormatInt(s.payload.Size(), 10))
	header.Set("X-Amz-Date", s.now().UTC().Format(amzDateFormat))
	if s.header != "" {
		header.Set(s.header, s.payload.Checksum(st.key))
	}
	return RequestSpec{
		Op:     OpPut,
		Method: http.MethodPut,
		URL:    url,
		Header: header,
		Body:   s.payload.Body(st.key),
	}, nil
}

// Response classifies the answer to the pending request and moves on to the
// next step. A PUT succeeds on 2xx. A GET also needs a body of the object
// size whose digest matches when a checksum algorithm is configured.
func (s *S3) Response(resp *http.Response) (Outcome, error) {
	st := s.traffic.current()

	if st.op == OpPut || !is2xx(resp.StatusCode) {
		read, err := io.Copy(io.Discard, resp.Body)
		if err != nil {
			return Outcome{}, fmt.Errorf("read response body: %w", err)
		}
		s.traffic.advance()
		return statusOutcome(resp, read, is2xx(resp.StatusCode)), nil
	}

	h := newHash(s.cfg.ChecksumAlgorithm)
	var dst io.Writer = io.Discard
	if h != nil {
		dst = h
	}
	read, err := io.Copy(dst, resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("read response body: %w", err)
	}
	s.traffic.advance()

	out := Outcome{Kind: metrics.KindSuccess, StatusCode: resp.StatusCode, BytesRead: read}
	if read != s.payload.Size() {
		out.Kind = metrics.KindLengthMismatch
		out.Reason = fmt.Sprintf("got %d bytes, want %d", read, s.payload.Size())
		return out, nil
	}
	if h != nil {
		if got, want := encodeDigest(h), s.payload.Checksum(st.key); got != want {
			out.Kind = metrics.KindChecksumMismatch
			out.Reason = fmt.Sprintf("%s %s, want %s", s.cfg.ChecksumAlgorithm, got, want)
		}
	}
	return out, nil
}

func (s *S3) Cleanup() error { return nil }
