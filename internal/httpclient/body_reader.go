package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/torosent/loaded/internal/config"
)

// BodySource produces a fresh reader for every send attempt of a request.
type BodySource interface {
	NewReader() (io.ReadCloser, error)
	ContentLength() (int64, bool)
}

// NewBodySource returns the body configured for the simple engine: an inline
// literal, a file, or nothing.
func NewBodySource(cfg config.SimpleConfig) (BodySource, error) {
	bodyFile := strings.TrimSpace(cfg.BodyFile)
	if cfg.Body != "" && bodyFile != "" {
		return nil, fmt.Errorf("body and body file cannot both be provided")
	}

	if cfg.Body != "" {
		return NewBytesSource([]byte(cfg.Body)), nil
	}

	if bodyFile != "" {
		info, err := os.Stat(bodyFile)
		if err != nil {
			return nil, fmt.Errorf("body file: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("body file %q is a directory", bodyFile)
		}
		return &fileBodySource{path: bodyFile, size: info.Size()}, nil
	}

	return EmptyBody(), nil
}

// NewBytesSource serves data from memory. The slice must not be modified
// afterwards.
func NewBytesSource(data []byte) BodySource {
	return &inlineBodySource{data: data}
}

// EmptyBody returns a source with no content.
func EmptyBody() BodySource {
	return emptyBodySource{}
}

type inlineBodySource struct {
	data []byte
}

func (s *inlineBodySource) NewReader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

func (s *inlineBodySource) ContentLength() (int64, bool) {
	return int64(len(s.data)), true
}

type fileBodySource struct {
	path string
	size int64
}

func (s *fileBodySource) NewReader() (io.ReadCloser, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *fileBodySource) ContentLength() (int64, bool) {
	return s.size, true
}

type emptyBodySource struct{}

func (emptyBodySource) NewReader() (io.ReadCloser, error) {
	return http.NoBody, nil
}

func (emptyBodySource) ContentLength() (int64, bool) {
	return 0, true
}
