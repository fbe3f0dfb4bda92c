package engine

import (
	"encoding/binary"
	"io"
	"math/rand/v2"

	"github.com/torosent/loaded/internal/config"
	"github.com/torosent/loaded/internal/httpclient"
)

const (
	poolSize     = 128 << 10
	windowCount  = 64
	windowStride = 2048
)

// Payload produces object bodies from a pool of pseudo-random bytes. The body
// of key index i is size bytes read cyclically from the pool starting at
// window i mod 64, so the content of every key is a pure function of the
// connection sub-seed and the key index.
type Payload struct {
	pool []byte
	size int64
	algo config.ChecksumAlgorithm

	sums   [windowCount]string
	summed [windowCount]bool
}

// NewPayload fills the pool from a PCG generator seeded with subSeed.
func NewPayload(subSeed uint64, size int64, algo config.ChecksumAlgorithm) *Payload {
	rng := rand.New(rand.NewPCG(subSeed, subSeed^0x9e3779b97f4a7c15))
	pool := make([]byte, poolSize)
	for i := 0; i < poolSize; i += 8 {
		binary.LittleEndian.PutUint64(pool[i:], rng.Uint64())
	}
	return &Payload{pool: pool, size: max(size, 0), algo: algo}
}

// Size returns the length of every body.
func (p *Payload) Size() int64 { return p.size }

// Body returns a replayable source for the body of key index i.
func (p *Payload) Body(i uint64) httpclient.BodySource {
	if p.size == 0 {
		return httpclient.EmptyBody()
	}
	return cyclicSource{pool: p.pool, offset: window(i), size: p.size}
}

// Checksum returns the encoded digest of the body of key index i, or "" when
// no algorithm is configured. Digests are computed once per window.
func (p *Payload) Checksum(i uint64) string {
	if p.algo == config.ChecksumNone {
		return ""
	}
	w := i % windowCount
	if !p.summed[w] {
		h := newHash(p.algo)
		r := &cyclicReader{pool: p.pool, pos: window(i), remaining: p.size}
		_, _ = io.Copy(h, r)
		p.sums[w] = encodeDigest(h)
		p.summed[w] = true
	}
	return p.sums[w]
}

func window(i uint64) int {
	return int(i%windowCount) * windowStride
}

type cyclicSource struct {
	pool   []byte
	offset int
	size   int64
}

func (s cyclicSource) NewReader() (io.ReadCloser, error) {
	return io.NopCloser(&cyclicReader{pool: s.pool, pos: s.offset, remaining: s.size}), nil
}

func (s cyclicSource) ContentLength() (int64, bool) {
	return s.size, true
}

// cyclicReader reads remaining bytes from pool starting at pos, wrapping at
// the end of the pool.
type cyclicReader struct {
	pool      []byte
	pos       int
	remaining int64
}

func (r *cyclicReader) Read(b []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(b)) > r.remaining {
		b = b[:r.remaining]
	}
	n := 0
	for n < len(b) {
		c := copy(b[n:], r.pool[r.pos:])
		n += c
		r.pos += c
		if r.pos == len(r.pool) {
			r.pos = 0
		}
	}
	r.remaining -= int64(n)
	return n, nil
}
