package engine

import "github.com/torosent/loaded/internal/config"

// step is one planned S3 operation on a key index.
type step struct {
	op  Op
	key uint64
}

// traffic walks the key indices owned by one connection: first, first+stride,
// first+2*stride and so on. With the both pattern every key is written and
// then read back before moving on.
type traffic struct {
	pattern config.TrafficPattern
	first   uint64
	stride  uint64
	n       uint64
	reading bool
}

func newTraffic(pattern config.TrafficPattern, first, stride uint64) *traffic {
	if stride == 0 {
		stride = 1
	}
	return &traffic{pattern: pattern, first: first, stride: stride}
}

func (t *traffic) current() step {
	key := t.first + t.n*t.stride
	switch t.pattern {
	case config.TrafficGet:
		return step{op: OpGet, key: key}
	case config.TrafficBoth:
		if t.reading {
			return step{op: OpGet, key: key}
		}
		return step{op: OpPut, key: key}
	default:
		return step{op: OpPut, key: key}
	}
}

func (t *traffic) advance() {
	if t.pattern == config.TrafficBoth && !t.reading {
		t.reading = true
		return
	}
	t.reading = false
	t.n++
}
