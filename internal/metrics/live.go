package metrics

import "sync/atomic"

// Live holds counters a connection updates after every request so that a
// progress reporter can read them without synchronizing with the connection.
type Live struct {
	requests     atomic.Int64
	bytesWritten atomic.Int64
	bytesRead    atomic.Int64
}

// Observe adds one completed request.
func (l *Live) Observe(bytesWritten, bytesRead int64) {
	l.requests.Add(1)
	l.bytesWritten.Add(bytesWritten)
	l.bytesRead.Add(bytesRead)
}

// Counters is a point-in-time copy of one or more Live values.
type Counters struct {
	Requests     int64
	BytesWritten int64
	BytesRead    int64
}

// Load returns the current counter values.
func (l *Live) Load() Counters {
	return Counters{
		Requests:     l.requests.Load(),
		BytesWritten: l.bytesWritten.Load(),
		BytesRead:    l.bytesRead.Load(),
	}
}

// Sum adds the current values of every counter set.
func Sum(lives []*Live) Counters {
	var total Counters
	for _, l := range lives {
		c := l.Load()
		total.Requests += c.Requests
		total.BytesWritten += c.BytesWritten
		total.BytesRead += c.BytesRead
	}
	return total
}

// Sub returns the difference c - prev.
func (c Counters) Sub(prev Counters) Counters {
	return Counters{
		Requests:     c.Requests - prev.Requests,
		BytesWritten: c.BytesWritten - prev.BytesWritten,
		BytesRead:    c.BytesRead - prev.BytesRead,
	}
}
