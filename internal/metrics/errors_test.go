package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"
)

type handshakeFailure struct{}

func (handshakeFailure) Error() string { return "handshake failure" }

func TestFriendlyErrorName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "Unknown error"},
		{"*url.Error", "Request URL error"},
		{"context.deadlineExceededError", "Context deadline exceeded"},
		{"*tls.RecordHeaderError", "Record header error (tls)"},
		{"main.handshakeFailure", "Handshake failure"},
		{"*github.com/x/y.HTTPTimeout", "HTTP timeout (y)"},
	}
	for _, tt := range tests {
		if got := FriendlyErrorName(tt.in); got != tt.want {
			t.Errorf("FriendlyErrorName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassifyTransportError(t *testing.T) {
	refused := &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), "Timeout"},
		{"refused", refused, "Connection refused"},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), "Connection reset"},
		{"dns", &net.DNSError{Err: "no such host", Name: "x"}, "DNS lookup error"},
		{"op", &net.OpError{Op: "read", Err: errors.New("weird")}, "Network operation error"},
		{"other", fmt.Errorf("wrap: %w", handshakeFailure{}), "Handshake failure (metrics)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyTransportError(tt.err); got != tt.want {
				t.Fatalf("ClassifyTransportError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindLabel(t *testing.T) {
	if got := KindChecksumMismatch.Label(); got != "Checksum mismatch" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := Kind("redirect_loop").Label(); got != "Redirect loop" {
		t.Fatalf("unexpected fallback label %q", got)
	}
}
