package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"unicode"
)

// Kind classifies the outcome of a request.
type Kind string

const (
	KindSuccess          Kind = "success"
	KindStatus           Kind = "status"
	KindLengthMismatch   Kind = "length_mismatch"
	KindChecksumMismatch Kind = "checksum_mismatch"
	KindTransport        Kind = "transport"
)

var kindLabels = map[Kind]string{
	KindSuccess:          "Success",
	KindStatus:           "Unexpected status",
	KindLengthMismatch:   "Body length mismatch",
	KindChecksumMismatch: "Checksum mismatch",
	KindTransport:        "Transport error",
}

// Label returns a human-friendly name for the kind.
func (k Kind) Label() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return humanizeTypeName(strings.ReplaceAll(string(k), "_", " "))
}

var friendlyAliases = map[string]string{
	"*url.Error":                     "Request URL error",
	"url.Error":                      "Request URL error",
	"*net.OpError":                   "Network operation error",
	"*net.DNSError":                  "DNS lookup error",
	"*context.deadlineExceededError": "Context deadline exceeded",
	"context.deadlineExceededError":  "Context deadline exceeded",
}

// ClassifyTransportError returns a short cause label for a failed send
// attempt.
func ClassifyTransportError(err error) string {
	if err == nil {
		return ""
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return "Timeout"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "Connection refused"
	case errors.Is(err, syscall.ECONNRESET):
		return "Connection reset"
	case errors.Is(err, syscall.EPIPE):
		return "Broken pipe"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "Timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FriendlyErrorName("*net.DNSError")
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FriendlyErrorName("*net.OpError")
	}
	return FriendlyErrorName(fmt.Sprintf("%T", unwrapAll(err)))
}

func unwrapAll(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// FriendlyErrorName returns a human-friendly label for a Go error type.
func FriendlyErrorName(typeName string) string {
	cleaned := strings.TrimSpace(typeName)
	if cleaned == "" {
		return "Unknown error"
	}

	if alias, ok := friendlyAliases[cleaned]; ok {
		return alias
	}

	cleaned = strings.TrimPrefix(cleaned, "*")
	if alias, ok := friendlyAliases[cleaned]; ok {
		return alias
	}
	if idx := strings.LastIndex(cleaned, "/"); idx != -1 {
		cleaned = cleaned[idx+1:]
	}

	pkg := ""
	name := cleaned
	if idx := strings.Index(name, "."); idx != -1 {
		pkg = name[:idx]
		name = name[idx+1:]
	}

	pretty := humanizeTypeName(name)
	if pretty == "" {
		pretty = name
	}

	if strings.ToLower(pkg) == "context" && strings.Contains(strings.ToLower(pretty), "deadline") {
		return "Context deadline exceeded"
	}
	if pkg != "" && pkg != "main" {
		return fmt.Sprintf("%s (%s)", pretty, pkg)
	}
	return pretty
}

func humanizeTypeName(name string) string {
	if name == "" {
		return ""
	}

	var words []string
	var current []rune
	runes := []rune(name)

	appendWord := func() {
		if len(current) == 0 {
			return
		}
		word := string(current)
		switch {
		case isAllUpper(word):
			words = append(words, word)
		case len(words) == 0:
			words = append(words, capitalize(word))
		default:
			words = append(words, strings.ToLower(word))
		}
		current = current[:0]
	}

	for i, r := range runes {
		if unicode.IsSpace(r) {
			appendWord()
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsUpper(r) && (unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower)) {
				appendWord()
			} else if unicode.IsDigit(r) && !unicode.IsDigit(prev) {
				appendWord()
			}
		}
		current = append(current, r)
	}
	appendWord()

	return strings.Join(words, " ")
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	runes := []rune(lower)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
