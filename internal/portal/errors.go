package portal

import (
	"fmt"
	"runtime"
)

// Kind classifies why a PortalClient operation failed, mirroring the
// three failure modes the scraper can hit: the transport itself, a
// response that was cut off mid-body, and a response body that could
// not be parsed as HTML.
type Kind int

const (
	// KindHTTP covers transport-level failures: DNS, connect refused,
	// TLS, non-2xx status codes.
	KindHTTP Kind = iota
	// KindBodyAbrupted means the response body ended before the
	// delta-response trailer we expected to find.
	KindBodyAbrupted
	// KindParsingFailed means the response body could not be parsed as
	// an HTML document. A selector that matches nothing in a parsed body
	// does not produce it; internal/scheduleparser reads such a field as
	// empty text.
	KindParsingFailed
)

func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindBodyAbrupted:
		return "body_abrupted"
	case KindParsingFailed:
		return "parsing_failed"
	default:
		return "unknown"
	}
}

// Error is the error type every PortalClient operation returns. Callers
// should use errors.As to inspect Kind rather than string-matching.
type Error struct {
	Kind     Kind
	Location string
	Err      error
}

func newError(kind Kind, err error) *Error {
	loc := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok { // skip newError and its wrapXError caller
		loc = fmt.Sprintf("%s:%d", file, line)
	}
	return &Error{Kind: kind, Location: loc, Err: err}
}

func wrapHTTP(err error) *Error          { return newError(KindHTTP, err) }
func wrapBodyAbrupted(err error) *Error  { return newError(KindBodyAbrupted, err) }
func wrapParsingFailed(err error) *Error { return newError(KindParsingFailed, err) }

func (e *Error) Error() string {
	return fmt.Sprintf("portal: %s at %s: %v", e.Kind, e.Location, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
