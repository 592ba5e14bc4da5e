// Package fetch retrieves raw listing-page HTML under strict safety
// constraints. Two implementations exist: a plain HTTP client and a
// sandboxed headless-browser client for pages that render their listings
// with JavaScript. Neither knows anything about extraction or filtering.
package fetch

import (
	"context"
	"errors"
	"fmt"
)

// MaxResponseBytes caps every fetched document, regardless of mode.
// Oversized responses fail instead of buffering unbounded.
const MaxResponseBytes = 2 * 1024 * 1024

// Mode selects the fetch strategy configured on a profile.
type Mode string

const (
	ModeHTTP    Mode = "http"
	ModeBrowser Mode = "browser"
)

// ParseMode validates a fetch mode string from profile configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeHTTP, "":
		return ModeHTTP, nil
	case ModeBrowser:
		return ModeBrowser, nil
	}
	return "", fmt.Errorf("fetch mode must be %q or %q, got %q", ModeHTTP, ModeBrowser, s)
}

// ErrorKind classifies fetch failures. All kinds are recoverable: the
// refresh pipeline logs them and retries on the next due cycle.
type ErrorKind string

const (
	KindScheme            ErrorKind = "scheme_rejected"
	KindRedirect          ErrorKind = "redirect_rejected"
	KindTooLarge          ErrorKind = "too_large"
	KindTimeout           ErrorKind = "timeout"
	KindNetwork           ErrorKind = "network"
	KindHTTPStatus        ErrorKind = "http_status"
	KindOffsiteNavigation ErrorKind = "offsite_navigation"
)

// Error is a typed fetch failure.
type Error struct {
	Kind   ErrorKind
	URL    string
	Status int // set for KindHTTPStatus
	Detail string
	cause  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s %d", msg, e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// IsKind reports whether err is a fetch Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}

// Result is a successfully fetched document, decoded to UTF-8.
type Result struct {
	HTML     string
	FinalURL string
}

// Fetcher retrieves the document at url. Implementations must honor ctx
// cancellation and return a *Error for every failure they classify.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Result, error)
}

// Selector returns the fetcher for a profile's configured mode.
type Selector struct {
	http    Fetcher
	browser Fetcher
}

func NewSelector(httpFetcher, browserFetcher Fetcher) *Selector {
	return &Selector{http: httpFetcher, browser: browserFetcher}
}

func (s *Selector) ForMode(mode Mode) Fetcher {
	if mode == ModeBrowser {
		return s.browser
	}
	return s.http
}
