package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. Every provider failure matches exactly one of these with errors.Is,
// except cancellation, which matches context.Canceled.
var (
	// ErrAuth reports a missing, invalid, or rejected credential.
	ErrAuth = errors.New("authentication failed")
	// ErrUpstream reports any other provider failure: 5xx, timeout, malformed response.
	ErrUpstream = errors.New("upstream provider failure")
	// ErrNotAvailable reports that no credential is configured for a source.
	ErrNotAvailable = errors.New("provider not available")
	// ErrParse reports model output that could not be reduced to usable HTML.
	ErrParse = errors.New("unusable model output")
)

// Error is a classified provider failure.
type Error struct {
	Provider   string
	StatusCode int
	Kind       error
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewError builds a classified error for provider.
func NewError(provider string, kind error, format string, args ...any) error {
	return &Error{Provider: provider, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// StatusError classifies a non-success HTTP response. 401 and 403 are auth failures.
func StatusError(provider, endpoint string, status int, statusText string, body []byte) error {
	kind := ErrUpstream
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = ErrAuth
	}
	detail := strings.TrimSpace(string(body))
	if len(detail) > 300 {
		detail = detail[:300]
	}
	return &Error{
		Provider:   provider,
		StatusCode: status,
		Kind:       kind,
		Err:        fmt.Errorf("%s returned %s: %s", endpoint, statusText, detail),
	}
}

// Wrap classifies a transport or SDK error. Cancellation passes through so that
// errors.Is(err, context.Canceled) keeps working; everything else is upstream.
func Wrap(provider string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", provider, err)
	}
	return &Error{Provider: provider, Kind: ErrUpstream, Err: err}
}

// MissingCredential is returned when a provider is invoked without a key.
func MissingCredential(provider string) error {
	return &Error{Provider: provider, Kind: ErrAuth, Err: errors.New("no API key configured")}
}

// IsCancelled reports whether err stems from caller cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsAuth reports whether err is a credential failure.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}
