package lead

import (
	"errors"
	"fmt"
)

// ErrDuplicateMatch is returned by Store.Insert when an equivalent match
// (same source and dedup key) already exists. Callers treat it as a benign
// skip, not a failure.
var ErrDuplicateMatch = errors.New("equivalent match already exists")

// AuthErrorKind distinguishes how a connector login failed.
type AuthErrorKind string

const (
	// AuthCredential means the configured credentials were rejected.
	// Scheduling for the source type stops until reconfigured.
	AuthCredential AuthErrorKind = "credential"
	// AuthCaptchaOrRateLimit means the platform challenged or throttled
	// the session. Transient: the cycle is skipped, not the job.
	AuthCaptchaOrRateLimit AuthErrorKind = "captcha_or_rate_limit"
)

// AuthError reports a connector login failure.
type AuthError struct {
	Kind       AuthErrorKind
	SourceType SourceType
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s login failed (%s): %v", e.SourceType, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s login failed (%s)", e.SourceType, e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewCredentialError builds a fatal credential AuthError.
func NewCredentialError(st SourceType, err error) *AuthError {
	return &AuthError{Kind: AuthCredential, SourceType: st, Err: err}
}

// NewCaptchaError builds a transient captcha/rate-limit AuthError.
func NewCaptchaError(st SourceType, err error) *AuthError {
	return &AuthError{Kind: AuthCaptchaOrRateLimit, SourceType: st, Err: err}
}

// IsCredentialFailure reports whether err is a credential AuthError.
func IsCredentialFailure(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Kind == AuthCredential
}

// IsCaptchaOrRateLimit reports whether err is a transient AuthError.
func IsCaptchaOrRateLimit(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Kind == AuthCaptchaOrRateLimit
}

// FetchErrorKind distinguishes how a connector fetch failed.
type FetchErrorKind string

const (
	// FetchTimeout means a page load or extraction step exceeded its budget.
	FetchTimeout FetchErrorKind = "timeout"
	// FetchExtraction means the page loaded but posts could not be extracted.
	FetchExtraction FetchErrorKind = "extraction"
)

// FetchError reports a per-source fetch failure. The cycle continues with
// the next source.
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError builds a FetchError of the given kind.
func NewFetchError(kind FetchErrorKind, url string, err error) *FetchError {
	return &FetchError{Kind: kind, URL: url, Err: err}
}
