package crawler

import (
	"errors"
	"fmt"
)

// Failure reasons attached to FetchError for logging and metrics labels.
const (
	ReasonRenderTimeout = "render_timeout"
	ReasonNavigation    = "navigation"
	ReasonThrottled     = "throttled"
	ReasonHTTPStatus    = "http_status"
	ReasonRestricted    = "restricted_page"
)

// FetchError describes a failed fetch attempt. Transient errors are eligible
// for retry; permanent ones are logged and dropped.
type FetchError struct {
	URL        string
	StatusCode int
	Reason     string
	Transient  bool
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Outcome maps the error onto the fetch outcome taxonomy.
func (e *FetchError) Outcome() Outcome {
	if e.Transient {
		return OutcomeTransient
	}
	return OutcomePermanent
}

// NewRenderTimeoutError reports a navigation that exceeded the render budget.
func NewRenderTimeoutError(url string, err error) *FetchError {
	return &FetchError{URL: url, Reason: ReasonRenderTimeout, Transient: true, Err: err}
}

// NewNavigationError reports DNS or connection level failures.
func NewNavigationError(url string, err error) *FetchError {
	return &FetchError{URL: url, Reason: ReasonNavigation, Transient: true, Err: err}
}

// NewThrottledError reports a 429 or 5xx load-shedding response.
func NewThrottledError(url string, status int) *FetchError {
	return &FetchError{URL: url, StatusCode: status, Reason: ReasonThrottled, Transient: true}
}

// NewPermanentStatusError reports a 4xx response that will not resolve on retry.
func NewPermanentStatusError(url string, status int) *FetchError {
	return &FetchError{URL: url, StatusCode: status, Reason: ReasonHTTPStatus}
}

// NewRestrictedPageError reports a rendered page that explicitly signals the
// profile is gone or access is denied.
func NewRestrictedPageError(url, marker string) *FetchError {
	return &FetchError{URL: url, Reason: ReasonRestricted, Err: fmt.Errorf("page marker %q", marker)}
}

// ExtractionError indicates a rendered page lacked a mandatory field.
type ExtractionError struct {
	URL   string
	Field string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: missing mandatory field %q", e.URL, e.Field)
}

// IsExtractionError reports whether err wraps an ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
