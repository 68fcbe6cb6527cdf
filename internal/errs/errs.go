// Package errs holds the error kinds a stock reconciliation run can fail with.
// None of them is fatal: each one aborts the run and is reported to the user,
// who may fix the input and run again.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrTransport    = errors.New("transport failure")
	ErrAccessDenied = errors.New("access denied")
	ErrFetch        = errors.New("fetch failed")
	ErrFormat       = errors.New("unexpected table format")
	ErrEmptyInput   = errors.New("empty input")
)

// TransportError is a network-level failure: DNS, refused connection, timeout.
type TransportError struct {
	URL     string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("fetch %s: timed out: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// AccessDeniedError means the sheet exists but is not shared with us.
type AccessDeniedError struct {
	URL        string
	StatusCode int
}

func (e *AccessDeniedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: access denied (status %d)", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: access denied", e.URL)
}

func (e *AccessDeniedError) Is(target error) bool { return target == ErrAccessDenied }

// FetchError is any other unsuccessful HTTP response.
type FetchError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// FormatError describes a table that cannot be used. Required and Found are
// set for column-count failures; Reason covers unparseable content.
type FormatError struct {
	Required int
	Found    int
	Reason   string
	Err      error
}

func (e *FormatError) Error() string {
	if e.Required > 0 {
		return fmt.Sprintf("stock sheet has %d columns, at least %d required", e.Found, e.Required)
	}
	if e.Err != nil {
		return fmt.Sprintf("stock sheet: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("stock sheet: %s", e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// EmptyInputError is raised before any work when a precondition input is missing.
type EmptyInputError struct {
	Input string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("no %s", e.Input)
}

func (e *EmptyInputError) Is(target error) bool { return target == ErrEmptyInput }

// Retryable reports whether retrying the same input may succeed.
func Retryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode == 429 || fe.StatusCode >= 500
	}
	return errors.Is(err, ErrTransport)
}

// UserMessage renders err for the person who triggered the run.
func UserMessage(err error) string {
	var (
		te *TransportError
		ae *AccessDeniedError
		fe *FetchError
		fm *FormatError
		ei *EmptyInputError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &te):
		if te.Timeout {
			return "The stock sheet server did not answer in time. Check the connection and try again."
		}
		return fmt.Sprintf("Could not reach the stock sheet (%v). Check the connection and the link, then try again.", te.Err)
	case errors.As(err, &ae):
		return "Access to the stock sheet was denied. Share it as \"Anyone with the link can view\" or configure Google credentials, then try again."
	case errors.As(err, &fe):
		return fmt.Sprintf("Could not download the stock sheet: the server answered with status %d.", fe.StatusCode)
	case errors.As(err, &fm):
		if fm.Required > 0 {
			return fmt.Sprintf("The stock sheet has %d columns but at least %d are required. Check that the sheet uses the expected layout.", fm.Found, fm.Required)
		}
		return fmt.Sprintf("The stock sheet could not be read: %s.", fm.Reason)
	case errors.As(err, &ei):
		if ei.Input == "planned materials" {
			return "The project has no planned materials. Load a plan first."
		}
		return fmt.Sprintf("Nothing to reconcile: no %s given.", ei.Input)
	default:
		return err.Error()
	}
}

// Kind names the taxonomy bucket of err for logs and run records.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrFormat):
		return "format"
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	default:
		return "internal"
	}
}
