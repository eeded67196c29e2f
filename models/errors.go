package models

import (
	"errors"
	"fmt"
)

// ConfigurationError reports malformed or missing configuration.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// FetchError reports a transport failure or a non-success status.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status code %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NotFoundError means a selector matched nothing. Callers treat it as "no update".
type NotFoundError struct {
	What     string
	Selector string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found (selector %q)", e.What, e.Selector)
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ExtractionError is a localized extraction problem. Extract never returns one;
// they are converted into Diagnostics.
type ExtractionError struct {
	Scope DiagnosticScope
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Scope, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ArchiveError reports a filesystem failure during rotation.
type ArchiveError struct {
	Op   string
	Path string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// WriteError reports a filesystem failure while persisting tables.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Process exit codes shared by every command.
const (
	ExitOK      = 0
	ExitPartial = 1
	ExitFatal   = 2
)
