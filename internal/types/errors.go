package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrWrongPage         = errors.New("not on the bookmarks page")
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrEmptyCollection   = errors.New("no bookmarks collected")
	ErrNotRunning        = errors.New("auto-scroll is not running")
	ErrBusy              = errors.New("auto-scroll already running")
)

// ParseError wraps errors that occur while parsing a page snapshot.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
	}
	return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// BrowserError wraps errors raised while driving the browser page.
type BrowserError struct {
	Op  string
	Err error
}

func (e *BrowserError) Error() string {
	return fmt.Sprintf("browser %s: %v", e.Op, e.Err)
}

func (e *BrowserError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
