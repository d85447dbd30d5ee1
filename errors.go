package reflux

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrFileNotFound is returned when the configuration file does not exist at
// open time. It matches fs.ErrNotExist as well.
var ErrFileNotFound = fmt.Errorf("config file not found: %w", fs.ErrNotExist)

// Snapshot lookup errors.
var (
	// ErrMissingKey indicates that no value exists at the requested path.
	ErrMissingKey = errors.New("missing key")

	// ErrTypeMismatch indicates that the value at the requested path cannot
	// be converted to the requested type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// Notifier lifecycle errors.
var (
	// ErrNotifierStarted is returned when Start is called more than once.
	ErrNotifierStarted = errors.New("notifier already started")

	// ErrNotifierClosed is returned when Start is called after Close.
	ErrNotifierClosed = errors.New("notifier closed")
)

// ParseError reports a configuration file that could not be read or parsed.
type ParseError struct {
	Path   string
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s config %s: %v", e.Format, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// WatchError reports a failure of the filesystem notification subsystem.
// A notifier that hits one stops permanently.
type WatchError struct {
	Path string
	Err  error
}

func (e *WatchError) Error() string {
	return fmt.Sprintf("watch %s: %v", e.Path, e.Err)
}

func (e *WatchError) Unwrap() error { return e.Err }

// LookupError is returned by Snapshot getters.
type LookupError struct {
	Path string
	Want string
	Err  error
}

func (e *LookupError) Error() string {
	if errors.Is(e.Err, ErrMissingKey) {
		return fmt.Sprintf("config path %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("config path %q as %s: %v", e.Path, e.Want, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }
