package xkbtray

import "fmt"

// ConnectionError means the X server could not be reached or lacks XKB.
type ConnectionError struct {
	Display string
	Err     error
}

func (e *ConnectionError) Error() string {
	display := e.Display
	if display == "" {
		display = "$DISPLAY"
	}
	return fmt.Sprintf("connect to %s: %v", display, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError means the server returned no usable layout data.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// UnknownIndexError is returned for a layout index outside the enumerated set.
type UnknownIndexError struct {
	Index int
	Count int
}

func (e *UnknownIndexError) Error() string {
	return fmt.Sprintf("layout index %d out of range [0, %d)", e.Index, e.Count)
}

// FatalProtocolError means the X connection is gone or desynchronized.
type FatalProtocolError struct {
	Err error
}

func (e *FatalProtocolError) Error() string {
	return fmt.Sprintf("x protocol: %v", e.Err)
}

func (e *FatalProtocolError) Unwrap() error { return e.Err }

type TrayUnavailableError struct {
	Backend string
	Err     error
}

func (e *TrayUnavailableError) Error() string {
	return fmt.Sprintf("tray %s unavailable: %v", e.Backend, e.Err)
}

func (e *TrayUnavailableError) Unwrap() error { return e.Err }

type FontLoadError struct {
	Path string
	Err  error
}

func (e *FontLoadError) Error() string {
	return fmt.Sprintf("load font %q: %v", e.Path, e.Err)
}

func (e *FontLoadError) Unwrap() error { return e.Err }
