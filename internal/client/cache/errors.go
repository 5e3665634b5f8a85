package cache

import (
	"errors"
	"fmt"
)

var (
	ErrCacheRead  = errors.New("cache read failed")
	ErrCacheWrite = errors.New("cache write failed")
)

// Error describes a failed operation on one namespace. It matches
// ErrCacheRead or ErrCacheWrite depending on Op, and unwraps to the cause.
type Error struct {
	Op        string
	Namespace Namespace
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Namespace, e.Err)
}

func (e *Error) Unwrap() []error {
	kind := ErrCacheWrite
	if e.Op == opRead {
		kind = ErrCacheRead
	}
	return []error{kind, e.Err}
}

const (
	opRead  = "read"
	opWrite = "write"
	opClear = "clear"
)
