package repositories

import (
	"errors"
	"fmt"
)

var (
	// ErrSequenceExhausted means the next value would pass the caller's ceiling.
	ErrSequenceExhausted = errors.New("sequence exhausted")
	// ErrSequenceScope means the scope name was empty.
	ErrSequenceScope = errors.New("sequence scope required")
)

// SequenceError names the scope that failed and the last value it issued.
type SequenceError struct {
	Scope string
	Last  int64
	Err   error
}

func (e *SequenceError) Error() string {
	if e.Scope == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("sequence %s: %v after %d", e.Scope, e.Err, e.Last)
}

func (e *SequenceError) Unwrap() error { return e.Err }
