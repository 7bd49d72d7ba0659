/*
NAME
  errors.go

DESCRIPTION
  errors.go defines the error taxonomy shared by the wrapper, the
  encoder/decoder workers and the stateless decoder state machines.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package codec2 implements the lifecycle wrapper, job queue and worker
// goroutine that sit between a host application and a backend accelerator.
package codec2

import "fmt"

// Status is the error kind surfaced to error_cb-equivalent callbacks.
type Status int

const (
	// StatusBadState is returned synchronously by a public Wrapper
	// operation called outside its required precondition.
	StatusBadState Status = iota
	// StatusBadValue marks a worker-side failure (conversion, tune,
	// submit, poll) that transitions the wrapper to Error.
	StatusBadValue
)

func (s Status) String() string {
	switch s {
	case StatusBadState:
		return "BadState"
	case StatusBadValue:
		return "BadValue"
	default:
		return "Unknown"
	}
}

// StatusError pairs a Status with the underlying cause, if any.
type StatusError struct {
	Status Status
	Cause  error
}

func (e *StatusError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("codec2: %s: %v", e.Status, e.Cause)
	}
	return fmt.Sprintf("codec2: %s", e.Status)
}

func (e *StatusError) Unwrap() error { return e.Cause }

// ErrBadState reports a call made against an invalid wrapper state.
func ErrBadState(op string) error {
	return &StatusError{Status: StatusBadState, Cause: fmt.Errorf("invalid state for %s", op)}
}

// ErrBadValue wraps a worker-side failure as BadValue.
func ErrBadValue(cause error) error {
	return &StatusError{Status: StatusBadValue, Cause: cause}
}
