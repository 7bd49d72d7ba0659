/*
NAME
  state.go

DESCRIPTION
  state.go defines the wrapper's lifecycle State enumeration.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package codec2

// State is the wrapper's lifecycle state. The initial state is Stopped;
// the terminal state is Release, reached only once, when the worker
// goroutine has been joined.
type State int

const (
	Stopped State = iota
	Running
	Stopping
	Error
	Release
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Error:
		return "Error"
	case Release:
		return "Release"
	default:
		return "Unknown"
	}
}
