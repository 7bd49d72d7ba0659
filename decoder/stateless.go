/*
NAME
  stateless.go

DESCRIPTION
  stateless.go defines the shared types the VP8 and VP9 stateless
  decoder state machines build on: decoder state, stream info, the
  error taxonomy decode() raises, and the backend hooks a codec-specific
  decoder drives (new_sequence/new_picture/submit_picture/...).

  Bitstream parsing itself is out of scope: decode() is handed an
  already-parsed FrameHeader by a Parser the caller supplies, mirroring
  the "core consumes their output as opaque header/segmentation structs"
  boundary.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package decoder holds the types shared by the stateless VP8 and VP9
// decoder state machines in decoder/vp8 and decoder/vp9.
package decoder

import (
	"fmt"

	"github.com/ausocean/codec2/fourcc"
	"github.com/ausocean/codec2/videoframe"
)

// State is the stateless decoder's lifecycle state, independent of (and
// one per codec instance alongside) the wrapper's own State.
type State int

const (
	AwaitingStreamInfo State = iota
	AwaitingFormat
	FlushingForDRC
	Reset
	Decoding
)

func (s State) String() string {
	switch s {
	case AwaitingStreamInfo:
		return "AwaitingStreamInfo"
	case AwaitingFormat:
		return "AwaitingFormat"
	case FlushingForDRC:
		return "FlushingForDRC"
	case Reset:
		return "Reset"
	case Decoding:
		return "Decoding"
	default:
		return "Unknown"
	}
}

// NegotiationInfo is the cached (coded_resolution, bit_depth, profile)
// triple a decoder compares each key frame against to decide whether a
// dynamic resolution change handshake is required.
type NegotiationInfo struct {
	Coded    fourcc.Resolution
	BitDepth int
	Profile  int
}

// RequiresDRC reports whether next differs from n in any negotiated
// field, per the VP9 negotiation predicate: width=0 or height=0 is
// always treated as non-negotiable (never triggers a DRC), a defensive
// guard carried over unchanged from the source state machine.
func (n NegotiationInfo) RequiresDRC(next NegotiationInfo) bool {
	if next.Coded.Width == 0 || next.Coded.Height == 0 {
		return false
	}
	return n.Coded != next.Coded || n.BitDepth != next.BitDepth || n.Profile != next.Profile
}

// NotEnoughOutputBuffers reports that the frame pool could not supply
// Remaining additional pictures the current call still needs; the host
// should drain its ready queue, drive the pool, and retry the same
// bitstream.
type NotEnoughOutputBuffers struct {
	Remaining int
}

func (e *NotEnoughOutputBuffers) Error() string {
	return fmt.Sprintf("decoder: not enough output buffers, %d remaining", e.Remaining)
}

// ErrCheckEvents signals the DRC handshake: the host must call
// NextEvent before calling Decode again.
var ErrCheckEvents = fmt.Errorf("decoder: check events")

// ParseFrameError wraps a per-call parse failure. State is not changed;
// the host may skip the offending bitstream chunk and continue.
type ParseFrameError struct {
	Cause error
}

func (e *ParseFrameError) Error() string { return fmt.Sprintf("decoder: parse frame: %v", e.Cause) }
func (e *ParseFrameError) Unwrap() error { return e.Cause }

// Event wraps the StreamInfo of an AwaitingFormat transition. The VP8
// and VP9 decoders' NextEvent returns a *StreamInfo directly and does
// not use this type.
type Event struct {
	Header StreamInfo
}

// StreamInfo is the negotiated stream configuration a decoder reports
// once it knows the stream's coded/display resolution and format.
type StreamInfo struct {
	Format       fourcc.DecodedFormat
	Coded        fourcc.Resolution
	Display      fourcc.Resolution
	MinNumFrames int
	BitDepth     int
	Profile      int
}

// AllocFunc allocates (or declines to allocate, signalling back-pressure
// with a nil return) one output picture for a frame about to be
// submitted.
type AllocFunc func() *videoframe.PooledVideoFrame

// ReadyFrame is one decoded, displayable frame handed to the host via
// the decoder's ready queue.
type ReadyFrame struct {
	Frame     *videoframe.PooledVideoFrame
	Timestamp int64
}
