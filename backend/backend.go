/*
NAME
  backend.go

DESCRIPTION
  backend.go defines the hardware accelerator adapter boundary: the
  interfaces an encoder or decoder worker programs against without
  knowing whether the underlying accelerator is a stateful VAAPI-style
  device or a stateless V4L2-style one.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Alan Noble <alan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package backend abstracts over the hardware (or software-simulated)
// accelerator an encoder or decoder worker drives. Two adapter families
// are provided: a stateful one modelled on VAAPI's submit-whole-frame
// semantics, and a stateless one modelled on V4L2's request-API semantics,
// mirroring the split codec2 pipelines have always had to accommodate.
package backend

import (
	"github.com/ausocean/codec2/bitratectrl"
	"github.com/ausocean/codec2/fourcc"
	"github.com/ausocean/codec2/videoframe"
)

// Tunings collects the parameters a VideoEncoder negotiates with its
// caller before encoding begins, and that RateControl may adjust
// per-frame thereafter.
type Tunings struct {
	Bitrate     bitratectrl.Bitrate
	Framerate   uint32
	QPRange     bitratectrl.QPRange
	GOPSize     uint32
	LowLatency  bool
}

// RateControl exposes the feedback loop a backend runs between frames:
// the bitrate controller reports a target QP, and the backend reports
// back how many bits the just-encoded frame actually cost.
type RateControl interface {
	// TargetQP returns the quantisation parameter to use for the next
	// frame given frameType (keyframe bit costs are budgeted differently).
	TargetQP(keyframe bool) int32

	// ReportActual feeds back the size in bits of the frame just encoded
	// at the QP TargetQP most recently returned.
	ReportActual(bits int, keyframe bool)
}

// FrameMetadata accompanies every frame submitted to a VideoEncoder.
type FrameMetadata struct {
	Timestamp int64
	ForceKeyframe bool
}

// CodedFrame is a single compressed access unit returned by a VideoEncoder.
type CodedFrame struct {
	Data      []byte
	Timestamp int64
	Keyframe  bool
}

// VideoEncoder is the adapter surface an encoder worker drives. Encode is
// asynchronous: it queues the frame and returns immediately, with the
// result later retrievable via Poll. This mirrors both VAAPI's
// submit-then-sync model and V4L2's queue/dequeue model closely enough
// that one worker loop (see codec2/encoder) drives either.
type VideoEncoder interface {
	// Negotiate agrees tunings with the backend, returning the tunings
	// actually in effect (a backend may clamp bitrate/QP to its
	// capabilities).
	Negotiate(t Tunings) (Tunings, error)

	// Tune updates the backend's Tunings mid-stream, without renegotiating
	// resolution or format. Callers use this to push a bitrate controller's
	// target QP, an adjusted framerate, or a forced-keyframe GOP reset to
	// the backend between frames.
	Tune(t Tunings) error

	// Encode submits frame for encoding. It does not block for the
	// result; ownership of frame is retained by the caller until Poll
	// returns the corresponding CodedFrame.
	Encode(frame videoframe.VideoFrame, meta FrameMetadata) error

	// Poll returns the next completed CodedFrame, if one is ready. ok is
	// false if no frame has finished encoding yet; this is not an error.
	Poll() (cf CodedFrame, ok bool, err error)

	// Flush drains every frame queued via Encode, blocking until each has
	// produced a CodedFrame retrievable via Poll.
	Flush() error

	// Close releases the backend's resources. Encode must not be called
	// after Close.
	Close() error
}

// VideoDecoder is the adapter surface a decoder worker drives for formats
// whose bitstream parsing this module does not implement itself (i.e.
// every format other than VP8/VP9, whose state machines live in
// decoder/vp8 and decoder/vp9). Decoders accelerated this way hand codec2 already-
// parsed slice/frame data and receive back a populated VideoFrame.
type VideoDecoder interface {
	Negotiate(format fourcc.EncodedFormat, coded fourcc.Resolution) error
	DecodeFrame(bitstream []byte, dst videoframe.VideoFrame) error
	Close() error
}

// Capabilities reports what a backend adapter can do, queried before
// accepting a job so codec2 can fail fast rather than negotiate forever.
type Capabilities struct {
	Name               string
	SupportedEncoders  []fourcc.EncodedFormat
	SupportedDecoders  []fourcc.EncodedFormat
	MaxCodedResolution fourcc.Resolution
	Stateless          bool
}
