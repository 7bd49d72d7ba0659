/*
NAME
  job.go

DESCRIPTION
  job.go defines the Job type family the wrapper's FIFO carries: the
  polymorphic DecodeJob/EncodeJob pair and the DrainMode that governs
  flush/drain/stop semantics.

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

import (
	"sync/atomic"

	"github.com/ausocean/codec2/videoframe"
)

// DrainMode tags the intent behind a drain-carrying job.
type DrainMode int

const (
	// NoDrain marks a regular frame job.
	NoDrain DrainMode = iota
	// EOSDrain flushes all pending frames, signals end-of-stream, and
	// transitions the wrapper to Stopped once drained.
	EOSDrain
	// NoEOSDrain flushes all pending frames but the wrapper immediately
	// accepts new jobs afterwards.
	NoEOSDrain
	// SyntheticDrain is injected by Flush/Drain; no outbound job is ever
	// produced for it.
	SyntheticDrain
)

func (d DrainMode) String() string {
	switch d {
	case NoDrain:
		return "NoDrain"
	case EOSDrain:
		return "EOSDrain"
	case NoEOSDrain:
		return "NoEOSDrain"
	case SyntheticDrain:
		return "SyntheticDrain"
	default:
		return "Unknown"
	}
}

// Job is the common interface the wrapper's FIFO and a Processor's own
// in-flight bookkeeping (see codec2/encoder.Worker) operate on,
// regardless of whether it wraps a decode or an encode.
type Job interface {
	// Drain returns the job's drain mode.
	Drain() DrainMode
	// Timestamp returns the presentation timestamp associated with the
	// job, propagated to any outbound job emitted for it.
	Timestamp() int64
	// IsEmpty reports whether the job carries no input (the drain
	// fast-path in the worker loop dispatches on this).
	IsEmpty() bool
}

// DecodeJob carries one unit of compressed input for the decoder worker,
// and, once decoded, a (possibly still DPB-referenced) output frame.
type DecodeJob struct {
	Input               []byte
	Output              *videoframe.PooledVideoFrame
	Ts                   int64
	DrainMode            DrainMode
	ContainsVisibleFrame bool
	CodecSpecificData    []byte
}

func (j *DecodeJob) Drain() DrainMode { return j.DrainMode }
func (j *DecodeJob) Timestamp() int64 { return j.Ts }
func (j *DecodeJob) IsEmpty() bool    { return j.Input == nil }

// EncodeJob carries one raw input frame for the encoder worker, and,
// once encoded, the compressed output bytes.
//
// Framerate is an atomic because it is the only field the host may
// mutate while the job sits enqueued on the worker's FIFO; every other
// field is write-once before Queue and read-only thereafter.
type EncodeJob struct {
	Input     videoframe.VideoFrame
	Output    []byte
	CSD       []byte
	Ts        int64
	Bitrate   uint64
	framerate atomic.Uint32
	DrainMode DrainMode
}

func (j *EncodeJob) Drain() DrainMode { return j.DrainMode }
func (j *EncodeJob) Timestamp() int64 { return j.Ts }
func (j *EncodeJob) IsEmpty() bool    { return j.Input == nil }

// Framerate returns the job's current framerate.
func (j *EncodeJob) Framerate() uint32 { return j.framerate.Load() }

// SetFramerate updates the job's framerate. Safe to call concurrently
// with the worker reading Framerate while the job sits enqueued.
func (j *EncodeJob) SetFramerate(fps uint32) { j.framerate.Store(fps) }
