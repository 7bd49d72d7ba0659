/*
NAME
  worker.go

DESCRIPTION
  worker.go implements the encoder Processor: the per-job behaviour a
  codec2.Wrapper[*codec2.EncodeJob] drives on its worker goroutine —
  drain fast-path, zero-copy/scratch import decision, format
  conversion, border extension, tune negotiation, submission with
  in-flight bookkeeping, and completion polling, with a bitrate
  controller feeding QP back to the backend every frame.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package encoder implements the encoder-side Processor driven by a
// codec2.Wrapper.
package encoder

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/ausocean/codec2/codec2"
	"github.com/ausocean/codec2/backend"
	"github.com/ausocean/codec2/bitratectrl"
	"github.com/ausocean/codec2/fourcc"
	"github.com/ausocean/codec2/imageproc"
	"github.com/ausocean/codec2/videoframe"
)

// inFlightFrames is the IN_FLIGHT_FRAMES constant: the baseline
// submission depth a backend is allowed regardless of codec, on top of
// which the codec's own DPB minimum is added.
const inFlightFrames = 4

// dpbMinimum returns the minimum decoded-picture-buffer depth a backend
// needs in flight for format, added to inFlightFrames to bound the
// worker's in-flight queue and reported to the host via the framepool
// hint on startup.
func dpbMinimum(format fourcc.EncodedFormat) int {
	switch format {
	case fourcc.EncodedH264, fourcc.EncodedH265:
		return 4
	case fourcc.EncodedVP8:
		return 3
	case fourcc.EncodedVP9, fourcc.EncodedAV1:
		return 8
	default:
		return 0
	}
}

// MinScratchFrames returns the minimum number of scratch conversion
// frames a caller's allocScratch pool should hold for format, matching
// the worker's own in-flight submission depth so a burst of frames that
// all need conversion doesn't immediately back-pressure.
func MinScratchFrames(format fourcc.EncodedFormat) int {
	return inFlightFrames + dpbMinimum(format)
}

// errPoolExhausted signals that alloc_cb returned no scratch frame; the
// caller must push the job back to the FIFO head rather than treat this
// as a backend failure.
var errPoolExhausted = errors.New("encoder: scratch pool exhausted")

// releasable is implemented by pooled frames obtained from allocScratch;
// Poll calls Release once a scratch frame's corresponding job completes.
type releasable interface {
	Release()
}

// inFlightEncode pairs a submitted job with the scratch frame (if any)
// that must be released once its completion is polled.
type inFlightEncode struct {
	job     *codec2.EncodeJob
	scratch videoframe.VideoFrame
}

// Worker is the encoder-side codec2.Processor. One Worker is bound to
// one backend.VideoEncoder for the lifetime of a Wrapper.
type Worker struct {
	enc     backend.VideoEncoder
	format  fourcc.EncodedFormat
	ctrl    *bitratectrl.Controller
	display fourcc.Resolution
	coded   fourcc.Resolution

	tunings backend.Tunings

	// allocScratch obtains a scratch frame for format conversion/border
	// extension ahead of submission, mirroring alloc_cb; it returns nil
	// when the pool backing it is exhausted.
	allocScratch func() videoframe.VideoFrame

	maxInFlight int
	inFlight    []inFlightEncode

	csdEmitted bool
	csd        []byte

	pendingKeyframe bool
}

// New constructs a Worker around an already-negotiated backend encoder.
// csd carries the codec_specific_data to attach to the first emitted
// job (SPS/PPS concatenation for H.264; empty for VP8/VP9/AV1).
// allocScratch supplies scratch frames for conversion when a source
// frame can't be imported zero-copy; it must return nil (never a typed
// nil interface) when exhausted.
func New(enc backend.VideoEncoder, format fourcc.EncodedFormat, target bitratectrl.Bitrate, framerate uint32, display, coded fourcc.Resolution, csd []byte, allocScratch func() videoframe.VideoFrame) *Worker {
	return &Worker{
		enc:          enc,
		format:       format,
		ctrl:         bitratectrl.New(format, target, framerate),
		display:      display,
		coded:        coded,
		csd:          csd,
		allocScratch: allocScratch,
		tunings: backend.Tunings{
			Bitrate:   target,
			Framerate: framerate,
			QPRange:   bitratectrl.QPRangeFor(format),
		},
		maxInFlight: inFlightFrames + dpbMinimum(format),
	}
}

// MaxInFlight returns the in-flight submission depth this worker was
// configured with, for reporting via a framepool hint on startup.
func (w *Worker) MaxInFlight() int { return w.maxInFlight }

// Handle implements codec2.Processor. retry=true means the caller must
// push job back onto the Wrapper's FIFO head and leave the worker state
// untouched; this is back-pressure, not an error.
func (w *Worker) Handle(job *codec2.EncodeJob) (out *codec2.EncodeJob, emit bool, retry bool, err error) {
	if job.IsEmpty() {
		if job.DrainMode != codec2.NoDrain && len(w.inFlight) > 0 {
			// Earlier jobs still await completion: drain the backend and
			// retry this job once Poll has delivered all of them.
			if err := w.enc.Flush(); err != nil {
				return nil, false, false, codec2.ErrBadValue(pkgerrors.Wrap(err, "encoder: drain"))
			}
			return nil, false, true, nil
		}
		out, emit, err = w.handleDrain(job)
		return out, emit, false, err
	}

	if len(w.inFlight) >= w.maxInFlight {
		return nil, false, true, nil
	}

	dst, allocated, err := w.prepare(job.Input)
	if err != nil {
		if errors.Is(err, errPoolExhausted) {
			return nil, false, true, nil
		}
		return nil, false, false, codec2.ErrBadValue(err)
	}

	if err := w.tune(job); err != nil {
		return nil, false, false, codec2.ErrBadValue(err)
	}

	meta := backend.FrameMetadata{Timestamp: job.Ts, ForceKeyframe: w.pendingKeyframe}
	w.pendingKeyframe = false
	if err := w.enc.Encode(dst, meta); err != nil {
		return nil, false, false, codec2.ErrBadValue(pkgerrors.Wrap(err, "encoder: submit"))
	}

	w.inFlight = append(w.inFlight, inFlightEncode{job: job, scratch: allocated})
	return nil, false, false, nil
}

// prepare decides, per the zero-copy import rule, whether job's source
// frame can be submitted to the backend directly or must first be
// converted into a scratch frame. It returns the frame to submit and,
// if a scratch frame was allocated, that same frame again so the caller
// can release it once the job completes; allocated is nil when dst is
// the source frame itself.
func (w *Worker) prepare(src videoframe.VideoFrame) (dst videoframe.VideoFrame, allocated videoframe.VideoFrame, err error) {
	if zeroCopyEligible(src, w.coded) {
		return src, nil, nil
	}

	scratch := w.allocScratch()
	if scratch == nil {
		return nil, nil, errPoolExhausted
	}

	srcFmt := fourcc.ToDecoded(src.Fourcc())
	dstFmt := fourcc.ToDecoded(scratch.Fourcc())
	if !imageproc.CanConvert(srcFmt, dstFmt) {
		return nil, nil, fmt.Errorf("encoder: no conversion path from %s to %s", src.Fourcc(), scratch.Fourcc())
	}
	if err := imageproc.ConvertVideoFrame(src, scratch); err != nil {
		return nil, nil, pkgerrors.Wrap(err, "encoder: convert")
	}
	if err := imageproc.ExtendBorder(scratch, w.display, w.coded); err != nil {
		return nil, nil, pkgerrors.Wrap(err, "encoder: extend border")
	}
	return scratch, scratch, nil
}

// zeroCopyEligible reports whether src can be submitted to the backend
// directly without a conversion/border-extension pass: it must already
// be in the backend-native NV12 format, with plane 0's pitch exactly
// equal to the coded width and plane 0 large enough for the full coded
// area.
func zeroCopyEligible(src videoframe.VideoFrame, coded fourcc.Resolution) bool {
	if src.Fourcc() != fourcc.NV12 {
		return false
	}
	pitch := src.PlanePitch()
	size := src.PlaneSize()
	if len(pitch) == 0 || len(size) == 0 {
		return false
	}
	return pitch[0] == int(coded.Width) && size[0] >= int(coded.Width)*int(coded.Height)
}

// tune pushes an updated Tunings to the backend whenever job's bitrate
// or framerate differs from what was last negotiated, and on every job
// regardless pins QPRange to the controller's current target QP so the
// backend always encodes at the controller's chosen quality.
func (w *Worker) tune(job *codec2.EncodeJob) error {
	next := w.tunings

	retarget := false
	if job.Bitrate != 0 && job.Bitrate != next.Bitrate.TargetBps {
		next.Bitrate.TargetBps = job.Bitrate
		retarget = true
	}
	if fps := job.Framerate(); fps != 0 && fps != next.Framerate {
		next.Framerate = fps
		retarget = true
	}
	if retarget {
		w.ctrl.Retarget(next.Bitrate, next.Framerate)
	}

	qp := w.ctrl.TargetQP(w.pendingKeyframe)
	next.QPRange = bitratectrl.QPRange{Min: qp, Max: qp}

	if err := w.enc.Tune(next); err != nil {
		return pkgerrors.Wrap(err, "encoder: tune")
	}
	w.tunings = next
	return nil
}

// handleDrain implements the drain fast-path: for a non-NoDrain job with
// no input, drain the backend then poll to completion (Handle only calls
// it once every in-flight job has been polled); emit exactly one
// empty job carrying the original timestamp and drain mode for
// EOSDrain/NoEOSDrain, and never emit one for SyntheticDrain.
func (w *Worker) handleDrain(job *codec2.EncodeJob) (*codec2.EncodeJob, bool, error) {
	if job.DrainMode == codec2.NoDrain {
		return nil, false, nil
	}

	if err := w.enc.Flush(); err != nil {
		return nil, false, codec2.ErrBadValue(pkgerrors.Wrap(err, "encoder: drain"))
	}

	if job.DrainMode == codec2.SyntheticDrain {
		return nil, false, nil
	}

	return &codec2.EncodeJob{Ts: job.Ts, DrainMode: job.DrainMode}, true, nil
}

// Poll implements codec2.Processor: it drains one completed coded frame
// per tick from the backend, pops the oldest in-flight job so
// completion order equals submission order, releases that job's scratch
// frame (if any), attaches csd to the first completion, and feeds the
// observed size back into the bitrate controller.
func (w *Worker) Poll() (out *codec2.EncodeJob, emit bool, ok bool, err error) {
	cf, ready, perr := w.enc.Poll()
	if perr != nil {
		return nil, false, false, codec2.ErrBadValue(pkgerrors.Wrap(perr, "encoder: poll"))
	}
	if !ready {
		return nil, false, false, nil
	}

	w.ctrl.ReportActual(len(cf.Data)*8, cf.Keyframe)

	var job *codec2.EncodeJob
	if len(w.inFlight) > 0 {
		entry := w.inFlight[0]
		w.inFlight = w.inFlight[1:]
		job = entry.job
		if r, ok := entry.scratch.(releasable); ok {
			r.Release()
		}
	}

	ej := &codec2.EncodeJob{
		Output: cf.Data,
		Ts:     cf.Timestamp,
	}
	if job != nil {
		ej.Bitrate = job.Bitrate
	}
	if !w.csdEmitted {
		ej.CSD = w.csd
		w.csdEmitted = true
	}
	return ej, true, true, nil
}

// Close implements codec2.Processor.
func (w *Worker) Close() error { return w.enc.Close() }

// RequestKeyframe asks the next submitted frame to be encoded as a
// keyframe; the encoder's own RateControl logic still owns QP selection.
func (w *Worker) RequestKeyframe() { w.pendingKeyframe = true }
