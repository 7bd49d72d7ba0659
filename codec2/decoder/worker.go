/*
NAME
  worker.go

DESCRIPTION
  worker.go implements the decoder Processor: the glue between a
  codec2.Wrapper[*codec2.DecodeJob] and a codec-specific stateless
  decoder state machine (decoder/vp8 or decoder/vp9), handling the
  CheckEvents/NotEnoughOutputBuffers/ParseFrameError taxonomy at the
  wrapper boundary.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package decoder implements the decoder-side Processor driven by a
// codec2.Wrapper, wrapping a codec-specific stateless state machine.
package decoder

import (
	"errors"

	"github.com/ausocean/codec2/codec2"
	"github.com/ausocean/codec2/decoder"
	"github.com/ausocean/codec2/videoframe"
)

// StateMachine is satisfied by both decoder/vp8.Decoder and
// decoder/vp9.Decoder: the two codec-specific state machines share this
// exact method surface by construction.
type StateMachine interface {
	Decode(ts int64, bitstream []byte, isCSD bool, alloc decoder.AllocFunc) (consumed int, producedVisible bool, err error)
	Flush()
	NextEvent() ([]decoder.ReadyFrame, *decoder.StreamInfo)
	State() decoder.State
}

// Worker is the decoder-side codec2.Processor.
type Worker struct {
	sm   StateMachine
	pool *videoframe.FramePool

	hintCb func(*decoder.StreamInfo)

	pendingCheckEvents bool
	pendingReady       []decoder.ReadyFrame
}

// New constructs a Worker around an already-built state machine and the
// frame pool it allocates output pictures from. hint is invoked once per
// backend configuration, mirroring framepool_hint_cb.
func New(sm StateMachine, pool *videoframe.FramePool, hint func(*decoder.StreamInfo)) *Worker {
	return &Worker{sm: sm, pool: pool, hintCb: hint}
}

func (w *Worker) alloc() decoder.AllocFunc {
	return func() *videoframe.PooledVideoFrame { return w.pool.Alloc() }
}

// Handle implements codec2.Processor. retry=true means the decoder ran
// out of output pictures (NotEnoughOutputBuffers): the caller must push
// job back onto the Wrapper's FIFO head and retry the same bitstream
// once the host has driven the pool (e.g. released frames downstream).
func (w *Worker) Handle(job *codec2.DecodeJob) (out *codec2.DecodeJob, emit bool, retry bool, err error) {
	if job.IsEmpty() {
		if job.DrainMode == codec2.NoDrain {
			return nil, false, false, nil
		}
		w.sm.Flush()
		if len(w.pendingReady) > 0 {
			// Decoded frames are still waiting for delivery: retry this
			// drain once Poll has handed all of them out.
			return nil, false, true, nil
		}
		if job.DrainMode == codec2.SyntheticDrain {
			return nil, false, false, nil
		}
		return &codec2.DecodeJob{Ts: job.Ts, DrainMode: job.DrainMode}, true, false, nil
	}

	_, _, err = w.sm.Decode(job.Ts, job.Input, false, w.alloc())
	if err != nil {
		var notEnough *decoder.NotEnoughOutputBuffers
		if errors.As(err, &notEnough) {
			// Back-pressure: the same input must be retried once the
			// pool has frames available again, not discarded.
			return nil, false, true, nil
		}
		if errors.Is(err, decoder.ErrCheckEvents) {
			w.pendingCheckEvents = true
			return nil, false, false, nil
		}
		var parseErr *decoder.ParseFrameError
		if errors.As(err, &parseErr) {
			// Per-call failure; state unchanged, host may skip this chunk.
			return nil, false, false, nil
		}
		return nil, false, false, codec2.ErrBadValue(err)
	}

	return nil, false, false, nil
}

// Poll implements codec2.Processor: it drains the state machine's ready
// queue, delivering one decoded frame per completion job, and handles
// any pending AwaitingFormat transition via the framepool hint.
func (w *Worker) Poll() (out *codec2.DecodeJob, emit bool, ok bool, err error) {
	ready, si := w.sm.NextEvent()
	if len(ready) > 0 {
		w.pendingReady = append(w.pendingReady, ready...)
	}
	if si != nil && w.hintCb != nil {
		w.hintCb(si)
	}
	w.pendingCheckEvents = false

	if len(w.pendingReady) == 0 {
		return nil, false, false, nil
	}

	next := w.pendingReady[0]
	w.pendingReady = w.pendingReady[1:]
	dj := &codec2.DecodeJob{
		Output:               next.Frame,
		Ts:                   next.Timestamp,
		ContainsVisibleFrame: true,
	}
	return dj, true, true, nil
}

// Close implements codec2.Processor. The stateless decoder state
// machines hold no backend resources of their own to release; any
// hardware context lives in the injected Submitter.
func (w *Worker) Close() error { return nil }
