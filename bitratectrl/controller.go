/*
NAME
  controller.go

DESCRIPTION
  controller.go implements the bitrate feedback loop a VideoEncoder
  backend runs between frames: given a target bitrate and a moving
  window of recently observed frame sizes, it picks the next frame's
  quantisation parameter and clamps it to the codec's valid range.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package bitratectrl implements a software bitrate controller: a
// moving-window bits-per-second estimator feeding a simple QP search,
// for backends that don't already do rate control in firmware.
package bitratectrl

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/ausocean/codec2/fourcc"
)

// Bitrate describes a target encoding rate.
type Bitrate struct {
	// TargetBps is the desired steady-state bitrate in bits per second.
	TargetBps uint64
	// PeakBps caps instantaneous bitrate for constrained-VBR style
	// control; 0 means unconstrained (CBR-like).
	PeakBps uint64
}

// QPRange is the valid quantisation parameter range for a given codec.
// Lower QP means higher quality/bitrate.
type QPRange struct {
	Min, Max int32
}

// QPRangeFor returns the valid QP range for an encoded format, per the
// ranges each codec's bitstream syntax actually allows.
func QPRangeFor(f fourcc.EncodedFormat) QPRange {
	switch f {
	case fourcc.EncodedVP9, fourcc.EncodedAV1:
		return QPRange{Min: 0, Max: 255}
	case fourcc.EncodedVP8:
		return QPRange{Min: 0, Max: 127}
	case fourcc.EncodedH264, fourcc.EncodedH265:
		return QPRange{Min: 1, Max: 51}
	default:
		return QPRange{Min: 0, Max: 255}
	}
}

// windowSize is the number of trailing frame samples the controller
// averages over when estimating current bits-per-second.
const windowSize = 30

// Controller is a per-stream bitrate controller. It is not safe for
// concurrent use; an encoder worker owns one controller for its stream.
type Controller struct {
	target   Bitrate
	qpRange  QPRange
	framerate uint32

	bits   []float64
	cursor int
	filled int

	qp int32
}

// New constructs a Controller for the given codec, target bitrate and
// framerate, starting at the midpoint of the codec's QP range.
func New(format fourcc.EncodedFormat, target Bitrate, framerate uint32) *Controller {
	r := QPRangeFor(format)
	return &Controller{
		target:    target,
		qpRange:   r,
		framerate: framerate,
		bits:      make([]float64, windowSize),
		qp:        (r.Min + r.Max) / 2,
	}
}

// Retarget updates the controller's target bitrate and framerate
// in-place, without resetting the moving window or the current QP; an
// encoder worker calls this when a job's bitrate or framerate differs
// from what was last negotiated with the backend.
func (c *Controller) Retarget(target Bitrate, framerate uint32) {
	c.target = target
	c.framerate = framerate
}

// TargetQP implements backend.RateControl.
func (c *Controller) TargetQP(keyframe bool) int32 {
	if keyframe {
		// Keyframes are budgeted extra headroom: bias towards a lower QP
		// (higher quality) than the steady-state value, clamped to range.
		qp := c.qp - (c.qpRange.Max-c.qpRange.Min)/8
		return clamp(qp, c.qpRange.Min, c.qpRange.Max)
	}
	return clamp(c.qp, c.qpRange.Min, c.qpRange.Max)
}

// ReportActual implements backend.RateControl.
func (c *Controller) ReportActual(bits int, keyframe bool) {
	c.bits[c.cursor] = float64(bits)
	c.cursor = (c.cursor + 1) % windowSize
	if c.filled < windowSize {
		c.filled++
	}

	estimate := c.estimateBps()
	if estimate <= 0 || c.target.TargetBps == 0 {
		return
	}

	// Simple proportional step: over target, raise QP (reduce bits);
	// under target, lower QP. The step size shrinks as the controller
	// gets close, avoiding oscillation around the target.
	ratio := estimate / float64(c.target.TargetBps)
	switch {
	case ratio > 1.05:
		c.qp = clamp(c.qp+stepFor(ratio, c.qpRange), c.qpRange.Min, c.qpRange.Max)
	case ratio < 0.95:
		c.qp = clamp(c.qp-stepFor(1/ratio, c.qpRange), c.qpRange.Min, c.qpRange.Max)
	}
}

// estimateBps returns the moving-window average bits-per-second implied
// by the frame sizes observed so far, using gonum/stat for the mean over
// the filled portion of the window.
func (c *Controller) estimateBps() float64 {
	if c.filled == 0 || c.framerate == 0 {
		return 0
	}
	samples := c.bits
	if c.filled < windowSize {
		samples = c.bits[:c.filled]
	}
	meanBitsPerFrame := stat.Mean(samples, nil)
	return meanBitsPerFrame * float64(c.framerate)
}

func stepFor(ratio float64, r QPRange) int32 {
	span := r.Max - r.Min
	switch {
	case ratio > 1.5:
		return span / 10
	case ratio > 1.2:
		return span / 20
	default:
		return 1
	}
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// String renders the controller's current state, useful for diagnostics
// logging alongside a worker's per-frame trace.
func (c *Controller) String() string {
	return fmt.Sprintf("bitratectrl: qp=%d target=%d bps estimate=%.0f bps", c.qp, c.target.TargetBps, c.estimateBps())
}
