/*
NAME
  videoframe.go

DESCRIPTION
  videoframe.go defines the VideoFrame capability contract: the uniform
  description that ties host buffers, DMA-exported buffers and pooled
  frames together with explicit layout and subsampling semantics.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package videoframe provides the VideoFrame capability set and the DMA
// frame pool built on top of it. A VideoFrame is a refcountable handle
// describing a decoded (raw) or encoded (compressed) frame's layout; the
// pool hands out pooled handles that recycle on their final release.
package videoframe

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ausocean/codec2/fourcc"
)

// Plane indices for the common semi-planar/planar layouts.
const (
	ARGBPlane = 0
	YPlane    = 0
	UVPlane   = 1
	UPlane    = 1
	VPlane    = 2
)

// ReadMapping is a scoped read-only view over a VideoFrame's planes.
// Release must be called on every exit path (including error paths); it
// performs any necessary unmapping/cache invalidation.
type ReadMapping interface {
	Planes() [][]byte
	Release()
}

// WriteMapping is a scoped read-write view over a VideoFrame's planes.
// Release must be called on every exit path.
type WriteMapping interface {
	Planes() [][]byte
	Release()
}

// VideoFrame is the unified abstraction for any kind of frame data that
// might be sent to or received from a hardware accelerator.
type VideoFrame interface {
	// Fourcc returns the frame's pixel or compressed format tag.
	Fourcc() fourcc.Fourcc

	// Modifier returns the format modifier (tiling/compression layout),
	// or 0 if the frame has no modifier.
	Modifier() uint64

	// Resolution returns the frame's display (visible) resolution. Use
	// PlanePitch/PlaneSize for the coded-resolution-derived layout.
	Resolution() fourcc.Resolution

	// NumPlanes returns the number of planes this frame's format uses.
	NumPlanes() int

	// PlanePitch returns, for each plane, the stride in bytes.
	PlanePitch() []int

	// PlaneSize returns, for each plane, the total allocated size in bytes.
	PlaneSize() []int

	// HorizontalSubsampling and VerticalSubsampling return, for each
	// plane, the chroma subsampling factor along that axis (1 for no
	// subsampling).
	HorizontalSubsampling() []int
	VerticalSubsampling() []int

	// BytesPerElement returns, for each plane, the number of bytes each
	// sample element occupies. May be fractional (e.g. 1.25 for MT2T).
	BytesPerElement() []float64

	// Map returns a scoped read-only mapping of every plane.
	Map() (ReadMapping, error)

	// MapMut returns a scoped read-write mapping of every plane.
	MapMut() (WriteMapping, error)
}

// IsCompressed reports whether f is a compressed VideoFrame.
func IsCompressed(f VideoFrame) bool { return fourcc.IsCompressed(f.Fourcc()) }

// NumPlanesFor returns the plane count implied by a decoded format,
// independent of any particular VideoFrame implementation.
func NumPlanesFor(d fourcc.DecodedFormat) int {
	switch d {
	case fourcc.DecodedAR24:
		return 1
	case fourcc.DecodedI420, fourcc.DecodedI422, fourcc.DecodedI444,
		fourcc.DecodedI010, fourcc.DecodedI012, fourcc.DecodedI210,
		fourcc.DecodedI212, fourcc.DecodedI410, fourcc.DecodedI412,
		fourcc.DecodedYV12:
		return 3
	case fourcc.DecodedNV12, fourcc.DecodedMM21, fourcc.DecodedMT2T, fourcc.DecodedP010:
		return 2
	default:
		return 0
	}
}

// HorizontalSubsamplingFor returns the per-plane horizontal subsampling
// factors implied by a decoded format.
func HorizontalSubsamplingFor(d fourcc.DecodedFormat) []int {
	n := NumPlanesFor(d)
	ret := make([]int, n)
	for i := range ret {
		switch d {
		case fourcc.DecodedI420, fourcc.DecodedNV12, fourcc.DecodedI422,
			fourcc.DecodedI010, fourcc.DecodedI012, fourcc.DecodedI210,
			fourcc.DecodedI212, fourcc.DecodedMM21, fourcc.DecodedMT2T,
			fourcc.DecodedP010, fourcc.DecodedYV12:
			if i == 0 {
				ret[i] = 1
			} else {
				ret[i] = 2
			}
		default:
			ret[i] = 1
		}
	}
	return ret
}

// VerticalSubsamplingFor returns the per-plane vertical subsampling
// factors implied by a decoded format.
func VerticalSubsamplingFor(d fourcc.DecodedFormat) []int {
	n := NumPlanesFor(d)
	ret := make([]int, n)
	for i := range ret {
		switch d {
		case fourcc.DecodedI420, fourcc.DecodedNV12, fourcc.DecodedI010,
			fourcc.DecodedI012, fourcc.DecodedMM21, fourcc.DecodedMT2T,
			fourcc.DecodedP010, fourcc.DecodedYV12:
			if i == 0 {
				ret[i] = 1
			} else {
				ret[i] = 2
			}
		default:
			ret[i] = 1
		}
	}
	return ret
}

// BytesPerElementFor returns the per-plane element size (in bytes, may be
// fractional) implied by a decoded format.
//
// The rounding rule for MT2T's fractional element size (1.25 luma,
// 2.5 chroma) is not documented upstream; this module takes the ceiling
// of the minimum-pitch formula in Validate, consistent with the rounding
// already applied to every other plane (see SPEC_FULL.md §5).
func BytesPerElementFor(d fourcc.DecodedFormat) []float64 {
	n := NumPlanesFor(d)
	ret := make([]float64, n)
	for i := range ret {
		switch d {
		case fourcc.DecodedAR24:
			ret[i] = 4.0
		case fourcc.DecodedI420, fourcc.DecodedI422, fourcc.DecodedI444, fourcc.DecodedYV12:
			ret[i] = 1.0
		case fourcc.DecodedI010, fourcc.DecodedI012, fourcc.DecodedI210,
			fourcc.DecodedI212, fourcc.DecodedI410, fourcc.DecodedI412:
			ret[i] = 2.0
		case fourcc.DecodedP010:
			if i == 0 {
				ret[i] = 2.0
			} else {
				ret[i] = 4.0
			}
		case fourcc.DecodedMT2T:
			if i == 0 {
				ret[i] = 1.25
			} else {
				ret[i] = 2.5
			}
		case fourcc.DecodedNV12, fourcc.DecodedMM21:
			if i == 0 {
				ret[i] = 1.0
			} else {
				ret[i] = 2.0
			}
		}
	}
	return ret
}

// Validate checks f's reported plane pitch and size against the minimums
// implied by its resolution, subsampling and element size, per the
// invariant in spec.md §3:
//
//	plane_pitch[p] >= ceil(width/hsub[p]) * bytes_per_element[p]
//	plane_size[p]  >= ceil(height/vsub[p]) * plane_pitch[p]
//
// Compressed frames always report one plane and skip the check.
func Validate(f VideoFrame) error {
	if IsCompressed(f) {
		return nil
	}

	hsub := f.HorizontalSubsampling()
	vsub := f.VerticalSubsampling()
	bpe := f.BytesPerElement()
	pitch := f.PlanePitch()
	size := f.PlaneSize()
	res := f.Resolution()

	for p := 0; p < f.NumPlanes(); p++ {
		// Fractional bytes-per-element (MT2T) are rounded up, per the
		// decision recorded in SPEC_FULL.md §5.
		minPitchF := float64(fourcc.AlignUp(int(res.Width), hsub[p])/hsub[p]) * bpe[p]
		minPitch := int(ceilF(minPitchF))
		if pitch[p] < minPitch {
			return errors.Wrapf(
				fmt.Errorf("pitch of plane %d is insufficient: expected >= %d, got %d", p, minPitch, pitch[p]),
				"videoframe: validate")
		}

		minSize := fourcc.AlignUp(int(res.Height), vsub[p]) / vsub[p] * pitch[p]
		if size[p] < minSize {
			return errors.Wrapf(
				fmt.Errorf("size of plane %d is insufficient: expected >= %d, got %d", p, minSize, size[p]),
				"videoframe: validate")
		}
	}

	return nil
}

func ceilF(f float64) float64 {
	i := float64(int(f))
	if i < f {
		return i + 1
	}
	return i
}
