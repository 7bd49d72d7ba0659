/*
NAME
  dmaframe.go

DESCRIPTION
  dmaframe.go implements a concrete, DMA-exportable VideoFrame backed by
  plain heap buffers tagged with a simulated dma-buf handle per plane.
  Real deployments would back this with GBM-allocated, kernel-exported
  buffers (see cros-codecs' GbmVideoFrame/GenericDmaVideoFrame split in
  the original source this module is drawn from); this module keeps the
  same two-stage shape (allocate from a device, export to a frame) so the
  pool and backend adapters never need to know the difference, but uses a
  software buffer so the pipeline runs end-to-end in portable CI.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package videoframe

import (
	"fmt"

	"github.com/ausocean/codec2/fourcc"
)

// DMAHandle is a per-plane export handle. On a real device this is a
// dma-buf file descriptor; here it is a monotonically increasing
// identifier, sufficient to prove frames are not silently aliased.
type DMAHandle int64

// DMAFrame is a VideoFrame backed by in-process plane buffers, each
// carrying a DMAHandle as a stand-in for a dma-buf export.
type DMAFrame struct {
	fourcc     fourcc.Fourcc
	modifier   uint64
	resolution fourcc.Resolution
	coded      fourcc.Resolution
	decoded    fourcc.DecodedFormat

	planes  [][]byte
	pitch   []int
	size    []int
	handles []DMAHandle
}

var nextHandle DMAHandle

func allocHandle() DMAHandle {
	nextHandle++
	return nextHandle
}

// NewDMAFrame allocates a new frame for the given format and coded
// resolution. display must fit within coded in both axes.
func NewDMAFrame(f fourcc.Fourcc, display, coded fourcc.Resolution) (*DMAFrame, error) {
	if !coded.CanContain(display) {
		return nil, fmt.Errorf("videoframe: coded resolution %+v cannot contain display resolution %+v", coded, display)
	}

	df := &DMAFrame{
		fourcc:     f,
		resolution: display,
		coded:      coded,
		decoded:    fourcc.ToDecoded(f),
	}

	if fourcc.IsCompressed(f) {
		// Compressed frames are single plane, sized generously for a
		// worst-case coded bitstream; the encoder worker overwrites
		// plane 0's logical length out of band via the Job's output
		// buffer, not this mapping.
		df.planes = [][]byte{make([]byte, coded.Area()*2+4096)}
		df.pitch = []int{len(df.planes[0])}
		df.size = []int{len(df.planes[0])}
		df.handles = []DMAHandle{allocHandle()}
		return df, nil
	}

	hsub := videoframeHSub(df.decoded)
	vsub := videoframeVSub(df.decoded)
	bpe := videoframeBPE(df.decoded)
	n := len(hsub)

	df.pitch = make([]int, n)
	df.size = make([]int, n)
	df.handles = make([]DMAHandle, n)
	df.planes = make([][]byte, n)

	for p := 0; p < n; p++ {
		rowBytes := fourcc.AlignUp(int(coded.Width), hsub[p]) / hsub[p]
		pitch := int(float64(rowBytes) * bpe[p])
		if pitch < int(float64(rowBytes)*bpe[p]) {
			pitch++
		}
		rows := fourcc.AlignUp(int(coded.Height), vsub[p]) / vsub[p]
		size := pitch * rows

		df.pitch[p] = pitch
		df.size[p] = size
		df.handles[p] = allocHandle()
		df.planes[p] = make([]byte, size)
	}

	return df, nil
}

func videoframeHSub(d fourcc.DecodedFormat) []int { return HorizontalSubsamplingFor(d) }
func videoframeVSub(d fourcc.DecodedFormat) []int { return VerticalSubsamplingFor(d) }
func videoframeBPE(d fourcc.DecodedFormat) []float64 { return BytesPerElementFor(d) }

func (d *DMAFrame) Fourcc() fourcc.Fourcc           { return d.fourcc }
func (d *DMAFrame) Modifier() uint64                { return d.modifier }
func (d *DMAFrame) Resolution() fourcc.Resolution   { return d.resolution }
func (d *DMAFrame) CodedResolution() fourcc.Resolution { return d.coded }
func (d *DMAFrame) NumPlanes() int                  { return len(d.planes) }
func (d *DMAFrame) PlanePitch() []int               { return append([]int(nil), d.pitch...) }
func (d *DMAFrame) PlaneSize() []int                { return append([]int(nil), d.size...) }

func (d *DMAFrame) HorizontalSubsampling() []int {
	if fourcc.IsCompressed(d.fourcc) {
		return []int{1}
	}
	return HorizontalSubsamplingFor(d.decoded)
}

func (d *DMAFrame) VerticalSubsampling() []int {
	if fourcc.IsCompressed(d.fourcc) {
		return []int{1}
	}
	return VerticalSubsamplingFor(d.decoded)
}

func (d *DMAFrame) BytesPerElement() []float64 {
	if fourcc.IsCompressed(d.fourcc) {
		return []float64{1.0}
	}
	return BytesPerElementFor(d.decoded)
}

// DMAHandles returns the per-plane export handles, standing in for the
// dma-buf fd a real backend would pass to the kernel driver.
func (d *DMAFrame) DMAHandles() []DMAHandle { return append([]DMAHandle(nil), d.handles...) }

type dmaMapping struct {
	planes [][]byte
}

func (m *dmaMapping) Planes() [][]byte { return m.planes }
func (m *dmaMapping) Release()         {}

func (d *DMAFrame) Map() (ReadMapping, error) {
	return &dmaMapping{planes: d.planes}, nil
}

func (d *DMAFrame) MapMut() (WriteMapping, error) {
	return &dmaMapping{planes: d.planes}, nil
}
