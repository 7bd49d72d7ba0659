/*
NAME
  pool.go

DESCRIPTION
  pool.go implements the DMA frame pool: a fixed generation of frames
  backed by an allocator callback, handed out as refcounted pooled
  handles that recycle back into the pool on release. See spec.md §4.4;
  this is the resource-lifetime crux of the whole pipeline, since pool
  exhaustion (not an error) is the canonical back-pressure signal.

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

package videoframe

import (
	"sync"

	"github.com/ausocean/codec2/fourcc"
)

// StreamInfo describes the format and sizing of frames a FramePool must
// provide, as passed to Resize and on to the Allocator.
type StreamInfo struct {
	Format           fourcc.DecodedFormat
	FourccTag        fourcc.Fourcc
	CodedResolution  fourcc.Resolution
	DisplayResolution fourcc.Resolution
	MinNumFrames     int
}

// Allocator allocates a single fresh VideoFrame matching si. Resize calls
// it once for each cell it adds to bring the pool up to MinNumFrames.
type Allocator func(si *StreamInfo) (VideoFrame, error)

// cell is one slot in the pool's backing arena. A pooled handle points
// at its cell directly; Alloc scans the cells in order for a free one,
// and Release frees a cell in O(1) once its refcount drops to zero.
type cell struct {
	frame    VideoFrame
	free     bool
	refcount int
}

// FramePool owns an allocator and an arena of frames. It never blocks:
// Alloc returns nil when exhausted, which is the back-pressure signal
// the rest of the pipeline relies on.
type FramePool struct {
	mu        sync.Mutex
	alloc     Allocator
	cells     []*cell
	streamInfo *StreamInfo
}

// NewFramePool constructs an empty pool. Call Resize before the first
// Alloc; an empty pool always returns nil from Alloc.
func NewFramePool(alloc Allocator) *FramePool {
	return &FramePool{alloc: alloc}
}

// Resize (re)allocates enough frames so that the pool holds at least
// si.MinNumFrames cells. Existing outstanding pooled handles remain valid
// and recycle into the new generation on Release; total
// outstanding-plus-free frame count is never reduced by a Resize call,
// only grown to meet the new minimum.
func (p *FramePool) Resize(si *StreamInfo) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.streamInfo = si
	for len(p.cells) < si.MinNumFrames {
		f, err := p.alloc(si)
		if err != nil {
			return err
		}
		p.cells = append(p.cells, &cell{frame: f, free: true})
	}
	return nil
}

// Alloc returns a pooled handle, or nil if every cell is currently
// outstanding. Alloc never blocks and never allocates; exhaustion is
// reported by the nil return, which callers treat as back-pressure, not
// an error.
func (p *FramePool) Alloc() *PooledVideoFrame {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.cells {
		if c.free {
			c.free = false
			c.refcount = 1
			return &PooledVideoFrame{pool: p, cell: c}
		}
	}
	return nil
}

// Outstanding returns the number of cells currently checked out, for
// tests asserting back-pressure boundary behaviour.
func (p *FramePool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, c := range p.cells {
		if !c.free {
			n++
		}
	}
	return n
}

// Len returns the total number of cells the pool currently holds.
func (p *FramePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cells)
}

func (p *FramePool) release(c *cell) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c.refcount--
	if c.refcount <= 0 {
		c.free = true
	}
}

func (p *FramePool) retain(c *cell) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c.refcount++
}

// PooledVideoFrame is a VideoFrame handle on loan from a FramePool. It is
// VideoFrame-compatible but opaque about its origin: a backend cannot
// tell a pooled frame from a directly allocated one. Calling Release on
// the handle and on every Clone of it returns the underlying frame to
// the pool; a handle that is dropped without Release keeps its cell busy.
type PooledVideoFrame struct {
	pool *FramePool
	cell *cell
}

// Clone returns a new reference to the same pooled cell, incrementing its
// refcount. This backs the "shared because a decoded frame may still be
// referenced by the DPB while displayed" requirement in spec.md §3.
func (h *PooledVideoFrame) Clone() *PooledVideoFrame {
	h.pool.retain(h.cell)
	return &PooledVideoFrame{pool: h.pool, cell: h.cell}
}

// Release returns this reference to the pool. Once every clone of a
// handle has been released, the cell becomes free and a later Alloc may
// reuse it.
func (h *PooledVideoFrame) Release() {
	if h == nil || h.cell == nil {
		return
	}
	h.pool.release(h.cell)
	h.cell = nil
}

func (h *PooledVideoFrame) Fourcc() fourcc.Fourcc               { return h.cell.frame.Fourcc() }
func (h *PooledVideoFrame) Modifier() uint64                    { return h.cell.frame.Modifier() }
func (h *PooledVideoFrame) Resolution() fourcc.Resolution       { return h.cell.frame.Resolution() }
func (h *PooledVideoFrame) NumPlanes() int                      { return h.cell.frame.NumPlanes() }
func (h *PooledVideoFrame) PlanePitch() []int                   { return h.cell.frame.PlanePitch() }
func (h *PooledVideoFrame) PlaneSize() []int                    { return h.cell.frame.PlaneSize() }
func (h *PooledVideoFrame) HorizontalSubsampling() []int        { return h.cell.frame.HorizontalSubsampling() }
func (h *PooledVideoFrame) VerticalSubsampling() []int          { return h.cell.frame.VerticalSubsampling() }
func (h *PooledVideoFrame) BytesPerElement() []float64          { return h.cell.frame.BytesPerElement() }
func (h *PooledVideoFrame) Map() (ReadMapping, error)           { return h.cell.frame.Map() }
func (h *PooledVideoFrame) MapMut() (WriteMapping, error)       { return h.cell.frame.MapMut() }

// Underlying returns the wrapped frame, for backend adapters that need
// concrete export handles (e.g. DMAFrame.DMAHandles).
func (h *PooledVideoFrame) Underlying() VideoFrame { return h.cell.frame }
