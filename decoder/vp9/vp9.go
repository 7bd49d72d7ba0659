/*
NAME
  vp9.go

DESCRIPTION
  vp9.go implements the stateless VP9 decoder state machine: the
  8-slot reference DPB addressed by refresh_frame_flags, the
  show_existing_frame fast path, superframe iteration, and the DRC
  handshake negotiated on the largest-by-area frame in a superframe so
  inter-layer frames never each trigger their own resolution change.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package vp9 implements the stateless VP9 decoder state machine on top
// of an injected bitstream Parser and picture Submitter.
package vp9

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ausocean/codec2/decoder"
	"github.com/ausocean/codec2/fourcc"
	"github.com/ausocean/codec2/videoframe"
)

// numSlots is the size of the VP9 reference frame DPB.
const numSlots = 8

// FrameHeader is the already-parsed per-frame syntax for one frame
// within a superframe; parsing VP9 bitstream syntax is out of scope.
type FrameHeader struct {
	ShowExistingFrame  bool
	FrameToShowMapIdx  int

	KeyFrame bool
	ShowFrame bool
	Width    uint32
	Height   uint32
	BitDepth int
	Profile  int

	RefreshFrameFlags uint8
	FrameLen          int
}

// Parser splits one superframe (possibly several frames, terminated by
// a superframe marker byte) out of bitstream. Consumed bytes always
// equal len(bitstream) for a superframe, per the VP9 container contract.
type Parser interface {
	ParseSuperframe(bitstream []byte) ([]*FrameHeader, error)
}

// Submitter performs the actual decode of one picture given its header
// and the full reference frame set, writing into dst.
type Submitter interface {
	Submit(dst videoframe.VideoFrame, header *FrameHeader, refs [numSlots]videoframe.VideoFrame, bitstream []byte) error
	Sync(dst videoframe.VideoFrame) error
	Blocking() bool
	NewSequence(header *FrameHeader) error
}

// State aliases the shared decoder state enumeration.
type State = decoder.State

const (
	AwaitingStreamInfo = decoder.AwaitingStreamInfo
	AwaitingFormat     = decoder.AwaitingFormat
	FlushingForDRC     = decoder.FlushingForDRC
	Reset              = decoder.Reset
	Decoding           = decoder.Decoding
)

// Decoder is the stateless VP9 decoder state machine.
type Decoder struct {
	parser Parser
	sub    Submitter

	state State
	neg   decoder.NegotiationInfo

	refs [numSlots]*videoframe.PooledVideoFrame

	ready []decoder.ReadyFrame
}

// New constructs a Decoder in AwaitingStreamInfo.
func New(parser Parser, sub Submitter) *Decoder {
	return &Decoder{parser: parser, sub: sub, state: AwaitingStreamInfo}
}

// Decode consumes one superframe from bitstream. isCSD discards input
// without parsing. alloc supplies one output picture per non-
// show_existing_frame frame in the superframe, all before any frame is
// submitted; if it is exhausted partway through, the pictures already
// allocated in this call are released and
// NotEnoughOutputBuffers(remaining) is returned so the host can drive
// the pool and retry the same bitstream.
func (d *Decoder) Decode(ts int64, bitstream []byte, isCSD bool, alloc decoder.AllocFunc) (consumed int, producedVisible bool, err error) {
	if isCSD {
		return len(bitstream), false, nil
	}

	frames, err := d.parser.ParseSuperframe(bitstream)
	if err != nil {
		return 0, false, &decoder.ParseFrameError{Cause: err}
	}
	if len(frames) == 0 {
		return len(bitstream), false, nil
	}

	largest := largestByArea(frames)
	if largest.KeyFrame {
		next := decoder.NegotiationInfo{
			Coded:    fourcc.Resolution{Width: largest.Width, Height: largest.Height},
			BitDepth: largest.BitDepth,
			Profile:  largest.Profile,
		}
		if d.neg.RequiresDRC(next) {
			if d.state == Decoding {
				d.flushDPB()
				d.state = FlushingForDRC
				return len(bitstream), false, decoder.ErrCheckEvents
			}
			if err := d.sub.NewSequence(largest); err != nil {
				return 0, false, errors.Wrap(err, "vp9: new sequence")
			}
			d.neg = next
			d.state = AwaitingFormat
		}
	} else if d.state == Reset {
		d.state = Decoding
	}

	switch d.state {
	case AwaitingStreamInfo, Reset:
		return len(bitstream), false, nil
	case FlushingForDRC, AwaitingFormat:
		return len(bitstream), false, decoder.ErrCheckEvents
	}

	produced, err := d.handleSuperframe(ts, frames, bitstream, alloc)
	if err != nil {
		return 0, false, err
	}
	return len(bitstream), produced, nil
}

func largestByArea(frames []*FrameHeader) *FrameHeader {
	best := frames[0]
	bestArea := uint64(best.Width) * uint64(best.Height)
	for _, f := range frames[1:] {
		a := uint64(f.Width) * uint64(f.Height)
		if a > bestArea {
			best, bestArea = f, a
		}
	}
	return best
}

// handleSuperframe implements §4.3's VP9 per-superframe rule: show-
// existing frames alias an existing slot immediately; every other frame
// in the superframe has its picture preallocated upfront (so a
// mid-superframe pool exhaustion is reported without rewinding earlier
// frames), then each is submitted, synced if blocking, and pushed into
// the DPB using refresh_frame_flags as a bitmask.
func (d *Decoder) handleSuperframe(ts int64, frames []*FrameHeader, bitstream []byte, alloc decoder.AllocFunc) (bool, error) {
	pics := make([]*videoframe.PooledVideoFrame, len(frames))
	needed := 0
	for _, f := range frames {
		if f.ShowExistingFrame {
			continue
		}
		needed++
	}

	remaining := needed
	for i, f := range frames {
		if f.ShowExistingFrame {
			continue
		}
		pic := alloc()
		if pic == nil {
			for _, p := range pics {
				if p != nil {
					p.Release()
				}
			}
			return false, &decoder.NotEnoughOutputBuffers{Remaining: remaining}
		}
		pics[i] = pic
		remaining--
	}

	off := 0
	producedVisible := false
	for i, f := range frames {
		chunk := bitstream[off : off+f.FrameLen]
		off += f.FrameLen

		if f.ShowExistingFrame {
			src := d.refs[f.FrameToShowMapIdx]
			if src == nil {
				return false, fmt.Errorf("vp9: show_existing_frame references empty slot %d", f.FrameToShowMapIdx)
			}
			handle := src.Clone()
			d.ready = append(d.ready, decoder.ReadyFrame{Frame: handle, Timestamp: ts})
			producedVisible = true
			continue
		}

		var refFrames [numSlots]videoframe.VideoFrame
		for s, r := range d.refs {
			if r != nil {
				refFrames[s] = r
			}
		}

		pic := pics[i]
		if err := d.sub.Submit(pic, f, refFrames, chunk); err != nil {
			pic.Release()
			return false, fmt.Errorf("vp9: backend submit failed: %w", err)
		}
		if d.sub.Blocking() {
			if err := d.sub.Sync(pic); err != nil {
				pic.Release()
				return false, fmt.Errorf("vp9: backend sync failed: %w", err)
			}
		}

		d.updateDPB(f.RefreshFrameFlags, pic)

		if f.ShowFrame {
			d.ready = append(d.ready, decoder.ReadyFrame{Frame: pic.Clone(), Timestamp: ts})
			producedVisible = true
		}
		pic.Release()
	}

	return producedVisible, nil
}

// updateDPB replaces every slot whose bit is set in flags with a fresh
// reference to decoded, releasing whatever reference previously
// occupied that slot.
func (d *Decoder) updateDPB(flags uint8, decoded *videoframe.PooledVideoFrame) {
	for slot := 0; slot < numSlots; slot++ {
		if flags&(1<<uint(slot)) == 0 {
			continue
		}
		if d.refs[slot] != nil {
			d.refs[slot].Release()
		}
		d.refs[slot] = decoded.Clone()
	}
}

func (d *Decoder) flushDPB() {
	for slot := range d.refs {
		if d.refs[slot] != nil {
			d.refs[slot].Release()
			d.refs[slot] = nil
		}
	}
}

// Flush clears the DPB and transitions to Reset. Already-submitted
// pictures remain in the ready queue.
func (d *Decoder) Flush() {
	d.flushDPB()
	d.state = Reset
}

// NextEvent drains the ready queue, returning frames decoded since the
// last call, plus the negotiated StreamInfo if the decoder is currently
// AwaitingFormat.
func (d *Decoder) NextEvent() ([]decoder.ReadyFrame, *decoder.StreamInfo) {
	out := d.ready
	d.ready = nil

	if d.state != AwaitingFormat {
		return out, nil
	}
	si := &decoder.StreamInfo{
		Format:       fourcc.DecodedNV12,
		Coded:        d.neg.Coded,
		Display:      d.neg.Coded,
		MinNumFrames: numSlots + 4,
		BitDepth:     d.neg.BitDepth,
		Profile:      d.neg.Profile,
	}
	d.state = Decoding
	return out, si
}

// State returns the decoder's current lifecycle state.
func (d *Decoder) State() State { return d.state }
