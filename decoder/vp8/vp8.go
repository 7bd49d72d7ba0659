/*
NAME
  vp8.go

DESCRIPTION
  vp8.go implements the stateless VP8 decoder state machine: the
  three-slot (last/golden/alt) reference DPB, the DRC handshake on
  key-frame dimension changes, and the ordered submit/sync/update/push
  sequence per frame.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package vp8 implements the stateless VP8 decoder state machine on top
// of an injected bitstream Parser and picture Submitter.
package vp8

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ausocean/codec2/decoder"
	"github.com/ausocean/codec2/fourcc"
	"github.com/ausocean/codec2/videoframe"
)

// FrameHeader is the already-parsed per-frame syntax the core consumes;
// parsing VP8 bitstream syntax itself is out of scope.
type FrameHeader struct {
	KeyFrame  bool
	ShowFrame bool
	Width     uint32
	Height    uint32
	FrameLen  int

	RefreshLast             bool
	RefreshGolden           bool
	RefreshAlternate        bool
	CopyBufferToGolden      int // 0 nop, 1 from last, 2 from alt
	CopyBufferToAlternate   int // 0 nop, 1 from last, 2 from golden

	Segmentation  any
	MBLFAdjust    any
}

// Parser parses exactly one VP8 frame from the front of bitstream.
type Parser interface {
	ParseFrame(bitstream []byte) (*FrameHeader, error)
}

// Submitter performs the actual hardware/software decode of one picture
// given its header and reference slots, writing into dst. Blocking
// reports whether Submit already waited for completion (Sync then
// becomes a no-op) or whether the caller must call Sync separately.
type Submitter interface {
	Submit(dst videoframe.VideoFrame, header *FrameHeader, last, golden, alt videoframe.VideoFrame, bitstream []byte) error
	Sync(dst videoframe.VideoFrame) error
	Blocking() bool
	NewSequence(header *FrameHeader) error
}

// Decoder is the stateless VP8 decoder state machine.
type Decoder struct {
	parser Parser
	sub    Submitter

	state State
	neg   decoder.NegotiationInfo

	last, golden, alt *videoframe.PooledVideoFrame

	ready []decoder.ReadyFrame
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

// New constructs a Decoder in AwaitingStreamInfo.
func New(parser Parser, sub Submitter) *Decoder {
	return &Decoder{parser: parser, sub: sub, state: AwaitingStreamInfo}
}

// Decode consumes exactly one VP8 frame from bitstream. isCSD discards
// the input without parsing, matching the CSD fast-path shared by every
// codec's decode() entry point. alloc supplies the output picture for
// a frame that will be decoded; it may return nil to signal pool
// exhaustion.
func (d *Decoder) Decode(ts int64, bitstream []byte, isCSD bool, alloc decoder.AllocFunc) (consumed int, producedVisible bool, err error) {
	if isCSD {
		return len(bitstream), false, nil
	}

	hdr, err := d.parser.ParseFrame(bitstream)
	if err != nil {
		return 0, false, &decoder.ParseFrameError{Cause: err}
	}

	next := decoder.NegotiationInfo{Coded: fourcc.Resolution{Width: hdr.Width, Height: hdr.Height}}
	if hdr.KeyFrame && d.neg.RequiresDRC(next) {
		if d.state == Decoding {
			d.flushDPB()
			d.state = FlushingForDRC
			return hdr.FrameLen, false, decoder.ErrCheckEvents
		}
		if err := d.sub.NewSequence(hdr); err != nil {
			return 0, false, errors.Wrap(err, "vp8: new sequence")
		}
		d.neg = next
		d.state = AwaitingFormat
	} else if d.state == Reset {
		d.state = Decoding
	}

	switch d.state {
	case AwaitingStreamInfo, Reset:
		return hdr.FrameLen, false, nil
	case FlushingForDRC, AwaitingFormat:
		return hdr.FrameLen, false, decoder.ErrCheckEvents
	}

	produced, err := d.handleFrame(ts, hdr, bitstream[:hdr.FrameLen], alloc)
	if err != nil {
		return 0, false, err
	}
	return hdr.FrameLen, produced, nil
}

func (d *Decoder) handleFrame(ts int64, hdr *FrameHeader, bitstream []byte, alloc decoder.AllocFunc) (bool, error) {
	pic := alloc()
	if pic == nil {
		return false, &decoder.NotEnoughOutputBuffers{Remaining: 1}
	}

	var lastF, goldenF, altF videoframe.VideoFrame
	if d.last != nil {
		lastF = d.last
	}
	if d.golden != nil {
		goldenF = d.golden
	}
	if d.alt != nil {
		altF = d.alt
	}

	if err := d.sub.Submit(pic, hdr, lastF, goldenF, altF, bitstream); err != nil {
		return false, codec2BadValue(err)
	}
	if d.sub.Blocking() {
		if err := d.sub.Sync(pic); err != nil {
			return false, codec2BadValue(err)
		}
	}

	d.updateDPB(hdr, pic)

	if hdr.ShowFrame {
		d.ready = append(d.ready, decoder.ReadyFrame{Frame: pic, Timestamp: ts})
		return true, nil
	}
	return false, nil
}

// updateDPB applies the VP8 reference update rules in the exact order
// the VP8 bitstream spec requires: key-frame replaces all three slots;
// otherwise alt, then golden, then last, each consulting its own
// refresh/copy flags.
func (d *Decoder) updateDPB(hdr *FrameHeader, decoded *videoframe.PooledVideoFrame) {
	if hdr.KeyFrame {
		d.releaseSlot(&d.last)
		d.releaseSlot(&d.golden)
		d.releaseSlot(&d.alt)
		d.last = decoded.Clone()
		d.golden = decoded.Clone()
		d.alt = decoded.Clone()
		return
	}

	if hdr.RefreshAlternate {
		d.releaseSlot(&d.alt)
		d.alt = decoded.Clone()
	} else {
		switch hdr.CopyBufferToAlternate {
		case 1:
			d.releaseSlot(&d.alt)
			d.alt = cloneOrNil(d.last)
		case 2:
			d.releaseSlot(&d.alt)
			d.alt = cloneOrNil(d.golden)
		}
	}

	if hdr.RefreshGolden {
		d.releaseSlot(&d.golden)
		d.golden = decoded.Clone()
	} else {
		switch hdr.CopyBufferToGolden {
		case 1:
			d.releaseSlot(&d.golden)
			d.golden = cloneOrNil(d.last)
		case 2:
			d.releaseSlot(&d.golden)
			d.golden = cloneOrNil(d.alt)
		}
	}

	if hdr.RefreshLast {
		d.releaseSlot(&d.last)
		d.last = decoded.Clone()
	}
}

func cloneOrNil(f *videoframe.PooledVideoFrame) *videoframe.PooledVideoFrame {
	if f == nil {
		return nil
	}
	return f.Clone()
}

func (d *Decoder) releaseSlot(slot **videoframe.PooledVideoFrame) {
	if *slot != nil {
		(*slot).Release()
		*slot = nil
	}
}

// flushDPB releases every reference slot, used ahead of a DRC flush.
func (d *Decoder) flushDPB() {
	d.releaseSlot(&d.last)
	d.releaseSlot(&d.golden)
	d.releaseSlot(&d.alt)
}

// Flush clears the DPB and transitions to Reset. Already-submitted
// pictures remain in the ready queue.
func (d *Decoder) Flush() {
	d.flushDPB()
	d.state = Reset
}

// NextEvent drains the ready queue, returning the frames decoded since
// the last call. If the decoder is AwaitingFormat, it additionally
// returns the negotiated StreamInfo for host acknowledgement.
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
		MinNumFrames: 3 + 4,
	}
	d.state = Decoding
	return out, si
}

// State returns the decoder's current lifecycle state.
func (d *Decoder) State() State { return d.state }

func codec2BadValue(err error) error {
	return fmt.Errorf("vp8: backend submit failed: %w", err)
}
