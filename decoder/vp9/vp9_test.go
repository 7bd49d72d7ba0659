package vp9_test

import (
	"testing"

	"github.com/ausocean/codec2/decoder"
	"github.com/ausocean/codec2/decoder/vp9"
	"github.com/ausocean/codec2/fourcc"
	"github.com/ausocean/codec2/videoframe"
)

type stubParser struct{ superframes [][]*vp9.FrameHeader }

func (p *stubParser) ParseSuperframe(bs []byte) ([]*vp9.FrameHeader, error) {
	h := p.superframes[0]
	p.superframes = p.superframes[1:]
	return h, nil
}

type stubSubmitter struct{}

func (stubSubmitter) Submit(dst videoframe.VideoFrame, _ *vp9.FrameHeader, _ [8]videoframe.VideoFrame, _ []byte) error {
	return nil
}
func (stubSubmitter) Sync(videoframe.VideoFrame) error  { return nil }
func (stubSubmitter) Blocking() bool                    { return false }
func (stubSubmitter) NewSequence(*vp9.FrameHeader) error { return nil }

func newPool(t *testing.T) *videoframe.FramePool {
	t.Helper()
	pool := videoframe.NewFramePool(func(si *videoframe.StreamInfo) (videoframe.VideoFrame, error) {
		return videoframe.NewDMAFrame(fourcc.NV12, si.DisplayResolution, si.CodedResolution)
	})
	if err := pool.Resize(&videoframe.StreamInfo{
		CodedResolution:   fourcc.Resolution{Width: 64, Height: 64},
		DisplayResolution: fourcc.Resolution{Width: 64, Height: 64},
		MinNumFrames:      12,
	}); err != nil {
		t.Fatalf("resize: %v", err)
	}
	return pool
}

func TestShowExistingFrameAliasesReferenceSlot(t *testing.T) {
	keyFrame := []*vp9.FrameHeader{{KeyFrame: true, ShowFrame: true, Width: 64, Height: 64, FrameLen: 8, RefreshFrameFlags: 0xFF}}
	parser := &stubParser{superframes: [][]*vp9.FrameHeader{
		keyFrame, // first call: negotiates, returns CheckEvents without decoding.
		keyFrame, // host resubmits the same bitstream once negotiated.
		{{ShowExistingFrame: true, FrameToShowMapIdx: 0, FrameLen: 0}},
	}}
	d := vp9.New(parser, stubSubmitter{})
	pool := newPool(t)
	alloc := func() *videoframe.PooledVideoFrame { return pool.Alloc() }

	if _, _, err := d.Decode(0, make([]byte, 8), false, alloc); err != decoder.ErrCheckEvents {
		t.Fatalf("expected CheckEvents on first negotiation, got %v", err)
	}
	if _, si := d.NextEvent(); si == nil {
		t.Fatal("expected a StreamInfo event after negotiation")
	}
	if _, _, err := d.Decode(0, make([]byte, 8), false, alloc); err != nil {
		t.Fatalf("resubmitted superframe: %v", err)
	}
	first, _ := d.NextEvent()
	if len(first) != 1 {
		t.Fatalf("expected 1 ready frame from key frame, got %d", len(first))
	}

	if _, produced, err := d.Decode(100, nil, false, alloc); err != nil {
		t.Fatalf("show_existing_frame superframe: %v", err)
	} else if !produced {
		t.Fatal("expected show_existing_frame to produce a visible frame")
	}

	second, _ := d.NextEvent()
	if len(second) != 1 {
		t.Fatalf("expected 1 aliased ready frame, got %d", len(second))
	}
	if second[0].Timestamp != 100 {
		t.Fatalf("expected aliased frame stamped with new timestamp 100, got %d", second[0].Timestamp)
	}
}

func TestShowExistingFrameRejectsEmptySlot(t *testing.T) {
	keyFrame := []*vp9.FrameHeader{{KeyFrame: true, ShowFrame: true, Width: 64, Height: 64, FrameLen: 8, RefreshFrameFlags: 0x01}}
	parser := &stubParser{superframes: [][]*vp9.FrameHeader{
		keyFrame,
		keyFrame,
		{{ShowExistingFrame: true, FrameToShowMapIdx: 3, FrameLen: 0}}, // slot 3 was never refreshed.
	}}
	d := vp9.New(parser, stubSubmitter{})
	pool := newPool(t)
	alloc := func() *videoframe.PooledVideoFrame { return pool.Alloc() }

	if _, _, err := d.Decode(0, make([]byte, 8), false, alloc); err != decoder.ErrCheckEvents {
		t.Fatalf("expected CheckEvents on negotiation, got %v", err)
	}
	d.NextEvent()
	if _, _, err := d.Decode(0, make([]byte, 8), false, alloc); err != nil {
		t.Fatalf("resubmitted superframe: %v", err)
	}
	d.NextEvent()

	if _, _, err := d.Decode(100, nil, false, alloc); err == nil {
		t.Fatal("expected an error referencing an empty reference slot")
	}
}

func TestNegotiationUsesLargestLayerInSuperframe(t *testing.T) {
	superframe := []*vp9.FrameHeader{
		{KeyFrame: true, ShowFrame: false, Width: 32, Height: 32, FrameLen: 4, RefreshFrameFlags: 0x01},
		{KeyFrame: true, ShowFrame: true, Width: 64, Height: 64, FrameLen: 4, RefreshFrameFlags: 0xFE},
	}
	parser := &stubParser{superframes: [][]*vp9.FrameHeader{superframe}}
	d := vp9.New(parser, stubSubmitter{})
	pool := newPool(t)
	alloc := func() *videoframe.PooledVideoFrame { return pool.Alloc() }

	if _, _, err := d.Decode(0, make([]byte, 8), false, alloc); err != decoder.ErrCheckEvents {
		t.Fatalf("expected CheckEvents on negotiation, got %v", err)
	}
	_, si := d.NextEvent()
	if si == nil {
		t.Fatal("expected negotiated StreamInfo")
	}
	if si.Coded.Width != 64 || si.Coded.Height != 64 {
		t.Fatalf("expected negotiation on the largest-by-area frame (64x64), got %+v", si.Coded)
	}
}
