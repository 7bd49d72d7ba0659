package vp8_test

import (
	"testing"

	"github.com/ausocean/codec2/decoder"
	"github.com/ausocean/codec2/decoder/vp8"
	"github.com/ausocean/codec2/fourcc"
	"github.com/ausocean/codec2/videoframe"
)

type stubParser struct{ headers []*vp8.FrameHeader }

func (p *stubParser) ParseFrame(bs []byte) (*vp8.FrameHeader, error) {
	h := p.headers[0]
	p.headers = p.headers[1:]
	return h, nil
}

type stubSubmitter struct{}

func (stubSubmitter) Submit(dst videoframe.VideoFrame, _ *vp8.FrameHeader, _, _, _ videoframe.VideoFrame, _ []byte) error {
	return nil
}
func (stubSubmitter) Sync(videoframe.VideoFrame) error        { return nil }
func (stubSubmitter) Blocking() bool                          { return false }
func (stubSubmitter) NewSequence(*vp8.FrameHeader) error       { return nil }

// recordingSubmitter remembers the reference frames passed to its most
// recent Submit call.
type recordingSubmitter struct {
	stubSubmitter
	last, golden, alt videoframe.VideoFrame
}

func (s *recordingSubmitter) Submit(dst videoframe.VideoFrame, _ *vp8.FrameHeader, last, golden, alt videoframe.VideoFrame, _ []byte) error {
	s.last, s.golden, s.alt = last, golden, alt
	return nil
}

func newPool(t *testing.T) *videoframe.FramePool {
	t.Helper()
	pool := videoframe.NewFramePool(func(si *videoframe.StreamInfo) (videoframe.VideoFrame, error) {
		return videoframe.NewDMAFrame(fourcc.NV12, si.DisplayResolution, si.CodedResolution)
	})
	if err := pool.Resize(&videoframe.StreamInfo{
		CodedResolution:   fourcc.Resolution{Width: 64, Height: 64},
		DisplayResolution: fourcc.Resolution{Width: 64, Height: 64},
		MinNumFrames:      8,
	}); err != nil {
		t.Fatalf("resize: %v", err)
	}
	return pool
}

func TestKeyFrameReplacesAllThreeSlots(t *testing.T) {
	keyFrame := &vp8.FrameHeader{KeyFrame: true, ShowFrame: true, Width: 64, Height: 64, FrameLen: 8, RefreshLast: true, RefreshGolden: true, RefreshAlternate: true}
	interFrame := &vp8.FrameHeader{ShowFrame: true, Width: 64, Height: 64, FrameLen: 8}
	parser := &stubParser{headers: []*vp8.FrameHeader{keyFrame, keyFrame, interFrame}}
	sub := &recordingSubmitter{}
	d := vp8.New(parser, sub)
	pool := newPool(t)
	alloc := func() *videoframe.PooledVideoFrame { return pool.Alloc() }

	bitstream := make([]byte, 8)

	// First call negotiates the initial sequence and returns CheckEvents
	// without decoding; the host resubmits the same bitstream after
	// acknowledging the StreamInfo event.
	if _, _, err := d.Decode(0, bitstream, false, alloc); err != decoder.ErrCheckEvents {
		t.Fatalf("expected CheckEvents on first negotiation, got %v", err)
	}
	d.NextEvent()

	consumed, produced, err := d.Decode(0, bitstream, false, alloc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if consumed != 8 || !produced {
		t.Fatalf("unexpected decode result: consumed=%d produced=%v", consumed, produced)
	}

	ready, _ := d.NextEvent()
	if len(ready) != 1 {
		t.Fatalf("expected 1 ready frame, got %d", len(ready))
	}

	// The next frame is decoded against the slots the key frame refreshed:
	// last, golden and alt must all hold the key frame's picture.
	if _, _, err := d.Decode(1, bitstream, false, alloc); err != nil {
		t.Fatalf("Decode inter frame: %v", err)
	}
	want := ready[0].Frame.Underlying()
	for name, ref := range map[string]videoframe.VideoFrame{"last": sub.last, "golden": sub.golden, "alt": sub.alt} {
		p, ok := ref.(*videoframe.PooledVideoFrame)
		if !ok || p.Underlying() != want {
			t.Errorf("%s slot does not hold the key frame's picture", name)
		}
	}
}

func TestCheckEventsOnResolutionChange(t *testing.T) {
	parser := &stubParser{headers: []*vp8.FrameHeader{
		{KeyFrame: true, ShowFrame: true, Width: 64, Height: 64, FrameLen: 4, RefreshLast: true, RefreshGolden: true, RefreshAlternate: true},
		{KeyFrame: true, ShowFrame: true, Width: 128, Height: 128, FrameLen: 4, RefreshLast: true, RefreshGolden: true, RefreshAlternate: true},
	}}
	d := vp8.New(parser, stubSubmitter{})
	pool := newPool(t)
	alloc := func() *videoframe.PooledVideoFrame { return pool.Alloc() }

	// First key frame: negotiates the initial sequence, AwaitingFormat.
	if _, _, err := d.Decode(0, make([]byte, 4), false, alloc); err != decoder.ErrCheckEvents {
		t.Fatalf("expected CheckEvents on first negotiation, got %v", err)
	}
	if _, si := d.NextEvent(); si == nil {
		t.Fatal("expected a StreamInfo event after first negotiation")
	}

	// A genuine resolution change while Decoding must again signal
	// CheckEvents rather than silently reconfiguring.
	if _, _, err := d.Decode(0, make([]byte, 4), false, alloc); err != decoder.ErrCheckEvents {
		t.Fatalf("expected CheckEvents on resolution change while decoding, got %v", err)
	}
}
