package videoframe_test

import (
	"testing"

	"github.com/ausocean/codec2/fourcc"
	"github.com/ausocean/codec2/videoframe"
)

func TestValidateAcceptsWellFormedNV12(t *testing.T) {
	f, err := videoframe.NewDMAFrame(fourcc.NV12, fourcc.Resolution{Width: 640, Height: 480}, fourcc.Resolution{Width: 640, Height: 480})
	if err != nil {
		t.Fatalf("NewDMAFrame: %v", err)
	}
	if err := videoframe.Validate(f); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsUndersizedPitch(t *testing.T) {
	f, err := videoframe.NewDMAFrame(fourcc.NV12, fourcc.Resolution{Width: 640, Height: 480}, fourcc.Resolution{Width: 640, Height: 480})
	if err != nil {
		t.Fatalf("NewDMAFrame: %v", err)
	}

	bad := &truncatedFrame{VideoFrame: f}
	if err := videoframe.Validate(bad); err == nil {
		t.Fatal("expected Validate to reject a truncated pitch")
	}
}

// truncatedFrame wraps a valid frame but reports an undersized pitch for
// plane 0, exercising Validate's invariant check.
type truncatedFrame struct {
	videoframe.VideoFrame
}

func (t *truncatedFrame) PlanePitch() []int {
	p := t.VideoFrame.PlanePitch()
	out := append([]int(nil), p...)
	out[0] = 1
	return out
}

func TestCompressedFrameSkipsValidation(t *testing.T) {
	f, err := videoframe.NewDMAFrame(fourcc.VP9, fourcc.Resolution{Width: 640, Height: 480}, fourcc.Resolution{Width: 640, Height: 480})
	if err != nil {
		t.Fatalf("NewDMAFrame: %v", err)
	}
	if err := videoframe.Validate(f); err != nil {
		t.Fatalf("Validate should skip compressed frames, got: %v", err)
	}
	if f.NumPlanes() != 1 {
		t.Fatalf("expected 1 plane for a compressed frame, got %d", f.NumPlanes())
	}
}

func TestMT2TBytesPerElementFractional(t *testing.T) {
	bpe := videoframe.BytesPerElementFor(fourcc.DecodedMT2T)
	if bpe[0] != 1.25 || bpe[1] != 2.5 {
		t.Fatalf("unexpected MT2T bytes-per-element: %+v", bpe)
	}
}
