package videoframe_test

import (
	"testing"

	"github.com/ausocean/codec2/fourcc"
	"github.com/ausocean/codec2/videoframe"
)

func testPool(t *testing.T, min int) *videoframe.FramePool {
	t.Helper()
	pool := videoframe.NewFramePool(func(si *videoframe.StreamInfo) (videoframe.VideoFrame, error) {
		return videoframe.NewDMAFrame(fourcc.NV12, si.DisplayResolution, si.CodedResolution)
	})
	if err := pool.Resize(&videoframe.StreamInfo{
		CodedResolution:   fourcc.Resolution{Width: 64, Height: 64},
		DisplayResolution: fourcc.Resolution{Width: 64, Height: 64},
		MinNumFrames:      min,
	}); err != nil {
		t.Fatalf("resize: %v", err)
	}
	return pool
}

func TestFramePoolAllocExhaustion(t *testing.T) {
	pool := testPool(t, 2)

	a := pool.Alloc()
	if a == nil {
		t.Fatal("expected a frame, got nil")
	}
	b := pool.Alloc()
	if b == nil {
		t.Fatal("expected a frame, got nil")
	}
	if got := pool.Alloc(); got != nil {
		t.Fatal("expected pool exhaustion to return nil")
	}

	a.Release()
	if got := pool.Alloc(); got == nil {
		t.Fatal("expected a frame to be available after release")
	}
}

func TestFramePoolResizeGrowsOnly(t *testing.T) {
	pool := testPool(t, 2)
	if pool.Len() != 2 {
		t.Fatalf("expected 2 cells, got %d", pool.Len())
	}

	if err := pool.Resize(&videoframe.StreamInfo{
		CodedResolution:   fourcc.Resolution{Width: 64, Height: 64},
		DisplayResolution: fourcc.Resolution{Width: 64, Height: 64},
		MinNumFrames:      5,
	}); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if pool.Len() != 5 {
		t.Fatalf("expected 5 cells after growing resize, got %d", pool.Len())
	}

	// Shrinking the requested minimum must never reduce outstanding-plus-free count.
	if err := pool.Resize(&videoframe.StreamInfo{
		CodedResolution:   fourcc.Resolution{Width: 64, Height: 64},
		DisplayResolution: fourcc.Resolution{Width: 64, Height: 64},
		MinNumFrames:      1,
	}); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if pool.Len() != 5 {
		t.Fatalf("expected resize to never shrink the pool, got %d", pool.Len())
	}
}

func TestPooledVideoFrameCloneKeepsCellBusy(t *testing.T) {
	pool := testPool(t, 1)

	f := pool.Alloc()
	if f == nil {
		t.Fatal("expected a frame")
	}
	clone := f.Clone()

	f.Release()
	if got := pool.Alloc(); got != nil {
		t.Fatal("expected cell to remain busy while a clone is outstanding")
	}

	clone.Release()
	if got := pool.Alloc(); got == nil {
		t.Fatal("expected cell to free once every clone is released")
	}
}
