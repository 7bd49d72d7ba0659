package bitratectrl_test

import (
	"testing"

	"github.com/ausocean/codec2/bitratectrl"
	"github.com/ausocean/codec2/fourcc"
)

func TestQPRangeForCodecs(t *testing.T) {
	cases := []struct {
		format fourcc.EncodedFormat
		want   bitratectrl.QPRange
	}{
		{fourcc.EncodedVP9, bitratectrl.QPRange{Min: 0, Max: 255}},
		{fourcc.EncodedAV1, bitratectrl.QPRange{Min: 0, Max: 255}},
		{fourcc.EncodedVP8, bitratectrl.QPRange{Min: 0, Max: 127}},
		{fourcc.EncodedH264, bitratectrl.QPRange{Min: 1, Max: 51}},
		{fourcc.EncodedH265, bitratectrl.QPRange{Min: 1, Max: 51}},
	}
	for _, c := range cases {
		if got := bitratectrl.QPRangeFor(c.format); got != c.want {
			t.Errorf("QPRangeFor(%v) = %+v, want %+v", c.format, got, c.want)
		}
	}
}

func TestTargetQPStaysWithinRange(t *testing.T) {
	ctrl := bitratectrl.New(fourcc.EncodedVP9, bitratectrl.Bitrate{TargetBps: 1_000_000}, 30)

	for i := 0; i < 200; i++ {
		keyframe := i%30 == 0
		qp := ctrl.TargetQP(keyframe)
		if qp < 0 || qp > 255 {
			t.Fatalf("iteration %d: qp %d out of VP9 range", i, qp)
		}
		// Simulate a frame that cost far more than budget, every frame.
		ctrl.ReportActual(1_000_000, keyframe)
	}

	if qp := ctrl.TargetQP(false); qp < 100 {
		t.Fatalf("expected controller to have raised QP in response to sustained overshoot, got %d", qp)
	}
}
