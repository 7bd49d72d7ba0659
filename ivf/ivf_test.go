package ivf_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/codec2/fourcc"
	"github.com/ausocean/codec2/ivf"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := ivf.Header{
		Fourcc: fourcc.VP9, Width: 1280, Height: 720,
		RateNum: 30, RateDenom: 1, FrameCount: 10,
	}

	var buf bytes.Buffer
	if err := ivf.WriteHeader(&buf, h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if buf.Len() != 32 {
		t.Fatalf("expected a 32-byte header, got %d", buf.Len())
	}

	got, err := ivf.ReadHeader(&buf)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if diff := cmp.Diff(h, got); diff != "" {
		t.Fatalf("header round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := []byte{1, 2, 3, 4, 5}
	if err := ivf.WriteFrame(&buf, 42, want); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	ts, got, err := ivf.ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if ts != 42 {
		t.Fatalf("expected timestamp 42, got %d", ts)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if _, _, err := ivf.ReadFrame(&buf); err != io.EOF {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestH264CSD(t *testing.T) {
	sps := []byte{0xAA, 0xBB}
	pps := []byte{0xCC}
	want := []byte{0, 0, 0, 1, 0xAA, 0xBB, 0, 0, 0, 1, 0xCC}
	if got := ivf.H264CSD(sps, pps); !bytes.Equal(got, want) {
		t.Fatalf("H264CSD = %v, want %v", got, want)
	}
}
