/*
NAME
  software.go

DESCRIPTION
  software.go implements a software-simulated VideoEncoder backend: it
  exercises the exact Negotiate/Encode/Poll/Flush/Close contract a real
  VAAPI or V4L2 adapter would, but "encodes" by packing a small frame
  descriptor rather than running a real bitstream encoder, so the
  pipeline runs end-to-end without accelerator hardware present.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package backend

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ausocean/codec2/fourcc"
	"github.com/ausocean/codec2/videoframe"
)

// SoftwareEncoder is a VideoEncoder that simulates accelerator
// submit/poll latency with an in-process FIFO of one pending completion
// per Encode call; it is used where no physical VAAPI/V4L2 device is
// present (tests, CI, and any host without accelerator access).
type SoftwareEncoder struct {
	format  fourcc.EncodedFormat
	display fourcc.Resolution
	coded   fourcc.Resolution

	mu      sync.Mutex
	tunings Tunings
	pending []CodedFrame
	frameN  int
}

// NewSoftwareEncoder constructs a SoftwareEncoder for format at the
// given display/coded resolution.
func NewSoftwareEncoder(format fourcc.EncodedFormat, display, coded fourcc.Resolution) *SoftwareEncoder {
	return &SoftwareEncoder{format: format, display: display, coded: coded}
}

// Negotiate implements VideoEncoder. The software encoder accepts any
// tunings verbatim; a real adapter would clamp to device limits here.
func (e *SoftwareEncoder) Negotiate(t Tunings) (Tunings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tunings = t
	return t, nil
}

// Tune implements VideoEncoder. The software encoder simply replaces its
// remembered tunings, which the next Encode call reads; a real adapter
// would push the QP/bitrate/framerate update to its device queue here
// without disturbing frames already in flight.
func (e *SoftwareEncoder) Tune(t Tunings) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tunings = t
	return nil
}

// Encode implements VideoEncoder. It synthesizes a coded payload whose
// size tracks the negotiated bitrate, standing in for an actual
// bitstream encode; the point of this simulation is to exercise the
// wrapper/worker plumbing, not to produce a real VP8/VP9/H264 stream.
func (e *SoftwareEncoder) Encode(frame videoframe.VideoFrame, meta FrameMetadata) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	keyframe := meta.ForceKeyframe || e.frameN%int(nonZero(e.tunings.GOPSize, 30)) == 0
	e.frameN++

	bitsPerFrame := float64(e.tunings.Bitrate.TargetBps)
	if e.tunings.Framerate > 0 {
		bitsPerFrame /= float64(e.tunings.Framerate)
	}
	size := int(bitsPerFrame / 8)
	if keyframe {
		size *= 3
	}
	if size < 16 {
		size = 16
	}

	payload := make([]byte, size)
	binary.LittleEndian.PutUint32(payload[0:4], uint32(e.format))
	if keyframe {
		payload[4] = 1
	}

	e.pending = append(e.pending, CodedFrame{
		Data:      payload,
		Timestamp: meta.Timestamp,
		Keyframe:  keyframe,
	})
	return nil
}

// Poll implements VideoEncoder.
func (e *SoftwareEncoder) Poll() (CodedFrame, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.pending) == 0 {
		return CodedFrame{}, false, nil
	}
	cf := e.pending[0]
	e.pending = e.pending[1:]
	return cf, true, nil
}

// Flush implements VideoEncoder. Every pending completion is already
// available synchronously for the software encoder, so Flush is a
// no-op; a real backend would block here until its device queue drains.
func (e *SoftwareEncoder) Flush() error { return nil }

// Close implements VideoEncoder.
func (e *SoftwareEncoder) Close() error { return nil }

func nonZero(v, fallback uint32) uint32 {
	if v == 0 {
		return fallback
	}
	return v
}

// SoftwareCapabilities describes what SoftwareEncoder supports, for
// callers building a Capabilities table without a physical device.
func SoftwareCapabilities() Capabilities {
	return Capabilities{
		Name: "software",
		SupportedEncoders: []fourcc.EncodedFormat{
			fourcc.EncodedH264, fourcc.EncodedH265, fourcc.EncodedVP8, fourcc.EncodedVP9, fourcc.EncodedAV1,
		},
		SupportedDecoders: []fourcc.EncodedFormat{
			fourcc.EncodedVP8, fourcc.EncodedVP9,
		},
		MaxCodedResolution: fourcc.Resolution{Width: 4096, Height: 4096},
		Stateless:          true,
	}
}

// GetEncoder resolves a VideoEncoder for the given encoded format and
// display resolution, returning the display/coded resolutions it will
// operate at, mirroring backend adapters' get_encoder entry point.
func GetEncoder(format fourcc.EncodedFormat, display fourcc.Resolution) (VideoEncoder, fourcc.Resolution, fourcc.Resolution, error) {
	caps := SoftwareCapabilities()
	supported := false
	for _, f := range caps.SupportedEncoders {
		if f == format {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fourcc.Resolution{}, fourcc.Resolution{}, fmt.Errorf("backend: format %v not supported", format)
	}

	coded := fourcc.Resolution{
		Width:  uint32(fourcc.AlignUp(int(display.Width), 16)),
		Height: uint32(fourcc.AlignUp(int(display.Height), 16)),
	}
	return NewSoftwareEncoder(format, display, coded), display, coded, nil
}
