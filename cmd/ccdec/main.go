/*
NAME
  ccdec

DESCRIPTION
  ccdec reads an IVF file produced by ccenc (or a compatible simulated
  encoder) and drives it through a codec2 decoder Wrapper, writing
  decoded NV12 frames to disk.

  Real VP8/VP9 bitstream syntax parsing is outside codec2's scope (the
  core consumes already-parsed header structs); this CLI therefore
  drives the state machine with a parser/submitter pair that
  interprets the synthetic payload codec2's own software backend
  produces, which is sufficient to exercise the full DPB/DRC/ready-queue
  pipeline end-to-end without a real decode.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ausocean/codec2/codec2"
	codecdecoder "github.com/ausocean/codec2/codec2/decoder"
	"github.com/ausocean/codec2/decoder"
	"github.com/ausocean/codec2/decoder/vp8"
	"github.com/ausocean/codec2/decoder/vp9"
	"github.com/ausocean/codec2/fourcc"
	"github.com/ausocean/codec2/ivf"
	"github.com/ausocean/codec2/videoframe"
)

// syntheticParser interprets the fixed-size payload codec2's
// SoftwareEncoder produces: a 4-byte format tag and a keyframe flag
// byte, with every frame treated as whole-frame and (for VP9) as a
// single-frame superframe.
type syntheticParser struct{ width, height uint32 }

func (p *syntheticParser) ParseFrame(bs []byte) (*vp8.FrameHeader, error) {
	if len(bs) < 5 {
		return nil, fmt.Errorf("frame too short")
	}
	return &vp8.FrameHeader{
		KeyFrame:      bs[4] == 1,
		ShowFrame:     true,
		Width:         p.width,
		Height:        p.height,
		FrameLen:      len(bs),
		RefreshLast:   true,
		RefreshGolden: bs[4] == 1,
		RefreshAlternate: bs[4] == 1,
	}, nil
}

func (p *syntheticParser) ParseSuperframe(bs []byte) ([]*vp9.FrameHeader, error) {
	if len(bs) < 5 {
		return nil, fmt.Errorf("frame too short")
	}
	flags := uint8(0xFF)
	if bs[4] != 1 {
		flags = 0x01
	}
	return []*vp9.FrameHeader{{
		KeyFrame:          bs[4] == 1,
		ShowFrame:         true,
		Width:             p.width,
		Height:            p.height,
		FrameLen:          len(bs),
		RefreshFrameFlags: flags,
	}}, nil
}

// syntheticSubmitter "decodes" by filling the destination frame with a
// constant value, standing in for a real backend submit/sync.
type syntheticSubmitter struct{}

func (syntheticSubmitter) Submit(dst videoframe.VideoFrame, _ *vp8.FrameHeader, _, _, _ videoframe.VideoFrame, _ []byte) error {
	return fillFrame(dst)
}
func (syntheticSubmitter) Sync(videoframe.VideoFrame) error { return nil }
func (syntheticSubmitter) Blocking() bool                   { return true }
func (syntheticSubmitter) NewSequence(*vp8.FrameHeader) error { return nil }

type syntheticSubmitter9 struct{}

func (syntheticSubmitter9) Submit(dst videoframe.VideoFrame, _ *vp9.FrameHeader, _ [8]videoframe.VideoFrame, _ []byte) error {
	return fillFrame(dst)
}
func (syntheticSubmitter9) Sync(videoframe.VideoFrame) error { return nil }
func (syntheticSubmitter9) Blocking() bool                   { return true }
func (syntheticSubmitter9) NewSequence(*vp9.FrameHeader) error { return nil }

func fillFrame(dst videoframe.VideoFrame) error {
	m, err := dst.MapMut()
	if err != nil {
		return err
	}
	defer m.Release()
	for _, p := range m.Planes() {
		for i := range p {
			p[i] = 0x80
		}
	}
	return nil
}

func main() {
	in := flag.String("in", "", "input IVF file")
	outDir := flag.String("out", ".", "output directory for raw NV12 frames")
	flag.Parse()

	if *in == "" {
		log.Fatal("ccdec: -in is required")
	}

	f, err := os.Open(*in)
	if err != nil {
		log.Fatalf("ccdec: open: %v", err)
	}
	defer f.Close()

	hdr, err := ivf.ReadHeader(f)
	if err != nil {
		log.Fatalf("ccdec: read header: %v", err)
	}

	pool := videoframe.NewFramePool(func(si *videoframe.StreamInfo) (videoframe.VideoFrame, error) {
		return videoframe.NewDMAFrame(fourcc.NV12, si.DisplayResolution, si.CodedResolution)
	})
	pool.Resize(&videoframe.StreamInfo{
		Format:            fourcc.DecodedNV12,
		CodedResolution:   fourcc.Resolution{Width: uint32(hdr.Width), Height: uint32(hdr.Height)},
		DisplayResolution: fourcc.Resolution{Width: uint32(hdr.Width), Height: uint32(hdr.Height)},
		MinNumFrames:      12,
	})

	var sm codecdecoder.StateMachine
	if hdr.Fourcc == fourcc.VP8 {
		sm = vp8.New(&syntheticParser{width: uint32(hdr.Width), height: uint32(hdr.Height)}, syntheticSubmitter{})
	} else {
		sm = vp9.New(&syntheticParser{width: uint32(hdr.Width), height: uint32(hdr.Height)}, syntheticSubmitter9{})
	}

	n := 0
	w := codecdecoder.New(sm, pool, func(si *decoder.StreamInfo) {
		log.Printf("ccdec: stream info: %+v", si)
	})

	wrapper := codec2.New[*codec2.DecodeJob](w, codec2.Callbacks[*codec2.DecodeJob]{
		ErrorCb: func(status codec2.Status, err error) {
			log.Fatalf("ccdec: worker error %v: %v", status, err)
		},
		WorkDoneCb: func(job *codec2.DecodeJob) {
			if job.Output == nil {
				return
			}
			path := fmt.Sprintf("%s/frame-%04d.nv12", *outDir, n)
			n++
			writeFrame(path, job.Output)
			job.Output.Release()
		},
	})

	if err := wrapper.Start(); err != nil {
		log.Fatalf("ccdec: start: %v", err)
	}

	for {
		ts, frame, err := ivf.ReadFrame(f)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("ccdec: read frame: %v", err)
		}
		if err := wrapper.Queue(&codec2.DecodeJob{Input: frame, Ts: ts}); err != nil {
			log.Fatalf("ccdec: queue: %v", err)
		}
	}

	wrapper.Release()
}

func writeFrame(path string, frame *videoframe.PooledVideoFrame) {
	m, err := frame.Map()
	if err != nil {
		log.Printf("ccdec: map frame: %v", err)
		return
	}
	defer m.Release()

	out, err := os.Create(path)
	if err != nil {
		log.Printf("ccdec: create %s: %v", path, err)
		return
	}
	defer out.Close()

	for _, p := range m.Planes() {
		out.Write(p)
	}
}
