/*
NAME
  ccenc

DESCRIPTION
  ccenc reads raw I420 frames from a file, drives them through a
  codec2 encoder Wrapper, and writes the resulting bitstream to disk:
  an IVF container for VP8/VP9, raw Annex-B for H.264/H.265.

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
	"bufio"
	"flag"
	"io"
	"log"
	"os"
	"sync"

	"github.com/ausocean/codec2/codec2"
	"github.com/ausocean/codec2/backend"
	"github.com/ausocean/codec2/bitratectrl"
	"github.com/ausocean/codec2/codec2/encoder"
	"github.com/ausocean/codec2/fourcc"
	"github.com/ausocean/codec2/ivf"
	"github.com/ausocean/codec2/videoframe"
)

func main() {
	in := flag.String("in", "", "input raw I420 file")
	out := flag.String("out", "out.ivf", "output bitstream file")
	width := flag.Uint("width", 1280, "frame width")
	height := flag.Uint("height", 720, "frame height")
	bitrate := flag.Uint64("bitrate", 1_000_000, "target bitrate in bits per second")
	fps := flag.Uint("fps", 30, "framerate")
	codecName := flag.String("codec", "vp9", "codec: vp8, vp9, h264, h265, av1")
	flag.Parse()

	if *in == "" {
		log.Fatal("ccenc: -in is required")
	}

	format := codecFromName(*codecName)
	if format == fourcc.EncodedUnknown {
		log.Fatalf("ccenc: unrecognised codec %q", *codecName)
	}

	display := fourcc.Resolution{Width: uint32(*width), Height: uint32(*height)}

	enc, displayRes, codedRes, err := backend.GetEncoder(format, display)
	if err != nil {
		log.Fatalf("ccenc: get encoder: %v", err)
	}

	tunings := backend.Tunings{
		Bitrate:   bitratectrl.Bitrate{TargetBps: *bitrate},
		Framerate: uint32(*fps),
		QPRange:   bitratectrl.QPRangeFor(format),
		GOPSize:   uint32(*fps) * 2,
	}
	if _, err := enc.Negotiate(tunings); err != nil {
		log.Fatalf("ccenc: negotiate: %v", err)
	}

	// The scratch pool backs the encoder's alloc_cb: a handful of I420
	// conversion buffers sized to the worker's in-flight submission depth,
	// so a burst of frames that all need conversion doesn't starve.
	scratchPool := videoframe.NewFramePool(func(si *videoframe.StreamInfo) (videoframe.VideoFrame, error) {
		return videoframe.NewDMAFrame(fourcc.I420, si.DisplayResolution, si.CodedResolution)
	})
	if err := scratchPool.Resize(&videoframe.StreamInfo{
		CodedResolution:   codedRes,
		DisplayResolution: displayRes,
		MinNumFrames:      encoder.MinScratchFrames(format),
	}); err != nil {
		log.Fatalf("ccenc: allocate scratch pool: %v", err)
	}
	allocScratch := func() videoframe.VideoFrame {
		pf := scratchPool.Alloc()
		if pf == nil {
			return nil
		}
		return pf
	}

	w := encoder.New(enc, format, tunings.Bitrate, uint32(*fps), displayRes, codedRes, nil, allocScratch)

	outFile, err := os.Create(*out)
	if err != nil {
		log.Fatalf("ccenc: create output: %v", err)
	}
	defer outFile.Close()

	isIVF := format == fourcc.EncodedVP8 || format == fourcc.EncodedVP9
	if isIVF {
		tag := fourcc.VP9
		if format == fourcc.EncodedVP8 {
			tag = fourcc.VP8
		}
		if err := ivf.WriteHeader(outFile, ivf.Header{
			Fourcc: tag, Width: uint16(*width), Height: uint16(*height),
			RateNum: uint32(*fps), RateDenom: 1,
		}); err != nil {
			log.Fatalf("ccenc: write ivf header: %v", err)
		}
	}

	var writeMu sync.Mutex
	done := make(chan struct{})

	wrapper := codec2.New[*codec2.EncodeJob](w, codec2.Callbacks[*codec2.EncodeJob]{
		ErrorCb: func(status codec2.Status, err error) {
			log.Fatalf("ccenc: worker error %v: %v", status, err)
		},
		WorkDoneCb: func(job *codec2.EncodeJob) {
			writeMu.Lock()
			defer writeMu.Unlock()
			if len(job.Output) > 0 {
				if isIVF {
					ivf.WriteFrame(outFile, job.Ts, job.Output)
				} else {
					outFile.Write(job.Output)
				}
			}
			if job.DrainMode == codec2.EOSDrain {
				close(done)
			}
		},
	})

	if err := wrapper.Start(); err != nil {
		log.Fatalf("ccenc: start: %v", err)
	}

	if err := feedFrames(*in, wrapper, displayRes); err != nil {
		log.Fatalf("ccenc: feed frames: %v", err)
	}

	wrapper.Queue(&codec2.EncodeJob{DrainMode: codec2.EOSDrain})
	<-done
	wrapper.Release()
}

func feedFrames(path string, w *codec2.Wrapper[*codec2.EncodeJob], res fourcc.Resolution) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	frameSize := int(res.Width*res.Height) + int(res.Width*res.Height)/2

	var ts int64
	for {
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}

		frame, err := videoframe.NewDMAFrame(fourcc.I420, res, res)
		if err != nil {
			return err
		}
		m, err := frame.MapMut()
		if err != nil {
			return err
		}
		off := 0
		for _, p := range m.Planes() {
			off += copy(p, buf[off:])
		}
		m.Release()

		if err := w.Queue(&codec2.EncodeJob{Input: frame, Ts: ts}); err != nil {
			return err
		}
		ts += int64(1_000_000_000 / 30)
	}
}

func codecFromName(name string) fourcc.EncodedFormat {
	switch name {
	case "vp8":
		return fourcc.EncodedVP8
	case "vp9":
		return fourcc.EncodedVP9
	case "h264":
		return fourcc.EncodedH264
	case "h265":
		return fourcc.EncodedH265
	case "av1":
		return fourcc.EncodedAV1
	default:
		return fourcc.EncodedUnknown
	}
}
