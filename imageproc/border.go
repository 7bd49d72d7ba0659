/*
NAME
  border.go

DESCRIPTION
  border.go extends a frame's visible content out to its coded resolution
  by replicating edge pixels, the padding an encoder needs whenever
  display resolution is not already aligned to the accelerator's coded
  block size.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package imageproc

import (
	"fmt"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/ausocean/codec2/fourcc"
	"github.com/ausocean/codec2/videoframe"
)

// ExtendBorder replicates f's edge pixels from its display resolution out
// to coded, plane by plane, respecting each plane's chroma subsampling.
// It is a no-op when display already equals coded.
func ExtendBorder(f videoframe.VideoFrame, display, coded fourcc.Resolution) error {
	if display == coded {
		return nil
	}
	if !coded.CanContain(display) {
		return fmt.Errorf("imageproc: coded resolution %+v cannot contain display resolution %+v", coded, display)
	}

	m, err := f.MapMut()
	if err != nil {
		return errors.Wrap(err, "imageproc: map frame for border extension")
	}
	defer m.Release()

	hsub := f.HorizontalSubsampling()
	vsub := f.VerticalSubsampling()
	pitch := f.PlanePitch()
	planes := m.Planes()

	for p, buf := range planes {
		pw := roundChromaDim(display.Width, hsub[p])
		ph := roundChromaDim(display.Height, vsub[p])
		cw := int(coded.Width) / hsub[p]
		ch := int(coded.Height) / vsub[p]
		if pw <= 0 || ph <= 0 || cw <= 0 || ch <= 0 {
			continue
		}
		// The rounding in roundChromaDim can push pw/ph a unit past cw/ch
		// when display is already within one subsampled unit of coded;
		// clamp so CopyMakeBorder never sees a negative border size.
		if pw > cw {
			pw = cw
		}
		if ph > ch {
			ph = ch
		}

		mat, err := gocv.NewMatFromBytes(ph, pitch[p], gocv.MatTypeCV8UC1, buf)
		if err != nil {
			return errors.Wrapf(err, "imageproc: wrap plane %d for border extension", p)
		}

		region := mat.Region(gocv.NewRect(0, 0, pw, ph))

		padded := gocv.NewMat()
		gocv.CopyMakeBorder(region, &padded, 0, ch-ph, 0, cw-pw, gocv.BorderReplicate, gocv.NewScalar(0, 0, 0, 0))

		out := padded.ToBytes()
		for row := 0; row < ch; row++ {
			srcOff := row * cw
			dstOff := row * pitch[p]
			if srcOff+cw > len(out) || dstOff+cw > len(buf) {
				break
			}
			copy(buf[dstOff:dstOff+cw], out[srcOff:srcOff+cw])
		}

		padded.Close()
		region.Close()
		mat.Close()
	}

	return nil
}

// roundChromaDim returns a plane's pixel dimension along one axis,
// derived from the full-resolution dim and that plane's subsampling
// factor sub, rounded up to the nearest even number rather than
// truncated. A floor division (dim/sub) silently drops a real row or
// column of chroma data whenever dim is odd, which is exactly the case
// spec'd here since coded resolution (not display resolution) is the
// one guaranteed even; rounding up to 2× the subsampling factor before
// dividing keeps that column inside the replicated region instead of
// inside the padding.
func roundChromaDim(dim uint32, sub int) int {
	s := uint32(sub)
	return int((dim+2*s-1)/(2*s)) * 2
}
