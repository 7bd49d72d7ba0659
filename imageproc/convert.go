/*
NAME
  convert.go

DESCRIPTION
  convert.go converts between the raw pixel formats codec2 moves across
  backend boundaries, using OpenCV's colour conversion routines rather
  than a hand-rolled pixel shuffle. Only the conversions a real backend
  negotiation can actually require are supported; everything else
  returns an error rather than silently producing garbage.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package imageproc converts between VideoFrame pixel formats and extends
// frame borders for encoder padding, both backed by gocv (OpenCV).
package imageproc

import (
	"fmt"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/ausocean/codec2/fourcc"
	"github.com/ausocean/codec2/videoframe"
)

// conversionKey pairs a source and destination decoded format.
type conversionKey struct {
	from, to fourcc.DecodedFormat
}

// supportedConversions enumerates the conversions this package implements,
// mirroring the backend negotiation table: a backend only ever needs to go
// between the handful of formats accelerators and encoders actually speak.
var supportedConversions = map[conversionKey]func(src, dst *gocv.Mat){
	{fourcc.DecodedI420, fourcc.DecodedNV12}: func(src, dst *gocv.Mat) { gocv.CvtColor(*src, dst, gocv.ColorYUVtoRGBI420) },
	{fourcc.DecodedNV12, fourcc.DecodedI420}: func(src, dst *gocv.Mat) { gocv.CvtColor(*src, dst, gocv.ColorYUVtoRGBNV12) },
	{fourcc.DecodedAR24, fourcc.DecodedNV12}: func(src, dst *gocv.Mat) { gocv.CvtColor(*src, dst, gocv.ColorBGRAToBGR) },
	{fourcc.DecodedAR24, fourcc.DecodedI420}: func(src, dst *gocv.Mat) { gocv.CvtColor(*src, dst, gocv.ColorBGRAToBGR) },
}

// CanConvert reports whether ConvertVideoFrame supports going from src to
// dst without consulting a format negotiation table first.
func CanConvert(src, dst fourcc.DecodedFormat) bool {
	if src == dst {
		return true
	}
	_, ok := supportedConversions[conversionKey{src, dst}]
	return ok
}

// ConvertVideoFrame converts src into dst in place, by mapping both frames'
// planes into OpenCV Mats, performing the colour conversion, and copying
// the result back. dst must already be allocated at the target format and
// at src's resolution; no resampling is performed.
//
// Matching formats are a no-op plane copy rather than an error, so callers
// don't need to special-case the "backend already speaks this format"
// case.
func ConvertVideoFrame(src, dst videoframe.VideoFrame) error {
	srcFmt := fourcc.ToDecoded(src.Fourcc())
	dstFmt := fourcc.ToDecoded(dst.Fourcc())

	if srcFmt == dstFmt {
		return copyPlanes(src, dst)
	}

	convert, ok := supportedConversions[conversionKey{srcFmt, dstFmt}]
	if !ok {
		return errors.Wrap(fmt.Errorf("imageproc: no conversion registered from %s to %s", src.Fourcc(), dst.Fourcc()), "convert video frame")
	}

	srcMap, err := src.Map()
	if err != nil {
		return errors.Wrap(err, "imageproc: map source frame")
	}
	defer srcMap.Release()

	dstMap, err := dst.MapMut()
	if err != nil {
		return errors.Wrap(err, "imageproc: map destination frame")
	}
	defer dstMap.Release()

	res := src.Resolution()
	srcMat, err := gocv.NewMatFromBytes(int(res.Height)+int(res.Height)/2, int(res.Width), gocv.MatTypeCV8UC1, flattenPlanes(srcMap.Planes()))
	if err != nil {
		return errors.Wrap(err, "imageproc: wrap source planes")
	}
	defer srcMat.Close()

	dstMat := gocv.NewMat()
	defer dstMat.Close()

	convert(&srcMat, &dstMat)

	out := dstMat.ToBytes()
	planes := dstMap.Planes()
	if err := scatterPlanes(out, planes); err != nil {
		return errors.Wrap(err, "imageproc: scatter converted planes")
	}

	return nil
}

func copyPlanes(src, dst videoframe.VideoFrame) error {
	srcMap, err := src.Map()
	if err != nil {
		return errors.Wrap(err, "imageproc: map source frame")
	}
	defer srcMap.Release()

	dstMap, err := dst.MapMut()
	if err != nil {
		return errors.Wrap(err, "imageproc: map destination frame")
	}
	defer dstMap.Release()

	sp, dp := srcMap.Planes(), dstMap.Planes()
	if len(sp) != len(dp) {
		return fmt.Errorf("imageproc: plane count mismatch copying identical format: %d vs %d", len(sp), len(dp))
	}
	for i := range sp {
		n := copy(dp[i], sp[i])
		if n < len(sp[i]) {
			return fmt.Errorf("imageproc: destination plane %d too small for copy (%d < %d)", i, len(dp[i]), len(sp[i]))
		}
	}
	return nil
}

func flattenPlanes(planes [][]byte) []byte {
	total := 0
	for _, p := range planes {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range planes {
		out = append(out, p...)
	}
	return out
}

func scatterPlanes(flat []byte, planes [][]byte) error {
	off := 0
	for i, p := range planes {
		if off+len(p) > len(flat) {
			return fmt.Errorf("imageproc: converted buffer too short for plane %d", i)
		}
		copy(p, flat[off:off+len(p)])
		off += len(p)
	}
	return nil
}
