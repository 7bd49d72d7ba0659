/*
NAME
  fourcc.go

DESCRIPTION
  fourcc.go defines the pixel and compressed format tags used to dispatch
  between codec2 components, along with the resolution type shared by
  every frame, pool and backend operation.

AUTHORS
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package fourcc provides the Fourcc pixel/compressed format tag, the
// DecodedFormat/EncodedFormat enumerations derived from it, and the
// Resolution type used throughout codec2.
package fourcc

import "fmt"

// Fourcc is a four-character-code tag identifying a pixel or compressed
// format. It exists purely for dispatch; codec2 only ever recognises the
// fixed enumeration of formats below.
type Fourcc [4]byte

// String returns the human-readable form of the tag, e.g. "NV12".
func (f Fourcc) String() string { return string(f[:]) }

// New builds a Fourcc from a 4 byte slice, panicking if b is not length 4.
// This mirrors the construction pattern used for the raw byte tags found
// on the wire (IVF headers, job metadata).
func New(b []byte) Fourcc {
	if len(b) != 4 {
		panic(fmt.Sprintf("fourcc: invalid tag length %d", len(b)))
	}
	var f Fourcc
	copy(f[:], b)
	return f
}

// Well-known raw/decoded format tags.
var (
	NV12 = New([]byte("NV12"))
	NM12 = New([]byte("NM12"))
	MM21 = New([]byte("MM21"))
	I420 = New([]byte("I420"))
	I422 = New([]byte("I422"))
	I444 = New([]byte("I444"))
	I010 = New([]byte("I010"))
	I012 = New([]byte("I012"))
	I210 = New([]byte("I210"))
	I212 = New([]byte("I212"))
	I410 = New([]byte("I410"))
	I412 = New([]byte("I412"))
	P010 = New([]byte("P010"))
	MT2T = New([]byte("MT2T"))
	YV12 = New([]byte("YV12"))
	AR24 = New([]byte("AR24"))
)

// Well-known compressed format tags.
var (
	H264 = New([]byte("H264"))
	H265 = New([]byte("HEVC"))
	VP8  = New([]byte("VP80"))
	VP9  = New([]byte("VP90"))
	AV1  = New([]byte("AV1F"))
)

// DecodedFormat is the enumeration of raw pixel formats codec2 understands.
type DecodedFormat int

const (
	DecodedUnknown DecodedFormat = iota
	DecodedNV12
	DecodedNM12
	DecodedMM21
	DecodedI420
	DecodedI422
	DecodedI444
	DecodedI010
	DecodedI012
	DecodedI210
	DecodedI212
	DecodedI410
	DecodedI412
	DecodedP010
	DecodedMT2T
	DecodedYV12
	DecodedAR24
)

var decodedFromFourcc = map[Fourcc]DecodedFormat{
	NV12: DecodedNV12,
	NM12: DecodedNM12,
	MM21: DecodedMM21,
	I420: DecodedI420,
	I422: DecodedI422,
	I444: DecodedI444,
	I010: DecodedI010,
	I012: DecodedI012,
	I210: DecodedI210,
	I212: DecodedI212,
	I410: DecodedI410,
	I412: DecodedI412,
	P010: DecodedP010,
	MT2T: DecodedMT2T,
	YV12: DecodedYV12,
	AR24: DecodedAR24,
}

// ToDecoded converts a raw-format Fourcc to its DecodedFormat, or
// DecodedUnknown if f does not name a recognised raw format (e.g. it names
// a compressed format instead).
func ToDecoded(f Fourcc) DecodedFormat {
	d, ok := decodedFromFourcc[f]
	if !ok {
		return DecodedUnknown
	}
	return d
}

// EncodedFormat is the enumeration of compressed bitstream formats codec2
// understands.
type EncodedFormat int

const (
	EncodedUnknown EncodedFormat = iota
	EncodedH264
	EncodedH265
	EncodedVP8
	EncodedVP9
	EncodedAV1
)

var encodedFromFourcc = map[Fourcc]EncodedFormat{
	H264: EncodedH264,
	H265: EncodedH265,
	VP8:  EncodedVP8,
	VP9:  EncodedVP9,
	AV1:  EncodedAV1,
}

// ToEncoded converts a compressed-format Fourcc to its EncodedFormat, or
// EncodedUnknown if f does not name a recognised compressed format.
func ToEncoded(f Fourcc) EncodedFormat {
	e, ok := encodedFromFourcc[f]
	if !ok {
		return EncodedUnknown
	}
	return e
}

// IsCompressed reports whether f names one of the compressed formats.
func IsCompressed(f Fourcc) bool {
	_, ok := encodedFromFourcc[f]
	return ok
}

// Resolution is a (width, height) pair in pixels. codec2 distinguishes
// display (visible) resolution from coded resolution, which is padded up
// to the accelerator's alignment and is always >= display and even in
// both axes.
type Resolution struct {
	Width, Height uint32
}

// Area returns Width*Height.
func (r Resolution) Area() uint32 { return r.Width * r.Height }

// CanContain reports whether r is at least as large as other in both axes.
func (r Resolution) CanContain(other Resolution) bool {
	return r.Width >= other.Width && r.Height >= other.Height
}

// AlignUp rounds up v to the nearest multiple of align. align must be a
// positive integer; powers of two are not required.
func AlignUp(v, align int) int {
	if align <= 0 {
		return v
	}
	return (v + align - 1) / align * align
}
