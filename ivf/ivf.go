/*
NAME
  ivf.go

DESCRIPTION
  ivf.go implements the IVF container used to wrap VP8/VP9 test
  vectors and encoder output: a 32-byte file header followed by
  (size, timestamp, frame) triples.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package ivf reads and writes the IVF container format codec2 uses to
// carry VP8/VP9 bitstreams. H.264 is emitted without a container (raw
// Annex-B) and has no reader/writer here.
package ivf

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/ausocean/codec2/fourcc"
)

const (
	magic        = "DKIF"
	headerLen    = 32
	headerVersion = 0
)

// Header is the 32-byte IVF file header.
type Header struct {
	Fourcc        fourcc.Fourcc
	Width, Height uint16
	RateNum       uint32
	RateDenom     uint32
	FrameCount    uint32
}

// WriteHeader writes h's 32-byte IVF header to w.
func WriteHeader(w io.Writer, h Header) error {
	var buf [headerLen]byte
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint16(buf[4:6], headerVersion)
	binary.LittleEndian.PutUint16(buf[6:8], headerLen)
	copy(buf[8:12], h.Fourcc[:])
	binary.LittleEndian.PutUint16(buf[12:14], h.Width)
	binary.LittleEndian.PutUint16(buf[14:16], h.Height)
	binary.LittleEndian.PutUint32(buf[16:20], h.RateNum)
	binary.LittleEndian.PutUint32(buf[20:24], h.RateDenom)
	binary.LittleEndian.PutUint32(buf[24:28], h.FrameCount)
	// bytes 28:32 are reserved.

	_, err := w.Write(buf[:])
	return errors.Wrap(err, "ivf: write header")
}

// ReadHeader reads and validates a 32-byte IVF file header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [headerLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, errors.Wrap(err, "ivf: read header")
	}
	if string(buf[0:4]) != magic {
		return Header{}, errors.Errorf("ivf: bad magic %q", buf[0:4])
	}
	if v := binary.LittleEndian.Uint16(buf[4:6]); v != headerVersion {
		return Header{}, errors.Errorf("ivf: unsupported version %d", v)
	}
	if hl := binary.LittleEndian.Uint16(buf[6:8]); hl != headerLen {
		return Header{}, errors.Errorf("ivf: unexpected header length %d", hl)
	}

	h := Header{
		Width:      binary.LittleEndian.Uint16(buf[12:14]),
		Height:     binary.LittleEndian.Uint16(buf[14:16]),
		RateNum:    binary.LittleEndian.Uint32(buf[16:20]),
		RateDenom:  binary.LittleEndian.Uint32(buf[20:24]),
		FrameCount: binary.LittleEndian.Uint32(buf[24:28]),
	}
	copy(h.Fourcc[:], buf[8:12])
	return h, nil
}

// WriteFrame writes one IVF frame record: a u32 size, a u64 timestamp,
// then the frame bytes.
func WriteFrame(w io.Writer, timestamp int64, frame []byte) error {
	var prefix [12]byte
	binary.LittleEndian.PutUint32(prefix[0:4], uint32(len(frame)))
	binary.LittleEndian.PutUint64(prefix[4:12], uint64(timestamp))

	if _, err := w.Write(prefix[:]); err != nil {
		return errors.Wrap(err, "ivf: write frame prefix")
	}
	if _, err := w.Write(frame); err != nil {
		return errors.Wrap(err, "ivf: write frame data")
	}
	return nil
}

// ReadFrame reads one IVF frame record from r, returning io.EOF once no
// further records remain.
func ReadFrame(r io.Reader) (timestamp int64, frame []byte, err error) {
	var prefix [12]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return 0, nil, io.EOF
		}
		return 0, nil, err
	}

	size := binary.LittleEndian.Uint32(prefix[0:4])
	ts := int64(binary.LittleEndian.Uint64(prefix[4:12]))

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, nil, errors.Wrap(err, "ivf: read frame data")
	}
	return ts, buf, nil
}

// H264CSD concatenates sps and pps into the [0,0,0,1, SPS..., 0,0,0,1,
// PPS...] start-code form emitted as the csd field of the first
// outbound encode job for H.264 streams.
func H264CSD(sps, pps []byte) []byte {
	startCode := []byte{0, 0, 0, 1}
	out := make([]byte, 0, len(startCode)*2+len(sps)+len(pps))
	out = append(out, startCode...)
	out = append(out, sps...)
	out = append(out, startCode...)
	out = append(out, pps...)
	return out
}
