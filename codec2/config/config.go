/*
NAME
  config.go

DESCRIPTION
  config.go holds the Options a codec2 pipeline is configured with —
  codec, resolution, bitrate, backend selection — plus a Validate method
  and an fsnotify-based Watch that hot-reloads Options from a JSON file
  on disk, for the daemon CLI (cmd/ccencd).

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config holds codec2's runtime Options and a file watcher that
// hot-reloads them.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/ausocean/codec2/bitratectrl"
	"github.com/ausocean/codec2/fourcc"
	"github.com/ausocean/codec2/logging"
)

// Enums for backend and codec selection.
const (
	// Backend kinds.
	BackendVAAPI = iota
	BackendV4L2Stateful
	BackendV4L2Stateless

	// Codecs.
	CodecH264
	CodecH265
	CodecVP8
	CodecVP9
	CodecAV1
)

// Options holds a codec2 pipeline's full runtime configuration.
type Options struct {
	Backend int
	Codec   int

	Width, Height uint

	Bitrate   uint64 // Target bitrate, bits per second.
	PeakBitrate uint64
	FrameRate uint

	LowLatency bool

	// GOPSize is the maximum distance between keyframes.
	GOPSize uint

	// LogLevel controls the minimum severity logged by the Logger this
	// Options' owner constructs.
	LogLevel logging.Level

	// LogPath is the rotating log file's destination path.
	LogPath string

	Logger logging.Logger
}

// EncodedFormat maps Codec to the fourcc package's enumeration.
func (o *Options) EncodedFormat() fourcc.EncodedFormat {
	switch o.Codec {
	case CodecH264:
		return fourcc.EncodedH264
	case CodecH265:
		return fourcc.EncodedH265
	case CodecVP8:
		return fourcc.EncodedVP8
	case CodecVP9:
		return fourcc.EncodedVP9
	case CodecAV1:
		return fourcc.EncodedAV1
	default:
		return fourcc.EncodedUnknown
	}
}

// BitrateSpec builds a bitratectrl.Bitrate from the option fields.
func (o *Options) BitrateSpec() bitratectrl.Bitrate {
	return bitratectrl.Bitrate{TargetBps: o.Bitrate, PeakBps: o.PeakBitrate}
}

// Validate checks Options for internally-consistent, non-zero values
// before a pipeline is started from them.
func (o *Options) Validate() error {
	if o.Width == 0 || o.Height == 0 {
		return fmt.Errorf("config: width/height must be non-zero")
	}
	if o.Width%2 != 0 || o.Height%2 != 0 {
		return fmt.Errorf("config: width/height must be even")
	}
	if o.Bitrate == 0 {
		return fmt.Errorf("config: bitrate must be non-zero")
	}
	if o.FrameRate == 0 {
		return fmt.Errorf("config: framerate must be non-zero")
	}
	if o.EncodedFormat() == fourcc.EncodedUnknown {
		return fmt.Errorf("config: unrecognised codec %d", o.Codec)
	}
	return nil
}

// Load reads Options from a JSON file at path.
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	var o Options
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, errors.Wrap(err, "config: unmarshal")
	}
	return &o, nil
}

// Watch watches path for writes and invokes onChange with freshly loaded
// Options each time the file changes, until stop is closed. Load/parse
// errors are logged (if l is non-nil) rather than propagated, so a
// single bad write to the config file doesn't kill the watcher.
func Watch(path string, l logging.Logger, stop <-chan struct{}, onChange func(*Options)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "config: new watcher")
	}

	if err := w.Add(path); err != nil {
		w.Close()
		return errors.Wrap(err, "config: watch path")
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				o, err := Load(path)
				if err != nil {
					if l != nil {
						l.Log(logging.Warning, "config: reload failed", "path", path, "err", err)
					}
					continue
				}
				if err := o.Validate(); err != nil {
					if l != nil {
						l.Log(logging.Warning, "config: reloaded options invalid, ignoring", "path", path, "err", err)
					}
					continue
				}
				onChange(o)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if l != nil {
					l.Log(logging.Error, "config: watcher error", "err", err)
				}
			}
		}
	}()

	return nil
}
