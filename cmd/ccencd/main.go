/*
NAME
  ccencd

DESCRIPTION
  ccencd is a long-running encoder daemon: it loads and validates Options
  from a JSON config file, watches the config file for changes via
  fsnotify, and notifies systemd once ready and on every subsequent
  watchdog tick. It does not start an encoder Wrapper; reloaded Options
  are logged and kept, not applied to a pipeline.

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
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/ausocean/codec2/codec2/config"
	"github.com/ausocean/codec2/logging"
)

func main() {
	cfgPath := flag.String("config", "/etc/codec2/ccencd.json", "path to JSON config file")
	logPath := flag.String("log", "/var/log/codec2/ccencd.log", "rotating log file path")
	flag.Parse()

	l := logging.NewRotatingFile(logging.Info, *logPath, 10, 5, 30)

	opts, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("ccencd: load config: %v", err)
	}
	opts.Logger = l
	if err := opts.Validate(); err != nil {
		log.Fatalf("ccencd: invalid config: %v", err)
	}

	l.Info("ccencd starting", "config", *cfgPath)

	stop := make(chan struct{})
	reload := make(chan *config.Options, 1)
	if err := config.Watch(*cfgPath, l, stop, func(o *config.Options) {
		o.Logger = l
		select {
		case reload <- o:
		default:
		}
	}); err != nil {
		l.Error("ccencd: could not watch config", "err", err)
	}

	ok, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		l.Warning("ccencd: sd_notify ready failed", "err", err)
	} else if !ok {
		l.Debug("ccencd: not running under systemd, sd_notify is a no-op")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	watchdog := time.NewTicker(10 * time.Second)
	defer watchdog.Stop()

	for {
		select {
		case o := <-reload:
			l.Info("ccencd: reloaded configuration", "bitrate", o.Bitrate, "codec", o.Codec)
			opts = o
			_ = opts // no Wrapper is running, so the new Options are only stored.
		case <-watchdog.C:
			daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		case s := <-sig:
			l.Info("ccencd: received signal, shutting down", "signal", s.String())
			close(stop)
			daemon.SdNotify(false, daemon.SdNotifyStopping)
			return
		}
	}
}
