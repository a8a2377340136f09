//go:build !(linux && arm64)

package main

import (
	"gapless-player/internal/config"
	"gapless-player/internal/host"
	"gapless-player/internal/logging"
)

// engines always uses the clock engine: libVLC is only linked on the Pi.
func engines(cfg *config.Config) (host.EngineFactory, func()) {
	log := logging.For("main")
	if cfg.Player.Engine == "vlc" {
		log.Warn("vlc engine is only built for linux/arm64, using the clock engine")
	}
	log.Info("*** DEVELOPMENT MODE: clock engine, nothing is rendered ***")
	return clockEngines(cfg), func() {}
}
