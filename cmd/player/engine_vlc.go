//go:build linux && arm64

package main

import (
	"gapless-player/internal/config"
	"gapless-player/internal/decoder"
	"gapless-player/internal/decoder/vlc"
	"gapless-player/internal/host"
	"gapless-player/internal/logging"
	"gapless-player/internal/template"
)

// engines picks libVLC with MMAL on the Pi unless the config asks for the
// clock engine. The returned func shuts the engine down.
func engines(cfg *config.Config) (host.EngineFactory, func()) {
	if cfg.Player.Engine == "clock" {
		logging.For("main").Warn("clock engine selected, nothing will be rendered")
		return clockEngines(cfg), func() {}
	}

	factory := func(z template.Zone, r template.Rect) (decoder.Engine, error) {
		var rect vlc.Rect
		if !z.Full() {
			rect = vlc.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
		}
		return vlc.New(vlc.Options{
			Args:   cfg.VLC.Args,
			Rect:   rect,
			Logger: logging.For("vlc").WithField("zone", z.ID),
		})
	}
	return factory, vlc.Shutdown
}
