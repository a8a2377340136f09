package main

import (
	"time"

	"gapless-player/internal/config"
	"gapless-player/internal/decoder"
	"gapless-player/internal/decoder/clock"
	"gapless-player/internal/host"
	"gapless-player/internal/logging"
	"gapless-player/internal/template"
)

func clockEngines(cfg *config.Config) host.EngineFactory {
	return func(z template.Zone, _ template.Rect) (decoder.Engine, error) {
		return clock.New(clock.Options{
			DefaultDuration: time.Duration(cfg.Clock.DefaultDurationSec) * time.Second,
			PrepareDelay:    time.Duration(cfg.Clock.PrepareDelayMs) * time.Millisecond,
			Logger:          logging.For("clock").WithField("zone", z.ID),
		}), nil
	}
}
