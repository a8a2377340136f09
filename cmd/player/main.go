// gapless-player: multi-zone digital signage player with gapless playback.
// Each zone pre-warms its next item on a second decoder and swaps it onto
// the display the moment the current one completes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"gapless-player/internal/api"
	"gapless-player/internal/config"
	"gapless-player/internal/host"
	"gapless-player/internal/logging"
	"gapless-player/internal/media"
	"gapless-player/internal/playlist"
	"gapless-player/internal/system"
	"gapless-player/internal/template"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// Build-time variables set by the Makefile via -ldflags.
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "gapless-player",
		Short:        "gapless-player: multi-zone gapless signage player",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringSliceP("config", "c", nil, "Config file(s), later ones win (default: system, user and ./config.toml)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(probeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the --config files and applies flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	paths, _ := cmd.Flags().GetStringSlice("config")
	cfg, err := config.Load(paths...)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("playlist") {
		cfg.Player.PlaylistDir, _ = flags.GetString("playlist")
	}
	if flags.Changed("template") {
		cfg.Player.Template, _ = flags.GetString("template")
	}
	if flags.Changed("screen-width") {
		cfg.Player.ScreenWidth, _ = flags.GetInt("screen-width")
	}
	if flags.Changed("screen-height") {
		cfg.Player.ScreenHeight, _ = flags.GetInt("screen-height")
	}
	if flags.Changed("engine") {
		cfg.Player.Engine, _ = flags.GetString("engine")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	return cfg, cfg.Validate()
}

// runCmd starts the zone controllers, one folder watcher per zone and the
// heartbeat client, and runs until SIGINT or SIGTERM.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the player",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Player.EnvFile != "" {
				if err := godotenv.Load(cfg.Player.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("env file: %w", err)
				}
			}
			if err := logging.Setup(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON, File: cfg.Log.File}); err != nil {
				return err
			}
			log := logging.For("main")
			log.Infof("gapless-player %s (built %s)", version, buildTime)

			tmpl, err := template.Resolve(cfg.Player.Template, cfg.Player.PlaylistDir)
			if err != nil {
				return fmt.Errorf("template: %w", err)
			}
			if err := tmpl.Validate(); err != nil {
				return fmt.Errorf("template %q: %w", tmpl.Name, err)
			}
			log.Infof("template %q with %d zone(s)", tmpl.Name, len(tmpl.Zones))
			for _, z := range tmpl.Zones {
				if err := system.EnsureDir(z.PlaylistDir); err != nil {
					return fmt.Errorf("playlist dir %s: %w", z.PlaylistDir, err)
				}
			}

			factory, shutdown := engines(cfg)
			defer shutdown()

			h, err := host.New(tmpl, host.Options{
				ScreenWidth:  cfg.Player.ScreenWidth,
				ScreenHeight: cfg.Player.ScreenHeight,
				Looping:      cfg.Player.Looping,
				NewEngine:    factory,
			})
			if err != nil {
				return fmt.Errorf("host init: %w", err)
			}
			defer h.Release()

			var watchers []*playlist.Watcher
			defer func() {
				for _, w := range watchers {
					w.Stop()
				}
			}()
			for _, z := range tmpl.Zones {
				zoneID := z.ID
				w, err := playlist.NewWatcher(z.PlaylistDir, func(files []string) {
					h.SetPlaylist(zoneID, files)
				})
				if err != nil {
					return fmt.Errorf("watcher for zone %s: %w", zoneID, err)
				}
				watchers = append(watchers, w)
				h.SetPlaylist(zoneID, w.Files())

				go func() {
					if err := w.Start(); err != nil {
						log.Errorf("watcher for zone %s: %v", zoneID, err)
					}
				}()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := api.NewClient(cfg.API, api.Options{
				Version:    version,
				HealthPath: cfg.Player.PlaylistDir,
				Zones:      zoneReports(h),
			})
			go client.Run(ctx)
			go reloadOnHangup(ctx, cmd, client)

			h.Play()
			<-ctx.Done()

			log.Info("shutting down")
			h.Stop()
			return nil
		},
	}

	cmd.Flags().StringP("playlist", "p", "", "Media playlist directory")
	cmd.Flags().StringP("template", "t", "", "Layout name (fullscreen, main-with-footer, main-with-sidebar, l-shape) or JSON file")
	cmd.Flags().Int("screen-width", 0, "Screen width in pixels")
	cmd.Flags().Int("screen-height", 0, "Screen height in pixels")
	cmd.Flags().String("engine", "", "Decoder engine: vlc or clock")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	return cmd
}

// reloadOnHangup re-reads the config on SIGHUP and hands the new identity
// to the heartbeat client. Other sections need a restart.
func reloadOnHangup(ctx context.Context, cmd *cobra.Command, client *api.Client) {
	log := logging.For("main")
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := loadConfig(cmd)
			if err != nil {
				log.Warnf("config reload: %v", err)
				continue
			}
			client.SetConfig(cfg.API)
		}
	}
}

func zoneReports(h *host.Host) api.StatusFunc {
	return func() []api.ZoneReport {
		return lo.Map(h.Status(), func(st host.ZoneStatus, _ int) api.ZoneReport {
			return api.ZoneReport{
				ID:         st.ID,
				State:      st.State.String(),
				Source:     st.Source,
				Index:      st.Index,
				Items:      st.Items,
				PositionMs: st.Position.Milliseconds(),
				DurationMs: st.Duration.Milliseconds(),
			}
		})
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gapless-player %s\nBuilt: %s\n", version, buildTime)
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a system health check",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			status := system.RunHealthCheck(cfg.Player.PlaylistDir)
			fmt.Printf("CPU Temperature : %.1f°C\n", status.CPUTempC)
			fmt.Printf("Disk Usage      : %.1f%%\n", status.DiskUsedPct)
			fmt.Printf("Disk Free       : %s\n", humanize.Bytes(status.DiskFreeBytes))
			fmt.Printf("Throttled       : %v\n", status.Throttled)
			return nil
		},
	}
}

func probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe FILE...",
		Short: "Show what the player knows about media files before decoding them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				info, err := media.Probe(path)
				if err != nil {
					fmt.Printf("%s: %v\n", path, err)
					failed++
					continue
				}
				size := "unknown"
				if st, err := os.Stat(path); err == nil {
					size = humanize.Bytes(uint64(st.Size()))
				}
				dims := "unknown"
				if info.Width > 0 && info.Height > 0 {
					dims = fmt.Sprintf("%dx%d", info.Width, info.Height)
				}
				dur := "unknown"
				if info.Duration > 0 {
					dur = info.Duration.String()
				}
				fmt.Printf("%s\n  type     : %s\n  size     : %s\n  video    : %s\n  duration : %s\n",
					path, info.Type, size, dims, dur)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d file(s) could not be probed", failed, len(args))
			}
			return nil
		},
	}
}
