// Package api reports the player to the remote server: a periodic heartbeat
// carrying identity, host health and what every zone is playing.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"gapless-player/internal/config"
	"gapless-player/internal/logging"
	"gapless-player/internal/system"

	"github.com/sirupsen/logrus"
)

// ErrUnregistered is returned by Send when no id or endpoint is configured.
var ErrUnregistered = errors.New("player not registered")

// ZoneReport is the playback state of one zone as sent to the server.
type ZoneReport struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	Source     string `json:"source,omitempty"`
	Index      int    `json:"index"`
	Items      int    `json:"items"`
	PositionMs int64  `json:"position_ms"`
	DurationMs int64  `json:"duration_ms"`
}

// StatusFunc returns the current zone reports.
type StatusFunc func() []ZoneReport

// Heartbeat is the payload sent to the remote server on each tick.
type Heartbeat struct {
	ID        string              `json:"id"`
	Key       string              `json:"key"`
	Name      string              `json:"name,omitempty"`
	Timestamp string              `json:"timestamp"`
	Uptime    float64             `json:"uptime_sec"`
	Version   string              `json:"version"`
	Arch      string              `json:"arch"`
	OS        string              `json:"os"`
	Health    system.HealthStatus `json:"health"`
	Zones     []ZoneReport        `json:"zones,omitempty"`
}

// Options configures a Client.
type Options struct {
	Version string
	// HealthPath is the filesystem whose usage is reported.
	HealthPath string
	Zones      StatusFunc
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

// Client sends heartbeats until its context is cancelled.
type Client struct {
	mu      sync.RWMutex
	cfg     config.APIConfig
	opts    Options
	startAt time.Time
	log     logrus.FieldLogger
}

// NewClient creates a client. An unregistered config is accepted; every
// heartbeat is then skipped with a warning until SetConfig registers it.
func NewClient(cfg config.APIConfig, opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.HealthPath == "" {
		opts.HealthPath = "/"
	}
	log := opts.Logger
	if log == nil {
		log = logging.For("api")
	}
	if !cfg.Registered() {
		log.Warn("no id or endpoint configured, running unregistered")
	}
	return &Client{cfg: cfg, opts: opts, startAt: time.Now(), log: log}
}

// SetConfig replaces the identity. It takes effect on the next heartbeat;
// a new interval applies after it.
func (c *Client) SetConfig(cfg config.APIConfig) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	c.log.Infof("config updated: id=%s endpoint=%s", cfg.ID, cfg.Endpoint)
}

// Config returns the current identity.
func (c *Client) Config() config.APIConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Run sends a heartbeat immediately and then every interval. It blocks
// until ctx is done.
func (c *Client) Run(ctx context.Context) {
	interval := c.Config().HeartbeatInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.log.Infof("heartbeat started (every %s)", interval)
	c.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			c.log.Info("heartbeat stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
			if next := c.Config().HeartbeatInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
				c.log.Infof("heartbeat interval now %s", interval)
			}
		}
	}
}

func (c *Client) tick(ctx context.Context) {
	err := c.Send(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnregistered):
		c.log.Debug("heartbeat skipped: missing endpoint or id")
	case ctx.Err() != nil:
	default:
		c.log.Warnf("heartbeat: %v", err)
	}
}

// Heartbeat builds the payload for the current moment.
func (c *Client) Heartbeat() Heartbeat {
	cfg := c.Config()
	hb := Heartbeat{
		ID:        cfg.ID,
		Key:       cfg.Key,
		Name:      cfg.Name,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(c.startAt).Seconds(),
		Version:   c.opts.Version,
		Arch:      runtime.GOARCH,
		OS:        runtime.GOOS,
		Health:    system.RunHealthCheck(c.opts.HealthPath),
	}
	if c.opts.Zones != nil {
		hb.Zones = c.opts.Zones()
	}
	return hb
}

// Send POSTs one heartbeat to <endpoint>/heartbeat.
func (c *Client) Send(ctx context.Context) error {
	cfg := c.Config()
	if !cfg.Registered() {
		return ErrUnregistered
	}

	body, err := json.Marshal(c.Heartbeat())
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}

	url := fmt.Sprintf("%s/heartbeat", cfg.Endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("post heartbeat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("heartbeat response: %d", resp.StatusCode)
	}
	c.log.Debugf("heartbeat sent (%d)", resp.StatusCode)
	return nil
}
