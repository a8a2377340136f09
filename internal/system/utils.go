// Package system reads host health on the Raspberry Pi 5: CPU temperature,
// disk space and throttling.
package system

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"gapless-player/internal/logging"
)

// HealthStatus is a host health snapshot.
type HealthStatus struct {
	DiskUsedPct   float64   `json:"disk_used_pct"`
	DiskFreeBytes uint64    `json:"disk_free_bytes"`
	CPUTempC      float64   `json:"cpu_temp_c"`
	Throttled     bool      `json:"throttled"`
	Timestamp     time.Time `json:"timestamp"`
}

var (
	thermalZone = "/sys/class/thermal/thermal_zone0/temp"
	// run executes a command and returns its stdout.
	run = func(name string, args ...string) ([]byte, error) {
		return exec.Command(name, args...).Output()
	}
)

var errUnexpectedOutput = errors.New("unexpected output")

// CPUTemp returns the SoC temperature in degrees Celsius.
func CPUTemp() (float64, error) {
	data, err := os.ReadFile(thermalZone)
	if err != nil {
		return 0, fmt.Errorf("read cpu temp: %w", err)
	}
	milliC, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse cpu temp: %w", err)
	}
	return milliC / 1000.0, nil
}

// DiskUsage returns the used percentage and free bytes of the filesystem
// holding path ("/" when empty).
func DiskUsage(path string) (usedPct float64, freeBytes uint64, err error) {
	if path == "" {
		path = "/"
	}
	out, err := run("df", "--output=pcent,avail", "-B1", path)
	if err != nil {
		return 0, 0, fmt.Errorf("df: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 2 {
		return 0, 0, fmt.Errorf("df: %w", errUnexpectedOutput)
	}
	fields := strings.Fields(lines[1])
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("df fields: %w", errUnexpectedOutput)
	}

	pct, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "%"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse disk pct: %w", err)
	}
	free, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse disk free: %w", err)
	}
	return pct, free, nil
}

// Throttled asks vcgencmd whether the SoC is, or has been, throttled for
// temperature or power.
func Throttled() (bool, error) {
	out, err := run("vcgencmd", "get_throttled")
	if err != nil {
		return false, fmt.Errorf("vcgencmd: %w", err)
	}

	// throttled=0x0
	_, hex, ok := strings.Cut(strings.TrimSpace(string(out)), "=")
	if !ok {
		return false, fmt.Errorf("vcgencmd: %w", errUnexpectedOutput)
	}
	val, err := strconv.ParseUint(strings.TrimPrefix(hex, "0x"), 16, 64)
	if err != nil {
		return false, fmt.Errorf("parse throttle value: %w", err)
	}
	return val != 0, nil
}

// RunHealthCheck takes a snapshot of path's filesystem and the SoC. Probes
// that fail leave their fields zero and are logged at debug.
func RunHealthCheck(path string) HealthStatus {
	log := logging.For("system")
	status := HealthStatus{Timestamp: time.Now()}

	if temp, err := CPUTemp(); err == nil {
		status.CPUTempC = temp
	} else {
		log.Debugf("health: %v", err)
	}
	if pct, free, err := DiskUsage(path); err == nil {
		status.DiskUsedPct = pct
		status.DiskFreeBytes = free
	} else {
		log.Debugf("health: %v", err)
	}
	if throttled, err := Throttled(); err == nil {
		status.Throttled = throttled
	} else {
		log.Debugf("health: %v", err)
	}

	log.Debugf("health: temp=%.1f°C disk=%.1f%% throttled=%v",
		status.CPUTempC, status.DiskUsedPct, status.Throttled)
	return status
}

// EnsureDir creates path and its parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
