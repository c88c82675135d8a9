package wifi

import (
	"github.com/awilliams/wifi-manager/internal/clock"

	"go.uber.org/zap"
)

// DefaultHostname is used when Config.Hostname is blank.
const DefaultHostname = "ESPWifiManager"

// Credentials identify a network.
type Credentials struct {
	SSID     string
	Password string
}

// Config is the static configuration of a Manager.
type Config struct {
	Mode        Mode
	Station     Credentials // Network joined in station modes.
	AccessPoint Credentials // Network hosted in access point modes.
	Hostname    string      // Optional
	NTPServer   string      // Optional
	// Debug enables development logging when no logger is given with
	// WithLogger.
	Debug bool
}

// Opt is a configuration option for Manager.
type Opt func(*Manager)

// WithLogger sets the logger. Without it, and unless Config.Debug is set,
// nothing is logged.
func WithLogger(l *zap.Logger) Opt {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithClock sets the millisecond clock driving every timer, and the
// blocking waits of InitWifi.
func WithClock(c clock.Monotonic) Opt {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithTimeSource replaces the NTP client built from Config.NTPServer.
func WithTimeSource(ts TimeSource) Opt {
	return func(m *Manager) {
		m.ts = ts
	}
}

// WithIndicator sets the status light used by the default halt.
func WithIndicator(ind Indicator) Opt {
	return func(m *Manager) {
		m.indicator = ind
	}
}

// WithHalt replaces what happens on an unrecoverable configuration error.
// The default never returns. If f returns, InitWifi reports failure.
func WithHalt(f func(error)) Opt {
	return func(m *Manager) {
		m.halt = f
	}
}
