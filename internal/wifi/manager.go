// Package wifi keeps a device connected to a wireless network and keeps a
// local wall clock running from network time.
//
// A Manager is driven cooperatively: InitWifi makes the first connection,
// blocking for a bounded time, then the caller's loop calls RunWifi over
// and over. Each RunWifi call performs one state transition and returns.
// A Manager is not safe for concurrent use.
package wifi

import (
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"time"

	"github.com/awilliams/wifi-manager/internal/clock"
	"github.com/awilliams/wifi-manager/internal/timefmt"

	"go.uber.org/zap"
)

// DefaultTimestamp seeds the fallback clock until network time is known
// (2021-10-01 00:00 local time).
const DefaultTimestamp uint32 = 1633039200

const (
	connectPollInterval = 100 * time.Millisecond
	connectPolls        = 150 // 15s
	settleDelay         = time.Second
	reconnectDwell      = 5000 // ms
	tickMillis          = 1000
)

// ErrMissingAPCredentials is the unrecoverable configuration error raised
// when an access point mode has no SSID or password to host.
var ErrMissingAPCredentials = errors.New("access point SSID and password are required")

// New returns a Manager for cfg using link. Options override the
// collaborators built by default.
func New(cfg Config, link Link, opts ...Opt) (*Manager, error) {
	if link == nil {
		return nil, errors.New("link is required")
	}
	if !cfg.Mode.valid() {
		return nil, fmt.Errorf("invalid mode %v", cfg.Mode)
	}
	if cfg.Hostname == "" {
		cfg.Hostname = DefaultHostname
	}

	m := Manager{
		cfg:        cfg,
		link:       link,
		state:      StateCheckConnection,
		snapshot:   noTime,
		localEpoch: DefaultTimestamp,
	}
	for _, opt := range opts {
		opt(&m)
	}

	if m.logger == nil {
		m.logger = zap.NewNop()
		if cfg.Debug {
			l, err := zap.NewDevelopment()
			if err != nil {
				return nil, err
			}
			m.logger = l
		}
	}
	if m.clock == nil {
		m.clock = clock.NewSystem()
	}
	if m.ts == nil {
		m.ts = clock.NewNTPClient(
			clock.WithServer(cfg.NTPServer),
			clock.WithMonotonic(m.clock),
			clock.WithNTPLogger(m.logger),
		)
	}
	m.ts.SetTimeOffset(timefmt.Offset(m.dst))
	if m.indicator == nil {
		m.indicator = nopIndicator{}
	}
	if m.halt == nil {
		m.halt = haltForever(m.indicator, m.clock)
	}

	return &m, nil
}

// Manager owns the connection and time state of one radio.
type Manager struct {
	cfg       Config
	link      Link
	ts        TimeSource
	clock     clock.Monotonic
	indicator Indicator
	halt      func(error)
	logger    *zap.Logger

	state     State
	connected bool
	myIP      netip.Addr
	apIP      netip.Addr
	snapshot  TimeSnapshot

	tsStarted      bool
	tsSynced       bool
	dst            bool
	localEpoch     uint32 // Fallback clock, seconds.
	backupTimer    uint32 // Mark of the last fallback increment.
	reconnectTimer uint32 // Mark of the last reconnect attempt.
}

// InitWifi makes the first connection attempt. It blocks while the link
// comes up, at most about 16 seconds, and reports whether the device is
// connected. In access point only mode it reports whether the access point
// started. When no network time is available the snapshot is reset to the
// "no time" placeholders.
//
// Missing access point credentials in an access point mode are
// unrecoverable: the halt function is called and, by default, never
// returns.
func (m *Manager) InitWifi() bool {
	if err := m.connectToWifi(); err != nil {
		m.logger.Error("unrecoverable wifi configuration", zap.Stringer("mode", m.cfg.Mode), zap.Error(err))
		m.connected = false
		m.snapshot = noTime
		m.halt(err)
		return false
	}

	m.clock.Sleep(settleDelay)

	if m.cfg.Mode.hasStation() && m.connected {
		m.myIP = m.link.LocalIP()
		m.logger.Info("assigned IP", zap.Stringer("ip", m.myIP))
		m.startTimeSource()
		m.refreshNetworkTime()
		return true
	}

	if m.cfg.Mode.hasStation() {
		if err := m.link.Disconnect(); err != nil {
			m.logger.Warn("disconnect failed", zap.Error(err))
		}
	}
	m.snapshot = noTime
	return m.connected
}

// connectToWifi starts the access point and joins the station network,
// depending on the mode. Only a configuration error is returned; link
// failures are logged and leave the Manager disconnected.
func (m *Manager) connectToWifi() error {
	if m.cfg.Mode.hasAccessPoint() {
		ap := m.cfg.AccessPoint
		if ap.SSID == "" || ap.Password == "" {
			return ErrMissingAPCredentials
		}
		if err := m.link.StartAP(ap.SSID, ap.Password); err != nil {
			m.logger.Error("unable to start access point", zap.String("ssid", ap.SSID), zap.Error(err))
		} else {
			m.apIP = m.link.APIP()
			m.logger.Info("access point started", zap.String("ssid", ap.SSID), zap.Stringer("ip", m.apIP))
			if !m.cfg.Mode.hasStation() {
				m.connected = true
			}
		}
	}

	if !m.cfg.Mode.hasStation() {
		return nil
	}

	ssid := m.cfg.Station.SSID
	if !m.searchSSID() {
		// The network may be hidden or the scan may have failed; try anyway.
		m.logger.Info("no network found with SSID", zap.String("ssid", ssid))
	}

	if err := m.link.SetHostname(m.cfg.Hostname); err != nil {
		m.logger.Warn("unable to set hostname", zap.String("hostname", m.cfg.Hostname), zap.Error(err))
	}
	if err := m.link.Begin(ssid, m.cfg.Station.Password); err != nil {
		m.logger.Warn("connect failed", zap.String("ssid", ssid), zap.Error(err))
		return nil
	}
	m.logger.Debug("connecting", zap.String("ssid", ssid))

	for i := 0; i < connectPolls; i++ {
		ok, err := m.link.Connected()
		if err == nil && ok {
			m.connected = true
			break
		}
		m.clock.Sleep(connectPollInterval)
	}

	if m.connected {
		m.logger.Info("connected", zap.String("ssid", ssid))
	} else {
		m.logger.Info("connection failed", zap.String("ssid", ssid))
	}
	return nil
}

// searchSSID scans the visible networks for the station SSID.
func (m *Manager) searchSSID() bool {
	ssid := m.cfg.Station.SSID
	if ssid == "" {
		return false
	}
	m.logger.Debug("scanning networks")
	ssids, err := m.link.Scan()
	if err != nil {
		m.logger.Warn("unable to scan networks", zap.Error(err))
		return false
	}
	m.logger.Debug("scan complete", zap.Int("networks", len(ssids)))
	return slices.Contains(ssids, ssid)
}

// RunWifi performs a single step of the maintenance state machine. It
// never blocks on the link; the caller is expected to call it
// continuously.
func (m *Manager) RunWifi() {
	switch m.state {
	case StateCheckConnection:
		if m.cfg.Mode == ModeAccessPoint {
			m.setState(StateAccessPointIdle)
			break
		}

		ok, err := m.link.Connected()
		if err != nil || !ok {
			m.dropConnection("wifi disconnected, retrying", err)
			break
		}
		m.myIP = m.link.LocalIP()
		if !m.myIP.IsValid() || m.myIP.IsUnspecified() {
			m.dropConnection("invalid IP, retrying", nil)
			break
		}
		m.connected = true
		m.setState(StateGetNetworkTime)

	case StateGetNetworkTime:
		m.refreshNetworkTime()
		m.setState(StateCheckConnection)

	case StateGetLocalTime:
		m.advanceLocalTime()
		m.snapshot = newSnapshot(m.localEpoch)
		m.setState(StateReconnect)

	case StateReconnect:
		m.reconnect()
		m.reconnectTimer = m.clock.Millis()
		m.setState(StateWaitForConnection)

	case StateWaitForConnection:
		if ok, err := m.link.Connected(); err == nil && ok {
			m.setState(StateCheckConnection)
			break
		}
		if clock.Elapsed(m.clock.Millis(), m.reconnectTimer) > reconnectDwell {
			m.logger.Debug("reconnect timed out, retrying", zap.Int("dwell_ms", reconnectDwell))
			m.setState(StateCheckConnection)
		}

	case StateAccessPointIdle:
		// The access point runs on its own.
	}
}

func (m *Manager) setState(s State) {
	if s != m.state {
		m.logger.Debug("state", zap.Stringer("from", m.state), zap.Stringer("to", s))
	}
	m.state = s
}

func (m *Manager) dropConnection(msg string, err error) {
	if m.connected {
		m.logger.Info(msg, zap.Error(err))
	}
	m.connected = false
	if err := m.link.Disconnect(); err != nil {
		m.logger.Warn("disconnect failed", zap.Error(err))
	}
	m.setState(StateGetLocalTime)
}

// reconnect issues a new connection attempt without waiting for it.
func (m *Manager) reconnect() {
	if !m.cfg.Mode.hasStation() {
		return
	}
	var err error
	if m.searchSSID() {
		err = m.link.Begin(m.cfg.Station.SSID, m.cfg.Station.Password)
	} else {
		err = m.link.Reconnect()
	}
	if err != nil {
		m.logger.Warn("reconnect failed", zap.Error(err))
	}
}

func (m *Manager) startTimeSource() {
	if m.tsStarted {
		return
	}
	if err := m.ts.Begin(); err != nil {
		m.logger.Warn("unable to start time source", zap.Error(err))
		return
	}
	m.tsStarted = true
}

// refreshNetworkTime updates the snapshot from the time source and
// applies the DST offset when it changes. Until the time source has
// answered once, the fallback clock keeps running instead.
func (m *Manager) refreshNetworkTime() {
	m.startTimeSource()
	if m.tsStarted {
		ok, err := m.ts.Update()
		if err != nil {
			m.logger.Warn("network time update failed", zap.Error(err))
		}
		m.tsSynced = m.tsSynced || ok
	}

	if !m.tsSynced {
		m.advanceLocalTime()
		m.snapshot = newSnapshot(m.localEpoch)
		return
	}

	m.backupTimer = m.clock.Millis()
	if m.applyDST(m.ts.Epoch()) {
		m.logger.Info("daylight saving changed", zap.Bool("active", m.dst), zap.Int("offset", timefmt.Offset(m.dst)))
	}
	m.localEpoch = m.ts.Epoch()
	m.snapshot = newSnapshot(m.localEpoch)
}

// applyDST evaluates the policy on standard local time, which does not
// depend on the offset being decided, and reports whether the offset
// changed.
func (m *Manager) applyDST(epoch uint32) bool {
	standard := epoch - uint32(timefmt.Offset(m.dst)) + timefmt.StandardOffset
	next, changed := timefmt.EvaluateDST(standard, m.dst)
	if !changed {
		return false
	}
	m.dst = next
	m.ts.SetTimeOffset(timefmt.Offset(next))
	return true
}

// advanceLocalTime adds one second to the fallback clock for every full
// second elapsed since the last increment.
func (m *Manager) advanceLocalTime() {
	secs := clock.Elapsed(m.clock.Millis(), m.backupTimer) / tickMillis
	if secs == 0 {
		return
	}
	m.localEpoch += secs
	m.backupTimer += secs * tickMillis
}

// WifiConnected reports whether the station link was up at the last check.
// In access point only mode it reports whether the access point started.
func (m *Manager) WifiConnected() bool {
	return m.connected
}

// MyIP returns the station address seen at the last check.
func (m *Manager) MyIP() netip.Addr {
	return m.myIP
}

// APIP returns the access point address.
func (m *Manager) APIP() netip.Addr {
	return m.apIP
}

// Snapshot returns the current time snapshot.
func (m *Manager) Snapshot() TimeSnapshot {
	return m.snapshot
}

// State returns the state the next RunWifi call will execute.
func (m *Manager) State() State {
	return m.state
}

// DSTActive reports whether the summer offset is applied.
func (m *Manager) DSTActive() bool {
	return m.dst
}

// Mode returns the configured mode.
func (m *Manager) Mode() Mode {
	return m.cfg.Mode
}

// Hostname returns the hostname used on the next connection.
func (m *Manager) Hostname() string {
	return m.cfg.Hostname
}

// SetHostname changes the hostname used on the next connection. A blank
// name is ignored.
func (m *Manager) SetHostname(name string) {
	if name != "" {
		m.cfg.Hostname = name
	}
}

// SetWifiSSID changes the station network used on the next connection.
// A blank or unchanged SSID is ignored.
func (m *Manager) SetWifiSSID(ssid string) {
	if ssid != "" && ssid != m.cfg.Station.SSID {
		m.cfg.Station.SSID = ssid
	}
}

// SetWifiPasswd changes the station password used on the next connection.
// A blank or unchanged password is ignored.
func (m *Manager) SetWifiPasswd(password string) {
	if password != "" && password != m.cfg.Station.Password {
		m.cfg.Station.Password = password
	}
}

// Station returns the station credentials used on the next connection.
func (m *Manager) Station() Credentials {
	return m.cfg.Station
}
