package main

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"github.com/awilliams/wifi-manager/internal/report"
	"github.com/awilliams/wifi-manager/internal/udp"
	"github.com/awilliams/wifi-manager/internal/wifi"

	"go.uber.org/zap"
)

// maxDatagramsPerTick bounds how many pending datagrams one tick drains.
const maxDatagramsPerTick = 8

// manager is the part of wifi.Manager the loop drives.
type manager interface {
	InitWifi() bool
	RunWifi()
	WifiConnected() bool
	MyIP() netip.Addr
	APIP() netip.Addr
	Snapshot() wifi.TimeSnapshot
	State() wifi.State
	DSTActive() bool
	Mode() wifi.Mode
	Hostname() string
	SetHostname(string)
	SetWifiSSID(string)
	SetWifiPasswd(string)
}

// reporter publishes what the loop observes. The MQTT reporter
// implements it.
type reporter interface {
	PublishSnapshot(context.Context, report.Snapshot) error
	PublishDatagram(context.Context, report.Datagram) error
}

// errHalted is returned when the manager hit an unrecoverable
// configuration error during InitWifi.
var errHalted = errors.New("wifi manager halted")

// app is the cooperative scheduler: one goroutine owns the manager and the
// datagram talker and steps them on every tick.
type app struct {
	logger *zap.Logger
	mgr    manager
	talker *udp.Talker
	rep    reporter // Optional

	udpLocal netip.Addr // Zero for the station address.
	udpPeer  netip.Addr // Zero disables the datagram channel.
	udpPort  uint16

	tick           time.Duration
	reportInterval time.Duration
	configs        <-chan report.Configuration
	halted         func() error
}

// run initializes the connection, then steps the manager until ctx is
// cancelled.
func (a *app) run(ctx context.Context) error {
	connected := a.mgr.InitWifi()
	if a.halted != nil {
		if err := a.halted(); err != nil {
			return err
		}
	}
	a.logger.Info("wifi initialized",
		zap.Bool("connected", connected),
		zap.Stringer("mode", a.mgr.Mode()),
		zap.Stringer("ip", a.mgr.MyIP()),
		zap.Stringer("ap_ip", a.mgr.APIP()),
	)
	a.publishSnapshot(ctx)

	defer a.talker.Stop()

	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()
	reportTicker := time.NewTicker(a.reportInterval)
	defer reportTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case cfg := <-a.configs:
			a.applyConfig(cfg)

		case <-ticker.C:
			a.step(ctx)

		case <-reportTicker.C:
			a.publishSnapshot(ctx)
		}
	}
}

// step performs one state machine transition and services the datagram
// channel.
func (a *app) step(ctx context.Context) {
	prev := a.mgr.State()
	a.mgr.RunWifi()
	if s := a.mgr.State(); s != prev {
		a.logger.Debug("state", zap.Stringer("from", prev), zap.Stringer("to", s))
	}

	if !a.udpPeer.IsValid() {
		return
	}
	if !a.mgr.WifiConnected() {
		if a.talker.Ready() {
			a.logger.Info("datagram channel stopped")
			a.talker.Stop()
		}
		return
	}
	if !a.talker.Ready() {
		local := a.udpLocal
		if !local.IsValid() {
			local = a.mgr.MyIP()
		}
		// Access point only: no station address, bind on the hosted network.
		if !local.IsValid() || local.IsUnspecified() {
			local = a.mgr.APIP()
		}
		if !a.talker.InitAddr(local, a.udpPeer, a.udpPort) {
			return
		}
		a.logger.Info("datagram channel started", zap.Stringer("local", local), zap.Stringer("peer", a.udpPeer))
	}
	a.pollDatagrams(ctx)
}

func (a *app) pollDatagrams(ctx context.Context) {
	for i := 0; i < maxDatagramsPerTick; i++ {
		msg, res := a.talker.ReceiveMessage()
		switch res {
		case udp.RecvOK:
			a.logger.Debug("datagram", zap.String("msg", msg))
			if a.rep == nil {
				continue
			}
			err := a.rep.PublishDatagram(ctx, report.Datagram{
				Peer:      netip.AddrPortFrom(a.udpPeer, a.udpPort).String(),
				Message:   msg,
				Timestamp: a.mgr.Snapshot().Timestamp,
			})
			if err != nil {
				a.logger.Warn("unable to publish datagram", zap.Error(err))
			}
		case udp.RecvEmpty:
			a.logger.Debug("empty datagram")
		case udp.RecvReadFailed:
			a.logger.Warn("datagram read failed")
			return
		default:
			return
		}
	}
}

// applyConfig hands credential updates to the manager. They take effect
// on the next reconnection.
func (a *app) applyConfig(cfg report.Configuration) {
	a.logger.Info("configuration update",
		zap.String("ssid", cfg.SSID),
		zap.Bool("password", cfg.Password != ""),
		zap.String("hostname", cfg.Hostname),
	)
	a.mgr.SetWifiSSID(cfg.SSID)
	a.mgr.SetWifiPasswd(cfg.Password)
	a.mgr.SetHostname(cfg.Hostname)
}

func (a *app) publishSnapshot(ctx context.Context) {
	if a.rep == nil {
		return
	}
	if err := a.rep.PublishSnapshot(ctx, snapshotOf(a.mgr)); err != nil {
		a.logger.Warn("unable to publish snapshot", zap.Error(err))
	}
}

func snapshotOf(m manager) report.Snapshot {
	ts := m.Snapshot()
	s := report.Snapshot{
		State:     m.State().String(),
		Mode:      m.Mode().String(),
		Hostname:  m.Hostname(),
		Connected: m.WifiConnected(),
		DST:       m.DSTActive(),
		Timestamp: ts.Timestamp,
		DayHour:   ts.DayHour,
		Time:      ts.TimeFormatted,
		Date:      ts.DateFormatted,
		WeekDay:   ts.WeekDay,
	}
	if ip := m.MyIP(); ip.IsValid() {
		s.IP = ip.String()
	}
	if ip := m.APIP(); ip.IsValid() {
		s.APIP = ip.String()
	}
	return s
}
