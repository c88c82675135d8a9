package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/awilliams/wifi-manager/internal/report"
	"github.com/awilliams/wifi-manager/internal/udp"
	"github.com/awilliams/wifi-manager/internal/wifi"

	"go.uber.org/zap"
)

type fakeManager struct {
	connected bool
	ip        netip.Addr
	apIP      netip.Addr
	state     wifi.State
	runs      int
	inits     int

	ssid, password, hostname string
}

func (f *fakeManager) InitWifi() bool       { f.inits++; return f.connected }
func (f *fakeManager) RunWifi()             { f.runs++ }
func (f *fakeManager) WifiConnected() bool  { return f.connected }
func (f *fakeManager) MyIP() netip.Addr     { return f.ip }
func (f *fakeManager) APIP() netip.Addr     { return f.apIP }
func (f *fakeManager) State() wifi.State    { return f.state }
func (f *fakeManager) DSTActive() bool      { return true }
func (f *fakeManager) Mode() wifi.Mode      { return wifi.ModeStation }
func (f *fakeManager) Hostname() string     { return f.hostname }
func (f *fakeManager) SetHostname(s string) { f.hostname = s }
func (f *fakeManager) SetWifiSSID(s string) { f.ssid = s }
func (f *fakeManager) SetWifiPasswd(s string) {
	f.password = s
}

func (f *fakeManager) Snapshot() wifi.TimeSnapshot {
	return wifi.TimeSnapshot{
		Timestamp:     1672888020,
		DayHour:       3,
		TimeFormatted: "03:07",
		DateFormatted: "05/01/23",
		WeekDay:       "Giovedi",
	}
}

type fakeReporter struct {
	mu        sync.Mutex
	snapshots []report.Snapshot
	datagrams []report.Datagram
}

func (f *fakeReporter) PublishSnapshot(_ context.Context, s report.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, s)
	return nil
}

func (f *fakeReporter) PublishDatagram(_ context.Context, d report.Datagram) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.datagrams = append(f.datagrams, d)
	return nil
}

func newTestApp(mgr *fakeManager, rep *fakeReporter) *app {
	a := &app{
		logger:         zap.NewNop(),
		mgr:            mgr,
		talker:         udp.New(udp.WithPollTimeout(10 * time.Millisecond)),
		tick:           time.Millisecond,
		reportInterval: time.Hour,
	}
	if rep != nil {
		a.rep = rep
	}
	return a
}

func freeUDPPort(t *testing.T) uint16 {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	return uint16(conn.LocalAddr().(*net.UDPAddr).Port)
}

func TestApp_DatagramForwarding(t *testing.T) {
	var (
		loopback = netip.MustParseAddr("127.0.0.1")
		mgr      = &fakeManager{connected: true, ip: loopback}
		rep      = &fakeReporter{}
		a        = newTestApp(mgr, rep)
		ctx      = context.Background()
	)
	a.udpPeer = loopback
	a.udpPort = freeUDPPort(t)
	defer a.talker.Stop()

	a.step(ctx)
	if !a.talker.Ready() {
		t.Fatal("datagram channel not started while connected")
	}

	sender, err := net.DialUDP("udp", nil, net.UDPAddrFromAddrPort(netip.AddrPortFrom(loopback, a.udpPort)))
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()
	if _, err = sender.Write([]byte("ciao")); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		a.step(ctx)
		rep.mu.Lock()
		n := len(rep.datagrams)
		rep.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for forwarded datagram")
		}
	}

	got := rep.datagrams[0]
	if got.Message != "ciao" {
		t.Errorf("got message %q; want %q", got.Message, "ciao")
	}
	if got.Timestamp != 1672888020 {
		t.Errorf("got timestamp %d; want %d", got.Timestamp, 1672888020)
	}

	// Losing the connection stops the channel.
	mgr.connected = false
	a.step(ctx)
	if a.talker.Ready() {
		t.Fatal("datagram channel still running while disconnected")
	}
}

func TestApp_NoPeer(t *testing.T) {
	mgr := &fakeManager{connected: true, ip: netip.MustParseAddr("127.0.0.1")}
	a := newTestApp(mgr, nil)

	a.step(context.Background())
	if mgr.runs != 1 {
		t.Fatalf("got %d RunWifi calls; want 1", mgr.runs)
	}
	if a.talker.Ready() {
		t.Fatal("datagram channel started without a peer")
	}
}

func TestApp_AccessPointOnly(t *testing.T) {
	loopback := netip.MustParseAddr("127.0.0.1")
	mgr := &fakeManager{connected: true, apIP: loopback, state: wifi.StateAccessPointIdle}
	a := newTestApp(mgr, nil)
	a.udpPeer = loopback
	a.udpPort = freeUDPPort(t)
	defer a.talker.Stop()

	a.step(context.Background())
	if !a.talker.Ready() {
		t.Fatal("datagram channel not started on the access point address")
	}
}

func TestApp_ApplyConfig(t *testing.T) {
	mgr := &fakeManager{}
	configs := make(chan report.Configuration)
	a := newTestApp(mgr, nil)
	a.configs = configs

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	configs <- report.Configuration{SSID: "office", Password: "secret99", Hostname: "esp-kitchen"}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for run to return")
	}

	if mgr.inits != 1 {
		t.Fatalf("got %d InitWifi calls; want 1", mgr.inits)
	}
	if mgr.ssid != "office" || mgr.password != "secret99" || mgr.hostname != "esp-kitchen" {
		t.Fatalf("got ssid=%q password=%q hostname=%q; want update applied", mgr.ssid, mgr.password, mgr.hostname)
	}
}

func TestApp_Halted(t *testing.T) {
	haltErr := errors.New("access point SSID and password are required")
	a := newTestApp(&fakeManager{}, nil)
	a.halted = func() error { return fmt.Errorf("%w: %w", errHalted, haltErr) }

	err := a.run(context.Background())
	if !errors.Is(err, errHalted) || !errors.Is(err, haltErr) {
		t.Fatalf("got %v; want halt error", err)
	}
}

func TestSnapshotOf(t *testing.T) {
	mgr := &fakeManager{
		connected: true,
		ip:        netip.MustParseAddr("192.168.1.21"),
		state:     wifi.StateGetNetworkTime,
		hostname:  "esp-kitchen",
	}

	got := snapshotOf(mgr)
	want := report.Snapshot{
		State:     wifi.StateGetNetworkTime.String(),
		Mode:      "station",
		Hostname:  "esp-kitchen",
		Connected: true,
		IP:        "192.168.1.21",
		DST:       true,
		Timestamp: 1672888020,
		DayHour:   3,
		Time:      "03:07",
		Date:      "05/01/23",
		WeekDay:   "Giovedi",
	}
	if got != want {
		t.Fatalf("got:\n%+v\nwant:\n%+v", got, want)
	}
}
