package main

import (
	"context"
	"errors"
	"path"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/awilliams/wifi-manager/internal/wpa/wpatest"
)

// mockSocket serves handler on a control socket in a temporary directory.
func mockSocket(t *testing.T, name string, handler *wpatest.Handler) string {
	t.Helper()

	srv, err := wpatest.NewServer(path.Join(t.TempDir(), name))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Close() })
	go srv.Serve(handler)
	return srv.Addr
}

func TestRun_Station(t *testing.T) {
	h := wpatest.DefaultHandler(
		wpatest.StatusResp{WPAState: "COMPLETED", IPAddress: "127.0.0.1", SSID: "home"},
		[]wpatest.ScanResp{{BSSID: "00:00:00:00:00:01", Signal: -40, SSID: "home"}},
	)
	var (
		mu   sync.Mutex
		msgs []string
	)
	h.OnMessage(func(msg string) {
		mu.Lock()
		msgs = append(msgs, msg)
		mu.Unlock()
	})
	sock := mockSocket(t, "wlan0", h)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := run(ctx, []string{
		"--mode", "station",
		"--ssid", "home",
		"--password", "secret99",
		"--wpa.sock", sock,
		"--sock.dir", t.TempDir(),
		"--ntp.server", "127.0.0.1",
		"--log.level", "warn",
	})
	if err != nil {
		t.Fatalf("run() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, want := range []string{"SCAN_RESULTS", `SET_NETWORK 0 psk "secret99"`, "SELECT_NETWORK 0", "STATUS"} {
		if !slices.Contains(msgs, want) {
			t.Errorf("control socket never received %q; got %q", want, msgs)
		}
	}
}

func TestRun_MissingAPCredentials(t *testing.T) {
	sock := mockSocket(t, "wlan1", wpatest.DefaultHandler(wpatest.StatusResp{State: "ENABLED"}, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := run(ctx, []string{
		"--mode", "ap",
		"--ap.ssid", "ESP-AP",
		"--hostapd.sock", sock,
		"--sock.dir", t.TempDir(),
		"--log.level", "error",
	})
	if !errors.Is(err, errHalted) {
		t.Fatalf("run() error = %v; want %v", err, errHalted)
	}
}

func TestRun_NoControlSocket(t *testing.T) {
	err := run(context.Background(), []string{
		"--wpa.sock", path.Join(t.TempDir(), "missing"),
		"--sock.dir", t.TempDir(),
	})
	if err == nil {
		t.Fatal("expected error without a control socket")
	}
}
