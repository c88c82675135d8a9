package wpatest

import (
	"fmt"
	"strings"
	"sync"
)

// Handler is a collection of user-definable functions used for handling
// control interface messages.
type Handler struct {
	sync.Mutex    // Protects following.
	onMessage     func(msg string)
	onUndef       func(msg string) string
	onPing        func() bool // Reply to PING with PONG unless onPing is defined and returns false.
	onStatus      func() StatusResp
	onScanResults func() []ScanResp
	replies       map[string]string
}

// DefaultHandler is a convenience function to define a Handler that
// responds with the given status and scan results, and accepts every
// configuration command the client sends.
func DefaultHandler(status StatusResp, results []ScanResp) *Handler {
	var h Handler
	h.OnStatus(func() StatusResp { return status })
	h.OnScanResults(func() []ScanResp { return results })
	for _, verb := range []string{
		"SCAN", "REMOVE_NETWORK", "SET_NETWORK", "SELECT_NETWORK",
		"RECONNECT", "DISCONNECT", "SET", "ENABLE", "DISABLE",
	} {
		h.Reply(verb, "OK")
	}
	h.Reply("ADD_NETWORK", "0\n")
	return &h
}

// OnMessage registers a callback that will be called
// with every message received after calling Serve.
func (h *Handler) OnMessage(f func(msg string)) {
	h.Lock()
	h.onMessage = f
	h.Unlock()
}

func (h *Handler) handleMessage(msg string) {
	h.Lock()
	defer h.Unlock()
	if h.onMessage == nil {
		return
	}
	h.onMessage(msg)
}

// OnUndef registers a callback that will be called
// with every otherwise unhandled message received after calling Serve.
func (h *Handler) OnUndef(f func(msg string) string) {
	h.Lock()
	h.onUndef = f
	h.Unlock()
}

func (h *Handler) handleUndef(msg string) (string, bool) {
	h.Lock()
	defer h.Unlock()
	if h.onUndef != nil {
		return h.onUndef(msg), true
	}
	return "", false
}

// OnPing registers a callback that will be called
// with every ping message. If false is returned, then
// no PONG reply is sent. If this callback isn't set, then
// PONG will be sent.
func (h *Handler) OnPing(f func() bool) {
	h.Lock()
	h.onPing = f
	h.Unlock()
}

func (h *Handler) handlePing() bool {
	h.Lock()
	defer h.Unlock()
	if h.onPing == nil {
		return true
	}
	return h.onPing()
}

// OnStatus registers a callback which determines the response
// to a STATUS message.
func (h *Handler) OnStatus(f func() StatusResp) {
	h.Lock()
	h.onStatus = f
	h.Unlock()
}

func (h *Handler) handleStatus() (StatusResp, bool) {
	h.Lock()
	defer h.Unlock()
	if h.onStatus == nil {
		return StatusResp{}, false
	}
	return h.onStatus(), true
}

// OnScanResults registers a callback which determines the response
// to a SCAN_RESULTS message.
func (h *Handler) OnScanResults(f func() []ScanResp) {
	h.Lock()
	h.onScanResults = f
	h.Unlock()
}

func (h *Handler) handleScanResults() ([]ScanResp, bool) {
	h.Lock()
	defer h.Unlock()
	if h.onScanResults == nil {
		return nil, false
	}
	return h.onScanResults(), true
}

// Reply sets a fixed response to every message whose first word is verb.
func (h *Handler) Reply(verb, resp string) {
	h.Lock()
	if h.replies == nil {
		h.replies = make(map[string]string)
	}
	h.replies[verb] = resp
	h.Unlock()
}

func (h *Handler) handleReply(msg string) (string, bool) {
	verb, _, _ := strings.Cut(msg, " ")
	h.Lock()
	defer h.Unlock()
	resp, ok := h.replies[verb]
	return resp, ok
}

// StatusResp forms the response to a STATUS message. Station fields are
// written the way wpa_supplicant does, AP fields the way hostapd does.
type StatusResp struct {
	WPAState  string
	IPAddress string
	SSID      string
	BSSID     string

	State   string
	Channel int
	APSSID  string
}

func (s *StatusResp) encode() string {
	var b strings.Builder
	if s.WPAState != "" {
		fmt.Fprintf(&b, "bssid=%s\n", s.BSSID)
		fmt.Fprintf(&b, "freq=2412\n")
		fmt.Fprintf(&b, "ssid=%s\n", s.SSID)
		fmt.Fprintf(&b, "mode=station\n")
		fmt.Fprintf(&b, "wpa_state=%s\n", s.WPAState)
		if s.IPAddress != "" {
			fmt.Fprintf(&b, "ip_address=%s\n", s.IPAddress)
		}
	}
	if s.State != "" {
		fmt.Fprintf(&b, "state=%s\n", s.State)
		fmt.Fprintf(&b, "channel=%d\n", s.Channel)
		fmt.Fprintf(&b, "ssid[0]=%s\n", s.APSSID)
	}
	return b.String()
}

// ScanResp is one line of a SCAN_RESULTS response.
type ScanResp struct {
	BSSID  string
	Signal int
	SSID   string
}

func encodeScanResults(results []ScanResp) string {
	var b strings.Builder
	fmt.Fprintln(&b, "bssid / frequency / signal level / flags / ssid")
	for _, r := range results {
		fmt.Fprintf(&b, "%s\t2437\t%d\t[WPA2-PSK-CCMP][ESS]\t%s\n", r.BSSID, r.Signal, r.SSID)
	}
	return b.String()
}
