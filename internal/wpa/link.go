package wpa

import (
	"errors"
	"net"
	"net/netip"
	"sync"
)

// ErrNoStation is returned by station operations of a Link built without
// a station client.
var ErrNoStation = errors.New("no station interface")

// ErrNoAccessPoint is returned by StartAP on a Link built without an
// access point client.
var ErrNoAccessPoint = errors.New("no access point interface")

// NewLink returns a Link over a wpa_supplicant client for the station
// role and a hostapd client for the access point role. Either may be nil
// when the role is not used. apIface names the network interface hostapd
// serves, from which the access point address is read.
func NewLink(station, ap *Client, apIface string) *Link {
	return &Link{
		station: station,
		ap:      ap,
		apIface: apIface,
		addrs:   interfaceAddrs,
	}
}

// Link adapts the control interface clients to the connection manager.
type Link struct {
	station *Client
	ap      *Client
	apIface string
	addrs   func(iface string) ([]net.Addr, error)

	mu       sync.Mutex // Protects following.
	hostname string
	localIP  netip.Addr
}

// Connected reports whether the station completed association. The
// station address is refreshed as a side effect.
func (l *Link) Connected() (bool, error) {
	if l.station == nil {
		return false, nil
	}
	s, err := l.station.Status()
	if err != nil {
		return false, err
	}
	l.mu.Lock()
	l.localIP = s.IPAddress
	l.mu.Unlock()
	return s.Associated(), nil
}

// LocalIP returns the station address seen by the last Connected call.
func (l *Link) LocalIP() netip.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.localIP
}

// APIP returns the first IPv4 address of the access point interface.
func (l *Link) APIP() netip.Addr {
	if l.ap == nil || l.apIface == "" {
		return netip.Addr{}
	}
	addrs, err := l.addrs(l.apIface)
	if err != nil {
		return netip.Addr{}
	}
	for _, a := range addrs {
		prefix, err := netip.ParsePrefix(a.String())
		if err != nil {
			continue
		}
		if ip := prefix.Addr(); ip.Is4() {
			return ip
		}
	}
	return netip.Addr{}
}

// Scan requests a fresh scan and returns the SSIDs of the previous one.
// Hidden networks are omitted.
func (l *Link) Scan() ([]string, error) {
	if l.station == nil {
		return nil, ErrNoStation
	}
	if err := l.station.Scan(); err != nil {
		return nil, err
	}
	results, err := l.station.ScanResults()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(results))
	ssids := make([]string, 0, len(results))
	for _, r := range results {
		if r.SSID == "" || seen[r.SSID] {
			continue
		}
		seen[r.SSID] = true
		ssids = append(ssids, r.SSID)
	}
	return ssids, nil
}

// SetHostname records the name the DHCP client announces. wpa_supplicant
// has no notion of a hostname.
func (l *Link) SetHostname(name string) error {
	l.mu.Lock()
	l.hostname = name
	l.mu.Unlock()
	return nil
}

// Hostname returns the name given to SetHostname.
func (l *Link) Hostname() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hostname
}

func (l *Link) Begin(ssid, password string) error {
	if l.station == nil {
		return ErrNoStation
	}
	return l.station.Connect(ssid, password)
}

func (l *Link) Reconnect() error {
	if l.station == nil {
		return ErrNoStation
	}
	return l.station.Reconnect()
}

func (l *Link) Disconnect() error {
	if l.station == nil {
		return ErrNoStation
	}
	l.mu.Lock()
	l.localIP = netip.Addr{}
	l.mu.Unlock()
	return l.station.Disconnect()
}

func (l *Link) StartAP(ssid, password string) error {
	if l.ap == nil {
		return ErrNoAccessPoint
	}
	return l.ap.StartAP(ssid, password)
}

func interfaceAddrs(name string) ([]net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return iface.Addrs()
}
