package wifi

import "net/netip"

// Link is the radio and IP layer the Manager drives. Implementations
// should return quickly: Begin, Reconnect and Scan start work whose
// outcome the Manager observes on later calls to Connected.
type Link interface {
	// Connected reports whether the station role is associated.
	Connected() (bool, error)
	// LocalIP is the address assigned to the station role, or the zero
	// Addr when there is none.
	LocalIP() netip.Addr
	// APIP is the address of the access point role.
	APIP() netip.Addr
	// Scan returns the SSIDs of the visible networks.
	Scan() ([]string, error)
	SetHostname(name string) error
	// Begin starts joining the network ssid.
	Begin(ssid, password string) error
	// Reconnect retries the last network given to Begin.
	Reconnect() error
	Disconnect() error
	// StartAP starts hosting the network ssid.
	StartAP(ssid, password string) error
}

// TimeSource yields the current epoch, in seconds, with an adjustable
// offset already applied. clock.NTPClient implements it.
type TimeSource interface {
	Begin() error
	// Update refreshes the time from the network when due.
	Update() (bool, error)
	Epoch() uint32
	SetTimeOffset(seconds int)
}

// Indicator is a single status light.
type Indicator interface {
	Set(on bool)
}
