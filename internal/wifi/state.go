package wifi

import "fmt"

// Mode selects which radio roles the Manager drives. It is fixed for the
// lifetime of a Manager.
type Mode int

const (
	ModeStation Mode = iota
	ModeAccessPoint
	ModeStationAndAccessPoint
)

func (m Mode) String() string {
	switch m {
	case ModeStation:
		return "station"
	case ModeAccessPoint:
		return "access-point"
	case ModeStationAndAccessPoint:
		return "station+access-point"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode is the inverse of Mode.String. "sta", "ap" and "sta+ap" are
// accepted as short forms.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "station", "sta":
		return ModeStation, nil
	case "access-point", "ap":
		return ModeAccessPoint, nil
	case "station+access-point", "sta+ap":
		return ModeStationAndAccessPoint, nil
	}
	return 0, fmt.Errorf("unknown wifi mode %q", s)
}

func (m Mode) valid() bool {
	return m >= ModeStation && m <= ModeStationAndAccessPoint
}

// hasStation reports whether the mode joins an existing network.
func (m Mode) hasStation() bool {
	return m == ModeStation || m == ModeStationAndAccessPoint
}

// hasAccessPoint reports whether the mode hosts its own network.
func (m Mode) hasAccessPoint() bool {
	return m == ModeAccessPoint || m == ModeStationAndAccessPoint
}

// State is a step of the maintenance state machine driven by RunWifi.
type State int

const (
	StateCheckConnection State = iota
	StateGetNetworkTime
	StateGetLocalTime
	StateWaitForConnection
	StateReconnect
	StateAccessPointIdle
)

func (s State) String() string {
	switch s {
	case StateCheckConnection:
		return "check-connection"
	case StateGetNetworkTime:
		return "get-network-time"
	case StateGetLocalTime:
		return "get-local-time"
	case StateWaitForConnection:
		return "wait-for-connection"
	case StateReconnect:
		return "reconnect"
	case StateAccessPointIdle:
		return "access-point-idle"
	default:
		return "?"
	}
}
