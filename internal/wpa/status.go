package wpa

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"
)

// wpa_state value of an associated and authenticated station.
const stateCompleted = "COMPLETED"

// Status holds the fields of a STATUS reply the link layer uses. A
// wpa_supplicant reply fills the station fields, a hostapd reply fills
// State, Channel and the [0] BSS entries.
// More info:
// https://w1.fi/wpa_supplicant/devel/ctrl_iface_page.html#ctrl_iface_STATUS
type Status struct {
	WPAState  string
	State     string
	Channel   int
	Frequency int
	SSID      string
	BSSID     string
	Address   string
	IPAddress netip.Addr
}

// Associated reports whether a station has completed association.
func (s Status) Associated() bool {
	return s.WPAState == stateCompleted
}

// parse parses a control interface STATUS reply and updates s.
func (s *Status) parse(p []byte) error {
	var (
		err  error
		line string
	)

	scanner := bufio.NewScanner(bytes.NewReader(p))
	for scanner.Scan() {
		line = scanner.Text()
		if line == "" {
			continue
		}

		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid status response line %q", line)
		}

		switch key {
		case "wpa_state":
			s.WPAState = val
		case "state":
			s.State = val
		case "channel":
			if s.Channel, err = strconv.Atoi(val); err != nil {
				return err
			}
		case "freq":
			if s.Frequency, err = strconv.Atoi(val); err != nil {
				return err
			}
		case "ssid", "ssid[0]":
			if s.SSID, err = decodeSSID([]byte(val)); err != nil {
				return err
			}
		case "bssid", "bssid[0]":
			s.BSSID = val
		case "address":
			s.Address = val
		case "ip_address":
			if s.IPAddress, err = netip.ParseAddr(val); err != nil {
				return fmt.Errorf("invalid ip_address %q: %w", val, err)
			}
		}
	}

	return scanner.Err()
}

// decodeSSID converts the hostap encoding of the SSID into a string,
// respecting the special escape sequences for hex and other characters.
// See printf_encode for more encoding info:
// https://w1.fi/cgit/hostap/tree/src/utils/common.c?id=b20991da6936a1baae9f2239ee127610a6f5335d#n477
func decodeSSID(v []byte) (string, error) {
	r := bytes.NewReader(v)
	var s strings.Builder
	s.Grow(len(v))

	for {
		c, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		if c != '\\' {
			s.WriteByte(c)
			continue
		}

		c, err = r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return "", fmt.Errorf("dangling escape: %w", err)
		}

		switch c {
		case '"', '\\':
			s.WriteByte(c)
		case 'e':
			s.WriteByte('\033')
		case 'n':
			s.WriteByte('\n')
		case 'r':
			s.WriteByte('\r')
		case 't':
			s.WriteByte('\t')
		case 'x':
			if _, err = io.Copy(&s, hex.NewDecoder(io.LimitReader(r, 2))); err != nil {
				return "", err
			}
		default:
			s.WriteByte(c)
		}
	}

	return s.String(), nil
}
