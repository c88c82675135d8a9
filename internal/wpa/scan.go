package wpa

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// ScanResult is one BSS from SCAN_RESULTS.
type ScanResult struct {
	BSSID     string
	Frequency int
	Signal    int // dBm
	Flags     string
	SSID      string
}

// parseScanResults parses a SCAN_RESULTS reply. The first line is a
// column header, every following line is tab separated:
//
//	bssid / frequency / signal level / flags / ssid
//	00:09:5b:95:e0:4e	2412	-52	[WPA2-PSK-CCMP][ESS]	home
func parseScanResults(p []byte) ([]ScanResult, error) {
	var results []ScanResult

	scanner := bufio.NewScanner(bytes.NewReader(p))
	for header := true; scanner.Scan(); header = false {
		line := scanner.Text()
		if header || line == "" {
			continue
		}

		fields := strings.SplitN(line, "\t", 5)
		if len(fields) < 4 {
			return nil, fmt.Errorf("invalid scan result line %q", line)
		}

		var (
			r   = ScanResult{BSSID: fields[0], Flags: fields[3]}
			err error
		)
		if r.Frequency, err = strconv.Atoi(fields[1]); err != nil {
			return nil, fmt.Errorf("invalid frequency in %q: %w", line, err)
		}
		if r.Signal, err = strconv.Atoi(fields[2]); err != nil {
			return nil, fmt.Errorf("invalid signal in %q: %w", line, err)
		}
		if len(fields) == 5 {
			if r.SSID, err = decodeSSID([]byte(fields[4])); err != nil {
				return nil, err
			}
		}
		results = append(results, r)
	}

	return results, scanner.Err()
}
