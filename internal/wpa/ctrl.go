package wpa

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Control interface command and response strings shared by wpa_supplicant
// and hostapd.
const (
	cmdPing          = "PING"
	respPong         = "PONG"
	cmdStatus        = "STATUS"
	cmdScan          = "SCAN"
	cmdScanResults   = "SCAN_RESULTS"
	cmdAddNetwork    = "ADD_NETWORK"
	cmdSetNetwork    = "SET_NETWORK"
	cmdSelectNetwork = "SELECT_NETWORK"
	cmdRemoveNetwork = "REMOVE_NETWORK"
	cmdReconnect     = "RECONNECT"
	cmdDisconnect    = "DISCONNECT"
	cmdSet           = "SET"
	cmdEnable        = "ENABLE"
	cmdDisable       = "DISABLE"
	respOK           = "OK"
	respBusy         = "FAIL-BUSY"
	unknownCommand   = "UNKNOWN COMMAND"
)

// ErrUnknownCmd is returned when the control socket answers with an
// "UNKNOWN COMMAND" response.
type ErrUnknownCmd string

func (e ErrUnknownCmd) Error() string {
	return fmt.Sprintf("sent command %q, received unknown command response", string(e))
}

// newCtrl returns a new ctrl using the given connection.
func newCtrl(cn *conn, rTimeout, wTimeout time.Duration) (*ctrl, error) {
	c := &ctrl{
		readTimeout:  rTimeout,
		writeTimeout: wTimeout,
		conn:         cn,
		buf:          make([]byte, 4*1024),
	}
	if err := c.ping(); err != nil {
		return nil, fmt.Errorf("ping error: %w", err)
	}

	return c, nil
}

// ctrl manages request/response exchanges with a control socket.
type ctrl struct {
	readTimeout, writeTimeout time.Duration

	mu   sync.Mutex // Protects following.
	conn *conn
	buf  []byte
}

// cmd sends the given command and waits for the response. On success, the
// response's data is given to the resp function. Any error returned from
// the resp function is returned by this method. This method is threadsafe.
// The resp function should not retain p.
func (c *ctrl) cmd(cmd string, resp func(p []byte) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.setWriteDeadline(c.writeTimeout); err != nil {
			return err
		}
	}
	if _, err := c.conn.Write([]byte(cmd)); err != nil {
		return err
	}

	if c.readTimeout > 0 {
		if err := c.conn.setReadDeadline(c.readTimeout); err != nil {
			return err
		}
	}

	n, err := c.conn.Read(c.buf)
	if err != nil {
		return fmt.Errorf("read error from %q command: %w", verb(cmd), err)
	}

	if bytes.HasPrefix(c.buf[:n], []byte(unknownCommand)) {
		return ErrUnknownCmd(verb(cmd))
	}

	return resp(c.buf[:n])
}

// ok sends cmd and expects an OK reply.
func (c *ctrl) ok(cmd string) error {
	return c.cmd(cmd, func(resp []byte) error {
		if s := strings.TrimSpace(string(resp)); s != respOK {
			return fmt.Errorf("unexpected response to %s: %q", verb(cmd), s)
		}
		return nil
	})
}

// ping tests whether the control interface is responding
// to requests.
func (c *ctrl) ping() error {
	return c.cmd(cmdPing, func(resp []byte) error {
		if s := strings.TrimSpace(string(resp)); s != respPong {
			return fmt.Errorf("unexpected response to %s: %q", cmdPing, s)
		}
		return nil
	})
}

func (c *ctrl) status() (Status, error) {
	var s Status
	return s, c.cmd(cmdStatus, func(resp []byte) error {
		return s.parse(resp)
	})
}

// scan requests a new scan. A scan already in progress is not an error.
func (c *ctrl) scan() error {
	return c.cmd(cmdScan, func(resp []byte) error {
		switch s := strings.TrimSpace(string(resp)); s {
		case respOK, respBusy:
			return nil
		default:
			return fmt.Errorf("unexpected response to %s: %q", cmdScan, s)
		}
	})
}

func (c *ctrl) scanResults() ([]ScanResult, error) {
	var results []ScanResult
	return results, c.cmd(cmdScanResults, func(resp []byte) error {
		var err error
		results, err = parseScanResults(resp)
		return err
	})
}

// addNetwork creates an empty network block and returns its id.
func (c *ctrl) addNetwork() (int, error) {
	var id int
	return id, c.cmd(cmdAddNetwork, func(resp []byte) error {
		var err error
		if id, err = strconv.Atoi(strings.TrimSpace(string(resp))); err != nil {
			return fmt.Errorf("unexpected response to %s: %q", cmdAddNetwork, resp)
		}
		return nil
	})
}

func (c *ctrl) setNetwork(id int, key, val string) error {
	return c.ok(fmt.Sprintf("%s %d %s %s", cmdSetNetwork, id, key, val))
}

// verb returns the command name without arguments, which may carry
// credentials.
func verb(cmd string) string {
	if i := strings.IndexByte(cmd, ' '); i >= 0 {
		return cmd[:i]
	}
	return cmd
}
