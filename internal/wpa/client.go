// Package wpa drives wpa_supplicant and hostapd through their control
// interface sockets.
package wpa

import (
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"runtime"
	"strings"
	"time"
)

// NewClient connects to the control interface located at ctrlSock. The
// local end of the connection is created in localSockDir, or the
// temporary directory if empty.
func NewClient(localSockDir, ctrlSock string) (*Client, error) {
	if localSockDir == "" {
		localSockDir = os.TempDir()
	}
	lpath := path.Join(
		localSockDir,
		fmt.Sprintf("wm.%s", path.Base(ctrlSock)),
	)
	if err := isValidSocketPath(lpath); err != nil {
		return nil, err
	}

	conn, err := newUnixSocketConn(lpath, ctrlSock)
	if err != nil {
		return nil, err
	}

	ctrl, err := newCtrl(conn, time.Second, time.Second)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Client{
		ctrlSock: ctrlSock,
		conn:     conn,
		ctrl:     ctrl,
	}, nil
}

// Client is a control interface client. The station commands are
// understood by wpa_supplicant, the access point commands by hostapd.
type Client struct {
	ctrlSock string
	conn     *conn
	ctrl     *ctrl
}

// Close closes the connection to the control interface. The client
// is no longer usable after closing.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Status returns the interface status.
func (c *Client) Status() (Status, error) {
	return c.ctrl.status()
}

// Scan starts a background scan.
func (c *Client) Scan() error {
	return c.ctrl.scan()
}

// ScanResults returns the BSSs found by the latest scan.
func (c *Client) ScanResults() ([]ScanResult, error) {
	return c.ctrl.scanResults()
}

// Connect replaces every configured network with one for ssid and
// selects it. An empty password configures an open network.
func (c *Client) Connect(ssid, password string) error {
	if ssid == "" {
		return fmt.Errorf("empty ssid")
	}
	if strings.ContainsAny(password, "\n") {
		return fmt.Errorf("password contains a newline")
	}
	if err := c.ctrl.ok(cmdRemoveNetwork + " all"); err != nil {
		return err
	}
	id, err := c.ctrl.addNetwork()
	if err != nil {
		return err
	}
	// An unquoted value is read as hex, which avoids quoting the SSID.
	if err = c.ctrl.setNetwork(id, "ssid", hex.EncodeToString([]byte(ssid))); err != nil {
		return err
	}
	if password == "" {
		err = c.ctrl.setNetwork(id, "key_mgmt", "NONE")
	} else {
		err = c.ctrl.setNetwork(id, "psk", `"`+password+`"`)
	}
	if err != nil {
		return err
	}
	return c.ctrl.ok(fmt.Sprintf("%s %d", cmdSelectNetwork, id))
}

// Reconnect asks the station to reassociate with its configured network.
func (c *Client) Reconnect() error {
	return c.ctrl.ok(cmdReconnect)
}

// Disconnect drops the association and stops automatic reconnection
// until Reconnect or Connect.
func (c *Client) Disconnect() error {
	return c.ctrl.ok(cmdDisconnect)
}

// StartAP reconfigures a hostapd BSS with ssid and a WPA passphrase and
// restarts it.
func (c *Client) StartAP(ssid, password string) error {
	if strings.ContainsAny(ssid+password, "\n") {
		return fmt.Errorf("access point credentials contain a newline")
	}
	for _, cmd := range []string{
		cmdSet + " ssid " + ssid,
		cmdSet + " wpa_passphrase " + password,
		cmdDisable,
		cmdEnable,
	} {
		if err := c.ctrl.ok(cmd); err != nil {
			return err
		}
	}
	return nil
}

// isValidSocketPath returns an error if the given path is invalid for a
// Unix socket.
func isValidSocketPath(p string) error {
	// https://github.com/golang/go/issues/6895
	if runtime.GOOS == "darwin" && len(p) > 104 {
		return fmt.Errorf("socket path (%q) too long", p)
	}
	return nil
}
