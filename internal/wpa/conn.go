package wpa

import (
	"net"
	"os"
	"time"
)

// newUnixSocketConn dials the control socket at remotePath from a local
// datagram socket bound at localPath.
func newUnixSocketConn(localPath, remotePath string) (*conn, error) {
	laddr, err := net.ResolveUnixAddr("unixgram", localPath)
	if err != nil {
		return nil, err
	}

	raddr, err := net.ResolveUnixAddr("unixgram", remotePath)
	if err != nil {
		return nil, err
	}

	// A stale socket file from a previous run blocks the bind.
	_ = os.Remove(localPath)

	c, err := net.DialUnix("unixgram", laddr, raddr)
	if err != nil {
		return nil, err
	}

	return &conn{
		localSock: laddr.String(),
		UnixConn:  c,
	}, nil
}

// conn is a connection to a control interface socket.
type conn struct {
	localSock string
	*net.UnixConn
}

func (c *conn) setReadDeadline(timeout time.Duration) error {
	return c.SetReadDeadline(time.Now().Add(timeout))
}

func (c *conn) setWriteDeadline(timeout time.Duration) error {
	return c.SetWriteDeadline(time.Now().Add(timeout))
}

// Close closes the connection and deletes the local
// socket file.
func (c *conn) Close() error {
	cErr := c.UnixConn.Close()
	fErr := os.Remove(c.localSock)

	if cErr != nil {
		return cErr
	}
	return fErr
}
