package wpatest

import (
	"fmt"
	"net"
	"sync"
)

// NewServer creates a mock control interface listening on sockPath.
func NewServer(sockPath string) (*Server, error) {
	sockAddr, err := net.ResolveUnixAddr("unixgram", sockPath)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUnixgram("unixgram", sockAddr)
	if err != nil {
		return nil, err
	}

	return &Server{
		Addr: sockAddr.String(),
		conn: conn,
		buf:  make([]byte, 512),
	}, nil
}

// Server mocks a wpa_supplicant or hostapd control socket.
type Server struct {
	Addr string
	conn *net.UnixConn
	buf  []byte

	mu     sync.Mutex
	closed bool
}

// Close the socket.
func (s *Server) Close() error {
	s.mu.Lock()
	alreadyClosed := s.closed
	s.closed = true
	s.mu.Unlock()
	if alreadyClosed {
		return nil
	}
	return s.conn.Close()
}

func (s *Server) writeTo(msg string, addr net.Addr) error {
	if _, err := s.conn.WriteTo([]byte(msg), addr); err != nil {
		return fmt.Errorf("WriteTo(%q) err: %w", msg, err)
	}
	return nil
}

// Serve uses the handler to serve requests. This method
// blocks until the server is closed or an error is encountered.
func (s *Server) Serve(handler *Handler) error {
	for {
		n, raddr, err := s.conn.ReadFrom(s.buf)
		if err != nil {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.closed {
				return nil
			}
			return err
		}
		msg := string(s.buf[:n])

		handler.handleMessage(msg)

		var (
			resp string
			ok   bool
		)
		switch msg {
		case "PING":
			if !handler.handlePing() {
				continue
			}
			resp, ok = "PONG", true

		case "STATUS":
			var status StatusResp
			if status, ok = handler.handleStatus(); ok {
				resp = status.encode()
			}

		case "SCAN_RESULTS":
			var results []ScanResp
			if results, ok = handler.handleScanResults(); ok {
				resp = encodeScanResults(results)
			}

		default:
			if resp, ok = handler.handleReply(msg); !ok {
				resp, ok = handler.handleUndef(msg)
			}
		}
		if !ok {
			resp = "UNKNOWN COMMAND\n"
		}
		if err := s.writeTo(resp, raddr); err != nil {
			return err
		}
	}
}
