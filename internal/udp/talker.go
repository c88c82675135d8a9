// Package udp exchanges short text datagrams with one fixed peer.
package udp

import (
	"bytes"
	"net/netip"
	"time"

	"go.uber.org/zap"
)

// MaxMessageLen bounds the size of a message. Messages of this length or
// longer are not sent.
const MaxMessageLen = 1024

const (
	defaultPollTimeout  = time.Millisecond
	defaultWriteTimeout = time.Second
)

// SendResult is the outcome of SendMessage.
type SendResult int8

const (
	SendCloseFailed SendResult = -3 // The datagram could not be transmitted.
	SendShortWrite  SendResult = -2 // The message did not fit the datagram.
	SendOpenFailed  SendResult = -1 // The datagram could not be started.
	SendTooLarge    SendResult = 0  // Not sent: MaxMessageLen or longer.
	SendOK          SendResult = 1
	SendNotReady    SendResult = 2 // Not sent: Init has not succeeded.
)

func (r SendResult) String() string {
	switch r {
	case SendCloseFailed:
		return "close-failed"
	case SendShortWrite:
		return "short-write"
	case SendOpenFailed:
		return "open-failed"
	case SendTooLarge:
		return "too-large"
	case SendOK:
		return "ok"
	case SendNotReady:
		return "not-ready"
	default:
		return "?"
	}
}

// RecvResult is the outcome of ReceiveMessage.
type RecvResult int8

const (
	RecvEmpty      RecvResult = -2 // A datagram arrived with no payload.
	RecvReadFailed RecvResult = -1
	RecvNone       RecvResult = 0 // Nothing pending; not an error.
	RecvOK         RecvResult = 1
	RecvNotReady   RecvResult = 2 // Init has not succeeded.
)

func (r RecvResult) String() string {
	switch r {
	case RecvEmpty:
		return "empty"
	case RecvReadFailed:
		return "read-failed"
	case RecvNone:
		return "none"
	case RecvOK:
		return "ok"
	case RecvNotReady:
		return "not-ready"
	default:
		return "?"
	}
}

// Opt is a configuration option for Talker.
type Opt func(*Talker)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Opt {
	return func(t *Talker) {
		t.logger = l
	}
}

// WithPollTimeout sets how long ReceiveMessage waits for a datagram.
func WithPollTimeout(d time.Duration) Opt {
	return func(t *Talker) {
		t.pollTimeout = d
	}
}

// New returns a Talker. It must be initialized with Init or InitAddr
// before use.
func New(opts ...Opt) *Talker {
	t := Talker{
		pollTimeout: defaultPollTimeout,
		buf:         make([]byte, MaxMessageLen),
	}
	for _, opt := range opts {
		opt(&t)
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	if t.listen == nil {
		t.listen = func(laddr netip.AddrPort) (packetConn, error) {
			return newUDPConn(laddr, t.pollTimeout, defaultWriteTimeout)
		}
	}
	return &t
}

// Talker sends messages to a peer and polls for incoming ones. It is not
// safe for concurrent use.
type Talker struct {
	logger      *zap.Logger
	pollTimeout time.Duration
	listen      func(netip.AddrPort) (packetConn, error)

	ready bool
	conn  packetConn
	peer  netip.AddrPort
	buf   []byte
}

// Init parses the local and peer addresses and binds to localIP on
// peerPort. It reports whether the Talker is ready.
func (t *Talker) Init(localIP, peerIP string, peerPort uint16) bool {
	local, err := netip.ParseAddr(localIP)
	if err != nil {
		t.logger.Warn("invalid local address", zap.String("addr", localIP), zap.Error(err))
		return false
	}
	peer, err := netip.ParseAddr(peerIP)
	if err != nil {
		t.logger.Warn("invalid peer address", zap.String("addr", peerIP), zap.Error(err))
		return false
	}
	return t.InitAddr(local, peer, peerPort)
}

// InitAddr is Init with parsed addresses.
func (t *Talker) InitAddr(local, peer netip.Addr, peerPort uint16) bool {
	if !local.IsValid() || !peer.IsValid() || peerPort == 0 {
		t.logger.Warn("invalid endpoint", zap.Stringer("local", local), zap.Stringer("peer", peer), zap.Uint16("port", peerPort))
		return false
	}
	t.Stop()

	laddr := netip.AddrPortFrom(local, peerPort)
	conn, err := t.listen(laddr)
	if err != nil {
		t.logger.Warn("unable to bind", zap.Stringer("addr", laddr), zap.Error(err))
		return false
	}
	t.conn = conn
	t.peer = netip.AddrPortFrom(peer, peerPort)
	t.ready = true
	t.logger.Debug("datagram channel ready", zap.Stringer("local", laddr), zap.Stringer("peer", t.peer))
	return true
}

// Ready reports whether Init succeeded and Stop has not been called since.
func (t *Talker) Ready() bool {
	return t.ready
}

// SendMessage sends msg to the peer as one datagram.
func (t *Talker) SendMessage(msg string) SendResult {
	if !t.ready {
		return SendNotReady
	}
	if len(msg) >= MaxMessageLen {
		return SendTooLarge
	}
	n := copy(t.buf, msg)
	defer clear(t.buf[:n])

	if err := t.conn.beginPacket(t.peer); err != nil {
		t.logger.Debug("begin packet failed", zap.Error(err))
		return SendOpenFailed
	}
	if w, err := t.conn.write(t.buf[:n]); err != nil || w != n {
		t.logger.Debug("short write", zap.Int("written", w), zap.Int("len", n), zap.Error(err))
		return SendShortWrite
	}
	if err := t.conn.endPacket(); err != nil {
		t.logger.Debug("end packet failed", zap.Error(err))
		return SendCloseFailed
	}
	return SendOK
}

// ReceiveMessage returns the next pending message without blocking
// longer than the poll timeout. The payload ends at the first NUL byte.
func (t *Talker) ReceiveMessage() (string, RecvResult) {
	if !t.ready {
		return "", RecvNotReady
	}
	ok, err := t.conn.parsePacket()
	if err != nil {
		t.logger.Debug("receive failed", zap.Error(err))
		return "", RecvReadFailed
	}
	if !ok {
		return "", RecvNone
	}

	n := t.conn.read(t.buf)
	defer clear(t.buf[:n])

	payload := t.buf[:n]
	if i := bytes.IndexByte(payload, 0); i >= 0 {
		payload = payload[:i]
	}
	if len(payload) == 0 {
		return "", RecvEmpty
	}
	return string(payload), RecvOK
}

// Stop closes the socket. The Talker can be initialized again.
func (t *Talker) Stop() {
	if t.conn != nil {
		if err := t.conn.Close(); err != nil {
			t.logger.Debug("close failed", zap.Error(err))
		}
	}
	t.conn = nil
	t.ready = false
}
