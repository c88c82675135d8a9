package clock

import (
	"errors"
	"fmt"
	"time"

	"github.com/beevik/ntp"
	"go.uber.org/zap"
)

// Defaults for NTPClient.
const (
	DefaultNTPServer      = "ntp1.inrim.it"
	DefaultUpdateInterval = 30 * time.Second
	DefaultQueryTimeout   = time.Second
)

// QueryFunc returns the current UTC time according to server.
type QueryFunc func(server string) (time.Time, error)

// NTPOpt configures an NTPClient.
type NTPOpt func(*NTPClient)

// WithServer sets the NTP server host name.
func WithServer(server string) NTPOpt {
	return func(c *NTPClient) {
		if server != "" {
			c.server = server
		}
	}
}

// WithOffset sets the initial offset, in seconds, added to every epoch.
func WithOffset(seconds int) NTPOpt {
	return func(c *NTPClient) {
		c.offset = seconds
	}
}

// WithUpdateInterval sets the minimum time between two server queries.
func WithUpdateInterval(d time.Duration) NTPOpt {
	return func(c *NTPClient) {
		c.interval = d
	}
}

// WithQuery replaces the network query. Used by tests.
func WithQuery(q QueryFunc) NTPOpt {
	return func(c *NTPClient) {
		c.query = q
	}
}

// WithMonotonic sets the clock used to extrapolate between queries.
func WithMonotonic(m Monotonic) NTPOpt {
	return func(c *NTPClient) {
		c.clock = m
	}
}

// WithNTPLogger sets the logger.
func WithNTPLogger(l *zap.Logger) NTPOpt {
	return func(c *NTPClient) {
		c.logger = l
	}
}

// NewNTPClient returns an NTPClient. It does not touch the network until
// Begin and Update are called.
func NewNTPClient(opts ...NTPOpt) *NTPClient {
	c := NTPClient{
		server:   DefaultNTPServer,
		interval: DefaultUpdateInterval,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.query == nil {
		c.query = queryServer
	}
	if c.clock == nil {
		c.clock = NewSystem()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return &c
}

// NTPClient keeps the last time received from an NTP server and
// extrapolates it with a Monotonic clock between queries. All epochs it
// returns include the configured offset.
type NTPClient struct {
	server   string
	offset   int
	interval time.Duration
	query    QueryFunc
	clock    Monotonic
	logger   *zap.Logger

	started    bool
	synced     bool
	epoch      uint32 // UTC seconds at lastUpdate
	lastUpdate uint32 // Monotonic mark of the last successful query
}

// ErrNotStarted is returned by Update before Begin.
var ErrNotStarted = errors.New("ntp client not started")

// Begin enables network queries.
func (c *NTPClient) Begin() error {
	c.started = true
	return nil
}

// Update queries the server when the update interval has elapsed since
// the last successful query, or when no query has succeeded yet. It
// reports whether a query was made and succeeded.
func (c *NTPClient) Update() (bool, error) {
	if !c.started {
		return false, ErrNotStarted
	}
	if c.synced && time.Duration(Elapsed(c.clock.Millis(), c.lastUpdate))*time.Millisecond < c.interval {
		return false, nil
	}
	return c.ForceUpdate()
}

// ForceUpdate queries the server regardless of the update interval.
func (c *NTPClient) ForceUpdate() (bool, error) {
	now, err := c.query(c.server)
	if err != nil {
		return false, fmt.Errorf("ntp query %q: %w", c.server, err)
	}
	c.epoch = uint32(now.Unix())
	c.lastUpdate = c.clock.Millis()
	c.synced = true
	c.logger.Debug("ntp time updated", zap.String("server", c.server), zap.Uint32("epoch", c.epoch))
	return true, nil
}

// Epoch returns the current time in seconds, including the offset. It is
// zero plus the offset until a query succeeds.
func (c *NTPClient) Epoch() uint32 {
	elapsed := Elapsed(c.clock.Millis(), c.lastUpdate) / 1000
	if !c.synced {
		elapsed = 0
	}
	return uint32(int64(c.epoch) + int64(c.offset) + int64(elapsed))
}

// SetTimeOffset changes the offset, in seconds, added to every epoch.
func (c *NTPClient) SetTimeOffset(seconds int) {
	c.offset = seconds
}

// Synced reports whether a query has ever succeeded.
func (c *NTPClient) Synced() bool {
	return c.synced
}

func queryServer(server string) (time.Time, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: DefaultQueryTimeout})
	if err != nil {
		return time.Time{}, err
	}
	if err := resp.Validate(); err != nil {
		return time.Time{}, err
	}
	return time.Now().Add(resp.ClockOffset), nil
}
