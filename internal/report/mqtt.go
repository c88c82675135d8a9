// Package report publishes the manager's state to an MQTT broker and
// receives credential updates from it.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	defaultPrefix = "wifi-manager"
)

// MQTT QoS Values.
const (
	qosAtMostOnce  = 0x00
	qosAtLeastOnce = 0x01
	qosExactlyOnce = 0x02
)

// MQTTOpts configures an MQTT instance.
type MQTTOpts struct {
	BrokerAddr         string // Required
	ClientID           string // Optional, derived from Name.
	Username, Password string // Optional

	Name        string // Required
	TopicPrefix string // Optional
}

// DefaultClientID returns a client ID that is stable for name, so a
// restarted manager resumes its broker session.
func DefaultClientID(name string) string {
	return "wifi-manager-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func NewMQTT(ctx context.Context, opts MQTTOpts) (*MQTT, error) {
	if opts.Name == "" {
		return nil, errors.New("Name cannot be blank")
	}
	if opts.ClientID == "" {
		opts.ClientID = DefaultClientID(opts.Name)
	}

	topics := Topics{
		Name:   opts.Name,
		Prefix: opts.TopicPrefix,
	}
	if topics.Prefix == "" {
		topics.Prefix = defaultPrefix
	}

	connLostErrs := make(chan error, 1)

	o := mqtt.NewClientOptions()
	o.AddBroker(opts.BrokerAddr)
	o.SetClientID(opts.ClientID)
	o.SetCleanSession(false)
	o.SetConnectRetry(false)  // Abort only.
	o.SetAutoReconnect(false) // Abort only.
	o.SetKeepAlive(2 * time.Minute)
	if opts.Username != "" || opts.Password != "" {
		o.SetCredentialsProvider(mqtt.CredentialsProvider(func() (username string, password string) {
			return opts.Username, opts.Password
		}))
	}
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		err = fmt.Errorf("MQTT connection lost: %w", err)
		select {
		case connLostErrs <- err:
		default:
		}
	})

	o.SetWill(topics.Will(), StatusOffline, qosAtLeastOnce, true)

	c := mqtt.NewClient(o)
	tkn := c.Connect()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("timeout waiting for MQTT Connect: %w", ctx.Err())
	case <-tkn.Done():
		if err := tkn.Error(); err != nil {
			return nil, fmt.Errorf("MQTT Connect error: %w", err)
		}
	}

	return &MQTT{
		c:            c,
		connLostErrs: connLostErrs,
		topics:       &topics,
	}, nil
}

// MQTT is a connected reporter.
type MQTT struct {
	c            mqtt.Client
	connLostErrs <-chan error

	topics *Topics
}

// OnConnectionLost blocks until the broker connection drops, returning
// the cause, or until ctx is done.
func (m *MQTT) OnConnectionLost(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-m.connLostErrs:
		return err
	}
}

// Close the MQTT connection.
func (m *MQTT) Close() {
	m.c.Disconnect(2500)
}

// StatusOnline publishes that the manager is online using
// the same topic as the will.
func (m *MQTT) StatusOnline(ctx context.Context) error {
	return m.publishStatus(ctx, StatusOnline)
}

// StatusOffline publishes that the manager is offline using
// the same topic as the will.
func (m *MQTT) StatusOffline(ctx context.Context) error {
	return m.publishStatus(ctx, StatusOffline)
}

func (m *MQTT) publishStatus(ctx context.Context, status string) error {
	tkn := m.c.Publish(m.topics.Will(), qosExactlyOnce, true, status)
	return tokenWait(ctx, tkn, "publish status")
}

// PublishSnapshot publishes s as retained JSON.
func (m *MQTT) PublishSnapshot(ctx context.Context, s Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}

	tkn := m.c.Publish(m.topics.Snapshot(), qosAtLeastOnce, true, payload)
	return tokenWait(ctx, tkn, "publish snapshot")
}

// PublishDatagram forwards a received datagram. Datagrams are not
// retained.
func (m *MQTT) PublishDatagram(ctx context.Context, d Datagram) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}

	tkn := m.c.Publish(m.topics.Datagram(), qosAtMostOnce, false, payload)
	return tokenWait(ctx, tkn, "publish datagram")
}

// ConfigTopic is the MQTT topic that SubscribeConfig will listen to.
func (m *MQTT) ConfigTopic() string {
	return m.topics.Config()
}

// SubscribeConfig registers the callback to receive configuration messages.
// The method blocks until either the provided context is cancelled, an error occurs,
// or the callback function returns a non-nil error.
func (m *MQTT) SubscribeConfig(ctx context.Context, cb func(retained bool, cfg Configuration) error) error {
	errs := make(chan error, 1)
	onError := func(err error) {
		select {
		case errs <- err:
		case <-ctx.Done():
		}
	}

	topic := m.topics.Config()
	tkn := m.c.Subscribe(topic, qosExactlyOnce, func(_ mqtt.Client, msg mqtt.Message) {
		defer msg.Ack()

		var cfg Configuration
		if err := json.Unmarshal(msg.Payload(), &cfg); err != nil {
			onError(fmt.Errorf("unable to decode %q message: %w", msg.Topic(), err))
			return
		}

		if err := cb(msg.Retained(), cfg); err != nil {
			onError(err)
		}
	})

	if err := tokenWait(ctx, tkn, "subscribe config"); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return tokenWait(ctx, m.c.Unsubscribe(topic), "unsubscribe config")

	case err := <-errs:
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = tokenWait(ctx, m.c.Unsubscribe(topic), "") // Best effort attempt at unsubscribing.
		return err
	}
}

// tokenWait waits for an MQTT token to complete, otherwise returning an error.
func tokenWait(ctx context.Context, tkn mqtt.Token, description string) error {
	select {
	case <-tkn.Done():
		if err := tkn.Error(); err != nil {
			return fmt.Errorf("mqtt token error (%s): %w", description, err)
		}
	case <-ctx.Done():
		return fmt.Errorf("mqtt cancelled waiting for token completion (%s): %w", description, ctx.Err())
	case <-time.After(time.Second):
		return fmt.Errorf("mqtt timeout waiting for token completion (%s)", description)
	}
	return nil
}
