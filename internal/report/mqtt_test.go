package report

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"testing"
	"time"
)

var mqttAddr = flag.String("mqttAddr", "", "MQTT broker address")

func TestMQTTSubscribeConfig(t *testing.T) {
	expected := Configuration{
		SSID:     fmt.Sprintf("test-%d", time.Now().UnixNano()),
		Password: "secret99",
		Hostname: "esp-kitchen",
	}

	var (
		publishErr   = make(chan error, 1)
		subscribeErr = make(chan error, 1)
		c            = mqttClient(t)
		received     = make(chan Configuration, 1)
		ctx, cancel  = context.WithCancel(context.Background())
	)
	defer cancel()

	go func() {
		b, _ := json.Marshal(expected)

		tkn := c.c.Publish(c.topics.Config(), qosExactlyOnce, true, b)
		tkn.WaitTimeout(time.Second)
		publishErr <- tkn.Error()
	}()

	go func() {
		subscribeErr <- c.SubscribeConfig(ctx, func(retained bool, cfg Configuration) error {
			// Ignore messages from previous test runs (if any).
			if !retained {
				received <- cfg
			}
			return nil
		})
	}()

	select {
	case err := <-publishErr:
		if err != nil {
			t.Fatalf("Publish() error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for publish")
	}

	select {
	case err := <-subscribeErr:
		if err != nil {
			t.Fatalf("SubscribeConfig() error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting config")
	case got := <-received:
		if got != expected {
			t.Fatalf("got %+v; want %+v", got, expected)
		}
	}
}

func TestMQTTSubscribeConfig_CallbackErr(t *testing.T) {
	var (
		publishErr   = make(chan error, 1)
		subscribeErr = make(chan error, 1)
		expectedErr  = errors.New("oh no!")
		c            = mqttClient(t)
		ctx, cancel  = context.WithCancel(context.Background())
	)
	defer cancel()

	go func() {
		b, _ := json.Marshal(Configuration{SSID: fmt.Sprintf("test-%d", time.Now().UnixNano())})

		tkn := c.c.Publish(c.topics.Config(), qosExactlyOnce, true, b)
		tkn.WaitTimeout(time.Second)
		publishErr <- tkn.Error()
	}()

	go func() {
		subscribeErr <- c.SubscribeConfig(ctx, func(retained bool, _ Configuration) error {
			if !retained {
				return expectedErr
			}
			return nil
		})
	}()

	select {
	case err := <-publishErr:
		if err != nil {
			t.Fatalf("Publish() error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for publish")
	}

	select {
	case err := <-subscribeErr:
		if err != expectedErr {
			t.Fatalf("SubscribeConfig() error = %v; want %v", err, expectedErr)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting expected error")
	}
}

func TestMQTTPublish(t *testing.T) {
	c := mqttClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.StatusOnline(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.PublishSnapshot(ctx, Snapshot{State: "check-connection", Time: "--:--"}); err != nil {
		t.Fatal(err)
	}
	if err := c.PublishDatagram(ctx, Datagram{Peer: "192.168.1.50:4210", Message: "ping"}); err != nil {
		t.Fatal(err)
	}
	if err := c.StatusOffline(ctx); err != nil {
		t.Fatal(err)
	}
}

func mqttClient(t *testing.T) *MQTT {
	t.Helper()
	if *mqttAddr == "" {
		t.Skip("skipping test that requires MQTT broker (set with mqttAddr flag)")
	}

	uid := fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano()/100)

	opts := MQTTOpts{
		BrokerAddr:  *mqttAddr,
		ClientID:    fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano()),
		Name:        uid,
		TopicPrefix: uid,
	}
	t.Logf("ClientID: %s", opts.ClientID)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c, err := NewMQTT(ctx, opts)
	if err != nil {
		t.Fatalf("NewMQTT() err: %v", err)
	}
	t.Cleanup(c.Close)

	return c
}
