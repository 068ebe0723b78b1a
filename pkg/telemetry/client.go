// Package telemetry connects the aircraft to the MQTT broker.  Sensor
// readings arrive on it and the controller status is published back
// out.
package telemetry

import (
	"encoding/json"
	"errors"
	"path"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/hashicorp/go-hclog"

	"github.com/gizmo-platform/copter/pkg/flight"
)

// ErrNotConnected is returned when subscribing before Connect.
var ErrNotConnected = errors.New("not connected to broker")

// StatusSource provides the status that gets published.
type StatusSource interface {
	Snapshot() flight.Status
	Readings() flight.Readings
}

// Report is the message published on the status topic.
type Report struct {
	flight.Status
	flight.Readings
}

// Client subscribes to sensor topics and publishes status.
type Client struct {
	l hclog.Logger
	m mqtt.Client

	addr     string
	prefix   string
	clientID string
	retries  uint64

	// subs remembers every sensor subscription so that they can be
	// made again when the broker connection is re-established.
	subMutex sync.Mutex
	subs     map[string]mqtt.MessageHandler

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New configures and returns a client.  It does not connect.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		l:        hclog.NewNullLogger(),
		addr:     "mqtt://127.0.0.1:1883",
		prefix:   "copter",
		clientID: "copter",
		retries:  3,
		subs:     make(map[string]mqtt.MessageHandler),
		stop:     make(chan struct{}),
	}

	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}

	if c.m == nil {
		copts := mqtt.NewClientOptions().
			AddBroker(c.addr).
			SetAutoReconnect(true).
			SetClientID(c.clientID).
			SetConnectRetry(true).
			SetConnectTimeout(time.Second).
			SetConnectRetryInterval(time.Second).
			SetMaxReconnectInterval(5 * time.Second).
			SetOnConnectHandler(c.onConnect).
			SetConnectionLostHandler(c.onConnectionLost)
		c.m = mqtt.NewClient(copts)
	}
	return c, nil
}

// Connect dials the broker.
func (c *Client) Connect() error {
	if tok := c.m.Connect(); tok.Wait() && tok.Error() != nil {
		c.l.Error("Error connecting to broker", "error", tok.Error())
		return tok.Error()
	}
	c.l.Info("Connected to broker", "broker", c.addr)
	return nil
}

// Topic returns the full topic for the given path elements.
func (c *Client) Topic(elem ...string) string {
	return path.Join(append([]string{c.prefix}, elem...)...)
}

// Subscribe routes the payloads of a sensor topic to h.  It retries
// with an exponential backoff, but gives up eventually so that the
// caller can decide whether the sensor is required.
func (c *Client) Subscribe(sensor string, h func([]byte)) error {
	if !c.m.IsConnected() {
		return ErrNotConnected
	}
	topic := c.Topic("sensors", sensor)
	handler := func(_ mqtt.Client, msg mqtt.Message) { h(msg.Payload()) }

	subFunc := func() error {
		if tok := c.m.Subscribe(topic, 0, handler); tok.Wait() && tok.Error() != nil {
			c.l.Warn("Error subscribing to topic", "topic", topic, "error", tok.Error())
			return tok.Error()
		}
		c.l.Info("Subscribed to topic", "topic", topic)
		return nil
	}
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries)
	if err := backoff.Retry(subFunc, b); err != nil {
		c.l.Error("Permanent error encountered while subscribing", "topic", topic, "error", err)
		return err
	}

	c.subMutex.Lock()
	c.subs[topic] = handler
	c.subMutex.Unlock()
	return nil
}

// onConnect runs on every connection to the broker.  The session is
// clean, so the broker has forgotten the subscriptions of any earlier
// connection and they are made again here.
func (c *Client) onConnect(m mqtt.Client) {
	c.subMutex.Lock()
	subs := make(map[string]mqtt.MessageHandler, len(c.subs))
	for t, h := range c.subs {
		subs[t] = h
	}
	c.subMutex.Unlock()

	for topic, h := range subs {
		if tok := m.Subscribe(topic, 0, h); tok.Wait() && tok.Error() != nil {
			c.l.Error("Error resubscribing to topic", "topic", topic, "error", tok.Error())
			continue
		}
		c.l.Info("Resubscribed to topic", "topic", topic)
	}
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.l.Warn("Lost connection to broker", "error", err)
}

// PublishStatus publishes a single status message.
func (c *Client) PublishStatus(r Report) error {
	bytes, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if tok := c.m.Publish(c.Topic("status"), 0, true, bytes); tok.Wait() && tok.Error() != nil {
		return tok.Error()
	}
	return nil
}

// StartStatusPublisher publishes the status of src every rate until
// Stop is called.
func (c *Client) StartStatusPublisher(rate time.Duration, src StatusSource) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		t := time.NewTicker(rate)
		defer t.Stop()
		for {
			select {
			case <-c.stop:
				c.l.Debug("Status publisher shutting down")
				return
			case <-t.C:
				r := Report{Status: src.Snapshot(), Readings: src.Readings()}
				if err := c.PublishStatus(r); err != nil {
					c.l.Warn("Error publishing status", "error", err)
				}
			}
		}
	}()
}

// Stop halts the publishers and disconnects from the broker.
func (c *Client) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
	if c.m.IsConnected() {
		c.m.Disconnect(250)
	}
}
