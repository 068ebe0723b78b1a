package telemetry

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/gizmo-platform/copter/pkg/flight"
)

type token struct{ err error }

func (t *token) Wait() bool                     { return true }
func (t *token) WaitTimeout(time.Duration) bool { return true }
func (t *token) Error() error                   { return t.err }

func (t *token) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

type message struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m *message) Topic() string   { return m.topic }
func (m *message) Payload() []byte { return m.payload }

// broker is an in-memory mqtt.Client.
type broker struct {
	mqtt.Client

	mu        sync.Mutex
	connected bool
	subErr    error
	subs      map[string]mqtt.MessageHandler
	published map[string][]byte
}

func newBroker() *broker {
	return &broker{
		subs:      make(map[string]mqtt.MessageHandler),
		published: make(map[string][]byte),
	}
}

func (b *broker) Connect() mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	return &token{}
}

func (b *broker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *broker) Disconnect(uint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
}

func (b *broker) Subscribe(topic string, _ byte, h mqtt.MessageHandler) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subErr != nil {
		return &token{err: b.subErr}
	}
	b.subs[topic] = h
	return &token{}
}

func (b *broker) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[topic] = payload.([]byte)
	return &token{}
}

func (b *broker) deliver(topic string, payload []byte) {
	b.mu.Lock()
	h := b.subs[topic]
	b.mu.Unlock()
	if h != nil {
		h(b, &message{topic: topic, payload: payload})
	}
}

func (b *broker) last(topic string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[topic]
}

func TestSubscribeRoutesSensorTopics(t *testing.T) {
	b := newBroker()
	c, err := New(WithMQTTClient(b), WithTopicPrefix("/drone1/"))
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Subscribe("gps", func([]byte) {}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("subscribe before connect: %v", err)
	}
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}

	var got []byte
	if err := c.Subscribe("gps", func(p []byte) { got = p }); err != nil {
		t.Fatal(err)
	}
	b.deliver("drone1/sensors/gps", []byte(`{"lat":1}`))
	if string(got) != `{"lat":1}` {
		t.Errorf("handler got %q", got)
	}
}

func (b *broker) forget() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string]mqtt.MessageHandler)
}

func TestSubscriptionsRestoredOnConnect(t *testing.T) {
	b := newBroker()
	c, _ := New(WithMQTTClient(b))
	c.Connect()

	var gps, imu []byte
	c.Subscribe("gps", func(p []byte) { gps = p })
	c.Subscribe("imu", func(p []byte) { imu = p })

	// A clean session reconnect leaves the broker with no
	// subscriptions for us.
	b.forget()
	c.onConnect(b)

	b.deliver("copter/sensors/gps", []byte("fix"))
	b.deliver("copter/sensors/imu", []byte("attitude"))
	if string(gps) != "fix" || string(imu) != "attitude" {
		t.Errorf("after reconnect gps=%q imu=%q", gps, imu)
	}
}

func TestFailedSubscriptionNotRestored(t *testing.T) {
	b := newBroker()
	b.subErr = errors.New("not authorised")
	c, _ := New(WithMQTTClient(b), WithSubscribeRetries(0))
	c.Connect()
	c.Subscribe("lidar", func([]byte) {})

	b.subErr = nil
	c.onConnect(b)
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subs) != 0 {
		t.Errorf("restored %d subscriptions that never succeeded", len(b.subs))
	}
}

func TestSubscribeGivesUp(t *testing.T) {
	b := newBroker()
	b.subErr = errors.New("not authorised")
	c, _ := New(WithMQTTClient(b), WithSubscribeRetries(0))
	c.Connect()

	if err := c.Subscribe("imu", func([]byte) {}); err == nil {
		t.Fatal("subscribe succeeded")
	}
}

func TestEmptyPrefixRejected(t *testing.T) {
	if _, err := New(WithMQTTClient(newBroker()), WithTopicPrefix("/")); err == nil {
		t.Error("accepted an empty prefix")
	}
}

type staticStatus struct {
	status   flight.Status
	readings flight.Readings
}

func (s staticStatus) Snapshot() flight.Status   { return s.status }
func (s staticStatus) Readings() flight.Readings { return s.readings }

func TestStatusPublisher(t *testing.T) {
	b := newBroker()
	c, _ := New(WithMQTTClient(b))
	c.Connect()

	rng := 2.5
	c.StartStatusPublisher(time.Millisecond, staticStatus{
		status:   flight.Status{State: flight.StateWaypointsMoving, Task: flight.TaskWaypoints},
		readings: flight.Readings{Fix: &flight.Fix{Speed: 3}, Range: &rng},
	})

	deadline := time.Now().Add(2 * time.Second)
	for b.last("copter/status") == nil {
		if time.Now().After(deadline) {
			t.Fatal("status never published")
		}
		time.Sleep(time.Millisecond)
	}
	c.Stop()

	var s map[string]any
	if err := json.Unmarshal(b.last("copter/status"), &s); err != nil {
		t.Fatal(err)
	}
	if s["task"] != flight.TaskWaypoints.String() || s["range"] != 2.5 {
		t.Errorf("published %v", s)
	}
	if fix, ok := s["fix"].(map[string]any); !ok || fix["speed"] != 3.0 {
		t.Errorf("published fix %v", s["fix"])
	}
	if _, ok := s["orientation"]; ok {
		t.Error("published an orientation with no IMU")
	}
	if b.IsConnected() {
		t.Error("Stop left the client connected")
	}
}
