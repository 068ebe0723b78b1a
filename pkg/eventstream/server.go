// Package eventstream relays flight controller events to websocket
// clients.
package eventstream

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/hashicorp/go-hclog"
)

// EventStream binds all the components of the event streaming server.
// It is a flight.Observer, so everything the controller does is
// relayed to the connected websockets.
type EventStream struct {
	l hclog.Logger

	backlog      int
	writeTimeout time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}

	// state is the most recent state event, sent to each client as
	// it connects so that it does not start out blind.
	state []byte
}

type client struct {
	msgs chan []byte
	conn *websocket.Conn
	once sync.Once
}

// kick disconnects a client that cannot keep up.
func (c *client) kick() {
	c.once.Do(func() {
		c.conn.Close(websocket.StatusPolicyViolation, "too slow to keep up with events")
	})
}

// New returns an event stream with no subscribers.
func New(l hclog.Logger) *EventStream {
	return &EventStream{
		l:            l.Named("eventstream"),
		backlog:      16,
		writeTimeout: 5 * time.Second,
		clients:      make(map[*client]struct{}),
	}
}

// Subscribers returns the number of connected subscribers.
func (es *EventStream) Subscribers() int {
	es.mu.Lock()
	defer es.mu.Unlock()
	return len(es.clients)
}

// Handler upgrades the request to a websocket and streams events to
// it until the client goes away.
func (es *EventStream) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		es.l.Warn("Could not accept subscriber", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.CloseNow()

	c := &client{msgs: make(chan []byte, es.backlog), conn: conn}
	es.join(c)
	defer es.leave(c)
	es.l.Debug("Subscriber connected", "remote", r.RemoteAddr)

	err = es.pump(conn.CloseRead(context.Background()), c)
	switch {
	case errors.Is(err, context.Canceled):
	case websocket.CloseStatus(err) == websocket.StatusNormalClosure:
	case websocket.CloseStatus(err) == websocket.StatusGoingAway:
	default:
		es.l.Warn("Subscriber dropped", "remote", r.RemoteAddr, "error", err)
	}
}

// pump writes queued events to the client.  It only returns with an
// error.
func (es *EventStream) pump(ctx context.Context, c *client) error {
	for {
		select {
		case msg := <-c.msgs:
			wctx, cancel := context.WithTimeout(ctx, es.writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (es *EventStream) join(c *client) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.state != nil {
		c.msgs <- es.state
	}
	es.clients[c] = struct{}{}
}

func (es *EventStream) leave(c *client) {
	es.mu.Lock()
	defer es.mu.Unlock()
	delete(es.clients, c)
}

// publish queues msg for every client without blocking.  A client
// whose queue is full is disconnected.  Retained messages replace
// the state sent to new clients.
func (es *EventStream) publish(msg []byte, retain bool) {
	es.mu.Lock()
	defer es.mu.Unlock()

	if retain {
		es.state = msg
	}
	for c := range es.clients {
		select {
		case c.msgs <- msg:
		default:
			go c.kick()
		}
	}
}
