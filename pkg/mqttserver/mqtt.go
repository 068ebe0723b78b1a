// Package mqttserver runs the broker that sensors and ground stations
// talk to the aircraft through.
package mqttserver

import (
	"net"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// Server binds the server's methods
type Server struct {
	l hclog.Logger
	s *mqtt.Server

	swg *sync.WaitGroup

	prefix  string
	trusted []*net.IPNet
}

// NewServer returns an mqtt broker ready to Serve.
func NewServer(opts ...Option) (*Server, error) {
	x := Server{
		l:      hclog.NewNullLogger(),
		s:      mqtt.New(&mqtt.Options{InlineClient: true}),
		prefix: "copter",
	}

	for _, o := range opts {
		if err := o(&x); err != nil {
			return nil, err
		}
	}
	if err := x.s.AddHook(newHook(x.l, x.prefix, x.trusted), nil); err != nil {
		return nil, err
	}
	return &x, nil
}

// Serve binds and serves mqtt on the bound socket.  An error will be
// returned if the server cannot initialize.
func (s *Server) Serve(bind string) error {
	s.l.Info("MQTT is starting", "bind", bind)
	l := listeners.NewTCP(listeners.Config{
		ID:      "tcp",
		Address: bind,
	})
	if err := s.s.AddListener(l); err != nil {
		return err
	}

	if s.swg != nil {
		s.swg.Done()
	}
	return s.s.Serve()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.l.Info("Stopping...")
	return s.s.Close()
}
