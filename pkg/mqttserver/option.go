package mqttserver

import (
	"net"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Option enables variadic option passing to the server on startup.
type Option func(*Server) error

// WithLogger sets the logger for the server.
func WithLogger(l hclog.Logger) Option {
	return func(s *Server) error {
		s.l = l.Named("mqtt")
		return nil
	}
}

// WithTopicPrefix sets the prefix that the ACL is enforced under.
func WithTopicPrefix(p string) Option {
	return func(s *Server) error {
		s.prefix = strings.Trim(p, "/")
		return nil
	}
}

// WithTrustedNetwork grants full access to clients in the given CIDR
// block.
func WithTrustedNetwork(cidr string) Option {
	return func(s *Server) error {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			return err
		}
		s.trusted = append(s.trusted, n)
		return nil
	}
}

// WithStartupWG allows a waitgroup to be passed in so the server can
// notify when its finished startup tasks.
func WithStartupWG(w *sync.WaitGroup) Option {
	return func(s *Server) error {
		w.Add(1)
		s.swg = w
		return nil
	}
}
