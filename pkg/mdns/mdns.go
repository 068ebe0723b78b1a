// Package mdns advertises the control API on the local network so
// that ground stations can find the aircraft without knowing its
// address.
package mdns

import (
	"errors"
	"net"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-sockaddr"
	"github.com/hashicorp/mdns"

	"github.com/gizmo-platform/copter/pkg/buildinfo"
)

// ServiceName is the service type that the API is advertised as.
const ServiceName = "_copter._tcp"

// Server wraps the underlying mDNS implementation to provide a
// simplified interface.
type Server struct {
	*mdns.Server

	l        hclog.Logger
	instance string
	port     int
	ip       net.IP
}

// Option configures the advertisement.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l hclog.Logger) Option { return func(s *Server) { s.l = l.Named("mdns") } }

// WithInstance sets the instance name.  It defaults to the hostname.
func WithInstance(n string) Option { return func(s *Server) { s.instance = n } }

// WithPort sets the port of the control API.
func WithPort(p int) Option { return func(s *Server) { s.port = p } }

// WithIP pins the advertised address instead of using the first
// private address of the host.
func WithIP(ip net.IP) Option { return func(s *Server) { s.ip = ip } }

// NewServer starts answering queries for the control API.
func NewServer(opts ...Option) (*Server, error) {
	s := &Server{l: hclog.NewNullLogger(), port: 8080}
	for _, o := range opts {
		o(s)
	}

	service, err := s.service()
	if err != nil {
		return nil, err
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, err
	}
	s.Server = server
	s.l.Info("Advertising control API", "instance", s.instance, "port", s.port, "ip", s.ip)
	return s, nil
}

func (s *Server) service() (*mdns.MDNSService, error) {
	if s.instance == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, err
		}
		s.instance = h
	}
	if s.ip == nil {
		lAddr, err := sockaddr.GetPrivateIP()
		if err != nil {
			return nil, err
		}
		if lAddr == "" {
			return nil, errors.New("no private address to advertise")
		}
		s.ip = net.ParseIP(lAddr)
	}

	info := []string{"Copter control API", "version=" + buildinfo.Version}
	return mdns.NewMDNSService(s.instance, ServiceName, "", s.instance+".local.", s.port, []net.IP{s.ip}, info)
}
