package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gizmo-platform/copter/pkg/flight"
)

// Metrics binds the registry as well as the metrics collection.  It
// watches the flight controller as an Observer.
type Metrics struct {
	flight.ObserverBase

	l hclog.Logger
	r *prometheus.Registry
	s *http.Server

	controllerState *prometheus.GaugeVec
	controllerTask  *prometheus.GaugeVec
	dispatches      *prometheus.CounterVec
	bringUps        *prometheus.CounterVec
	stopRequests    prometheus.Counter
	taskDuration    *prometheus.HistogramVec
	sensorReadings  *prometheus.CounterVec

	mu        sync.Mutex
	lastState string
	lastTask  string
	started   map[string]time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// Option provides a configuration framework to setup the metrics
// package.
type Option func(m *Metrics)
