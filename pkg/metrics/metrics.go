// Package metrics exports the state of the flight controller to
// prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gizmo-platform/copter/pkg/flight"
	"github.com/gizmo-platform/copter/pkg/sensors"
)

// New returns an initialized instance of the metrics system.
func New(opts ...Option) *Metrics {
	x := &Metrics{
		l:       hclog.NewNullLogger(),
		r:       prometheus.NewRegistry(),
		s:       &http.Server{},
		started: make(map[string]time.Time),
		stop:    make(chan struct{}),

		controllerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "copter",
			Subsystem: "controller",
			Name:      "state",
			Help:      "Current controller state, 1 for the active state.",
		}, []string{"state"}),

		controllerTask: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "copter",
			Subsystem: "controller",
			Name:      "task",
			Help:      "Task that currently owns the aircraft, 1 for the active task.",
		}, []string{"task"}),

		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "copter",
			Name:      "dispatch_total",
			Help:      "Dispatch attempts by task and result.",
		}, []string{"task", "result"}),

		bringUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "copter",
			Name:      "bringup_attempts_total",
			Help:      "Attempts to initialise each component.",
		}, []string{"component", "result"}),

		stopRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "copter",
			Name:      "stop_requests_total",
			Help:      "Number of times a stop has been requested.",
		}),

		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "copter",
			Name:      "task_duration_seconds",
			Help:      "How long each task held the aircraft.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"task"}),

		sensorReadings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "copter",
			Name:      "sensor_readings_total",
			Help:      "Readings received from each sensor feed.",
		}, []string{"sensor"}),
	}

	x.r.MustRegister(x.controllerState)
	x.r.MustRegister(x.controllerTask)
	x.r.MustRegister(x.dispatches)
	x.r.MustRegister(x.bringUps)
	x.r.MustRegister(x.stopRequests)
	x.r.MustRegister(x.taskDuration)
	x.r.MustRegister(x.sensorReadings)

	for _, o := range opts {
		o(x)
	}

	return x
}

// BuiltinWebserver runs the metrics webserver when nothing else does.
func (m *Metrics) BuiltinWebserver(bind string) error {
	m.s.Addr = bind
	mux := &http.ServeMux{}
	mux.Handle("/metrics", m.Handler())
	m.s.Handler = mux
	go func() {
		<-m.stop
		m.s.Shutdown(context.Background())
	}()

	m.l.Info("Metrics webserver starting", "bind", bind)
	if err := m.s.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.r, promhttp.HandlerOpts{Registry: m.r})
}

// Registry provides access to the registry that this instance
// manages.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.r
}

// Shutdown stops the builtin webserver if it is running.
func (m *Metrics) Shutdown() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// StateChanged moves the state and task gauges.
func (m *Metrics) StateChanged(s flight.State, id flight.TaskID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastState != "" {
		m.controllerState.With(prometheus.Labels{"state": m.lastState}).Set(0)
	}
	m.lastState = s.String()
	m.controllerState.With(prometheus.Labels{"state": m.lastState}).Set(1)

	if m.lastTask != "" {
		m.controllerTask.With(prometheus.Labels{"task": m.lastTask}).Set(0)
	}
	m.lastTask = id.String()
	m.controllerTask.With(prometheus.Labels{"task": m.lastTask}).Set(1)
}

// TaskStarted counts an accepted dispatch.
func (m *Metrics) TaskStarted(id flight.TaskID, runID string) {
	m.dispatches.With(prometheus.Labels{"task": id.String(), "result": "accepted"}).Inc()

	m.mu.Lock()
	m.started[runID] = time.Now()
	m.mu.Unlock()
}

// TaskEnded records how long the task ran for.
func (m *Metrics) TaskEnded(id flight.TaskID, runID string) {
	m.mu.Lock()
	start, ok := m.started[runID]
	delete(m.started, runID)
	m.mu.Unlock()

	if ok {
		m.taskDuration.With(prometheus.Labels{"task": id.String()}).Observe(time.Since(start).Seconds())
	}
}

// DispatchRejected counts a refused dispatch by its reason.
func (m *Metrics) DispatchRejected(id flight.TaskID, reason string) {
	m.dispatches.With(prometheus.Labels{"task": id.String(), "result": reason}).Inc()
}

// BringUpAttempt counts an attempt to initialise a component.
func (m *Metrics) BringUpAttempt(component string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.bringUps.With(prometheus.Labels{"component": component, "result": result}).Inc()
}

// StopRequested counts stop requests.
func (m *Metrics) StopRequested() {
	m.stopRequests.Inc()
}

// WrapFeed counts the readings that pass through a sensor feed.
func (m *Metrics) WrapFeed(f sensors.Feed) sensors.Feed {
	return countingFeed{m: m, f: f}
}

type countingFeed struct {
	m *Metrics
	f sensors.Feed
}

func (c countingFeed) Subscribe(sensor string, h func([]byte)) error {
	ctr := c.m.sensorReadings.With(prometheus.Labels{"sensor": sensor})
	return c.f.Subscribe(sensor, func(p []byte) {
		ctr.Inc()
		h(p)
	})
}
