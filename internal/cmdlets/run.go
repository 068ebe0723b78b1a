package cmdlets

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gizmo-platform/copter/pkg/buildinfo"
	"github.com/gizmo-platform/copter/pkg/config"
	"github.com/gizmo-platform/copter/pkg/eventstream"
	"github.com/gizmo-platform/copter/pkg/flight"
	"github.com/gizmo-platform/copter/pkg/flightboard"
	"github.com/gizmo-platform/copter/pkg/gpio"
	"github.com/gizmo-platform/copter/pkg/http"
	"github.com/gizmo-platform/copter/pkg/mdns"
	"github.com/gizmo-platform/copter/pkg/metrics"
	"github.com/gizmo-platform/copter/pkg/mqttserver"
	"github.com/gizmo-platform/copter/pkg/navigation"
	"github.com/gizmo-platform/copter/pkg/sensors"
	"github.com/gizmo-platform/copter/pkg/tasks"
	"github.com/gizmo-platform/copter/pkg/telemetry"
)

var (
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the flight controller",
		Long:  runCmdLongDocs,
		RunE:  runCmdRun,
	}

	runCmdLongDocs = `The run command is the long lived process on the aircraft.  It brings up the flight board, the sensors, and the buzzer, waits for a GPS fix, and then serves the control API until it is told to shut down.  Bring-up will not complete without a fix, so run this with the aircraft somewhere it can see the sky.`

	configPath string
)

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to the config file")
	rootCmd.AddCommand(runCmd)
}

func runCmdRun(c *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	initLogger("copter")
	appLogger.Info("Starting", "version", buildinfo.Summary())

	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.Error("Error loading config", "error", err)
		return err
	}

	m := metrics.New(metrics.WithLogger(appLogger))
	es := eventstream.New(appLogger)
	wg := new(sync.WaitGroup)

	var broker *mqttserver.Server
	if cfg.Telemetry.Embedded {
		bopts := []mqttserver.Option{
			mqttserver.WithLogger(appLogger),
			mqttserver.WithTopicPrefix(cfg.Telemetry.TopicPrefix),
			mqttserver.WithStartupWG(wg),
		}
		for _, n := range cfg.Telemetry.Trusted {
			bopts = append(bopts, mqttserver.WithTrustedNetwork(n))
		}
		broker, err = mqttserver.NewServer(bopts...)
		if err != nil {
			appLogger.Error("Error initializing broker", "error", err)
			return err
		}
		if err := broker.Serve(cfg.Telemetry.Bind); err != nil {
			appLogger.Error("Error starting broker", "error", err)
			return err
		}
		defer broker.Shutdown()
	}

	tc, err := telemetry.New(
		telemetry.WithLogger(appLogger),
		telemetry.WithMQTTServer(cfg.Telemetry.Broker),
		telemetry.WithTopicPrefix(cfg.Telemetry.TopicPrefix),
		telemetry.WithClientID(clientID()),
	)
	if err != nil {
		appLogger.Error("Error initializing telemetry", "error", err)
		return err
	}
	if err := connect(ctx, tc); err != nil {
		return err
	}
	defer tc.Stop()

	feed := m.WrapFeed(tc)
	sensorOpts := []sensors.Option{
		sensors.WithLogger(appLogger),
		sensors.WithFeed(feed),
		sensors.WithFixTimeout(cfg.Telemetry.FixTimeout),
	}

	var (
		board  *flightboard.Board
		buzzer *gpio.Buzzer
	)
	defer func() {
		if board != nil {
			board.Close()
		}
		if buzzer != nil {
			buzzer.Close()
		}
	}()

	fopts := []flight.Option{
		flight.WithLogger(appLogger),
		flight.WithRetries(cfg.BringUp.Retries),
		flight.WithRetryInterval(cfg.BringUp.Interval),
		flight.WithQuantum(cfg.Controller.Quantum),
		flight.WithReapTimeout(cfg.Controller.ReapTimeout),
		flight.WithObserver(m),
		flight.WithObserver(es),
		flight.WithActuator(func() (flight.Actuator, error) {
			b, err := flightboard.New(
				flightboard.WithLogger(appLogger),
				flightboard.WithPortName(cfg.Board.Port),
				flightboard.WithBaudRate(cfg.Board.Baud),
				flightboard.WithUSBID(cfg.Board.VID, cfg.Board.PID),
				flightboard.WithRate(cfg.Board.Rate),
				flightboard.WithHeartbeatTimeout(cfg.Board.HeartbeatTimeout),
			)
			if err != nil {
				return nil, err
			}
			board = b
			return b, nil
		}),
		flight.WithPositionSource(func() (flight.PositionSource, error) {
			g, err := sensors.NewGPS(sensorOpts...)
			if err != nil {
				return nil, err
			}
			return g, nil
		}),
	}

	if cfg.Telemetry.IMU {
		fopts = append(fopts, flight.WithOrientationSource(func() (flight.OrientationSource, error) {
			i, err := sensors.NewIMU(sensorOpts...)
			if err != nil {
				return nil, err
			}
			return i, nil
		}))
	}
	if cfg.Telemetry.Lidar {
		fopts = append(fopts, flight.WithRangeSource(func() (flight.RangeSource, error) {
			l, err := sensors.NewLidar(sensorOpts...)
			if err != nil {
				return nil, err
			}
			return l, nil
		}))
	}
	if cfg.GPIO.Buzzer != "" {
		fopts = append(fopts, flight.WithSignaller(func() (flight.Signaller, error) {
			b, err := gpio.NewBuzzer(cfg.GPIO.Buzzer, gpio.WithBuzzerLogger(appLogger))
			if err != nil {
				return nil, err
			}
			buzzer = b
			return b, nil
		}))
	}
	if cfg.GPIO.Auth != "" {
		sw, err := gpio.NewAuthSwitch(cfg.GPIO.Auth)
		if err != nil {
			appLogger.Error("Error initializing auth switch", "pin", cfg.GPIO.Auth, "error", err)
			return err
		}
		fopts = append(fopts, flight.WithAuthorizer(sw))
	}

	ctl, err := flight.New(ctx, fopts...)
	if err != nil {
		appLogger.Error("Bring-up failed", "error", err)
		return err
	}
	tc.StartStatusPublisher(cfg.Telemetry.StatusRate, ctl)

	web, err := http.NewServer(
		http.WithLogger(appLogger),
		http.WithController(ctl),
		http.WithTuning(tuning(cfg)),
		http.WithGeofence(geofence(cfg)),
		http.WithMetricsHandler(m.Handler()),
		http.WithEventHandler(es.Handler),
		http.WithEventPublisher(es),
		http.WithVersion(buildinfo.Version),
		http.WithStartupWG(wg),
	)
	if err != nil {
		appLogger.Error("Error during webserver initialization", "error", err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return web.Serve(cfg.HTTP.Bind) })
	if cfg.HTTP.MetricsBind != "" {
		g.Go(func() error { return m.BuiltinWebserver(cfg.HTTP.MetricsBind) })
	}
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down...")
		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		m.Shutdown()
		return errors.Join(web.Shutdown(sctx), ctl.Shutdown(sctx))
	})

	if cfg.HTTP.Advertise {
		adv, err := advertise(cfg.HTTP.Bind)
		if err != nil {
			appLogger.Warn("Could not advertise control API", "error", err)
		} else {
			defer adv.Shutdown()
		}
	}

	wg.Wait()
	appLogger.Info("Startup Complete!")
	es.PublishLogLine("Startup complete")

	if err := g.Wait(); err != nil {
		appLogger.Error("Error during shutdown", "error", err)
		return err
	}
	appLogger.Info("Goodbye!")
	return nil
}

// connect dials the broker, giving up only if the process is asked
// to exit.
func connect(ctx context.Context, tc *telemetry.Client) error {
	done := make(chan error, 1)
	go func() { done <- tc.Connect() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func clientID() string {
	host, err := os.Hostname()
	if err != nil {
		return "copter"
	}
	return "copter-" + host
}

func tuning(cfg *config.Config) tasks.Tuning {
	return tasks.Tuning{
		Radius:         cfg.Waypoints.Radius,
		AltRadius:      cfg.Waypoints.AltRadius,
		Idle:           cfg.Waypoints.Idle,
		Update:         cfg.Waypoints.Update,
		Speed:          cfg.Waypoints.Speed,
		SweepSpacing:   cfg.Waypoints.SweepSpacing,
		FollowDistance: cfg.Tracking.FollowDistance,
	}
}

func geofence(cfg *config.Config) *tasks.Geofence {
	g := cfg.Tracking.Geofence
	if len(g) != 4 {
		return nil
	}
	return &tasks.Geofence{
		SW: navigation.Coord{Lat: g[0], Lon: g[1]},
		NE: navigation.Coord{Lat: g[2], Lon: g[3]},
	}
}

func advertise(bind string) (*mdns.Server, error) {
	_, p, err := net.SplitHostPort(bind)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return nil, err
	}
	return mdns.NewServer(mdns.WithLogger(appLogger), mdns.WithPort(port))
}
