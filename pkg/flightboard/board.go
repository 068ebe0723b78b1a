// Package flightboard talks to the flight board over a serial link.
// Setpoints are streamed to the board as lines of JSON, and the board
// answers with heartbeats that say whether the pilot has handed over
// control.
package flightboard

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/gizmo-platform/copter/pkg/flight"
	"github.com/gizmo-platform/copter/pkg/navigation"
	"github.com/gizmo-platform/copter/pkg/watchdog"
)

// ErrNoBoard is returned when no port matches the board's USB IDs.
var ErrNoBoard = errors.New("no flight board found")

// Heartbeat is sent by the board several times a second.
type Heartbeat struct {
	Auto  bool    `json:"auto"`
	Armed bool    `json:"armed"`
	Alt   float64 `json:"alt"`
}

type command struct {
	Cmd string  `json:"cmd"`
	Lat float64 `json:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty"`
	Alt float64 `json:"alt,omitempty"`
}

// Board is the actuator, and the source of the autonomous mode
// switch.
type Board struct {
	l    hclog.Logger
	port io.ReadWriteCloser
	dog  *watchdog.Dog

	portName         string
	baud             int
	vid, pid         string
	rate             time.Duration
	heartbeatTimeout time.Duration

	outMutex sync.Mutex
	out      flight.Output

	wMutex sync.Mutex
	enc    *json.Encoder

	auto  atomic.Bool
	armed atomic.Bool
	last  atomic.Pointer[Heartbeat]

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New opens the link to the board and starts streaming setpoints.
// Failing to find or open the port is returned so that the caller can
// retry.
func New(opts ...Option) (*Board, error) {
	b := &Board{
		l:                hclog.NewNullLogger(),
		portName:         "auto",
		baud:             115200,
		vid:              "2e8a",
		pid:              "000a",
		rate:             100 * time.Millisecond,
		heartbeatTimeout: 10 * time.Second,
		stop:             make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}

	if b.port == nil {
		name, err := b.resolvePort()
		if err != nil {
			return nil, err
		}
		mode := &serial.Mode{
			BaudRate: b.baud,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
		port, err := serial.Open(name, mode)
		if err != nil {
			b.l.Error("Could not open port", "port", name, "error", err)
			return nil, fmt.Errorf("opening %s: %w", name, err)
		}
		b.l.Info("Opened flight board", "port", name, "baud", b.baud)
		b.port = port
	}
	b.enc = json.NewEncoder(b.port)

	b.dog = watchdog.New(
		watchdog.WithName("heartbeat"),
		watchdog.WithLogger(b.l),
		watchdog.WithFoodDuration(b.heartbeatTimeout),
		watchdog.WithHandFunction(b.heartbeatLost),
	)

	b.wg.Add(2)
	go b.readLoop()
	go b.writeLoop()
	return b, nil
}

func (b *Board) resolvePort() (string, error) {
	if b.portName != "" && b.portName != "auto" {
		return b.portName, nil
	}
	ports, err := ListPorts()
	if err != nil {
		return "", err
	}
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		if strings.EqualFold(port.VID, b.vid) && strings.EqualFold(port.PID, b.pid) {
			b.l.Debug("Found flight board", "port", port.Name)
			return port.Name, nil
		}
	}
	return "", ErrNoBoard
}

// ListPorts returns all the serial ports on the system.
func ListPorts() ([]*enumerator.PortDetails, error) {
	return enumerator.GetDetailedPortsList()
}

// Close stops streaming and closes the port.  The board is sent a
// neutral setpoint first.
func (b *Board) Close() error {
	b.Stop()
	b.stopOnce.Do(func() { close(b.stop) })
	b.dog.Stop()
	err := b.port.Close()
	b.wg.Wait()
	return err
}

// Stop neutralises all channels and sends the setpoint immediately.
func (b *Board) Stop() {
	b.outMutex.Lock()
	b.out = flight.Output{}
	b.outMutex.Unlock()
	b.send(flight.Output{})
}

// SetOutput replaces the setpoint.  It is sent at the next tick.
func (b *Board) SetOutput(o flight.Output) {
	b.outMutex.Lock()
	b.out = o
	b.outMutex.Unlock()
}

// Output returns the current setpoint.
func (b *Board) Output() flight.Output {
	b.outMutex.Lock()
	defer b.outMutex.Unlock()
	return b.out
}

// Authorized reports whether the pilot has switched to autonomous
// mode, and the board is still talking to us.
func (b *Board) Authorized() bool { return b.auto.Load() }

// Armed reports whether the motors are armed.
func (b *Board) Armed() bool { return b.armed.Load() }

// LastHeartbeat returns the most recent heartbeat, or nil if none
// has arrived.
func (b *Board) LastHeartbeat() *Heartbeat { return b.last.Load() }

// Takeoff asks the board to climb to alt metres in guided mode.
func (b *Board) Takeoff(alt float64) error {
	if alt <= 0 {
		return fmt.Errorf("takeoff altitude must be positive, got %v", alt)
	}
	return b.send(command{Cmd: "takeoff", Alt: alt})
}

// ReturnToLaunch asks the board to fly home and land.
func (b *Board) ReturnToLaunch() error {
	return b.send(command{Cmd: "rtl"})
}

// SetRegionOfInterest asks the board to keep the camera on c.
func (b *Board) SetRegionOfInterest(c navigation.Coord3D) error {
	return b.send(command{Cmd: "roi", Lat: c.Lat, Lon: c.Lon, Alt: c.Alt})
}

// ClearRegionOfInterest hands the camera back to the pilot.
func (b *Board) ClearRegionOfInterest() error {
	return b.send(command{Cmd: "roi_clear"})
}

func (b *Board) send(v any) error {
	b.wMutex.Lock()
	defer b.wMutex.Unlock()
	if err := b.enc.Encode(v); err != nil {
		b.l.Warn("Error writing to board", "error", err)
		return err
	}
	return nil
}

func (b *Board) writeLoop() {
	defer b.wg.Done()
	t := time.NewTicker(b.rate)
	defer t.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-t.C:
			b.send(b.Output())
		}
	}
}

func (b *Board) readLoop() {
	defer b.wg.Done()
	scanner := bufio.NewScanner(b.port)
	for scanner.Scan() {
		var hb Heartbeat
		if err := json.Unmarshal(scanner.Bytes(), &hb); err != nil {
			b.l.Debug("Ignoring line from board", "line", scanner.Text())
			continue
		}
		b.dog.Feed()
		b.armed.Store(hb.Armed)
		if b.auto.Swap(hb.Auto) != hb.Auto {
			b.l.Info("Autonomous mode changed", "auto", hb.Auto)
		}
		b.last.Store(&hb)
	}

	select {
	case <-b.stop:
	default:
		b.l.Error("Lost link to flight board", "error", scanner.Err())
		b.auto.Store(false)
	}
}

func (b *Board) heartbeatLost() {
	b.auto.Store(false)
	b.armed.Store(false)
}
