package config

import (
	"time"
)

// Config is the full configuration of the aircraft.
type Config struct {
	BringUp    BringUp    `mapstructure:"bringup"`
	Controller Controller `mapstructure:"controller"`
	Board      Board      `mapstructure:"board"`
	Telemetry  Telemetry  `mapstructure:"telemetry"`
	GPIO       GPIO       `mapstructure:"gpio"`
	HTTP       HTTP       `mapstructure:"http"`
	Waypoints  Waypoints  `mapstructure:"waypoints"`
	Tracking   Tracking   `mapstructure:"tracking"`
}

// BringUp controls how hard the controller tries to initialise each
// component.
type BringUp struct {
	Retries  uint64        `mapstructure:"retries"`
	Interval time.Duration `mapstructure:"interval"`
}

// Controller holds the timing of the flight controller.
type Controller struct {
	Quantum     time.Duration `mapstructure:"quantum"`
	ReapTimeout time.Duration `mapstructure:"reap_timeout"`
}

// Board describes the serial link to the flight board.
type Board struct {
	Port             string        `mapstructure:"port"`
	Baud             int           `mapstructure:"baud"`
	Rate             time.Duration `mapstructure:"rate"`
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
	VID              string        `mapstructure:"vid"`
	PID              string        `mapstructure:"pid"`
}

// Telemetry configures the broker and the topics on it.
type Telemetry struct {
	Broker      string        `mapstructure:"broker"`
	Embedded    bool          `mapstructure:"embedded"`
	Bind        string        `mapstructure:"bind"`
	TopicPrefix string        `mapstructure:"topic_prefix"`
	FixTimeout  time.Duration `mapstructure:"fix_timeout"`
	StatusRate  time.Duration `mapstructure:"status_rate"`
	Trusted     []string      `mapstructure:"trusted"`
	IMU         bool          `mapstructure:"imu"`
	Lidar       bool          `mapstructure:"lidar"`
}

// GPIO names the pins on the companion computer.  An empty name means
// the device is not fitted.
type GPIO struct {
	Buzzer string `mapstructure:"buzzer"`
	Auth   string `mapstructure:"auth"`
}

// HTTP configures the control API.
type HTTP struct {
	Bind      string `mapstructure:"bind"`
	Advertise bool   `mapstructure:"advertise"`

	// MetricsBind serves /metrics on a second listener as well,
	// for scrapers that should not reach the control API.
	MetricsBind string `mapstructure:"metrics_bind"`
}

// Waypoints tunes waypoint navigation.
type Waypoints struct {
	Radius       float64       `mapstructure:"radius"`
	AltRadius    float64       `mapstructure:"alt_radius"`
	Idle         time.Duration `mapstructure:"idle"`
	Update       time.Duration `mapstructure:"update"`
	Speed        int           `mapstructure:"speed"`
	SweepSpacing float64       `mapstructure:"sweep_spacing"`
}

// Tracking tunes user tracking.
type Tracking struct {
	FollowDistance float64   `mapstructure:"follow_distance"`
	Geofence       []float64 `mapstructure:"geofence"`
}
