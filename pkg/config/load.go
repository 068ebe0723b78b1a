// Package config loads the configuration of the aircraft from a yaml
// file, with overrides from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalid is wrapped by all validation errors.
var ErrInvalid = errors.New("invalid configuration")

func setDefaults(v *viper.Viper) {
	v.SetDefault("bringup.retries", 2)
	v.SetDefault("bringup.interval", "1s")

	v.SetDefault("controller.quantum", "200ms")
	v.SetDefault("controller.reap_timeout", "200ms")

	v.SetDefault("board.port", "auto")
	v.SetDefault("board.baud", 115200)
	v.SetDefault("board.rate", "100ms")
	v.SetDefault("board.heartbeat_timeout", "10s")
	v.SetDefault("board.vid", "2e8a")
	v.SetDefault("board.pid", "000a")

	v.SetDefault("telemetry.broker", "mqtt://127.0.0.1:1883")
	v.SetDefault("telemetry.embedded", true)
	v.SetDefault("telemetry.bind", ":1883")
	v.SetDefault("telemetry.topic_prefix", "copter")
	v.SetDefault("telemetry.fix_timeout", "2s")
	v.SetDefault("telemetry.status_rate", "1s")
	v.SetDefault("telemetry.imu", true)
	v.SetDefault("telemetry.lidar", true)

	v.SetDefault("gpio.buzzer", "GPIO18")
	v.SetDefault("gpio.auth", "")

	v.SetDefault("http.bind", ":8080")
	v.SetDefault("http.advertise", true)
	v.SetDefault("http.metrics_bind", "")

	v.SetDefault("waypoints.radius", 2.0)
	v.SetDefault("waypoints.alt_radius", 1.0)
	v.SetDefault("waypoints.idle", "5s")
	v.SetDefault("waypoints.update", "200ms")
	v.SetDefault("waypoints.speed", 40)
	v.SetDefault("waypoints.sweep_spacing", 5.0)

	v.SetDefault("tracking.follow_distance", 5.0)
}

// Load reads in the config.  If path is empty the file copter.yml is
// looked for in /etc/copter and the working directory, and it is not
// an error for it to be missing.  Any key may be overridden by an
// environment variable such as COPTER_BOARD_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COPTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("copter")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/copter")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &nf) {
			return nil, err
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise cause trouble much
// later on.
func (c *Config) Validate() error {
	if c.Controller.Quantum <= 0 {
		return fmt.Errorf("%w: controller.quantum must be positive", ErrInvalid)
	}
	if c.Board.Rate <= 0 {
		return fmt.Errorf("%w: board.rate must be positive", ErrInvalid)
	}
	if c.Waypoints.Radius <= 0 {
		return fmt.Errorf("%w: waypoints.radius must be positive", ErrInvalid)
	}
	if c.Waypoints.Speed < 0 || c.Waypoints.Speed > 100 {
		return fmt.Errorf("%w: waypoints.speed must be in [0, 100]", ErrInvalid)
	}
	if strings.Trim(c.Telemetry.TopicPrefix, "/") == "" {
		return fmt.Errorf("%w: telemetry.topic_prefix may not be empty", ErrInvalid)
	}
	if n := len(c.Tracking.Geofence); n != 0 && n != 4 {
		return fmt.Errorf("%w: tracking.geofence needs 4 values, sw lat/lon then ne lat/lon", ErrInvalid)
	}
	return nil
}
