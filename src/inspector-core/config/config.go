// Package config loads the inspection stand's configuration: a YAML file
// with command-line flag overrides, matching the teacher's
// `firmware.Command`'s use of the standard `flag` package for CLI tooling.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full set of values needed to wire cmd/inspector-core's
// components (spec §5 concurrency model).
type Config struct {
	// SerialPort is the RS-485 device path; baud rate and framing are fixed
	// by the sensor protocol (921600, 8-E-1, spec §4.1) and not
	// configurable here.
	SerialPort string `yaml:"serial_port"`

	ModbusListenAddr string `yaml:"modbus_listen_addr"`

	SQLiteDSN            string        `yaml:"sqlite_dsn"`
	PersistencePollEvery time.Duration `yaml:"persistence_poll_interval"`

	DiagnosticsListenAddr string `yaml:"diagnostics_listen_addr"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration this stand ships with out of the box
// (spec §6: 921600 baud, 8-E-1; Modbus unit 1 on the standard TCP port).
func Default() Config {
	return Config{
		SerialPort:            "",
		ModbusListenAddr:      "tcp://0.0.0.0:502",
		SQLiteDSN:             "inspector-core.db",
		PersistencePollEvery:  1 * time.Second,
		DiagnosticsListenAddr: ":8080",
		LogLevel:              "info",
	}
}

// Load reads a YAML file at path (if it exists) over the defaults, applies
// any flags present in args, and returns the resulting Config.
func Load(path string, args []string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		}
	}

	fs := flag.NewFlagSet("inspector-core", flag.ContinueOnError)
	serialPort := fs.String("serial-port", cfg.SerialPort, "RS-485 serial port device path")
	modbusAddr := fs.String("modbus-addr", cfg.ModbusListenAddr, "Modbus TCP listen address")
	sqliteDSN := fs.String("sqlite-dsn", cfg.SQLiteDSN, "SQLite persistence database path")
	diagAddr := fs.String("diagnostics-addr", cfg.DiagnosticsListenAddr, "diagnostics WebSocket listen address")
	logLevel := fs.String("log-level", cfg.LogLevel, "logrus level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.SerialPort = *serialPort
	cfg.ModbusListenAddr = *modbusAddr
	cfg.SQLiteDSN = *sqliteDSN
	cfg.DiagnosticsListenAddr = *diagAddr
	cfg.LogLevel = *logLevel

	return cfg, nil
}
