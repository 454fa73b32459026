package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the gophmaster CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the server's gRPC endpoint.
//   - RequestTimeout: upper bound for one request/response round trip.
//   - DeviceID / DeviceName: identify this installation. A remembered token
//     only works from the device it was issued to.
//   - DataDir: directory of the local database holding remembered tokens.
type Config struct {
	ServerEndpointAddr string
	RequestTimeout     time.Duration
	DeviceID           string
	DeviceName         string
	DataDir            string
}

// LoadDefaults populates c with sensible defaults. The device defaults
// derive from the host name.
func (c *Config) LoadDefaults() {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}

	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.RequestTimeout = 10 * time.Second
	c.DeviceID = "cli-" + host
	c.DeviceName = host
	c.DataDir = ".gophmaster"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
