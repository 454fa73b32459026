package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophmaster/internal/flagx"
	"github.com/dmitrijs2005/gophmaster/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerEndpointAddr string          `json:"server_endpoint_addr"`
	RequestTimeout     *timex.Duration `json:"request_timeout"`
	DeviceID           string          `json:"device_id"`
	DeviceName         string          `json:"device_name"`
	DataDir            string          `json:"data_dir"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Absent keys keep their current values. Panics on read or
// unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.DeviceID != "" {
		cfg.DeviceID = jc.DeviceID
	}
	if jc.DeviceName != "" {
		cfg.DeviceName = jc.DeviceName
	}
	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
}
