// Package config loads runtime configuration for the gophmaster CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the server
//	-t int      request timeout (seconds)
//	-i string   device id bound into remembered tokens
//	-n string   device name bound into remembered tokens
//	-d string   local data directory
//
// # JSON schema
//
// The JSON loader uses timex.Duration for the timeout, so it can be either
// a string like "10s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "request_timeout": "10s",
//	  "device_id": "laptop-1",
//	  "device_name": "laptop",
//	  "data_dir": ".gophmaster"
//	}
package config
