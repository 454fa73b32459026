package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophmaster/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Note: The function filters os.Args to only include the flags it knows about,
// so flags of other components do not trip the parser.
func parseFlags(cfg *Config) {
	args := flagx.Set{"a": true, "t": true, "i": true, "n": true, "d": true}.Filter(os.Args[1:])

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.DeviceID, "i", cfg.DeviceID, "device id")
	fs.StringVar(&cfg.DeviceName, "n", cfg.DeviceName, "device name")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "local data directory")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
