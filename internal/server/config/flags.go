package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophmaster/internal/flagx"
)

// serverFlags lists the flags owned by the server; true means the flag
// takes a separate value.
var serverFlags = flagx.Set{
	"a": true, "d": true, "r": true, "s": true, "t": true, "k": true,
	"g": false, "x": true, "e": false, "w": true, "m": true, "f": true, "l": true,
}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN, or "memory"
//	-r string   Redis address for one-time codes
//	-s string   session token secret
//	-t int      session token lifetime, minutes
//	-k int      reset and confirmation code lifetime, minutes
//	-g bool     allow guest sign-in
//	-x string   guest username prefix
//	-e bool     require email confirmation for new accounts
//	-w string   censored word list file
//	-m string   Resend API key
//	-f string   mail sender address
//	-l string   log level
//
// Boolean flags take explicit values only in the -g=false form.
func parseFlags(config *Config) {
	args := serverFlags.Filter(os.Args[1:])

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenLifetime := fs.Int("t", int(config.TokenLifetime.Minutes()), "token lifetime (in minutes)")
	codeTTL := fs.Int("k", int(config.CodeTTL.Minutes()), "code lifetime (in minutes)")

	fs.BoolVar(&config.GuestLoginEnabled, "g", config.GuestLoginEnabled, "allow guest sign-in")
	fs.StringVar(&config.GuestPrefix, "x", config.GuestPrefix, "guest username prefix")
	fs.BoolVar(&config.EmailConfirmRequired, "e", config.EmailConfirmRequired, "require email confirmation")
	fs.StringVar(&config.CensorFile, "w", config.CensorFile, "censored word list")
	fs.StringVar(&config.ResendAPIKey, "m", config.ResendAPIKey, "resend API key")
	fs.StringVar(&config.MailFrom, "f", config.MailFrom, "mail sender")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenLifetime = time.Duration(*tokenLifetime) * time.Minute
	config.CodeTTL = time.Duration(*codeTTL) * time.Minute
}
