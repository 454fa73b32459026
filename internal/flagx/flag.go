// Package flagx lets several components parse the same command line
// independently: each one filters os.Args down to the flags it owns before
// handing them to its own flag.FlagSet.
package flagx

import (
	"flag"
	"strings"
)

// Set describes the flags a component owns, keyed by name without dashes.
// The value reports whether the flag consumes a separate value argument;
// boolean flags only accept the "-name=value" form for explicit values.
type Set map[string]bool

func normalize(arg string) string {
	return strings.TrimLeft(arg, "-")
}

// Filter returns the subset of args that belong to s, in order.
//
// Supported forms:
//  1. -name value / --name value   (value flags only)
//  2. -name=value / --name=value
//  3. -name / --name               (boolean flags)
//
// A value flag followed by something that looks like another flag is kept
// without a value, leaving the error to the FlagSet.
func (s Set) Filter(args []string) []string {
	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		name, _, hasValue := strings.Cut(normalize(arg), "=")
		takesValue, ok := s[name]
		if !ok {
			continue
		}

		filtered = append(filtered, arg)
		if hasValue || !takesValue {
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// ConfigPath extracts the JSON config file path given with -c or -config.
// Other arguments are ignored; an empty string means no file was requested.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.SetOutput(discard{})
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(Set{"c": true, "config": true}.Filter(args))

	return path
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
