// Package mbp ("mainboilerplate") collects the small process-wide
// scaffolding every duplexrpc command-line tool repeats: address/log
// config structs bindable with jessevdk/go-flags struct tags, and the
// Must/MustParseArgs helpers that turn a setup error into a fatal log line
// instead of a panic stack trace. Grounded on the teacher's own
// mainboilerplate package, as used from examples/word-count/wordcountctl.
package mbp

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/qpwo/duplexrpc/wsconn"
)

// AddressConfig names the WebSocket endpoint a client command dials,
// bindable as a `group:"..." namespace:"..." env-namespace:"..."` struct
// field the way wordcountctl binds mbp.AddressConfig for its consumer.
type AddressConfig struct {
	Address string `long:"address" env:"ADDRESS" default:"ws://localhost:8080/rpc" description:"WebSocket URL to dial"`
}

// MustDial dials Address and returns the resulting wsconn.Conn, or logs a
// fatal error and exits. It's the client-side counterpart of
// pb.RoutedJournalClient's Dial in the teacher's own AddressConfig.
func (c AddressConfig) MustDial() *wsconn.Conn {
	conn, err := wsconn.Dial(c.Address, nil)
	Must(err, "failed to dial", "address", c.Address)
	return conn
}

// LogConfig configures github.com/sirupsen/logrus process-wide, bindable
// the same way wordcountctl binds mbp.LogConfig for --log.level/LOG_LEVEL.
type LogConfig struct {
	Level string `long:"level" env:"LEVEL" default:"info" description:"Logging level: debug, info, warn, error"`
	Color bool   `long:"color" description:"Force colorized log output"`
}

// ConfigureLogging sets logrus's level and formatter from the config. It
// logs a warning (rather than failing) on an unrecognized level, falling
// back to Info.
func (c LogConfig) ConfigureLogging() {
	lvl, err := log.ParseLevel(c.Level)
	if err != nil {
		log.WithField("level", c.Level).Warn("mbp: unrecognized log level, defaulting to info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{ForceColors: c.Color, FullTimestamp: true})
}

// Must logs args as structured fields and exits the process with status 1
// if err is non-nil, matching the teacher's mbp.Must(err, "message") calls
// from wordcountctl's command Execute methods. It is a no-op if err is nil.
func Must(err error, message string, args ...interface{}) {
	if err == nil {
		return
	}
	var fields = log.Fields{"error": err}
	for i := 0; i+1 < len(args); i += 2 {
		if k, ok := args[i].(string); ok {
			fields[k] = args[i+1]
		}
	}
	log.WithFields(fields).Fatal(message)
}

// MustParseArgs parses os.Args[1:] with parser, printing go-flags's own
// usage/error formatting and exiting 1 on failure, or exiting 0 on
// -h/--help (go-flags returns flags.ErrHelp in that case) — mirroring the
// teacher's mbp.MustParseArgs(parser) call at the end of main().
func MustParseArgs(parser *flags.Parser) {
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
