// Command duplexrpc-echo is a small demo server and client exercising every
// seed scenario of the connection engine: a plain unary proc, a typed proc
// with JSON-Schema validation, an explicit error surface, and a
// bidirectional streamer that calls back into its caller mid-stream.
// Structured the way the teacher's examples/word-count/wordcountctl wires
// jessevdk/go-flags subcommands against a shared mbp.AddressConfig/LogConfig.
package main

import (
	"context"
	"net/http"

	flags "github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/qpwo/duplexrpc/frame"
	"github.com/qpwo/duplexrpc/mbp"
	"github.com/qpwo/duplexrpc/rpc"
	"github.com/qpwo/duplexrpc/wsconn"
)

var Config = new(struct {
	Conn mbp.AddressConfig `group:"Connection" namespace:"conn" env-namespace:"CONN"`
	Log  mbp.LogConfig     `group:"Logging" namespace:"log" env-namespace:"LOG"`
})

type cmdServe struct {
	Listen string `long:"listen" default:":8080" description:"Address to listen on"`
	Path   string `long:"path" default:"/rpc" description:"HTTP path serving the WebSocket endpoint"`
}

func (cmd *cmdServe) Execute([]string) error {
	Config.Log.ConfigureLogging()
	var cat = catalog()
	var handlers = serverHandlers()

	http.HandleFunc(cmd.Path, func(w http.ResponseWriter, r *http.Request) {
		c, err := wsconn.Accept(w, r, nil)
		if err != nil {
			log.WithError(err).Warn("duplexrpc-echo: upgrade failed")
			return
		}
		var conn = rpc.New(c, frame.SideServer, cat, handlers,
			rpc.WithOnOpen(func(*rpc.Connection) { log.Info("connection opened") }),
			rpc.WithOnClose(func(_ *rpc.Connection, cause error) {
				log.WithError(cause).Info("connection closed")
			}))
		go conn.Serve()
	})

	log.WithField("listen", cmd.Listen).Info("duplexrpc-echo: listening")
	return http.ListenAndServe(cmd.Listen, nil)
}

// dial connects to the server and runs its receive loop in the background,
// returning the Connection (whose Peer serves the caller's single RPC) and a
// function that closes it.
func dial() (*rpc.Connection, func()) {
	Config.Log.ConfigureLogging()
	var c = Config.Conn.MustDial()
	var conn = rpc.New(c, frame.SideClient, catalog(), clientHandlers())
	go conn.Serve()
	return conn, func() { conn.Close() }
}

type cmdEcho struct {
	Text string `long:"text" description:"Text to echo"`
}

func (cmd *cmdEcho) Execute([]string) error {
	var conn, closeFn = dial()
	defer closeFn()

	var out string
	var err = conn.Peer().Call(context.Background(), "echo", cmd.Text, &out)
	mbp.Must(err, "echo call failed")
	log.WithField("result", out).Info("echo")
	return nil
}

type cmdSquare struct {
	N float64 `long:"n" description:"Number to square"`
}

func (cmd *cmdSquare) Execute([]string) error {
	var conn, closeFn = dial()
	defer closeFn()

	var out float64
	var err = conn.Peer().Call(context.Background(), "square", cmd.N, &out)
	mbp.Must(err, "square call failed")
	log.WithField("result", out).Info("square")
	return nil
}

type cmdExplode struct{}

func (cmd *cmdExplode) Execute([]string) error {
	var conn, closeFn = dial()
	defer closeFn()

	var out interface{}
	var err = conn.Peer().Call(context.Background(), "explode", nil, &out)
	if err == nil {
		log.Warn("expected explode to fail, but it did not")
		return nil
	}
	log.WithError(err).Info("explode failed as expected")
	return nil
}

type cmdCountUp struct {
	N int `long:"n" default:"5" description:"How high to count"`
}

func (cmd *cmdCountUp) Execute([]string) error {
	var conn, closeFn = dial()
	defer closeFn()

	var ctx = context.Background()
	stream, err := conn.Peer().Stream(ctx, "countUp", cmd.N)
	mbp.Must(err, "countUp call failed")
	defer stream.Close()

	for {
		chunk, err := stream.Next(ctx)
		if err != nil {
			break
		}
		log.WithField("chunk", string(chunk)).Info("countUp")
	}
	return nil
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)

	var err error
	_, err = parser.AddCommand("serve", "Run the duplexrpc-echo server", "", &cmdServe{})
	mbp.Must(err, "failed to add serve command")
	_, err = parser.AddCommand("echo", "Call the echo proc", "", &cmdEcho{})
	mbp.Must(err, "failed to add echo command")
	_, err = parser.AddCommand("square", "Call the typed square proc", "", &cmdSquare{})
	mbp.Must(err, "failed to add square command")
	_, err = parser.AddCommand("explode", "Call the always-failing explode proc", "", &cmdExplode{})
	mbp.Must(err, "failed to add explode command")
	_, err = parser.AddCommand("count-up", "Call the bidirectional countUp streamer", "", &cmdCountUp{})
	mbp.Must(err, "failed to add count-up command")

	mbp.MustParseArgs(parser)
}
