package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/agrinman/ernode"
)

type printHandler struct {
	verbosity ernode.Verbosity
}

func (h *printHandler) OnConnect(c *ernode.Conn) {
	color.Green("connected")
}

func (h *printHandler) OnConnectFailure(c *ernode.Conn, reason error) {
	color.Red("connect failed: %s", reason)
}

func (h *printHandler) OnDisconnect(c *ernode.Conn, reason error) {
	color.Yellow("disconnected: %s", reason)
}

func (h *printHandler) OnMessage(c *ernode.Conn, msg ernode.TransportMessage) {
	if msg.Payload != nil {
		fmt.Printf("%s %s %s\n", msg.Kind, msg.Control.String(), msg.Payload.String())
		return
	}
	fmt.Printf("%s %s\n", msg.Kind, msg.Control.String())
}

func (h *printHandler) OnError(c *ernode.Conn, message string) {
	color.Red("error: %s", message)
}

func (h *printHandler) Verbose() ernode.Verbosity { return h.verbosity }

func main() {
	app := cli.NewApp()
	app.Name = "ernode"
	app.Usage = "connect to an Erlang distribution node and print the messages it sends"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "name", Usage: "our own node name, alive@host", Value: "ernode@127.0.0.1"},
		cli.StringFlag{Name: "cookie", Usage: "distribution cookie", EnvVar: "ERNODE_COOKIE"},
		cli.StringFlag{Name: "verbosity", Usage: "none|trace|wire|message", Value: "message"},
	}
	app.Before = func(c *cli.Context) error {
		ernode.SetupLoggingForVerbosity("ernode", parseVerbosity(c.GlobalString("verbosity")), false)
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:      "connect",
			Usage:     "connect to a peer node and print every message received",
			ArgsUsage: "[tcp://|uds://]alive@host-or-path",
			Action:    runConnect,
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("ernode: %s", err)
		os.Exit(1)
	}
}

func runConnect(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("expected exactly one peer address argument", 1)
	}
	addr, err := ernode.ParseAddress(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	cfg := ernode.DefaultConfig(c.GlobalString("cookie"))
	cfg.Verbosity = parseVerbosity(c.GlobalString("verbosity"))

	handler := &printHandler{verbosity: cfg.Verbosity}

	ctx := context.Background()
	conn, err := ernode.Dial(ctx, addr, c.GlobalString("name"), cfg, handler)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer conn.Stop()

	select {}
}

func parseVerbosity(s string) ernode.Verbosity {
	switch s {
	case "trace":
		return ernode.VerbosityTrace
	case "wire":
		return ernode.VerbosityWire
	case "message":
		return ernode.VerbosityMessage
	default:
		return ernode.VerbosityNone
	}
}
