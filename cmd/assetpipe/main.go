// Command assetpipe builds the front-end assets of a server-rendered web application.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/sugarshin/frrr-boilerplate/cmd/assetpipe/commands"
	ferrors "github.com/sugarshin/frrr-boilerplate/internal/foundation/errors"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cli := &commands.CLI{}
	global := &commands.Global{Out: os.Stdout}
	parser, err := kong.New(cli,
		kong.Name("assetpipe"),
		kong.Description("Build task orchestrator for application assets."),
		kong.UsageOnError(),
		kong.Bind(global),
	)
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(args)
	parser.FatalIfErrorf(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	if err := kctx.Run(global, cli); err != nil {
		return ferrors.NewCLIErrorAdapter(cli.Verbose, nil).Report(os.Stderr, err)
	}
	return 0
}
