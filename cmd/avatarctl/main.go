// Command avatarctl runs the avatar pipeline on local files.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
)

type cliArgs struct {
	Verbose bool `help:"Enable debug logging" short:"v"`

	Normalize normalizeCmd `cmd:"" help:"Normalize images into stored avatars (square WebP)."`
	Export    exportCmd    `cmd:"" help:"Rotate, flip and crop an image into a JPEG."`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var args cliArgs
	cliCtx := kong.Parse(
		&args,
		kong.Name("avatarctl"),
		kong.Description("Avatar normalization and editing tools."),
		kong.UsageOnError(),
	)

	logger, err := newLogger(args.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cliCtx.BindTo(ctx, (*context.Context)(nil))
	return cliCtx.Run(logger)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}
