package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ytget/video-downloader/internal/cli"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := (&cli.App{Version: version}).Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
