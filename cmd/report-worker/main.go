// Command report-worker renders one recording report. It is started by the
// server with a JSON request on stdin and exits with a status code the server
// classifies.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jfrlite/jfrlite/internal/recordings"
	"github.com/jfrlite/jfrlite/internal/reportworker"
)

func main() {
	if err := reportworker.DisableCoreDumps(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not disable core dumps: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	agent := recordings.NewAgentClient(30 * time.Second)
	code := reportworker.Run(ctx, os.Stdin, os.Stdout, os.Stderr, agent)
	stop()
	os.Exit(code)
}
