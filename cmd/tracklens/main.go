// Command tracklens explores a music library as clusters of audio features.
//
// Usage:
//
//	tracklens               Run the interactive visualization
//	tracklens events        JSONL event log viewer
//	tracklens history       Applied snapshot history
//	tracklens recs          Cluster once and print recommendations per cluster
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tracklens: %v\n", err)
		os.Exit(1)
	}
}
