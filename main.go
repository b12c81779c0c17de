// honeyrelay relays attacker connections from a honeypot port to a real
// service and mirrors their traffic to a collector.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"honeyrelay/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "honeyrelay: %v\n", err)
		os.Exit(1)
	}
}
