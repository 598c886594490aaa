package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// exitInterrupted is the conventional status for a run ended by SIGINT.
const exitInterrupted = 130

func main() {
	os.Exit(execute())
}

func execute() int {
	err := newRootCommand().Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		fmt.Fprintf(os.Stderr, "rfidmonitor: %v\n", err)
		return 1
	}
}
