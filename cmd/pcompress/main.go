package main

import (
	"fmt"
	"os"

	"github.com/go-pcompress/pcompress/internal/engine"
)

func main() {
	opts, err := engine.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "pcompress: %v\n", err)
		os.Exit(engine.ExitCode(err))
	}

	log := engine.NewLogger(opts.Verbose)

	var runErr error
	if opts.Compress {
		runErr = engine.Compress(opts, log)
	} else {
		runErr = engine.Decompress(opts, log)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "pcompress: %v\n", runErr)
	}
	os.Exit(engine.ExitCode(runErr))
}
