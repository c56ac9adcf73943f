package main

import (
	"context"
	"os"

	"github.com/km-arc/tracker/framework/logging"
)

func main() {
	logger := logging.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	if err := runner.Command().Run(context.Background(), os.Args); err != nil {
		logger.Fatal("tracker failed", "err", err)
	}
}
