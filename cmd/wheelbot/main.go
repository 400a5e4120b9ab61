// Command wheelbot runs the options wheel strategy.
package main

import (
	"context"
	"os"

	"github.com/alanyoungcy/wheelbot/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
