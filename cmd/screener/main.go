// Command screener detects technical signals and screens stocks against
// fundamental and technical patterns.
package main

import (
	"context"
	"fmt"
	"os"

	"equity-screener/internal/cli"
	"equity-screener/internal/logging"
)

func main() {
	root := cli.NewRootCmd(logging.NewLogger())
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
