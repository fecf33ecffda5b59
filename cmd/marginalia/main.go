// Command marginalia manages anchored comment threads on replicated
// documents.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/marginalia/internal/cli"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		cancel()
		os.Exit(cli.GetExitCode(err))
	}
}
