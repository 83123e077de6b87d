// Command chainledger manages and serves append-only hash-chained ledgers.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/chainledger/internal/cli"
)

func main() {
	err := cli.NewRootCommand().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "chainledger:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
