// Command sheetwatch monitors a spreadsheet of companies and announces
// status and tax-regime changes.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/sheetwatch/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
