// Command approvalctl operates an approval engine backed by file stores or a
// database: it publishes definitions, starts and drives instances, lists
// pending tasks and sweeps expired deadlines.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
