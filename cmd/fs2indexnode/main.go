// Command fs2indexnode runs the fs2 indexnode: it aggregates registered
// clients' file trees into one searchable virtual filesystem and brokers
// downloads between them (spec §1, §4, §6).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
