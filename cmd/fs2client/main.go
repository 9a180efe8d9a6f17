// Command fs2client exports local directories as HTTP shares, discovers
// peers through one or more indexnodes, and downloads files from them
// (spec §1, §2, §4.4, §4.5).
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
