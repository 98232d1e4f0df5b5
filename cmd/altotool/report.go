package main

import (
	"fmt"
	"os"
)

// Infof prints a progress message unless -q was given, mirroring the
// teacher's quiet-gated helper. Diagnostic and error text always goes
// through fmt.Println/Fprintln directly, never through Infof.
func Infof(format string, args ...interface{}) {
	if quiet {
		return
	}
	fmt.Printf(format, args...)
}

// FatalErrCheck is the single point where a library error becomes a
// process exit: it prints and terminates with status 1, matching spec
// section 6's "exit code 0 on success, 1 on any failure".
func FatalErrCheck(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Fatal error:", err)
		os.Exit(1)
	}
}
