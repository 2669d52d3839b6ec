package main

import (
	"fmt"
	"io"

	archerrors "archscan/internal/errors"
)

// Process exit codes
const (
	exitOK        = 0
	exitFailure   = 1
	exitConfig    = 2
	exitCancelled = 3
)

// exitCode maps an error to the process exit status. Cancelled runs and
// refusals to act on partial results share a code so scripts can retry.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	switch archerrors.CodeOf(err) {
	case archerrors.ConfigurationError:
		return exitConfig
	case archerrors.Cancelled, archerrors.PartialResult:
		return exitCancelled
	default:
		return exitFailure
	}
}

func printFixes(w io.Writer, err error) {
	fixes := archerrors.GetSuggestedFixes(archerrors.CodeOf(err))
	if len(fixes) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSuggested fixes:")
	for _, f := range fixes {
		switch {
		case f.Command != "":
			fmt.Fprintf(w, "  $ %s\n", f.Command)
		case f.Description != "":
			fmt.Fprintf(w, "  - %s\n", f.Description)
		}
	}
}
