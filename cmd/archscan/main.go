package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Sink credentials usually come from a local .env; a missing file is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		printFixes(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
