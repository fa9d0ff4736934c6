package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/orchestra-labs/vesting-batcher/apps/vesting-batch/cmd"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := cmd.NewRootCmd().Execute(); err != nil {
		// Print to stderr and exit with error
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
