package cmd

import (
	"github.com/spf13/cobra"

	"github.com/orchestra-labs/vesting-batcher/pkg/config"
)

// AppName is the name of the application, the name of the command, and the name of the home directory.
const AppName = "vesting-batch"

// NewRootCmd returns the vesting-batch command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           AppName,
		Short:         "Submit token vesting allocations to the vesting orchestrator contract in batches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.AddGlobalFlags(rootCmd, AppName)

	rootCmd.AddCommand(
		SubmitCmd(),
		CheckpointCmd(),
	)
	return rootCmd
}
