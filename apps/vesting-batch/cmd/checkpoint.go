package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
	rollcmd "github.com/orchestra-labs/vesting-batcher/pkg/cmd"
	"github.com/orchestra-labs/vesting-batcher/pkg/config"
	"github.com/orchestra-labs/vesting-batcher/pkg/store"
)

// CheckpointCmd returns the command group inspecting stored run checkpoints.
func CheckpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect and manage checkpoints of vesting runs",
	}

	showCmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Print the checkpoint of a run, the latest one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCheckpointStore(cmd, func(s *store.CheckpointStore) error {
				runID := ""
				if len(args) == 1 {
					runID = args[0]
				} else {
					latest, err := s.LatestRunID(cmd.Context())
					if err != nil {
						return err
					}
					runID = latest
				}

				cp, err := s.LoadCheckpoint(cmd.Context(), runID)
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(cp, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode checkpoint: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return err
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored checkpoints, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCheckpointStore(cmd, func(s *store.CheckpointStore) error {
				checkpoints, err := s.ListCheckpoints(cmd.Context())
				if err != nil {
					return err
				}
				return writeCheckpointTable(cmd.OutOrStdout(), checkpoints)
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete the checkpoint of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCheckpointStore(cmd, func(s *store.CheckpointStore) error {
				if err := s.DeleteCheckpoint(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted checkpoint %s\n", args[0])
				return nil
			})
		},
	}

	for _, sub := range []*cobra.Command{showCmd, listCmd, deleteCmd} {
		config.AddFlags(sub)
		cmd.AddCommand(sub)
	}
	return cmd
}

func withCheckpointStore(cmd *cobra.Command, fn func(*store.CheckpointStore) error) error {
	cfg, err := rollcmd.ParseConfig(cmd)
	if err != nil {
		return err
	}
	logger := rollcmd.SetupLogger(cfg.Log)

	datastore, err := store.NewDefaultKVStore(cfg.RootDir, cfg.DBPath, AppName)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	s := store.NewCheckpointStore(datastore)
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close checkpoint database")
		}
	}()

	return fn(s)
}

func writeCheckpointTable(w io.Writer, checkpoints []vesting.Checkpoint) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTATUS\tRECORDS\tNEXT BATCH\tBATCH SIZE\tUPDATED")
	for _, cp := range checkpoints {
		status := "in progress"
		if cp.Done() {
			status = "completed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d\t%d\t%s\n",
			cp.RunID, status, cp.NextRecord, cp.TotalRecords, cp.NextBatch, cp.BatchSize,
			cp.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
