package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/orchestra-labs/vesting-batcher/block"
	"github.com/orchestra-labs/vesting-batcher/contract/jsonrpc"
	"github.com/orchestra-labs/vesting-batcher/core/vesting"
	rollcmd "github.com/orchestra-labs/vesting-batcher/pkg/cmd"
	"github.com/orchestra-labs/vesting-batcher/pkg/config"
	"github.com/orchestra-labs/vesting-batcher/pkg/notify"
	"github.com/orchestra-labs/vesting-batcher/pkg/rpc/server"
	"github.com/orchestra-labs/vesting-batcher/pkg/service"
	"github.com/orchestra-labs/vesting-batcher/pkg/store"
)

const (
	flagRecipients        = "recipients"
	flagCodeID            = "code-id"
	flagCliffYear         = "cliff-year"
	flagCliffMonth        = "cliff-month"
	flagDurationDays      = "duration-days"
	flagTitlePrefix       = "title-prefix"
	flagDescriptionPrefix = "description-prefix"
	flagStartFromBatch    = "start-from-batch"
	flagRunID             = "run-id"
	flagResume            = "resume"
	flagProgress          = "progress"

	// shutdownGrace is added to the submission timeout when waiting for the batch in flight on interrupt.
	shutdownGrace = 5 * time.Second
)

type submitOptions struct {
	recipientsPath    string
	codeID            uint64
	cliffYear         int
	cliffMonth        int
	durationDays      uint64
	titlePrefix       string
	descriptionPrefix string
	startFromBatch    int
	runID             string
	resume            bool
	progress          bool
}

func addSubmitFlags(flags *pflag.FlagSet) {
	flags.String(flagRecipients, "", "path of the JSON recipients file, - for stdin")
	flags.Uint64(flagCodeID, 0, "code id of the vesting account contract")
	flags.Int(flagCliffYear, time.Now().UTC().Year(), "year in which vesting starts")
	flags.Int(flagCliffMonth, 1, "month (1-12) on whose first day vesting starts")
	flags.Uint64(flagDurationDays, 0, "vesting duration in days")
	flags.String(flagTitlePrefix, vesting.DefaultTitlePrefix, "title prefix of the vesting accounts")
	flags.String(flagDescriptionPrefix, vesting.DefaultDescriptionPrefix, "description prefix of the vesting accounts")
	flags.Int(flagStartFromBatch, 1, "first batch to submit (1-based)")
	flags.String(flagRunID, "", "run identifier for checkpoints (random when empty)")
	flags.Bool(flagResume, false, "resume the checkpointed run given by --run-id, or the latest run")
	flags.Bool(flagProgress, false, "render a progress bar on stderr")
}

func parseSubmitOptions(flags *pflag.FlagSet) (submitOptions, error) {
	var (
		opts submitOptions
		errs []error
		err  error
	)
	opts.recipientsPath, err = flags.GetString(flagRecipients)
	errs = append(errs, err)
	opts.codeID, err = flags.GetUint64(flagCodeID)
	errs = append(errs, err)
	opts.cliffYear, err = flags.GetInt(flagCliffYear)
	errs = append(errs, err)
	opts.cliffMonth, err = flags.GetInt(flagCliffMonth)
	errs = append(errs, err)
	opts.durationDays, err = flags.GetUint64(flagDurationDays)
	errs = append(errs, err)
	opts.titlePrefix, err = flags.GetString(flagTitlePrefix)
	errs = append(errs, err)
	opts.descriptionPrefix, err = flags.GetString(flagDescriptionPrefix)
	errs = append(errs, err)
	opts.startFromBatch, err = flags.GetInt(flagStartFromBatch)
	errs = append(errs, err)
	opts.runID, err = flags.GetString(flagRunID)
	errs = append(errs, err)
	opts.resume, err = flags.GetBool(flagResume)
	errs = append(errs, err)
	opts.progress, err = flags.GetBool(flagProgress)
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return submitOptions{}, err
	}

	if opts.recipientsPath == "" {
		return submitOptions{}, fmt.Errorf("--%s is required", flagRecipients)
	}
	if opts.cliffMonth < 1 || opts.cliffMonth > 12 {
		return submitOptions{}, fmt.Errorf("--%s must be between 1 and 12, got %d", flagCliffMonth, opts.cliffMonth)
	}
	if opts.resume && flags.Changed(flagStartFromBatch) {
		return submitOptions{}, fmt.Errorf("--%s cannot be combined with --%s", flagStartFromBatch, flagResume)
	}
	return opts, nil
}

func (o submitOptions) configuration(denom string) vesting.VestingConfiguration {
	conf := vesting.NewConfiguration(o.codeID, o.cliffYear, time.Month(o.cliffMonth), o.durationDays, denom)
	conf.TitlePrefix = o.titlePrefix
	conf.DescriptionPrefix = o.descriptionPrefix
	return conf
}

func loadRecipients(path string, stdin io.Reader) ([]vesting.VestingRecipient, error) {
	if path == "-" {
		return vesting.ParseRecipients(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recipients file: %w", err)
	}
	defer f.Close()
	return vesting.ParseRecipients(f)
}

// SubmitCmd returns the command submitting a recipients file.
func SubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit vesting allocations in batches",
		Long: `Submit normalizes the recipients file, splits the records into batches and executes one
batch_vesting transaction per batch. Batches failing for gas reasons are retried and, when
that is not enough, the batch size is halved down to submit.min_batch_size.

Progress is checkpointed after every batch so that an interrupted run can be resumed
with --resume.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rollcmd.ParseConfig(cmd)
			if err != nil {
				return err
			}
			logger := rollcmd.SetupLogger(cfg.Log)

			opts, err := parseSubmitOptions(cmd.Flags())
			if err != nil {
				return err
			}
			return runSubmit(cmd, cfg, opts, logger)
		},
	}

	config.AddFlags(cmd)
	addSubmitFlags(cmd.Flags())
	return cmd
}

func runSubmit(cmd *cobra.Command, cfg config.Config, opts submitOptions, logger zerolog.Logger) error {
	recipients, err := loadRecipients(opts.recipientsPath, cmd.InOrStdin())
	if err != nil {
		return err
	}
	conf := opts.configuration(cfg.Chain.Denom)

	datastore, err := store.NewDefaultKVStore(cfg.RootDir, cfg.DBPath, AppName)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	checkpoints := store.NewCheckpointStore(datastore)
	defer func() {
		if err := checkpoints.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close checkpoint database")
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var checkpoint *vesting.Checkpoint
	runID := opts.runID
	switch {
	case opts.resume:
		if runID == "" {
			if runID, err = checkpoints.LatestRunID(ctx); err != nil {
				return fmt.Errorf("no run to resume: %w", err)
			}
		}
		cp, err := checkpoints.LoadCheckpoint(ctx, runID)
		if err != nil {
			return err
		}
		checkpoint = &cp
	case runID == "":
		runID = uuid.NewString()
	}

	client, err := jsonrpc.NewClient(ctx, logger, cfg.Chain.RPCAddress, cfg.Chain.AuthToken, cfg.Chain.ContractAddress)
	if err != nil {
		return err
	}
	defer client.Close()

	observers := []notify.Observer{notify.NewLogObserver(logger)}
	if opts.progress {
		observers = append(observers, notify.NewProgressObserver(cmd.ErrOrStderr()))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka := notify.NewKafkaObserver(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer func() {
			if err := kafka.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close kafka writer")
			}
		}()
		observers = append(observers, kafka)
	}

	services := service.NewGroup(logger)
	if cfg.History.Address != "" {
		history := server.NewSubmissionHistory(logger)
		historyServer, err := server.NewHistoryServer(cfg.History.Address, history, logger)
		if err != nil {
			return err
		}
		services.Go(ctx, "history", historyServer)
		observers = append(observers, history)
	}
	defer func() {
		cancel()
		if err := services.Wait(); err != nil {
			logger.Warn().Err(err).Msg("background service failed")
		}
	}()

	manager := block.NewManager(&client.Contract, cfg, logger,
		block.WithObserver(notify.Multi(observers...)),
		block.WithCheckpoints(checkpoints, runID),
	)

	logger.Info().Str("runID", runID).Int("recipients", len(recipients)).Bool("resume", checkpoint != nil).
		Msg("starting vesting submission")

	results, err := rollcmd.RunSubmission(logger, cmd, cfg.Submit.Timeout+shutdownGrace,
		func(ctx context.Context) ([]vesting.BatchResult, error) {
			if checkpoint != nil {
				return manager.Resume(ctx, conf, recipients, *checkpoint)
			}
			return manager.Run(ctx, conf, recipients, cfg.Submit.BatchSize, opts.startFromBatch)
		})

	if results != nil || err == nil {
		if printErr := printResults(cmd.OutOrStdout(), runID, results); printErr != nil {
			return errors.Join(err, printErr)
		}
	}
	return err
}

type submitReport struct {
	RunID   string                `json:"run_id"`
	Results []vesting.BatchResult `json:"results"`
}

func printResults(w io.Writer, runID string, results []vesting.BatchResult) error {
	if results == nil {
		results = []vesting.BatchResult{}
	}
	out, err := json.MarshalIndent(submitReport{RunID: runID, Results: results}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
