package cli

import (
	"context"
	"log/slog"
	"sync"
	"time"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const (
	defMQTTAddress = "tcp://localhost:1883"
	defMQTTTimeout = 30 * time.Second
)

var (
	local       bool
	verbose     bool
	submit      bool
	mqttAddress string
)

func cliLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func NewTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train <competition> <config_file>",
		Short: "Train a competition model",
		Long: `Train a competition model with a TOML or YAML configuration.

Examples:
  # Train through the manager
  modelfactory-cli train imdb configs/imdb.toml

  # Train in this process
  modelfactory-cli train bengali configs/bengali.yaml --local`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			cfg, err := modelfactory.LoadConfig(args[1])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			if !local {
				r, err := mfsdk.Train(args[0], cfg)
				if err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				logJSONCmd(*cmd, r)

				return
			}

			e, done, err := localEngine(args[0], cfg, cmd.ErrOrStderr(), cliLogger(cmd))
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			res, err := e.Train(cmd.Context())
			done()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, res)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Run the engine in this process instead of the manager")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log engine progress in local mode")

	return cmd
}

func NewPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict <competition> <config_file>",
		Short: "Predict with trained fold checkpoints",
		Long: `Run inference over every configured fold checkpoint and write the submission.

Examples:
  modelfactory-cli predict bengali configs/bengali.toml
  modelfactory-cli predict numerai configs/numerai.toml --local`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			cfg, err := modelfactory.LoadConfig(args[1])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			if !local {
				p, err := mfsdk.Predict(args[0], cfg, submit)
				if err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				logJSONCmd(*cmd, p.Run)

				return
			}

			e, done, err := localEngine(args[0], cfg.WithSubmission(submit), cmd.ErrOrStderr(), cliLogger(cmd))
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			res, err := e.Predict(cmd.Context())
			done()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			res.Records = nil
			logJSONCmd(*cmd, res)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Run the engine in this process instead of the manager")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log engine progress in local mode")
	cmd.Flags().BoolVar(&submit, "submit", false, "Write prediction files even when the configuration does not")

	return cmd
}

func NewCompetitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "competitions",
		Short: "List competitions",
		Long:  `List the competitions the manager can train and predict.`,
		Run: func(cmd *cobra.Command, _ []string) {
			names, err := mfsdk.Competitions()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, names)
		},
	}
}

func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [list|view|epochs|watch]",
		Short: "Runs manager",
		Long:  `List and view training and prediction runs.`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		Long:  `List runs, newest first.`,
		Run: func(cmd *cobra.Command, _ []string) {
			page, err := mfsdk.ListRuns(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	viewCmd := &cobra.Command{
		Use:   "view <id>",
		Short: "View run",
		Long:  `View run.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			r, err := mfsdk.GetRun(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, r)
		},
	}

	epochsCmd := &cobra.Command{
		Use:   "epochs <id>",
		Short: "List run epochs",
		Long:  `List the epoch metrics recorded for a run.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := mfsdk.ListEpochs(args[0], defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch <id>",
		Short: "Follow run progress",
		Long:  `Print the epochs of a run as the manager publishes them, until the run finishes.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			if err := watchRun(cmd, args[0]); err != nil {
				logErrorCmd(*cmd, err)
			}
		},
	}
	watchCmd.Flags().StringVar(&mqttAddress, "mqtt-address", defMQTTAddress, "MQTT broker address")

	cmd.AddCommand(listCmd)
	cmd.AddCommand(viewCmd)
	cmd.AddCommand(epochsCmd)
	cmd.AddCommand(watchCmd)

	cmd.PersistentFlags().Uint64VarP(
		&defOffset,
		"offset",
		"o",
		defOffset,
		"Offset",
	)

	cmd.PersistentFlags().Uint64VarP(
		&defLimit,
		"limit",
		"l",
		defLimit,
		"Limit",
	)

	return cmd
}

func watchRun(cmd *cobra.Command, runID string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ps, err := mqtt.NewPubSub(mqttAddress, 1, "modelfactory-cli-"+uuid.NewString(), "", "", defMQTTTimeout, cliLogger(cmd))
	if err != nil {
		return err
	}
	defer ps.Disconnect(context.WithoutCancel(ctx))

	finished := make(chan struct{})
	var once sync.Once
	handler := func(p mqtt.Progress) error {
		switch {
		case p.Epoch != nil:
			logJSONCmd(*cmd, p.Epoch)
		case p.Run != nil:
			logJSONCmd(*cmd, p.Run)
			once.Do(func() { close(finished) })
		}

		return nil
	}
	stop, err := ps.WatchRun(ctx, runID, handler)
	if err != nil {
		return err
	}
	defer stop(context.WithoutCancel(ctx))

	select {
	case <-finished:
		logSuccessCmd(*cmd, "run finished")
	case <-ctx.Done():
	}

	return nil
}
