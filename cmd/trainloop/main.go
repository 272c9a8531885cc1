package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/boristopalov/trainloop/internal/app"
	"github.com/boristopalov/trainloop/internal/logger"
	"github.com/boristopalov/trainloop/internal/telemetry"
	"github.com/boristopalov/trainloop/pkg/config"
	"github.com/boristopalov/trainloop/pkg/logging"
)

var version = "dev"

type runFlags struct {
	configPath          string
	episodes            int
	minObservations     int
	observationsPerStep float64
	env                 string
	actor               string
	logLevel            string
	replay              string
	progress            bool
}

func main() {
	if err := config.LoadDotEnv(".env", "../../.env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "trainloop",
		Short:        "trainloop runs an agent against an environment and schedules its learning steps.",
		SilenceUsage: true,
	}

	flags := &runFlags{}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run episodes of the configured environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraining(cmd, flags)
		},
	}
	runCmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML run config")
	runCmd.Flags().IntVarP(&flags.episodes, "episodes", "n", 0, "number of episodes, <= 0 runs until interrupted")
	runCmd.Flags().IntVar(&flags.minObservations, "min-observations", 0, "feedback events before the first learner step")
	runCmd.Flags().Float64Var(&flags.observationsPerStep, "observations-per-step", 1, "feedback events per learner step")
	runCmd.Flags().StringVar(&flags.env, "env", "", "environment type: corridor, bandit")
	runCmd.Flags().StringVar(&flags.actor, "actor", "", "actor type: random, constant, llm")
	runCmd.Flags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	runCmd.Flags().StringVar(&flags.replay, "replay", "", "replay backend: none, memory, sqlite")
	runCmd.Flags().BoolVar(&flags.progress, "progress", false, "print one line per finished episode")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	rootCmd.AddCommand(runCmd, versionCmd)
	return rootCmd
}

func runTraining(cmd *cobra.Command, flags *runFlags) error {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg, flags)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.Init(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		ServiceVersion: version,
		Stdout:         cfg.Tracing.Stdout,
		Writer:         cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	run, err := app.Build(ctx, cfg, app.WithLogger(log))
	if err != nil {
		return err
	}
	defer run.Close()

	stopProgress := func() {}
	if flags.progress {
		stopProgress, err = printProgress(cmd, run.Broadcast)
		if err != nil {
			return err
		}
	}

	err = run.Execute(ctx)
	stopProgress()
	if errors.Is(err, context.Canceled) {
		log.Info("interrupted")
		err = nil
	}
	if err != nil {
		return err
	}

	summary, err := run.Summary()
	if err != nil {
		return err
	}
	for _, k := range slices.Sorted(maps.Keys(summary)) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %g\n", k, summary[k])
	}
	return nil
}

// printProgress prints every episode summary until the returned func is
// called.
func printProgress(cmd *cobra.Command, b *logging.Broadcaster) (func(), error) {
	ch := make(chan logging.Data, 64)
	if err := b.Subscribe("progress", ch); err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for data := range ch {
			fmt.Fprintf(cmd.OutOrStdout(), "episode %v: length=%v return=%.3f\n",
				data["episodes"], data["episode_length"], data["episode_return"])
		}
	}()
	return func() {
		_ = b.Unsubscribe("progress")
		close(ch)
		<-done
	}, nil
}

// applyFlags lets explicitly set flags override the loaded config.
func applyFlags(cmd *cobra.Command, cfg *config.RunConfig, flags *runFlags) {
	set := cmd.Flags().Changed
	if set("episodes") {
		cfg.Episodes = flags.episodes
	}
	if set("min-observations") {
		cfg.Agent.MinObservations = flags.minObservations
	}
	if set("observations-per-step") {
		cfg.Agent.ObservationsPerStep = flags.observationsPerStep
	}
	if set("env") {
		cfg.Environment.Type = flags.env
	}
	if set("actor") {
		cfg.Agent.Actor.Type = flags.actor
	}
	if set("log-level") {
		cfg.Logging.Level = flags.logLevel
	}
	if set("replay") {
		cfg.Replay.Backend = flags.replay
	}
}
