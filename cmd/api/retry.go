package main

import (
	"github.com/spf13/cobra"

	"sales-call-insights-go/internal/logger"
	"sales-call-insights-go/internal/pipeline"
)

var retryCmd = &cobra.Command{
	Use:   "retry <recording-id>",
	Short: "Rerun the analysis of a stored recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Runner.Retry(cmd.Context(), args[0])
		if rec != nil {
			if perr := printJSON(cmd.OutOrStdout(), rec); perr != nil {
				return perr
			}
		}
		return err
	},
}

var (
	batchConcurrency int
	batchPerMinute   int
	batchProject     string
	batchLimit       uint64
)

var reanalyzeCmd = &cobra.Command{
	Use:   "reanalyze-failed",
	Short: "Rerun every failed recording whose artifact is a URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		opts := pipeline.BatchOptions{
			Project:     batchProject,
			Concurrency: cfg.Batch.Concurrency,
			PerMinute:   cfg.Batch.RunsPerMinute,
			Limit:       batchLimit,
		}
		if cmd.Flags().Changed("concurrency") {
			opts.Concurrency = batchConcurrency
		}
		if cmd.Flags().Changed("per-minute") {
			opts.PerMinute = batchPerMinute
		}

		rep, err := env.Runner.ReanalyzeFailed(cmd.Context(), opts)
		if err != nil {
			return err
		}
		logger.New().WithField("report", rep).Info("reanalysis finished")
		return printJSON(cmd.OutOrStdout(), rep)
	},
}

func init() {
	reanalyzeCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "parallel analyses (default from config)")
	reanalyzeCmd.Flags().IntVar(&batchPerMinute, "per-minute", 0, "max analyses started per minute, 0 for unpaced (default from config)")
	reanalyzeCmd.Flags().StringVar(&batchProject, "project", "", "only reanalyze this project")
	reanalyzeCmd.Flags().Uint64Var(&batchLimit, "limit", 0, "max recordings to reanalyze, 0 for all")
	rootCmd.AddCommand(retryCmd, reanalyzeCmd)
}
