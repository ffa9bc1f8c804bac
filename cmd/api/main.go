package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"sales-call-insights-go/internal/config"
	"sales-call-insights-go/internal/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sales-call-insights",
	Short: "Analyze recorded sales calls",
	Long:  "Transcribes uploaded sales-call recordings, evaluates them with a language model and stores scores, objections and coaching insights.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load() // loads .env

		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		logger.Init(cfg.Log.Level, cfg.Log.Format)
		return nil
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.New().WithError(err).Error("command failed")
		os.Exit(1)
	}
}
