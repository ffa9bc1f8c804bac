package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var analyzeProject string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <path-or-url>",
	Short: "Analyze one recording and print the result without storing a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		res := env.Processor.Analyze(cmd.Context(), args[0], analyzeProject)
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if res.Failed() {
			return eris.Errorf("analysis failed: %s", res.Error)
		}
		return nil
	},
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "write output")
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeProject, "project", "", "project whose pros and objections steer the analysis")
	rootCmd.AddCommand(analyzeCmd)
}
