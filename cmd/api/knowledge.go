package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"sales-call-insights-go/internal/knowledge"
	"sales-call-insights-go/internal/logger"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage per-project selling points and objections",
}

var knowledgeImportCmd = &cobra.Command{
	Use:   "import <workbook.xlsx>",
	Short: "Load project pros and objections from an Excel workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.New().WithField("workbook", args[0])

		projects, err := knowledge.ImportWorkbook(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		for _, pk := range projects {
			if err := st.UpsertProject(cmd.Context(), pk); err != nil {
				return eris.Wrapf(err, "save project %s", pk.Project)
			}
			log.WithField("project", pk.Project).
				WithField("pros", len(pk.Pros)).
				WithField("objections", len(pk.Objections)).
				Info("project imported")
		}
		log.WithField("projects", len(projects)).Info("import complete")
		return nil
	},
}

var knowledgeShowCmd = &cobra.Command{
	Use:   "show <project>",
	Short: "Print a project's pros, objections and objection counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		pk, err := st.GetProject(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrapf(err, "project %s", args[0])
		}
		return printJSON(cmd.OutOrStdout(), pk)
	},
}

func init() {
	knowledgeCmd.AddCommand(knowledgeImportCmd, knowledgeShowCmd)
	rootCmd.AddCommand(knowledgeCmd)
}
