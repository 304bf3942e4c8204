package cli

import (
	"github.com/spf13/cobra"

	"github.com/quillan/bleuwatch/internal/report"
)

func newReportCmd() *cobra.Command {
	var tags []string
	var asCSV bool
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "report <events.jsonl>",
		Short: "Summarize an emitted metric event stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := report.Run(report.Options{
				EventsPath: args[0],
				Tags:       tags,
			})
			if err != nil {
				return err
			}
			if asCSV {
				return rep.WriteCSV(cmd.OutOrStdout())
			}
			return rep.WriteTable(cmd.OutOrStdout())
		},
	})
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "only include these metric tags")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "emit CSV instead of a table")
	return cmd
}
