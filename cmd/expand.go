package cmd

import (
	"github.com/spf13/cobra"

	"github.com/spigell/applicant-pipeline/internal/applicant"
	"github.com/spigell/applicant-pipeline/internal/snapshot"
)

var expandCmd = &cobra.Command{
	Use:   "expand",
	Short: "Recreate missing child records from stored snapshots",
	Run: func(cmd *cobra.Command, _ []string) {
		p := setup("expand")
		p.run(cmd.Context(), snapshot.NewExpander(p.repo, p.codec, p.logger), applicant.SnapshotPresent)
	},
}

func init() {
	rootCmd.AddCommand(expandCmd)
}
