package cmd

import (
	"github.com/spf13/cobra"

	"github.com/spigell/applicant-pipeline/internal/applicant"
	"github.com/spigell/applicant-pipeline/internal/snapshot"
)

var compressCmd = &cobra.Command{
	Use:   "compress",
	Short: "Fold every applicant's child records into its Compressed JSON field",
	Run: func(cmd *cobra.Command, _ []string) {
		p := setup("compress")

		filter := applicant.SnapshotAny
		if onlyMissing, _ := cmd.Flags().GetBool("only-missing"); onlyMissing {
			filter = applicant.SnapshotEmpty
		}

		p.run(cmd.Context(), snapshot.NewCompressor(p.repo, p.codec, p.logger), filter)
	},
}

func init() {
	rootCmd.AddCommand(compressCmd)

	compressCmd.Flags().Bool("only-missing", false, "only compress applicants without a snapshot")
}
