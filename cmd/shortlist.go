package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/applicant-pipeline/internal/applicant"
	"github.com/spigell/applicant-pipeline/internal/dedup"
	"github.com/spigell/applicant-pipeline/internal/shortlist"
)

var shortlistCmd = &cobra.Command{
	Use:   "shortlist",
	Short: "Evaluate snapshots against the shortlist rules and record qualifying leads",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		p := setup("shortlist")

		rules, err := p.config.shortlistRules()
		if err != nil {
			p.logger.Fatal("loading shortlist rules", zap.Error(err))
		}

		shortlister := shortlist.NewShortlister(p.repo, p.codec, rules, p.logger)

		if cfg := p.config.Dedup; cfg != nil && cfg.RedisAddr != "" {
			client, err := dedup.Connect(ctx, cfg.RedisAddr, cfg.Password, cfg.DB)
			if err != nil {
				p.logger.Fatal("connecting to redis", zap.Error(err))
			}
			defer client.Close()

			shortlister.Dedup = dedup.New(client, cfg.Prefix, cfg.TTL)
			p.logger.Info("lead dedup enabled", zap.String("redis", cfg.RedisAddr))
		}

		p.run(ctx, shortlister, applicant.SnapshotPresent)
	},
}

func init() {
	rootCmd.AddCommand(shortlistCmd)
}
