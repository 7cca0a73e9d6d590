package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/applicant-pipeline/internal/ai/gemini"
	"github.com/spigell/applicant-pipeline/internal/applicant"
	"github.com/spigell/applicant-pipeline/internal/enrich"
	"github.com/spigell/applicant-pipeline/internal/secrets"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Score snapshots with Gemini and write summary, score and follow-ups",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		p := setup("enrich")

		if p.config.AI == nil || p.config.AI.Gemini == nil {
			p.logger.Fatal("gemini configuration is required under ai.gemini")
		}
		cfg := p.config.AI.Gemini

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.APIKey,
			File:  cfg.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			p.logger.Fatal("loading gemini api key", zap.Error(err))
		}

		generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Model, cfg.MaxRetries, p.logger)
		if err != nil {
			p.logger.Fatal("creating gemini generator", zap.Error(err))
		}

		scorer := gemini.NewScorer(generator, p.logger, cfg.MaxLogLength)
		p.logger.Info("scoring applicants", zap.String("model", scorer.Model()))

		p.run(ctx, enrich.New(p.repo, scorer, cfg.MaxRetries, p.logger), applicant.SnapshotPresent)
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}
