package cmd

import (
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/applicant-pipeline/internal/applicant"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the applicant tables in the Airtable base",
	Run: func(cmd *cobra.Command, _ []string) {
		p := setup("setup")

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			prompt := promptui.Select{
				Label: "Create tables in base " + p.config.Airtable.BaseID + "?",
				Items: []string{PromptYes, PromptNo},
			}

			_, answer, err := prompt.Run()
			if err != nil {
				p.logger.Fatal("prompt failed", zap.Error(err))
			}
			if answer != PromptYes {
				p.logger.Info("exiting")
				return
			}
		}

		tables, err := applicant.Provision(cmd.Context(), p.client, p.config.Tables, p.logger)
		if err != nil {
			p.logger.Fatal("creating tables", zap.Int("created", len(tables)), zap.Error(err))
		}

		p.logger.Info("base is ready", zap.Int("tables", len(tables)))
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)

	setupCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}
