package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/applicant-pipeline/internal/ledger"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the latest batch runs from the local ledger",
	Run: func(cmd *cobra.Command, _ []string) {
		logger := newLogger()

		path := viper.GetString("ledger.path")
		if path == "" {
			logger.Fatal("ledger is not configured", zap.String("hint", "set ledger.path or APPLICANTS_LEDGER"))
		}

		l, err := ledger.Open(path)
		if err != nil {
			logger.Fatal("opening run ledger", zap.Error(err))
		}
		defer l.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := l.Runs(cmd.Context(), limit)
		if err != nil {
			logger.Fatal("reading runs", zap.Error(err))
		}

		if len(runs) == 0 {
			fmt.Println("no runs recorded yet")
			return
		}

		for _, run := range runs {
			failures, err := l.Failures(cmd.Context(), run.ID)
			if err != nil {
				logger.Fatal("reading failures", zap.String("run_id", run.ID), zap.Error(err))
			}
			fmt.Print(renderRun(run, failures))
		}
	},
}

func renderRun(run ledger.Summary, failures []ledger.Failure) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("%s  %s", run.Step, run.ID)))
	b.WriteString("\n")

	status := "running or interrupted"
	if run.Finished() {
		status = "finished in " + run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
	}
	fmt.Fprintf(&b, "%s %s (%s)\n", labelStyle.Render("Started:"), run.StartedAt.Format("2006-01-02 15:04:05"), status)
	fmt.Fprintf(&b, "%s initial=%d done=%d skipped=%d failed=%d\n",
		labelStyle.Render("Applicants:"), run.Initial, run.Done, run.Skipped, run.Failed)

	if run.Error != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Stopped:"), failedStyle.Render(run.Error))
	}

	for _, f := range failures {
		who := f.RecordID
		if f.ApplicantID != "" {
			who += " (" + f.ApplicantID + ")"
		}
		fmt.Fprintf(&b, "  %s %s\n", failedStyle.Render(who), f.Error)
	}

	return b.String()
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().IntP("limit", "n", 10, "number of runs to show")
}
