package cmd

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "applicants"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "applicants keeps an Airtable applicant base compressed, shortlisted and scored",
	}
)

// Execute executes the root command. SIGINT and SIGTERM cancel the running
// batch between applicants and during backoff waits.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

// Environment variables accepted next to the config file. The lowercase names
// are the ones older deployments keep in their .env files.
var envBindings = map[string][]string{
	"airtable.base-id":          {"AIRTABLE_BASE_ID", "airtable_base_id"},
	"airtable.token":            {"AIRTABLE_TOKEN", "airtable_token"},
	"airtable.token-file":       {"AIRTABLE_TOKEN_FILE"},
	"ai.gemini.api-key-file":    {"GEMINI_API_KEY_FILE"},
	"tables.applicants":         {"APPLICANTS_TABLE_NAME", "applicants_table_name"},
	"tables.personal-details":   {"PERSONAL_DETAILS_TABLE_NAME", "personal_details_table_name"},
	"tables.salary-preferences": {"SALARY_PREFERENCES_TABLE_NAME", "salary_preferences_table_name"},
	"tables.work-experience":    {"WORK_EXPERIENCE_TABLE_NAME", "work_experience_table_name"},
	"tables.shortlisted-leads":  {"SHORTLISTED_LEADS_TABLE_NAME", "shortlisted_leads_table_name"},
	"dedup.redis-addr":          {"REDIS_ADDR"},
	"dedup.password":            {"REDIS_PASSWORD"},
	"ledger.path":               {"APPLICANTS_LEDGER"},
}

func init() {
	for key, envs := range envBindings {
		if err := viper.BindEnv(append([]string{key}, envs...)...); err != nil {
			log.Fatalf("binding %v environment variables: %v", envs, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is applicants.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().Bool("fail-fast", false, "stop the batch at the first applicant that fails")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("fail-fast", rootCmd.PersistentFlags().Lookup("fail-fast"))
}

func initConfig() {
	// A missing .env is fine, a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// The default config file is optional: everything can come from the environment.
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}
