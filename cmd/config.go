package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/spigell/applicant-pipeline/internal/applicant"
	"github.com/spigell/applicant-pipeline/internal/shortlist"
)

type Config struct {
	Airtable  *AirtableConfig  `mapstructure:"airtable" validate:"required"`
	Tables    applicant.Tables `mapstructure:"tables"`
	Rules     *shortlist.Rules `mapstructure:"rules"`
	RulesFile string           `mapstructure:"rules-file"`
	AI        *AIConfig        `mapstructure:"ai"`
	Dedup     *DedupConfig     `mapstructure:"dedup"`
	Ledger    *LedgerConfig    `mapstructure:"ledger"`
	FailFast  bool             `mapstructure:"fail-fast"`
}

type AirtableConfig struct {
	BaseID      string        `mapstructure:"base-id" validate:"required"`
	Token       string        `mapstructure:"token" json:"-"`
	TokenFile   string        `mapstructure:"token-file"`
	APIURL      string        `mapstructure:"api-url" validate:"omitempty,url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RateRetries int           `mapstructure:"rate-retries" validate:"gte=0"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider" validate:"omitempty,oneof=gemini"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key" json:"-"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries" validate:"gte=0"`
	MaxLogLength int    `mapstructure:"max-log-length" validate:"gte=0"`
}

type DedupConfig struct {
	RedisAddr string        `mapstructure:"redis-addr"`
	Password  string        `mapstructure:"password" json:"-"`
	DB        int           `mapstructure:"db"`
	Prefix    string        `mapstructure:"prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

func setDefaults() {
	tables := applicant.DefaultTables()
	viper.SetDefault("tables.applicants", tables.Applicants)
	viper.SetDefault("tables.personal-details", tables.PersonalDetails)
	viper.SetDefault("tables.salary-preferences", tables.SalaryPreferences)
	viper.SetDefault("tables.work-experience", tables.WorkExperience)
	viper.SetDefault("tables.shortlisted-leads", tables.ShortlistedLeads)

	viper.SetDefault("airtable.timeout", 10*time.Second)
	viper.SetDefault("airtable.rate-retries", 3)

	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("ai.gemini.max-log-length", 200)
}

var validate = validator.New()

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config == nil {
		return nil, fmt.Errorf("config is empty")
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// dump renders the config for debug output. Secret values are never part of it.
func (c *Config) dump() string {
	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(c, "", "  ")
	return string(pretty)
}

// shortlistRules returns the inline rules, or the rules kept in a separate
// file with the same keys at the top level.
func (c *Config) shortlistRules() (shortlist.Rules, error) {
	var rules shortlist.Rules

	switch {
	case c.RulesFile != "":
		v := viper.New()
		v.SetConfigFile(c.RulesFile)
		if err := v.ReadInConfig(); err != nil {
			return rules, fmt.Errorf("reading rules file: %w", err)
		}
		if err := v.Unmarshal(&rules); err != nil {
			return rules, fmt.Errorf("decoding rules file: %w", err)
		}
	case c.Rules != nil:
		rules = *c.Rules
	default:
		return rules, fmt.Errorf("shortlist rules are not configured (set rules or rules-file)")
	}

	return rules, rules.Validate()
}
