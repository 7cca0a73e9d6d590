package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/applicant-pipeline/internal/airtable"
	"github.com/spigell/applicant-pipeline/internal/applicant"
	"github.com/spigell/applicant-pipeline/internal/batch"
	"github.com/spigell/applicant-pipeline/internal/ledger"
	"github.com/spigell/applicant-pipeline/internal/logger"
	"github.com/spigell/applicant-pipeline/internal/secrets"
	"github.com/spigell/applicant-pipeline/internal/snapshot"
)

// pipeline holds what every batch command needs.
type pipeline struct {
	logger *zap.Logger
	config *Config
	client *airtable.Client
	repo   *applicant.Repository
	codec  *snapshot.Codec
}

// newLogger builds the logger from the persistent flags.
func newLogger() *zap.Logger {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return logger
}

// setup loads the config and connects to Airtable. Any failure is fatal.
func setup(command string) *pipeline {
	logger := newLogger()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting", zap.String("command", command), zap.String("version", version))

	logger.Debug(fmt.Sprintf("starting with config: \n %s", config.dump()))

	token, err := secrets.Load(secrets.Source{
		Name:  "airtable token",
		Value: config.Airtable.Token,
		File:  config.Airtable.TokenFile,
	})
	if err != nil {
		logger.Fatal("loading airtable token",
			zap.Error(err),
			zap.String("hint", "set AIRTABLE_TOKEN (or airtable_token in .env) or the 'airtable.token-file' key in the configuration file"),
		)
	}

	client := airtable.New(logger, token, config.Airtable.BaseID)
	if config.Airtable.APIURL != "" {
		client.APIURL = config.Airtable.APIURL
	}
	if config.Airtable.Timeout > 0 {
		client.HTTPClient.Timeout = config.Airtable.Timeout
	}
	client.RateRetries = config.Airtable.RateRetries

	codec, err := snapshot.NewCodec(config.Tables)
	if err != nil {
		logger.Fatal("building snapshot codec", zap.Error(err))
	}

	return &pipeline{
		logger: logger,
		config: config,
		client: client,
		repo:   applicant.NewRepository(client, config.Tables, logger),
		codec:  codec,
	}
}

// run lists applicants and applies step to each of them. Failures of single
// applicants are logged and counted; a listing failure or a failure under
// --fail-fast ends the process.
func (p *pipeline) run(ctx context.Context, step batch.Step, filter applicant.SnapshotFilter) batch.Stats {
	records, err := p.repo.List(ctx, filter)
	if err != nil {
		p.logger.Fatal("listing applicants", zap.String("filter", filter.String()), zap.Error(err))
	}

	var run *ledger.Run
	if p.config.Ledger != nil && p.config.Ledger.Path != "" {
		l, err := ledger.Open(p.config.Ledger.Path)
		if err != nil {
			p.logger.Fatal("opening run ledger", zap.Error(err))
		}
		defer l.Close()

		if run, err = l.StartRun(ctx, step.Name()); err != nil {
			p.logger.Fatal("starting run", zap.Error(err))
		}
	}

	runID := ""
	if run != nil {
		runID = run.ID
	}
	runLog := logger.WithFields(p.logger, logger.RunFields(runID, step.Name())...)

	runner := batch.NewRunner(p.repo, runLog)
	runner.FailFast = p.config.FailFast
	if run != nil {
		runner.Recorder = run
	}

	if len(records) == 0 {
		runLog.Info("no applicants found", zap.String("filter", filter.String()))
	}

	stats, runErr := runner.Run(ctx, step, records)

	if run != nil {
		// The run may have been cancelled; the ledger still gets its end.
		if err := run.Finish(context.WithoutCancel(ctx), stats, runErr); err != nil {
			runLog.Warn("finishing run", zap.Error(err))
		}
	}

	if runErr != nil {
		runLog.Fatal("batch stopped", zap.Error(runErr))
	}

	return stats
}
