package batch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/applicant-pipeline/internal/airtable"
	"github.com/spigell/applicant-pipeline/internal/logger"
)

// Runner applies a Step to applicants one by one. By default a failing
// applicant is logged and the run continues; FailFast stops at the first one.
type Runner struct {
	decoder Decoder
	logger  *zap.Logger

	FailFast bool
	Recorder Recorder
}

func NewRunner(decoder Decoder, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{decoder: decoder, logger: logger}
}

func (r *Runner) Run(ctx context.Context, step Step, records []*airtable.Record) (Stats, error) {
	stats := Stats{Initial: len(records)}
	log := r.logger

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		entry := r.process(ctx, step, record)
		stats.add(entry.Outcome)
		r.report(ctx, log, entry)

		if entry.Err != nil && r.FailFast {
			return stats, fmt.Errorf("%s %s: %w", step.Name(), entry.RecordID, entry.Err)
		}
	}

	log.Info("batch step",
		zap.Int("initial", stats.Initial),
		zap.Int("done", stats.Done),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)

	return stats, nil
}

func (r *Runner) process(ctx context.Context, step Step, record *airtable.Record) Entry {
	entry := Entry{RecordID: record.ID}

	a, err := r.decoder.Decode(record)
	if err != nil {
		entry.Outcome = OutcomeFailed
		entry.Err = err
		return entry
	}
	entry.ApplicantID = a.ApplicantID

	result, err := step.Process(ctx, a)
	if err != nil {
		entry.Outcome = OutcomeFailed
		entry.Err = err
		return entry
	}

	entry.Outcome = result.Outcome
	entry.Detail = result.Detail
	return entry
}

func (r *Runner) report(ctx context.Context, log *zap.Logger, entry Entry) {
	fields := append(logger.ApplicantFields(entry.RecordID, entry.ApplicantID),
		zap.String("outcome", string(entry.Outcome)),
	)
	if entry.Detail != "" {
		fields = append(fields, zap.String("detail", entry.Detail))
	}

	if entry.Err != nil {
		log.Error("processing applicant failed", append(fields, zap.Error(entry.Err))...)
	} else {
		log.Info("processed applicant", fields...)
	}

	if r.Recorder == nil {
		return
	}
	if err := r.Recorder.Record(ctx, entry); err != nil {
		log.Warn("recording outcome failed", append(logger.ApplicantFields(entry.RecordID, ""), zap.Error(err))...)
	}
}
