package shortlist

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/applicant-pipeline/internal/airtable"
	"github.com/spigell/applicant-pipeline/internal/applicant"
	"github.com/spigell/applicant-pipeline/internal/batch"
	"github.com/spigell/applicant-pipeline/internal/snapshot"
)

// Store is where leads and the shortlist flag are written.
type Store interface {
	InsertLead(ctx context.Context, lead *applicant.Lead) (*airtable.Record, error)
	PatchApplicant(ctx context.Context, recordID, field string, value any) error
}

// Deduper remembers which snapshots were already turned into leads.
type Deduper interface {
	Seen(ctx context.Context, recordID, snapshot string) (bool, error)
	Mark(ctx context.Context, recordID, snapshot string) error
}

// Shortlister evaluates applicants against Rules and records qualifying ones
// as leads.
type Shortlister struct {
	store  Store
	codec  *snapshot.Codec
	rules  Rules
	logger *zap.Logger

	Dedup Deduper
	Now   func() time.Time
}

// NewShortlister returns the shortlist step. Dedup is off until set.
func NewShortlister(store Store, codec *snapshot.Codec, rules Rules, logger *zap.Logger) *Shortlister {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Shortlister{
		store:  store,
		codec:  codec,
		rules:  rules,
		logger: logger,
		Now:    time.Now,
	}
}

func (s *Shortlister) Name() string {
	return "shortlist"
}

// Process evaluates the snapshot and records a lead when every rule passes.
func (s *Shortlister) Process(ctx context.Context, a *applicant.Applicant) (batch.Result, error) {
	doc, err := s.codec.Decode(a.Snapshot)
	if err != nil {
		return batch.Result{}, err
	}

	decision, err := s.rules.Evaluate(doc, s.Now())
	if err != nil {
		return batch.Result{}, fmt.Errorf("evaluate: %w", err)
	}

	if !decision.Qualified {
		s.logger.Debug("applicant not shortlisted",
			zap.String("applicant_id", a.ApplicantID),
			zap.String("rule", decision.FailedRule),
			zap.Float64("years", decision.Years),
		)
		return batch.Skipped("failed " + decision.FailedRule + " rule"), nil
	}

	if s.Dedup != nil {
		seen, err := s.Dedup.Seen(ctx, a.RecordID, a.Snapshot)
		if err != nil {
			s.logger.Warn("lead dedup lookup failed", zap.String("record_id", a.RecordID), zap.Error(err))
		} else if seen {
			return batch.Skipped("lead already recorded"), nil
		}
	}

	s.logger.Info("shortlisting applicant",
		zap.String("applicant_id", a.ApplicantID),
		zap.String("reason", decision.Reason),
	)

	lead := &applicant.Lead{ApplicantRecordID: a.RecordID, Snapshot: a.Snapshot, Reason: decision.Reason}
	if _, err := s.store.InsertLead(ctx, lead); err != nil {
		return batch.Result{}, fmt.Errorf("insert lead: %w", err)
	}

	if err := s.store.PatchApplicant(ctx, a.RecordID, applicant.FieldShortlisted, true); err != nil {
		return batch.Result{}, fmt.Errorf("set shortlist status: %w", err)
	}

	if s.Dedup != nil {
		if err := s.Dedup.Mark(ctx, a.RecordID, a.Snapshot); err != nil {
			s.logger.Warn("lead dedup mark failed", zap.String("record_id", a.RecordID), zap.Error(err))
		}
	}

	return batch.Done(decision.Reason), nil
}
