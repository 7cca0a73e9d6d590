// Package batch runs a processing step over applicants one at a time.
package batch

import (
	"context"

	"github.com/spigell/applicant-pipeline/internal/airtable"
	"github.com/spigell/applicant-pipeline/internal/applicant"
)

// Outcome of processing a single applicant.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Result describes what a step did with an applicant.
type Result struct {
	Outcome Outcome
	Detail  string
}

func Done(detail string) Result {
	return Result{Outcome: OutcomeDone, Detail: detail}
}

func Skipped(reason string) Result {
	return Result{Outcome: OutcomeSkipped, Detail: reason}
}

// Step is a single batch pass: compress, expand, shortlist or enrich.
type Step interface {
	Name() string
	Process(ctx context.Context, a *applicant.Applicant) (Result, error)
}

// Decoder turns listed records into applicants.
type Decoder interface {
	Decode(record *airtable.Record) (*applicant.Applicant, error)
}

// Entry is what the runner reports for every applicant.
type Entry struct {
	RecordID    string
	ApplicantID string
	Outcome     Outcome
	Detail      string
	Err         error
}

// Recorder receives every entry of a run, e.g. the run ledger.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Stats summarizes a run.
type Stats struct {
	Initial int
	Done    int
	Skipped int
	Failed  int
}

func (s *Stats) add(outcome Outcome) {
	switch outcome {
	case OutcomeDone:
		s.Done++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}
