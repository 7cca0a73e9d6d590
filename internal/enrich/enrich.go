// Package enrich writes language model evaluations back to applicants.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/spigell/applicant-pipeline/internal/ai"
	"github.com/spigell/applicant-pipeline/internal/applicant"
	"github.com/spigell/applicant-pipeline/internal/batch"
	"github.com/spigell/applicant-pipeline/internal/logger"
	"github.com/spigell/applicant-pipeline/internal/utils"
)

const defaultMaxRetries = 3

var (
	wait        = utils.WaitFor
	backoffBase = time.Second
)

// Store is where evaluation fields are written.
type Store interface {
	PatchApplicant(ctx context.Context, recordID, field string, value any) error
}

// Enricher scores snapshots and writes summary, score and follow-ups field by
// field. A field that cannot be written does not stop the others.
type Enricher struct {
	store      Store
	scorer     ai.Scorer
	policy     *bluemonday.Policy
	maxRetries int
	logger     *zap.Logger
}

func New(store Store, scorer ai.Scorer, maxRetries int, log *zap.Logger) *Enricher {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Enricher{
		store:      store,
		scorer:     scorer,
		policy:     bluemonday.StrictPolicy(),
		maxRetries: maxRetries,
		logger:     log,
	}
}

func (e *Enricher) Name() string {
	return "enrich"
}

type field struct {
	name  string
	value any
}

func (e *Enricher) Process(ctx context.Context, a *applicant.Applicant) (batch.Result, error) {
	log := logger.WithFields(e.logger, logger.ApplicantFields(a.RecordID, a.ApplicantID)...)

	evaluation, err := e.scorer.Score(ctx, a.Snapshot)
	if err != nil {
		return batch.Result{}, fmt.Errorf("score: %w", err)
	}

	if evaluation.Failed() {
		log.Warn("model response rejected",
			zap.String("error", evaluation.Error),
			zap.String("raw", utils.TruncateForLog(evaluation.Raw, 200)),
		)
	}

	var errs []error
	written := 0
	for _, f := range e.fields(evaluation) {
		if f.value == nil {
			log.Info("field not found in response", zap.String("field", f.name))
			continue
		}

		if err := e.patch(ctx, a.RecordID, f.name, f.value); err != nil {
			log.Error("field update failed", zap.String("field", f.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
			continue
		}

		log.Info("field updated", zap.String("field", f.name))
		written++
	}

	if len(errs) > 0 {
		return batch.Result{}, errors.Join(errs...)
	}

	if written == 0 {
		reason := "no fields in response"
		if evaluation.Failed() {
			reason = evaluation.Error
		}
		return batch.Skipped(reason), nil
	}

	return batch.Done(fmt.Sprintf("%d fields written", written)), nil
}

// fields returns the write-back list in a fixed order. Missing values are nil.
func (e *Enricher) fields(evaluation *ai.Evaluation) []field {
	fields := []field{
		{name: applicant.FieldSummary},
		{name: applicant.FieldScore},
		{name: applicant.FieldFollowUps},
	}

	if evaluation.Summary != nil {
		if summary := e.sanitize(*evaluation.Summary); summary != "" {
			fields[0].value = summary
		}
	}

	if evaluation.Score != nil {
		fields[1].value = *evaluation.Score
	}

	followUps := make([]string, 0, len(evaluation.FollowUps))
	for _, q := range evaluation.FollowUps {
		if q = e.sanitize(q); q != "" {
			followUps = append(followUps, q)
		}
	}
	if len(followUps) > 0 {
		fields[2].value = followUps
	}

	return fields
}

// htmlTag matches tags of elements a model plausibly emits. Anything else in
// angle brackets, such as List<T>, is text.
var htmlTag = regexp.MustCompile(`(?i)</?(?:a|b|br|code|div|em|h[1-6]|hr|i|img|li|ol|p|pre|script|span|strong|style|table|td|th|tr|u|ul)(?:\s[^<>]*)?/?>`)

// sanitize strips markup the model may have produced.
func (e *Enricher) sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(e.policy.Sanitize(escapeText(s))))
}

// escapeText escapes every '<' that does not open an htmlTag match, so the
// policy keeps it as text.
func escapeText(s string) string {
	var b strings.Builder
	last := 0
	for _, loc := range htmlTag.FindAllStringIndex(s, -1) {
		b.WriteString(strings.ReplaceAll(s[last:loc[0]], "<", "&lt;"))
		b.WriteString(s[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(strings.ReplaceAll(s[last:], "<", "&lt;"))
	return b.String()
}

func (e *Enricher) patch(ctx context.Context, recordID, name string, value any) error {
	var err error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if err = e.store.PatchApplicant(ctx, recordID, name, value); err == nil {
			return nil
		}

		if attempt == e.maxRetries-1 {
			break
		}

		delay := utils.Backoff(backoffBase, attempt)
		e.logger.Debug("retrying field update",
			zap.String("field", name),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if werr := wait(ctx, delay); werr != nil {
			return werr
		}
	}

	return err
}
