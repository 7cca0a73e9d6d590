package snapshot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/applicant-pipeline/internal/applicant"
	"github.com/spigell/applicant-pipeline/internal/batch"
)

// CategoryError is an insert failure for one category of an applicant.
type CategoryError struct {
	Category string
	Cause    error
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("restore %s: %v", e.Category, e.Cause)
}

func (e *CategoryError) Unwrap() error {
	return e.Cause
}

// Expander recreates child records from stored snapshots. A category is only
// restored when the applicant has no links for it, so repeated runs do not
// create duplicates.
type Expander struct {
	repo   Repository
	codec  *Codec
	logger *zap.Logger
}

// NewExpander returns the expand step.
func NewExpander(repo Repository, codec *Codec, logger *zap.Logger) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Expander{repo: repo, codec: codec, logger: logger}
}

func (e *Expander) Name() string {
	return "expand"
}

// Process restores every category the applicant has no links for.
func (e *Expander) Process(ctx context.Context, a *applicant.Applicant) (batch.Result, error) {
	if !a.HasSnapshot() {
		return batch.Skipped("no snapshot"), nil
	}

	doc, err := e.codec.Decode(a.Snapshot)
	if err != nil {
		var malformed *MalformedError
		if errors.As(err, &malformed) {
			e.logger.Warn("skipping malformed snapshot",
				zap.String("record_id", a.RecordID),
				zap.Error(malformed.Cause),
			)
			return batch.Skipped("malformed snapshot"), nil
		}
		return batch.Result{}, err
	}

	if len(doc.Dropped) > 0 {
		e.logger.Warn("dropping unknown snapshot fields",
			zap.String("record_id", a.RecordID),
			zap.Strings("fields", doc.Dropped),
		)
	}

	tables := e.codec.tables
	created := 0
	var errs []error

	if len(a.PersonalDetailsLinks) == 0 && doc.PersonalDetails != nil {
		if _, err := e.repo.InsertPersonalDetails(ctx, a.RecordID, doc.PersonalDetails); err != nil {
			errs = append(errs, &CategoryError{Category: tables.PersonalDetails, Cause: err})
		} else {
			created++
		}
	}

	if len(a.SalaryPreferenceLinks) == 0 && doc.SalaryPreference != nil {
		if _, err := e.repo.InsertSalaryPreference(ctx, a.RecordID, doc.SalaryPreference); err != nil {
			errs = append(errs, &CategoryError{Category: tables.SalaryPreferences, Cause: err})
		} else {
			created++
		}
	}

	if len(a.WorkExperienceLinks) == 0 {
		for i, work := range doc.WorkExperience {
			if _, err := e.repo.InsertWorkExperience(ctx, a.RecordID, work); err != nil {
				category := fmt.Sprintf("%s[%d]", tables.WorkExperience, i)
				errs = append(errs, &CategoryError{Category: category, Cause: err})
				continue
			}
			created++
		}
	}

	if len(errs) > 0 {
		return batch.Result{}, errors.Join(errs...)
	}

	if created == 0 {
		return batch.Skipped("all categories populated"), nil
	}

	e.logger.Debug("children restored", zap.String("record_id", a.RecordID), zap.Int("created", created))

	return batch.Done(fmt.Sprintf("created %d child records", created)), nil
}
