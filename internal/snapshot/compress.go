package snapshot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/applicant-pipeline/internal/airtable"
	"github.com/spigell/applicant-pipeline/internal/applicant"
	"github.com/spigell/applicant-pipeline/internal/batch"
)

// Repository is what the compressor and expander need from the base.
type Repository interface {
	PersonalDetails(ctx context.Context, id string) (*applicant.PersonalDetails, error)
	SalaryPreference(ctx context.Context, id string) (*applicant.SalaryPreference, error)
	WorkExperience(ctx context.Context, id string) (*applicant.WorkExperience, error)
	InsertPersonalDetails(ctx context.Context, applicantRecordID string, details *applicant.PersonalDetails) (*airtable.Record, error)
	InsertSalaryPreference(ctx context.Context, applicantRecordID string, salary *applicant.SalaryPreference) (*airtable.Record, error)
	InsertWorkExperience(ctx context.Context, applicantRecordID string, experience *applicant.WorkExperience) (*airtable.Record, error)
	PatchApplicant(ctx context.Context, recordID, field string, value any) error
}

// Compressor stores a snapshot of every applicant's child records on the
// applicant itself.
type Compressor struct {
	repo   Repository
	codec  *Codec
	logger *zap.Logger
}

// NewCompressor returns the compress step.
func NewCompressor(repo Repository, codec *Codec, logger *zap.Logger) *Compressor {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Compressor{repo: repo, codec: codec, logger: logger}
}

// Name implements batch.Step.
func (c *Compressor) Name() string {
	return "compress"
}

// Build resolves the applicant's links into a document. Only the first link
// of the single-valued categories is used.
func (c *Compressor) Build(ctx context.Context, a *applicant.Applicant) (*Document, error) {
	doc := &Document{ApplicantID: a.ApplicantID}

	if len(a.PersonalDetailsLinks) > 0 {
		details, err := c.repo.PersonalDetails(ctx, a.PersonalDetailsLinks[0])
		if err != nil {
			return nil, fmt.Errorf("fetch personal details: %w", err)
		}
		doc.PersonalDetails = details
	}

	if len(a.SalaryPreferenceLinks) > 0 {
		salary, err := c.repo.SalaryPreference(ctx, a.SalaryPreferenceLinks[0])
		if err != nil {
			return nil, fmt.Errorf("fetch salary preference: %w", err)
		}
		doc.SalaryPreference = salary
	}

	if len(a.WorkExperienceLinks) > 0 {
		doc.WorkExperience = make([]*applicant.WorkExperience, 0, len(a.WorkExperienceLinks))
		for _, id := range a.WorkExperienceLinks {
			work, err := c.repo.WorkExperience(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("fetch work experience %s: %w", id, err)
			}
			doc.WorkExperience = append(doc.WorkExperience, work)
		}
	}

	return doc, nil
}

// Process builds the document and overwrites the applicant's snapshot field.
func (c *Compressor) Process(ctx context.Context, a *applicant.Applicant) (batch.Result, error) {
	doc, err := c.Build(ctx, a)
	if err != nil {
		return batch.Result{}, err
	}

	text, err := c.codec.Encode(doc)
	if err != nil {
		return batch.Result{}, err
	}

	if err := c.repo.PatchApplicant(ctx, a.RecordID, applicant.FieldSnapshot, text); err != nil {
		return batch.Result{}, fmt.Errorf("store snapshot: %w", err)
	}

	c.logger.Debug("snapshot stored",
		zap.String("record_id", a.RecordID),
		zap.Int("work_entries", len(doc.WorkExperience)),
		zap.Int("bytes", len(text)),
	)

	return batch.Done(fmt.Sprintf("%d work entries", len(doc.WorkExperience))), nil
}
