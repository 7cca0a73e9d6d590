package applicant

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/applicant-pipeline/internal/airtable"
)

// TableClient is the part of the Airtable client the pipeline relies on.
type TableClient interface {
	ListRecords(ctx context.Context, table, formula string) ([]*airtable.Record, error)
	GetRecord(ctx context.Context, table, id string) (*airtable.Record, error)
	PatchField(ctx context.Context, table, id, field string, value any) error
	InsertRecord(ctx context.Context, table string, fields map[string]any) (*airtable.Record, error)
}

// SnapshotFilter selects applicants by the state of their snapshot field.
type SnapshotFilter int

const (
	SnapshotAny SnapshotFilter = iota
	SnapshotEmpty
	SnapshotPresent
)

func (f SnapshotFilter) formula() string {
	switch f {
	case SnapshotEmpty:
		return airtable.FieldEmpty(FieldSnapshot)
	case SnapshotPresent:
		return airtable.FieldNotEmpty(FieldSnapshot)
	default:
		return ""
	}
}

func (f SnapshotFilter) String() string {
	switch f {
	case SnapshotEmpty:
		return "snapshot empty"
	case SnapshotPresent:
		return "snapshot present"
	default:
		return "any"
	}
}

// Repository reads and writes applicant records and their children.
type Repository struct {
	client TableClient
	tables Tables
	logger *zap.Logger
}

func NewRepository(client TableClient, tables Tables, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Repository{client: client, tables: tables, logger: logger}
}

func (r *Repository) Tables() Tables {
	return r.tables
}

// List returns raw applicant records in the order Airtable lists them.
// Records are decoded one by one with Decode so a malformed record only
// affects itself.
func (r *Repository) List(ctx context.Context, filter SnapshotFilter) ([]*airtable.Record, error) {
	records, err := r.client.ListRecords(ctx, r.tables.Applicants, filter.formula())
	if err != nil {
		return nil, err
	}

	r.logger.Debug("listed applicants", zap.String("filter", filter.String()), zap.Int("count", len(records)))

	return records, nil
}

func (r *Repository) Decode(record *airtable.Record) (*Applicant, error) {
	return FromRecord(record, r.tables)
}

func (r *Repository) PersonalDetails(ctx context.Context, id string) (*PersonalDetails, error) {
	return fetchChild(ctx, r, r.tables.PersonalDetails, id, DecodePersonalDetails)
}

func (r *Repository) SalaryPreference(ctx context.Context, id string) (*SalaryPreference, error) {
	return fetchChild(ctx, r, r.tables.SalaryPreferences, id, DecodeSalaryPreference)
}

func (r *Repository) WorkExperience(ctx context.Context, id string) (*WorkExperience, error) {
	return fetchChild(ctx, r, r.tables.WorkExperience, id, DecodeWorkExperience)
}

func (r *Repository) InsertPersonalDetails(ctx context.Context, applicantRecordID string, details *PersonalDetails) (*airtable.Record, error) {
	return r.insertChild(ctx, r.tables.PersonalDetails, applicantRecordID, details)
}

func (r *Repository) InsertSalaryPreference(ctx context.Context, applicantRecordID string, salary *SalaryPreference) (*airtable.Record, error) {
	return r.insertChild(ctx, r.tables.SalaryPreferences, applicantRecordID, salary)
}

func (r *Repository) InsertWorkExperience(ctx context.Context, applicantRecordID string, experience *WorkExperience) (*airtable.Record, error) {
	return r.insertChild(ctx, r.tables.WorkExperience, applicantRecordID, experience)
}

// PatchApplicant writes a single field of an applicant record.
func (r *Repository) PatchApplicant(ctx context.Context, recordID, field string, value any) error {
	return r.client.PatchField(ctx, r.tables.Applicants, recordID, field, value)
}

func (r *Repository) InsertLead(ctx context.Context, lead *Lead) (*airtable.Record, error) {
	fields := map[string]any{
		FieldApplicantLink: []string{lead.ApplicantRecordID},
		FieldSnapshot:      lead.Snapshot,
		FieldScoreReason:   lead.Reason,
	}

	return r.client.InsertRecord(ctx, r.tables.ShortlistedLeads, fields)
}

func (r *Repository) insertChild(ctx context.Context, table, applicantRecordID string, child any) (*airtable.Record, error) {
	fields, err := ToFields(child)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", table, err)
	}

	fields[FieldApplicantLink] = []string{applicantRecordID}

	return r.client.InsertRecord(ctx, table, fields)
}

func fetchChild[T any](ctx context.Context, r *Repository, table, id string, decode func(map[string]any) (*T, []string, error)) (*T, error) {
	record, err := r.client.GetRecord(ctx, table, id)
	if err != nil {
		return nil, err
	}

	child, dropped, err := decode(record.Fields)
	if err != nil {
		return nil, &DecodeError{Table: table, RecordID: id, Cause: err}
	}

	if len(dropped) > 0 {
		r.logger.Warn("dropping unknown fields",
			zap.String("table", table),
			zap.String("record_id", id),
			zap.Strings("fields", dropped),
		)
	}

	return child, nil
}
