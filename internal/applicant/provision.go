package applicant

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/applicant-pipeline/internal/airtable"
)

// TableCreator creates tables through the meta API.
type TableCreator interface {
	CreateTable(ctx context.Context, spec airtable.TableSpec) (*airtable.Table, error)
}

func ApplicantsSpec(tables Tables) airtable.TableSpec {
	return airtable.TableSpec{
		Name:        tables.Applicants,
		Description: "Table for applicants",
		Fields: []airtable.FieldSpec{
			{Name: FieldApplicantID, Type: "email"},
			{Name: FieldSnapshot, Type: "multilineText"},
			{Name: FieldShortlisted, Type: "checkbox", Options: map[string]any{"color": "greenBright", "icon": "check"}},
			{Name: FieldSummary, Type: "multilineText"},
			{Name: FieldScore, Type: "number", Options: map[string]any{"precision": 0}},
			{Name: FieldFollowUps, Type: "multilineText"},
		},
	}
}

// ChildSpecs returns the tables linked to the applicants table, in creation
// order.
func ChildSpecs(tables Tables, applicantsTableID string) []airtable.TableSpec {
	link := airtable.FieldSpec{
		Name:    FieldApplicantLink,
		Type:    "multipleRecordLinks",
		Options: map[string]any{"linkedTableId": applicantsTableID},
	}
	localDate := map[string]any{"dateFormat": map[string]any{"name": "iso"}}
	currency := map[string]any{"precision": 2, "symbol": "$"}

	return []airtable.TableSpec{
		{
			Name:        tables.PersonalDetails,
			Description: "Table for personal details",
			Fields: []airtable.FieldSpec{
				{Name: "Full Name", Type: "singleLineText"},
				link,
				{Name: "Email", Type: "email"},
				{Name: "Location", Type: "multilineText"},
				{Name: "LinkedIn Profile", Type: "url"},
			},
		},
		{
			Name:        tables.WorkExperience,
			Description: "Table for work experience",
			Fields: []airtable.FieldSpec{
				{Name: FieldExperienceID, Type: "number", Options: map[string]any{"precision": 0}},
				link,
				{Name: "Company", Type: "singleLineText"},
				{Name: "Title", Type: "singleLineText"},
				{Name: "Start", Type: "date", Options: localDate},
				{Name: "End", Type: "date", Options: localDate},
				{Name: "Technologies", Type: "multilineText"},
			},
		},
		{
			Name:        tables.SalaryPreferences,
			Description: "Table for salary preferences",
			Fields: []airtable.FieldSpec{
				{Name: FieldSalaryPreferenceID, Type: "number", Options: map[string]any{"precision": 0}},
				link,
				{Name: "Preferred Rate", Type: "currency", Options: currency},
				{Name: "Minimum Rate", Type: "currency", Options: currency},
				{Name: "Currency", Type: "singleLineText"},
				{Name: "Availability", Type: "number", Options: map[string]any{"precision": 0}},
			},
		},
		{
			Name:        tables.ShortlistedLeads,
			Description: "Table for shortlisted leads",
			Fields: []airtable.FieldSpec{
				{Name: "Lead ID", Type: "number", Options: map[string]any{"precision": 0}},
				link,
				{Name: FieldSnapshot, Type: "multilineText"},
				{Name: FieldScoreReason, Type: "multilineText"},
			},
		},
	}
}

// Provision creates the applicants table and then every child table linked
// to it. It stops at the first failure.
func Provision(ctx context.Context, creator TableCreator, tables Tables, logger *zap.Logger) ([]*airtable.Table, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	parent, err := creator.CreateTable(ctx, ApplicantsSpec(tables))
	if err != nil {
		return nil, err
	}
	logger.Info("created table", zap.String("table", parent.Name), zap.String("table_id", parent.ID))

	created := []*airtable.Table{parent}
	for _, spec := range ChildSpecs(tables, parent.ID) {
		table, err := creator.CreateTable(ctx, spec)
		if err != nil {
			return created, fmt.Errorf("after %d tables: %w", len(created), err)
		}
		logger.Info("created table", zap.String("table", table.Name), zap.String("table_id", table.ID))
		created = append(created, table)
	}

	return created, nil
}
