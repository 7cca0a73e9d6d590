package applicant

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/spigell/applicant-pipeline/internal/airtable"
)

var validate = validator.New()

// Bookkeeping fields never leave the child tables.
var (
	personalBookkeeping = []string{FieldPersonalDetailsID, FieldCreatedBy, FieldApplicantLink}
	salaryBookkeeping   = []string{FieldSalaryPreferenceID, FieldCreatedBy, FieldApplicantLink}
	workBookkeeping     = []string{FieldExperienceID, FieldCreatedBy, FieldApplicantLink}
)

// DecodeError marks a record with a shape the pipeline does not accept.
type DecodeError struct {
	Table    string
	RecordID string
	Cause    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s/%s: %v", e.Table, e.RecordID, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

type applicantFields struct {
	ApplicantID string `mapstructure:"Applicant ID"`
	Snapshot    string `mapstructure:"Compressed JSON"`
	Shortlisted bool   `mapstructure:"Shortlist Status"`
}

// FromRecord builds an Applicant out of a record of the applicants table.
func FromRecord(record *airtable.Record, tables Tables) (*Applicant, error) {
	if record == nil {
		return nil, &DecodeError{Table: tables.Applicants, Cause: fmt.Errorf("record is nil")}
	}

	wrap := func(err error) error {
		return &DecodeError{Table: tables.Applicants, RecordID: record.ID, Cause: err}
	}

	var fields applicantFields
	if _, err := decodeFields(record.Fields, &fields); err != nil {
		return nil, wrap(err)
	}

	a := &Applicant{
		RecordID:    record.ID,
		ApplicantID: fields.ApplicantID,
		Snapshot:    fields.Snapshot,
		Shortlisted: fields.Shortlisted,
	}

	var err error
	if a.PersonalDetailsLinks, err = links(record.Fields, tables.PersonalDetails); err != nil {
		return nil, wrap(err)
	}
	if a.SalaryPreferenceLinks, err = links(record.Fields, tables.SalaryPreferences); err != nil {
		return nil, wrap(err)
	}
	if a.WorkExperienceLinks, err = links(record.Fields, tables.WorkExperience); err != nil {
		return nil, wrap(err)
	}

	return a, nil
}

func DecodePersonalDetails(fields map[string]any) (*PersonalDetails, []string, error) {
	return decodeChild[PersonalDetails](fields, personalBookkeeping)
}

func DecodeSalaryPreference(fields map[string]any) (*SalaryPreference, []string, error) {
	return decodeChild[SalaryPreference](fields, salaryBookkeeping)
}

func DecodeWorkExperience(fields map[string]any) (*WorkExperience, []string, error) {
	return decodeChild[WorkExperience](fields, workBookkeeping)
}

// decodeChild decodes and validates child attributes. Bookkeeping fields are
// dropped silently, other unknown fields are dropped and returned so the
// caller can report them.
func decodeChild[T any](fields map[string]any, bookkeeping []string) (*T, []string, error) {
	child := new(T)

	unused, err := decodeFields(fields, child)
	if err != nil {
		return nil, nil, err
	}

	if err := validate.Struct(child); err != nil {
		return nil, nil, fmt.Errorf("validate: %w", err)
	}

	dropped := make([]string, 0, len(unused))
	for _, key := range unused {
		if !contains(bookkeeping, key) {
			dropped = append(dropped, key)
		}
	}
	sort.Strings(dropped)

	return child, dropped, nil
}

// ToFields turns a child struct into the field map used for inserts.
func ToFields(child any) (map[string]any, error) {
	data, err := json.Marshal(child)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	return fields, nil
}

func decodeFields(fields map[string]any, target any) ([]string, error) {
	md := &mapstructure.Metadata{}
	cfg := &mapstructure.DecoderConfig{
		Metadata:         md,
		Result:           target,
		WeaklyTypedInput: true,
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(fields); err != nil {
		return nil, err
	}

	return md.Unused, nil
}

func links(fields map[string]any, name string) ([]string, error) {
	raw, ok := fields[name]
	if !ok || raw == nil {
		return nil, nil
	}

	var ids []string
	if err := mapstructure.Decode(raw, &ids); err != nil {
		return nil, fmt.Errorf("link field %q: %w", name, err)
	}

	return ids, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
