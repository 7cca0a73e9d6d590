// Package snapshot folds an applicant and its child records into a single
// JSON document and unfolds such a document back into child records.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/spigell/applicant-pipeline/internal/applicant"
)

// Document is the decoded snapshot. A nil category was absent.
type Document struct {
	ApplicantID      string
	PersonalDetails  *applicant.PersonalDetails
	SalaryPreference *applicant.SalaryPreference
	WorkExperience   []*applicant.WorkExperience

	// Dropped lists unknown child attributes found while decoding,
	// as "<category>.<field>".
	Dropped []string
}

// MalformedError is returned for snapshot text that is not a valid document.
type MalformedError struct {
	Raw   string
	Cause error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed snapshot: %v", e.Cause)
}

func (e *MalformedError) Unwrap() error {
	return e.Cause
}

// Codec encodes and decodes documents. Category keys are the child table names.
type Codec struct {
	tables applicant.Tables
	schema *gojsonschema.Schema
}

// NewCodec compiles the document schema for the given table names.
func NewCodec(tables applicant.Tables) (*Codec, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(documentSchema(tables)))
	if err != nil {
		return nil, fmt.Errorf("compile snapshot schema: %w", err)
	}

	return &Codec{tables: tables, schema: schema}, nil
}

func documentSchema(tables applicant.Tables) map[string]any {
	object := map[string]any{"type": "object"}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			applicant.FieldApplicantID: map[string]any{"type": []string{"string", "null"}},
			tables.PersonalDetails:     object,
			tables.SalaryPreferences:   object,
			tables.WorkExperience: map[string]any{
				"type":  "array",
				"items": object,
			},
		},
	}
}

type member struct {
	key   string
	value any
}

// Encode serializes a document with keys in a fixed order: applicant id,
// personal details, salary preference, work experience.
func (c *Codec) Encode(doc *Document) (string, error) {
	members := []member{{applicant.FieldApplicantID, doc.ApplicantID}}
	if doc.PersonalDetails != nil {
		members = append(members, member{c.tables.PersonalDetails, doc.PersonalDetails})
	}
	if doc.SalaryPreference != nil {
		members = append(members, member{c.tables.SalaryPreferences, doc.SalaryPreference})
	}
	if doc.WorkExperience != nil {
		members = append(members, member{c.tables.WorkExperience, doc.WorkExperience})
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := marshal(m.key)
		if err != nil {
			return "", err
		}
		value, err := marshal(m.value)
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", m.key, err)
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')

	return buf.String(), nil
}

// marshal keeps characters such as & and < as written.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses snapshot text. Any failure is a *MalformedError.
func (c *Codec) Decode(raw string) (*Document, error) {
	malformed := func(err error) error {
		return &MalformedError{Raw: raw, Cause: err}
	}

	if strings.TrimSpace(raw) == "" {
		return nil, malformed(errors.New("empty document"))
	}

	result, err := c.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, malformed(err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, malformed(errors.New(strings.Join(problems, "; ")))
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &top); err != nil {
		return nil, malformed(err)
	}

	doc := &Document{}
	if id, ok := top[applicant.FieldApplicantID]; ok {
		var s *string
		if err := json.Unmarshal(id, &s); err != nil {
			return nil, malformed(err)
		}
		if s != nil {
			doc.ApplicantID = *s
		}
	}

	if data, ok := top[c.tables.PersonalDetails]; ok {
		doc.PersonalDetails, err = decodeCategory(doc, c.tables.PersonalDetails, data, applicant.DecodePersonalDetails)
		if err != nil {
			return nil, malformed(err)
		}
	}

	if data, ok := top[c.tables.SalaryPreferences]; ok {
		doc.SalaryPreference, err = decodeCategory(doc, c.tables.SalaryPreferences, data, applicant.DecodeSalaryPreference)
		if err != nil {
			return nil, malformed(err)
		}
	}

	if data, ok := top[c.tables.WorkExperience]; ok {
		var entries []json.RawMessage
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, malformed(err)
		}

		doc.WorkExperience = make([]*applicant.WorkExperience, 0, len(entries))
		for i, entry := range entries {
			name := fmt.Sprintf("%s[%d]", c.tables.WorkExperience, i)
			work, err := decodeCategory(doc, name, entry, applicant.DecodeWorkExperience)
			if err != nil {
				return nil, malformed(err)
			}
			doc.WorkExperience = append(doc.WorkExperience, work)
		}
	}

	return doc, nil
}

func decodeCategory[T any](doc *Document, name string, data json.RawMessage, decode func(map[string]any) (*T, []string, error)) (*T, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	child, dropped, err := decode(fields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	for _, field := range dropped {
		doc.Dropped = append(doc.Dropped, name+"."+field)
	}

	return child, nil
}
