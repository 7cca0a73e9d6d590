// Package airtabletest provides an in-memory Airtable base for tests.
package airtabletest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/spigell/applicant-pipeline/internal/airtable"
)

// Patch is a recorded PatchField call.
type Patch struct {
	Table string
	ID    string
	Field string
	Value any
}

// Base is an in-memory stand-in for an Airtable base. It understands the two
// formulas the pipeline uses: {Field} = "" and {Field} != "".
type Base struct {
	mu      sync.Mutex
	tables  map[string][]*airtable.Record
	nextID  int
	Patches []Patch
	Inserts map[string]int

	// ParentTable and BackReference enable link mirroring on insert.
	ParentTable   string
	BackReference string

	// Fail* hooks return an error for the given call when non-nil.
	FailGet    func(table, id string) error
	FailPatch  func(table, id, field string) error
	FailInsert func(table string, fields map[string]any) error
	FailList   func(table string) error
}

func New() *Base {
	return &Base{
		tables:  make(map[string][]*airtable.Record),
		Inserts: make(map[string]int),
	}
}

// Add stores a record with a generated id and returns the id.
func (b *Base) Add(table string, fields map[string]any) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.add(table, fields).ID
}

// Set replaces a field value without recording a patch.
func (b *Base) Set(table, id, field string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if record := b.find(table, id); record != nil {
		record.Fields[field] = value
	}
}

// Link appends childID to the link field of the parent record.
func (b *Base) Link(table, parentID, field, childID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	record := b.find(table, parentID)
	if record == nil {
		return
	}

	ids, _ := record.Fields[field].([]string)
	record.Fields[field] = append(ids, childID)
}

// Records returns a copy of the records of a table.
func (b *Base) Records(table string) []*airtable.Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*airtable.Record, 0, len(b.tables[table]))
	for _, r := range b.tables[table] {
		out = append(out, clone(r))
	}
	return out
}

// Record returns a copy of a single record or nil.
func (b *Base) Record(table, id string) *airtable.Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r := b.find(table, id); r != nil {
		return clone(r)
	}
	return nil
}

func (b *Base) ListRecords(_ context.Context, table, formula string) ([]*airtable.Record, error) {
	if b.FailList != nil {
		if err := b.FailList(table); err != nil {
			return nil, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	field, wantEmpty, filtered := parseFormula(formula)

	out := make([]*airtable.Record, 0)
	for _, r := range b.tables[table] {
		if filtered && isEmpty(r.Fields[field]) != wantEmpty {
			continue
		}
		out = append(out, clone(r))
	}

	return out, nil
}

func (b *Base) GetRecord(_ context.Context, table, id string) (*airtable.Record, error) {
	if b.FailGet != nil {
		if err := b.FailGet(table, id); err != nil {
			return nil, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.find(table, id)
	if r == nil {
		return nil, &airtable.APIError{StatusCode: 404, Status: "404 Not Found", Type: "NOT_FOUND"}
	}

	return clone(r), nil
}

func (b *Base) PatchField(_ context.Context, table, id, field string, value any) error {
	if b.FailPatch != nil {
		if err := b.FailPatch(table, id, field); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.find(table, id)
	if r == nil {
		return &airtable.APIError{StatusCode: 404, Status: "404 Not Found", Type: "NOT_FOUND"}
	}

	stored := value
	switch value.(type) {
	case nil, string, bool, int, int32, int64, float32, float64:
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		stored = string(data)
	}

	r.Fields[field] = stored
	b.Patches = append(b.Patches, Patch{Table: table, ID: id, Field: field, Value: value})

	return nil
}

// InsertRecord stores the record. When ParentTable is set it also mirrors the
// BackReference link onto the parent's field named after the child table, the
// way Airtable keeps both sides of a link in sync.
func (b *Base) InsertRecord(_ context.Context, table string, fields map[string]any) (*airtable.Record, error) {
	if b.FailInsert != nil {
		if err := b.FailInsert(table, fields); err != nil {
			return nil, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.Inserts[table]++
	record := b.add(table, fields)

	if b.ParentTable != "" && table != b.ParentTable {
		parents, _ := fields[b.BackReference].([]string)
		for _, parentID := range parents {
			if parent := b.find(b.ParentTable, parentID); parent != nil {
				ids, _ := parent.Fields[table].([]string)
				parent.Fields[table] = append(ids, record.ID)
			}
		}
	}

	return clone(record), nil
}

func (b *Base) add(table string, fields map[string]any) *airtable.Record {
	b.nextID++
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	record := &airtable.Record{ID: fmt.Sprintf("rec%04d", b.nextID), Fields: copied}
	b.tables[table] = append(b.tables[table], record)
	return record
}

func (b *Base) find(table, id string) *airtable.Record {
	for _, r := range b.tables[table] {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func clone(r *airtable.Record) *airtable.Record {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		if ids, ok := v.([]string); ok {
			v = append([]string(nil), ids...)
		}
		fields[k] = v
	}
	return &airtable.Record{ID: r.ID, CreatedTime: r.CreatedTime, Fields: fields}
}

func parseFormula(formula string) (field string, wantEmpty bool, ok bool) {
	formula = strings.TrimSpace(formula)
	if formula == "" || !strings.HasPrefix(formula, "{") {
		return "", false, false
	}

	end := strings.Index(formula, "}")
	if end < 0 {
		return "", false, false
	}

	field = formula[1:end]
	rest := strings.TrimSpace(formula[end+1:])
	switch rest {
	case `= ""`:
		return field, true, true
	case `!= ""`:
		return field, false, true
	default:
		return "", false, false
	}
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []string:
		return len(val) == 0
	default:
		return false
	}
}
