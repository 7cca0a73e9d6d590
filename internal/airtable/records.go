package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Record is a row of any Airtable table.
type Record struct {
	ID          string         `json:"id,omitempty"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

type listResponse struct {
	Records []*Record `json:"records"`
	Offset  string    `json:"offset,omitempty"`
}

type fieldsPayload struct {
	Fields map[string]any `json:"fields"`
}

// FieldEmpty builds a formula matching records where field is blank.
func FieldEmpty(field string) string {
	return fmt.Sprintf(`{%s} = ""`, field)
}

// FieldNotEmpty builds a formula matching records where field is filled out.
func FieldNotEmpty(field string) string {
	return fmt.Sprintf(`{%s} != ""`, field)
}

// ListRecords returns records of table matching formula from all pages.
// An empty formula lists the whole table.
func (c *Client) ListRecords(ctx context.Context, table, formula string) ([]*Record, error) {
	var records []*Record

	q := url.Values{}
	q.Set("pageSize", pageSize)
	if formula != "" {
		q.Set("filterByFormula", formula)
	}

	for {
		var response listResponse
		if err := c.doJSON(ctx, "GET", c.tableURL(table)+"?"+q.Encode(), nil, &response); err != nil {
			return nil, fmt.Errorf("list %s: %w", table, err)
		}

		records = append(records, response.Records...)

		if response.Offset == "" {
			break
		}

		c.logger.Debug("additional request needed",
			zap.String("table", table),
			zap.Int("records_so_far", len(records)),
		)
		q.Set("offset", response.Offset)
	}

	return records, nil
}

// GetRecord fetches a single record by id.
func (c *Client) GetRecord(ctx context.Context, table, id string) (*Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("record id is required")
	}

	var record Record
	if err := c.doJSON(ctx, "GET", c.recordURL(table, id), nil, &record); err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", table, id, err)
	}

	if record.Fields == nil {
		record.Fields = make(map[string]any)
	}

	return &record, nil
}

// PatchField updates a single field of a record. Strings, numbers and booleans
// are sent as they are, everything else is serialized to JSON text first.
func (c *Client) PatchField(ctx context.Context, table, id, field string, value any) error {
	encoded, err := fieldValue(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", field, err)
	}

	payload := fieldsPayload{Fields: map[string]any{field: encoded}}
	if err := c.doJSON(ctx, "PATCH", c.recordURL(table, id), payload, nil); err != nil {
		return fmt.Errorf("patch %s/%s %q: %w", table, id, field, err)
	}

	return nil
}

// InsertRecord creates a record. The failure is logged here as well, but it is
// still returned: callers decide whether a missing record is fatal.
func (c *Client) InsertRecord(ctx context.Context, table string, fields map[string]any) (*Record, error) {
	var record Record
	if err := c.doJSON(ctx, "POST", c.tableURL(table), fieldsPayload{Fields: fields}, &record); err != nil {
		c.logger.Warn("adding record failed", zap.String("table", table), zap.Error(err))
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}

	return &record, nil
}

func (c *Client) tableURL(table string) string {
	return fmt.Sprintf("%s%s/%s/%s", c.APIURL, apiPrefix, url.PathEscape(c.baseID), url.PathEscape(table))
}

func (c *Client) recordURL(table, id string) string {
	return fmt.Sprintf("%s/%s", c.tableURL(table), url.PathEscape(id))
}

func fieldValue(value any) (any, error) {
	switch v := value.(type) {
	case nil, string, bool, int, int32, int64, float32, float64:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
}
