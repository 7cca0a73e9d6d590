package airtable

import (
	"context"
	"fmt"
	"net/url"
)

// FieldSpec describes a field in the meta API.
type FieldSpec struct {
	Name    string         `json:"name"`
	Type    string         `json:"type"`
	Options map[string]any `json:"options,omitempty"`
}

// TableSpec describes a table to create in the meta API.
type TableSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Fields      []FieldSpec `json:"fields"`
}

// Table is the meta API answer for a created table.
type Table struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PrimaryFieldID string `json:"primaryFieldId"`
}

// CreateTable creates a table in the base.
func (c *Client) CreateTable(ctx context.Context, spec TableSpec) (*Table, error) {
	endpoint := fmt.Sprintf("%s%s/meta/bases/%s/tables", c.APIURL, apiPrefix, url.PathEscape(c.baseID))

	var table Table
	if err := c.doJSON(ctx, "POST", endpoint, spec, &table); err != nil {
		return nil, fmt.Errorf("create table %s: %w", spec.Name, err)
	}

	return &table, nil
}
