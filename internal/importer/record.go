// Package importer loads learning resources from a JSON export and inserts
// them into the resources table, optionally clearing it first and skipping
// rows that already exist.
package importer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/resourcehub/resourcehub/internal/db/models"
)

// Categories is the category field of an export record. Older exports store
// a single tag as a bare string; it is read as a one-element list.
type Categories []string

// UnmarshalJSON accepts either a string or an array of strings.
func (c *Categories) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return err
		}
		if tag == "" {
			*c = Categories{}
			return nil
		}
		*c = Categories{tag}
		return nil
	}
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return fmt.Errorf("category must be a string or a list of strings: %w", err)
	}
	*c = tags
	return nil
}

// Record is one entry of an export file. ID and CreatedAt are read for
// duplicate detection only and never written.
type Record struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	Category    Categories `json:"category"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   string     `json:"created_at"`
	IPAddress   *string    `json:"ip_address"`
}

// NewResource returns the insert shape of r.
func (r Record) NewResource() models.NewResource {
	category := []string(r.Category)
	if category == nil {
		category = []string{}
	}
	return models.NewResource{
		Name:        r.Name,
		Description: r.Description,
		URL:         r.URL,
		Category:    category,
		IsActive:    r.IsActive,
		IPAddress:   r.IPAddress,
	}
}

// Parse decodes a JSON array of records.
func Parse(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse resources: %w", err)
	}
	return records, nil
}
