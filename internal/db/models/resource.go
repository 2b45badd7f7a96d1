// Package models - resource.go defines the learning resource row and its insert shape.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// TableResources is the table holding proposed and approved resources.
const TableResources = "resources"

// Column names of the resources table. isActive is camel-cased in the
// deployed schema and must be quoted in SQL.
const (
	ColID          = "id"
	ColName        = "name"
	ColDescription = "description"
	ColURL         = "url"
	ColCategory    = "category"
	ColIsActive    = "isActive"
	ColCreatedAt   = "created_at"
	ColIPAddress   = "ip_address"
)

// Resource is one learning resource. IsActive=false means the row is awaiting
// moderation; IPAddress is only set for anonymous submissions.
type Resource struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	Name        string         `json:"name" db:"name"`
	Description string         `json:"description" db:"description"`
	URL         string         `json:"url" db:"url"`
	Category    pq.StringArray `json:"category" db:"category"`
	IsActive    bool           `json:"isActive" db:"isActive"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	IPAddress   *string        `json:"ip_address,omitempty" db:"ip_address"`
}

// Pending reports whether the resource is still awaiting moderation.
func (r *Resource) Pending() bool {
	return !r.IsActive
}

// NewResource is the insert shape; id and created_at are assigned by the store.
type NewResource struct {
	Name        string         `json:"name" db:"name"`
	Description string         `json:"description" db:"description"`
	URL         string         `json:"url" db:"url"`
	Category    pq.StringArray `json:"category" db:"category"`
	IsActive    bool           `json:"isActive" db:"isActive"`
	IPAddress   *string        `json:"ip_address,omitempty" db:"ip_address"`
}
