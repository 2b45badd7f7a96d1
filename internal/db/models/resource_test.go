package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestResource_JSONFieldNames(t *testing.T) {
	ip := "198.51.100.4"
	r := Resource{
		ID:        uuid.MustParse("6f1c2d4e-8a9b-4c3d-9e8f-1a2b3c4d5e6f"),
		Name:      "Go Tour",
		URL:       "https://go.dev/tour",
		Category:  []string{"go"},
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		IPAddress: &ip,
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, key := range []string{`"isActive":false`, `"created_at":`, `"ip_address":"198.51.100.4"`, `"category":["go"]`} {
		if !strings.Contains(string(b), key) {
			t.Errorf("JSON %s missing %s", b, key)
		}
	}
}

func TestResource_OmitsNilAddress(t *testing.T) {
	b, err := json.Marshal(Resource{Name: "x"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(b), "ip_address") {
		t.Errorf("JSON %s should omit nil ip_address", b)
	}
}

func TestResource_DecodesPostgRESTRow(t *testing.T) {
	const row = `{"id":"6f1c2d4e-8a9b-4c3d-9e8f-1a2b3c4d5e6f","name":"Go Tour","description":null,
		"url":"https://go.dev/tour","category":["go","tutorial"],"isActive":true,
		"created_at":"2024-01-02T03:04:05.123456+00:00","ip_address":null}`
	var r Resource
	if err := json.Unmarshal([]byte(row), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !r.IsActive || r.Pending() {
		t.Error("expected active resource")
	}
	if len(r.Category) != 2 || r.Category[1] != "tutorial" {
		t.Errorf("Category = %v", r.Category)
	}
	if r.Description != "" {
		t.Errorf("Description = %q, want empty for null", r.Description)
	}
	if r.IPAddress != nil {
		t.Errorf("IPAddress = %v, want nil", *r.IPAddress)
	}
}
