package proposals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"github.com/resourcehub/resourcehub/internal/db/models"
	"github.com/resourcehub/resourcehub/internal/telemetry"
)

// Proposal is the body of a public submission.
type Proposal struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Category    []string `json:"category"`
}

// ValidationError lists the problems found in a proposal.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid proposal: " + strings.Join(e.Problems, "; ")
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Creator stores a new resource.
type Creator interface {
	Create(ctx context.Context, item models.NewResource) (models.Resource, error)
}

// Store is what Service needs from the resources table.
type Store interface {
	PendingCounter
	Creator
}

// Service admits proposals.
type Service struct {
	store Store
	guard *Guard
}

// NewService creates a proposal service with the given pending ceiling.
func NewService(store Store, maxPending int) *Service {
	return &Service{store: store, guard: NewGuard(store, maxPending)}
}

// Guard returns the service's quota guard.
func (s *Service) Guard() *Guard {
	return s.guard
}

// Limit reports the quota state of address.
func (s *Service) Limit(ctx context.Context, address string) (Limit, error) {
	return s.guard.Check(ctx, address)
}

// Submit validates p and stores it as a pending resource attributed to
// address. The quota is counted again here rather than trusted from an
// earlier Limit call.
func (s *Service) Submit(ctx context.Context, address string, p Proposal) (models.Resource, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		telemetry.ResourceProposalsTotal.WithLabelValues(telemetry.ProposalInvalid).Inc()
		return models.Resource{}, ErrMissingAddress
	}

	limit, err := s.guard.Check(ctx, address)
	if err != nil {
		telemetry.ResourceProposalsTotal.WithLabelValues(telemetry.ProposalError).Inc()
		return models.Resource{}, err
	}
	if !limit.CanPropose {
		telemetry.ResourceProposalsTotal.WithLabelValues(telemetry.ProposalQuotaExceeded).Inc()
		slog.Info("proposal rejected: quota reached", "ip", address, "pending", limit.ProposalCount)
		return models.Resource{}, ErrQuotaExceeded
	}

	item, err := p.normalize()
	if err != nil {
		telemetry.ResourceProposalsTotal.WithLabelValues(telemetry.ProposalInvalid).Inc()
		return models.Resource{}, err
	}
	item.IsActive = false
	item.IPAddress = &address

	created, err := s.store.Create(ctx, item)
	if err != nil {
		telemetry.ResourceProposalsTotal.WithLabelValues(telemetry.ProposalError).Inc()
		return models.Resource{}, fmt.Errorf("failed to create resource: %w", err)
	}
	telemetry.ResourceProposalsTotal.WithLabelValues(telemetry.ProposalCreated).Inc()
	return created, nil
}

// normalize trims the fields, drops blank and repeated tags, and checks the
// required fields.
func (p Proposal) normalize() (models.NewResource, error) {
	name := strings.TrimSpace(p.Name)
	url := strings.TrimSpace(p.URL)
	tags := NormalizeTags(p.Category)

	var problems []string
	if name == "" {
		problems = append(problems, "name is required")
	}
	if url == "" {
		problems = append(problems, "url is required")
	}
	if len(tags) == 0 {
		problems = append(problems, "at least one category is required")
	}
	if len(problems) > 0 {
		return models.NewResource{}, &ValidationError{Problems: problems}
	}

	return models.NewResource{
		Name:        name,
		Description: strings.TrimSpace(p.Description),
		URL:         url,
		Category:    tags,
	}, nil
}

// NormalizeTags trims every tag and removes blanks and duplicates, keeping
// first-seen order.
func NormalizeTags(tags []string) []string {
	trimmed := lo.Map(tags, func(t string, _ int) string { return strings.TrimSpace(t) })
	return lo.Uniq(lo.Compact(trimmed))
}
