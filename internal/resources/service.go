// Package resources is the service facade over the resources table. It embeds
// the generic table client and adds the moderation and catalogue queries the
// HTTP layer and the importer share.
package resources

import (
	"context"

	"github.com/resourcehub/resourcehub/internal/db/models"
	"github.com/resourcehub/resourcehub/internal/store"
)

// Table is the typed client for the resources table.
type Table = store.Table[models.Resource, models.NewResource]

// Service handles resource queries. Every generic Table operation is
// available on it directly.
type Service struct {
	*Table
}

// NewService creates a resource service on top of driver.
func NewService(driver store.Driver) *Service {
	return &Service{Table: store.NewTable[models.Resource, models.NewResource](driver, models.TableResources)}
}

var newestFirst = store.QueryOptions{OrderBy: models.ColCreatedAt, Descending: true}

// Active returns approved resources, newest first.
func (s *Service) Active(ctx context.Context) ([]models.Resource, error) {
	return s.GetWhere(ctx, store.Where(store.Eq(models.ColIsActive, true)), newestFirst)
}

// Pending returns resources awaiting moderation, newest first.
func (s *Service) Pending(ctx context.Context) ([]models.Resource, error) {
	return s.GetWhere(ctx, store.Where(store.Eq(models.ColIsActive, false)), newestFirst)
}

// Approve marks a resource active. Approving an active resource is a no-op
// that still returns the row.
func (s *Service) Approve(ctx context.Context, id string) (models.Resource, error) {
	return s.Update(ctx, id, store.Set(models.ColIsActive, true))
}

// Reject moves a resource back to pending.
func (s *Service) Reject(ctx context.Context, id string) (models.Resource, error) {
	return s.Update(ctx, id, store.Set(models.ColIsActive, false))
}

// ByCategory returns resources tagged with tag, newest first. With activeOnly
// pending rows are left out.
func (s *Service) ByCategory(ctx context.Context, tag string, activeOnly bool) ([]models.Resource, error) {
	f := store.Where(store.Contains(models.ColCategory, tag))
	if activeOnly {
		f = f.And(store.Eq(models.ColIsActive, true))
	}
	return s.GetWhere(ctx, f, newestFirst)
}

// CountPendingFrom counts the pending resources submitted from address.
// Approved submissions are not counted.
func (s *Service) CountPendingFrom(ctx context.Context, address string) (int, error) {
	return s.Count(ctx, store.Where(
		store.Eq(models.ColIPAddress, address),
		store.Eq(models.ColIsActive, false),
	))
}

// FindByURL returns the first resource whose url equals url, or
// store.ErrNotFound.
func (s *Service) FindByURL(ctx context.Context, url string) (models.Resource, error) {
	return s.first(ctx, store.Where(store.Eq(models.ColURL, url)))
}

// FindByIDOrURL returns the first resource with the given id or url.
func (s *Service) FindByIDOrURL(ctx context.Context, id, url string) (models.Resource, error) {
	return s.first(ctx, store.Where(store.Or(
		store.Eq(models.ColID, id),
		store.Eq(models.ColURL, url),
	)))
}

func (s *Service) first(ctx context.Context, f store.Filters) (models.Resource, error) {
	rows, err := s.GetWhere(ctx, f, store.QueryOptions{Limit: 1})
	if err != nil {
		return models.Resource{}, err
	}
	if len(rows) == 0 {
		return models.Resource{}, store.ErrNotFound
	}
	return rows[0], nil
}
