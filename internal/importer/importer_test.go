package importer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resourcehub/resourcehub/internal/db/models"
	"github.com/resourcehub/resourcehub/internal/resources"
	"github.com/resourcehub/resourcehub/internal/store"
)

const export = `[
  {"id": "11111111-1111-1111-1111-111111111111", "name": "Go Tour", "url": "https://go.dev/tour",
   "category": "go", "isActive": true, "created_at": "2024-01-01T00:00:00Z"},
  {"name": "Effective Go", "url": "https://go.dev/doc/effective_go", "category": ["go", "style"], "isActive": true},
  {"name": "Pending", "url": "https://example.com/pending", "category": ["misc"], "ip_address": "198.51.100.4"}
]`

func TestParse_NormalizesCategory(t *testing.T) {
	records, err := Parse([]byte(export))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, Categories{"go"}, records[0].Category)
	assert.Equal(t, Categories{"go", "style"}, records[1].Category)
	require.NotNil(t, records[2].IPAddress)
	assert.Equal(t, "198.51.100.4", *records[2].IPAddress)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte(`{"name": "not an array"}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`[{"name": "x", "category": 5}]`))
	assert.Error(t, err)
}

func TestCategories_EmptyAndNull(t *testing.T) {
	records, err := Parse([]byte(`[{"name": "a", "category": ""}, {"name": "b", "category": null}, {"name": "c"}]`))
	require.NoError(t, err)

	assert.Equal(t, Categories{}, records[0].Category)
	assert.Nil(t, records[1].Category)
	assert.Equal(t, []string{}, []string(records[2].NewResource().Category))
}

func newImporter(t *testing.T, existing ...models.NewResource) (*Importer, *resources.Service, *bytes.Buffer) {
	t.Helper()
	svc := resources.NewService(store.NewMemoryDriver())
	_, err := svc.CreateMany(context.Background(), existing...)
	require.NoError(t, err)
	var out bytes.Buffer
	return New(svc, &out), svc, &out
}

func TestRun_InsertsAndStripsServerFields(t *testing.T) {
	im, svc, out := newImporter(t)
	records, err := Parse([]byte(export))
	require.NoError(t, err)

	sum, err := im.Run(context.Background(), records, Options{SkipDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, Summary{Imported: 3, Total: 3}, sum)

	got, err := svc.FindByURL(context.Background(), "https://go.dev/tour")
	require.NoError(t, err)
	assert.NotEqual(t, "11111111-1111-1111-1111-111111111111", got.ID.String())
	assert.True(t, got.IsActive)

	pending, err := svc.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Pending", pending[0].Name)

	assert.Contains(t, out.String(), "Imported: 3")
	assert.Contains(t, out.String(), "Total:    3")
}

func TestRun_SkipsDuplicateURL(t *testing.T) {
	im, svc, _ := newImporter(t, models.NewResource{Name: "Tour", URL: "https://go.dev/tour", Category: []string{"go"}})
	records, err := Parse([]byte(export))
	require.NoError(t, err)

	sum, err := im.Run(context.Background(), records, Options{SkipDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, Summary{Imported: 2, Skipped: 1, Total: 3}, sum)

	n, err := svc.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRun_AllowDuplicates(t *testing.T) {
	im, svc, _ := newImporter(t, models.NewResource{Name: "Tour", URL: "https://go.dev/tour"})
	records, err := Parse([]byte(export))
	require.NoError(t, err)

	sum, err := im.Run(context.Background(), records, Options{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Imported: 3, Total: 3}, sum)

	n, err := svc.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestRun_ClearRemovesWouldBeDuplicates(t *testing.T) {
	im, svc, _ := newImporter(t,
		models.NewResource{Name: "Tour", URL: "https://go.dev/tour"},
		models.NewResource{Name: "Stale", URL: "https://example.com/stale"},
	)
	records, err := Parse([]byte(export))
	require.NoError(t, err)

	sum, err := im.Run(context.Background(), records, Options{Clear: true, SkipDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, Summary{Imported: 3, Total: 3}, sum)

	_, err = svc.FindByURL(context.Background(), "https://example.com/stale")
	assert.True(t, store.IsNotFound(err))
}

func TestRun_MatchID(t *testing.T) {
	im, svc, _ := newImporter(t, models.NewResource{Name: "Renamed", URL: "https://old.example.com"})
	existing, err := svc.FindByURL(context.Background(), "https://old.example.com")
	require.NoError(t, err)

	records := []Record{
		{ID: existing.ID.String(), Name: "Same id, new url", URL: "https://new.example.com"},
		{ID: "not-a-uuid", Name: "Bad id", URL: "https://other.example.com"},
	}

	sum, err := im.Run(context.Background(), records, Options{SkipDuplicates: true, MatchID: true})
	require.NoError(t, err)
	assert.Equal(t, Summary{Imported: 1, Skipped: 1, Total: 2}, sum)

	// Without MatchID only the url is compared.
	im2, _, _ := newImporter(t)
	im2.Resources = svc
	sum, err = im2.Run(context.Background(), records[:1], Options{SkipDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Imported)
}

type flakyResources struct {
	*resources.Service
	failCreate string
	failClear  bool
	failLookup bool
}

func (f *flakyResources) Create(ctx context.Context, item models.NewResource) (models.Resource, error) {
	if item.Name == f.failCreate {
		return models.Resource{}, errors.New("insert rejected")
	}
	return f.Service.Create(ctx, item)
}

func (f *flakyResources) DeleteAll(ctx context.Context) ([]models.Resource, error) {
	if f.failClear {
		return nil, errors.New("permission denied")
	}
	return f.Service.DeleteAll(ctx)
}

func (f *flakyResources) FindByURL(ctx context.Context, url string) (models.Resource, error) {
	if f.failLookup {
		return models.Resource{}, errors.New("timeout")
	}
	return f.Service.FindByURL(ctx, url)
}

func TestRun_PerRecordErrorsAreCounted(t *testing.T) {
	svc := resources.NewService(store.NewMemoryDriver())
	im := New(&flakyResources{Service: svc, failCreate: "Effective Go"}, nil)
	records, err := Parse([]byte(export))
	require.NoError(t, err)

	sum, err := im.Run(context.Background(), records, Options{SkipDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, Summary{Imported: 2, Errors: 1, Total: 3}, sum)
}

func TestRun_LookupFailureCountsAsError(t *testing.T) {
	svc := resources.NewService(store.NewMemoryDriver())
	im := New(&flakyResources{Service: svc, failLookup: true}, nil)
	records, err := Parse([]byte(export))
	require.NoError(t, err)

	sum, err := im.Run(context.Background(), records, Options{SkipDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, Summary{Errors: 3, Total: 3}, sum)
}

func TestRun_ClearFailureAborts(t *testing.T) {
	svc := resources.NewService(store.NewMemoryDriver())
	im := New(&flakyResources{Service: svc, failClear: true}, nil)
	records, err := Parse([]byte(export))
	require.NoError(t, err)

	sum, err := im.Run(context.Background(), records, Options{Clear: true})
	require.Error(t, err)
	assert.Equal(t, 0, sum.Imported)

	n, err := svc.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
