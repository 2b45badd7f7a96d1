package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resourcehub/resourcehub/internal/db/models"
)

func TestSchemaOfResource(t *testing.T) {
	s := SchemaOf[models.Resource]()
	assert.Equal(t, []string{
		"category", "created_at", "description", "id", "ip_address", "isActive", "name", "url",
	}, s.Columns())
	assert.True(t, s.Has(models.ColIsActive))
	assert.False(t, s.Has("is_active"))
}

func TestSchemaValuesDropsReadOnlyAndKeepsNulls(t *testing.T) {
	s := SchemaOf[models.Resource]()
	in := models.NewResource{Name: "n", URL: "u"}

	row, err := s.values(in)
	require.NoError(t, err)
	assert.Equal(t, "n", row["name"])
	assert.Contains(t, row, "ip_address")
	assert.Nil(t, row["ip_address"].(*string), "nil pointer must stay nil")
	assert.Nil(t, in.IPAddress, "input must not be mutated")
	assert.NotContains(t, row, "id")
	assert.NotContains(t, row, "created_at")
}

func TestSchemaValuesRejectsForeignColumns(t *testing.T) {
	type bogus struct {
		Name  string `db:"name"`
		Votes int    `db:"votes"`
	}
	_, err := SchemaOf[models.Resource]().values(bogus{Name: "x"})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestSchemaValuesRejectsNonStruct(t *testing.T) {
	_, err := SchemaOf[models.Resource]().values("nope")
	assert.Error(t, err)
}
