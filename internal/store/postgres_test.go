package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resourcehub/resourcehub/internal/db/models"
)

var resourceCols = []string{"id", "name", "description", "url", "category", "isActive", "created_at", "ip_address"}

func newPostgresTable(t *testing.T) (*resourceTable, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	d := NewPostgresDriver(sqlx.NewDb(db, "sqlmock"))
	return NewTable[models.Resource, models.NewResource](d, models.TableResources), mock
}

func sampleRows() *sqlmock.Rows {
	return sqlmock.NewRows(resourceCols).AddRow(
		"6f1c2d4e-8a9b-4c3d-9e8f-1a2b3c4d5e6f", "Go Tour", "", "https://go.dev/tour",
		"{go,tutorial}", true, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), nil,
	)
}

func TestPostgres_SelectBuildsQuery(t *testing.T) {
	tbl, mock := newPostgresTable(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT * FROM "resources" WHERE ("isActive" = $1 AND "category" @> $2) ORDER BY "created_at" DESC NULLS LAST LIMIT 10 OFFSET 10`,
	)).WithArgs(true, sqlmock.AnyArg()).WillReturnRows(sampleRows())

	rows, err := tbl.GetWhere(context.Background(),
		Where(Eq(models.ColIsActive, true), Contains(models.ColCategory, "go")),
		QueryOptions{OrderBy: models.ColCreatedAt, Descending: true, Offset: 10},
	)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Go Tour", rows[0].Name)
	assert.Equal(t, []string{"go", "tutorial"}, []string(rows[0].Category))
	assert.True(t, rows[0].IsActive)
	assert.Nil(t, rows[0].IPAddress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetAllNoFilters(t *testing.T) {
	tbl, mock := newPostgresTable(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "resources" LIMIT 3`)).
		WillReturnRows(sqlmock.NewRows(resourceCols))

	rows, err := tbl.GetAll(context.Background(), QueryOptions{Limit: 3})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Count(t *testing.T) {
	tbl, mock := newPostgresTable(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT COUNT(*) FROM "resources" WHERE ("ip_address" = $1 AND "isActive" = $2)`,
	)).WithArgs("203.0.113.5", false).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := tbl.Count(context.Background(), Where(
		Eq(models.ColIPAddress, "203.0.113.5"),
		Eq(models.ColIsActive, false),
	))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateManySingleInsert(t *testing.T) {
	tbl, mock := newPostgresTable(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`INSERT INTO "resources" ("category","description","ip_address","isActive","name","url") ` +
			`VALUES ($1,$2,$3,$4,$5,$6),($7,$8,$9,$10,$11,$12) RETURNING *`,
	)).WillReturnRows(sampleRows().AddRow(
		"7a1c2d4e-8a9b-4c3d-9e8f-1a2b3c4d5e6f", "b", "", "https://example.com/b",
		"{}", false, time.Now(), nil,
	))

	rows, err := tbl.CreateMany(context.Background(), newRes("a", "go"), newRes("b"))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateByID(t *testing.T) {
	tbl, mock := newPostgresTable(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`UPDATE "resources" SET "isActive" = $1 WHERE ("id" = $2) RETURNING *`,
	)).WithArgs(true, "6f1c2d4e-8a9b-4c3d-9e8f-1a2b3c4d5e6f").WillReturnRows(sampleRows())

	got, err := tbl.Update(context.Background(), "6f1c2d4e-8a9b-4c3d-9e8f-1a2b3c4d5e6f", Set(models.ColIsActive, true))
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateMissingRowIsNotFound(t *testing.T) {
	tbl, mock := newPostgresTable(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "resources" SET "isActive" = $1 WHERE ("id" = $2) RETURNING *`)).
		WillReturnRows(sqlmock.NewRows(resourceCols))

	_, err := tbl.Update(context.Background(), "6f1c2d4e-8a9b-4c3d-9e8f-1a2b3c4d5e6f", Set(models.ColIsActive, false))
	assert.True(t, IsNotFound(err), "err = %v", err)
}

func TestPostgres_DeleteAll(t *testing.T) {
	tbl, mock := newPostgresTable(t)

	mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM "resources" WHERE ("id" <> $1) RETURNING *`)).
		WithArgs("00000000-0000-0000-0000-000000000000").
		WillReturnRows(sampleRows())

	rows, err := tbl.DeleteAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_OrGroupAndNull(t *testing.T) {
	tbl, mock := newPostgresTable(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT * FROM "resources" WHERE (("id" = $1 OR "url" = $2) AND "ip_address" IS NULL)`,
	)).WithArgs("abc", "https://go.dev").WillReturnRows(sqlmock.NewRows(resourceCols))

	_, err := tbl.GetWhere(context.Background(), Where(
		Or(Eq(models.ColID, "abc"), Eq(models.ColURL, "https://go.dev")),
		Eq(models.ColIPAddress, nil),
	), QueryOptions{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_QueryErrorWrapped(t *testing.T) {
	tbl, mock := newPostgresTable(t)
	boom := errors.New("pq: relation \"resources\" does not exist")
	mock.ExpectQuery(`SELECT \* FROM "resources"`).WillReturnError(boom)

	_, err := tbl.GetAll(context.Background(), QueryOptions{})
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, boom)
}
