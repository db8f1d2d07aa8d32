package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndip-rw/data-portal-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func datasetRows(id, name string, deactivated *time.Time) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "description", "category_id",
		"requires_period", "requires_upi", "requires_upi_list", "requires_id_list",
		"has_admin_level", "has_user_level", "has_transaction_type", "has_land_use", "has_size_range",
		"requires_approval", "auto_approve_for_roles", "allows_recurring",
		"deactivated_at", "created_at", "updated_at",
	}).AddRow(id, name, "desc", "cat-1",
		true, false, false, false,
		true, false, false, false, true,
		true, "{}", false,
		deactivated, now, now)
}

func TestDatasetFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDatasetRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM datasets WHERE id = \$1`).
		WithArgs("ds-1").
		WillReturnRows(datasetRows("ds-1", "Parcel Register", nil))

	dataset, err := repo.FindByID(context.Background(), "ds-1")
	require.NoError(t, err)
	assert.Equal(t, "Parcel Register", dataset.Name)
	assert.True(t, dataset.RequiresPeriod)
	assert.True(t, dataset.Active())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetListExcludesInactiveByDefault(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDatasetRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM datasets WHERE 1=1 AND deactivated_at IS NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT (.+) FROM datasets WHERE 1=1 AND deactivated_at IS NULL ORDER BY name ASC`).
		WithArgs(20, 0).
		WillReturnRows(datasetRows("ds-1", "Parcel Register", nil))

	datasets, total, err := repo.List(context.Background(), models.DatasetFilter{})
	require.NoError(t, err)
	assert.Len(t, datasets, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetListWithCategoryFilter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDatasetRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM datasets")).
		WithArgs("cat-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT (.+) FROM datasets WHERE 1=1 AND deactivated_at IS NULL AND category_id = \$1`).
		WithArgs("cat-1", 20, 0).
		WillReturnRows(datasetRows("ds-1", "Parcel Register", nil))

	_, _, err := repo.List(context.Background(), models.DatasetFilter{CategoryID: "cat-1"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDatasetRepository(db)

	mock.ExpectExec("INSERT INTO datasets").WillReturnResult(sqlmock.NewResult(1, 1))

	dataset := &models.Dataset{Name: "Transactions", CategoryID: "cat-2"}
	err := repo.Create(context.Background(), dataset)
	require.NoError(t, err)
	assert.NotEmpty(t, dataset.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetDeactivateAlreadyInactive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDatasetRepository(db)

	mock.ExpectExec("UPDATE datasets SET deactivated_at").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Deactivate(context.Background(), "ds-1", time.Now())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAdminAreasCascade(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDatasetRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "level", "parent_id"}).
		AddRow("d-1", "Gasabo", "district", "p-1").
		AddRow("d-2", "Kicukiro", "district", "p-1")
	mock.ExpectQuery(`SELECT id, name, level, parent_id FROM admin_areas WHERE level = \$1 AND parent_id = ANY\(\$2\)`).
		WillReturnRows(rows)

	areas, err := repo.ListAdminAreas(context.Background(), models.AdminLevelDistrict, []string{"p-1"})
	require.NoError(t, err)
	assert.Len(t, areas, 2)
	assert.Equal(t, "Gasabo", areas[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
