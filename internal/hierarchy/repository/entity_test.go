package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djiba142/Pharmacie-sub000/internal/hierarchy/repository"
	"github.com/djiba142/Pharmacie-sub000/pkg/database"
	"github.com/djiba142/Pharmacie-sub000/pkg/errors"
	"github.com/djiba142/Pharmacie-sub000/pkg/logger"
	"github.com/djiba142/Pharmacie-sub000/pkg/testutil"
)

const parentID = "3c9f5a7e-1b2d-4c6f-8a9b-0d1e2f3a4b5c"

func entityColumns() []string {
	return []string{"id", "level", "parent_id", "name", "is_active", "created_at"}
}

func newRepo(t *testing.T) (*repository.EntityRepository, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	db := database.NewFromSqlx(mockDB.DB, logger.New("test", "development"))
	return repository.NewEntityRepository(db), mockDB
}

func TestCreateEntityParentMustBeOneTierAbove(t *testing.T) {
	repo, mockDB := newRepo(t)
	defer mockDB.Close()

	// A Peripheral structure may not hang directly under a region.
	mockDB.Mock.ExpectQuery("FROM entities").
		WithArgs(parentID).
		WillReturnRows(sqlmock.NewRows(entityColumns()).
			AddRow(parentID, "Regional", nil, "Region A", true, time.Now()))

	pid := parentID
	err := repo.Create(context.Background(), &repository.Entity{
		Level:    repository.LevelPeripheral,
		ParentID: &pid,
		Name:     "Health Post",
		IsActive: true,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	mockDB.ExpectationsWereMet(t)
}

func TestCreateEntityRejectsInactiveParent(t *testing.T) {
	repo, mockDB := newRepo(t)
	defer mockDB.Close()

	mockDB.Mock.ExpectQuery("FROM entities").
		WithArgs(parentID).
		WillReturnRows(sqlmock.NewRows(entityColumns()).
			AddRow(parentID, "Regional", nil, "Closed Region", false, time.Now()))

	pid := parentID
	err := repo.Create(context.Background(), &repository.Entity{
		Level:    repository.LevelPrefectoral,
		ParentID: &pid,
		Name:     "Prefecture X",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	mockDB.ExpectationsWereMet(t)
}

func TestCreateEntityRequiresParentForNonNational(t *testing.T) {
	repo, mockDB := newRepo(t)
	defer mockDB.Close()

	err := repo.Create(context.Background(), &repository.Entity{
		Level: repository.LevelRegional,
		Name:  "Orphan Region",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestCreateEntitySingleNationalRoot(t *testing.T) {
	repo, mockDB := newRepo(t)
	defer mockDB.Close()

	mockDB.Mock.ExpectQuery("SELECT EXISTS").
		WithArgs(repository.LevelNational).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.Create(context.Background(), &repository.Entity{
		Level: repository.LevelNational,
		Name:  "Second Agency",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	mockDB.ExpectationsWereMet(t)
}

func TestCreateEntityValid(t *testing.T) {
	repo, mockDB := newRepo(t)
	defer mockDB.Close()

	mockDB.Mock.ExpectQuery("FROM entities").
		WithArgs(parentID).
		WillReturnRows(sqlmock.NewRows(entityColumns()).
			AddRow(parentID, "National", nil, "Central Agency", true, time.Now()))
	mockDB.Mock.ExpectQuery("INSERT INTO entities").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	pid := parentID
	entity := &repository.Entity{
		Level:    repository.LevelRegional,
		ParentID: &pid,
		Name:     "Region A",
		IsActive: true,
	}
	err := repo.Create(context.Background(), entity)
	require.NoError(t, err)
	assert.NotEmpty(t, entity.ID)

	mockDB.ExpectationsWereMet(t)
}

func TestParentLevel(t *testing.T) {
	level, ok := repository.ParentLevel(repository.LevelRegional)
	require.True(t, ok)
	assert.Equal(t, repository.LevelNational, level)

	level, ok = repository.ParentLevel(repository.LevelPeripheral)
	require.True(t, ok)
	assert.Equal(t, repository.LevelPrefectoral, level)

	_, ok = repository.ParentLevel(repository.LevelNational)
	assert.False(t, ok)
}
