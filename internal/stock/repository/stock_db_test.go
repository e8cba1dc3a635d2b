package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djiba142/Pharmacie-sub000/internal/stock/repository"
	"github.com/djiba142/Pharmacie-sub000/pkg/database"
	"github.com/djiba142/Pharmacie-sub000/pkg/errors"
	"github.com/djiba142/Pharmacie-sub000/pkg/logger"
	"github.com/djiba142/Pharmacie-sub000/pkg/testutil"
)

const (
	testEntityID = "7f8d2c1e-0a7b-4f3c-9e4d-1b2a3c4d5e6f"
	testLotID    = "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d"
)

func recordColumns() []string {
	return []string{
		"entity_id", "lot_id", "current_quantity", "alert_threshold",
		"minimal_threshold", "last_movement_at", "version", "created_at",
	}
}

func movementColumns() []string {
	return []string{
		"id", "seq", "entity_id", "lot_id", "movement_type", "quantity",
		"applied_change", "resulting_quantity", "actor_id", "comment", "created_at",
	}
}

func TestRecordMovementAppliesSortieClamp(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	db := database.NewFromSqlx(mockDB.DB, logger.New("test", "development"))
	repo := repository.NewStockRepository(db)

	createdAt := time.Now().UTC()

	mockDB.ExpectBegin()
	mockDB.Mock.ExpectQuery("FOR UPDATE").
		WithArgs(testEntityID, testLotID).
		WillReturnRows(sqlmock.NewRows(recordColumns()).
			AddRow(testEntityID, testLotID, 30, 10, 5, nil, 3, createdAt))
	mockDB.Mock.ExpectExec("UPDATE stock_records").
		WithArgs(testEntityID, testLotID, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.Mock.ExpectQuery("INSERT INTO stock_movements").
		WithArgs(sqlmock.AnyArg(), testEntityID, testLotID, repository.MovementSortie,
			1000, -30, 0, "actor-1", "").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "created_at"}).AddRow(int64(4), createdAt))
	mockDB.ExpectCommit()

	movement := &repository.StockMovement{
		EntityID:     testEntityID,
		LotID:        testLotID,
		MovementType: repository.MovementSortie,
		Quantity:     1000,
		ActorID:      "actor-1",
	}
	record, err := repo.RecordMovement(context.Background(), movement, 3)
	require.NoError(t, err)

	// The clamp absorbed the shortfall: the ledger entry carries the signed
	// effect actually applied, not the requested magnitude.
	assert.Equal(t, 0, record.CurrentQuantity)
	assert.Equal(t, -30, movement.AppliedChange)
	assert.Equal(t, 0, movement.ResultingQuantity)
	assert.Equal(t, int64(4), record.Version)

	mockDB.ExpectationsWereMet(t)
}

func TestRecordMovementLazilyCreatesRecord(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	db := database.NewFromSqlx(mockDB.DB, logger.New("test", "development"))
	repo := repository.NewStockRepository(db)

	createdAt := time.Now().UTC()

	mockDB.ExpectBegin()
	mockDB.Mock.ExpectQuery("FOR UPDATE").
		WithArgs(testEntityID, testLotID).
		WillReturnRows(sqlmock.NewRows(recordColumns()))
	mockDB.Mock.ExpectQuery("INSERT INTO stock_records").
		WithArgs(testEntityID, testLotID).
		WillReturnRows(sqlmock.NewRows(recordColumns()).
			AddRow(testEntityID, testLotID, 0, 0, 0, nil, 0, createdAt))
	mockDB.Mock.ExpectExec("UPDATE stock_records").
		WithArgs(testEntityID, testLotID, 100, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.Mock.ExpectQuery("INSERT INTO stock_movements").
		WithArgs(sqlmock.AnyArg(), testEntityID, testLotID, repository.MovementEntree,
			100, 100, 100, "actor-1", "initial delivery").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "created_at"}).AddRow(int64(1), createdAt))
	mockDB.ExpectCommit()

	movement := &repository.StockMovement{
		EntityID:     testEntityID,
		LotID:        testLotID,
		MovementType: repository.MovementEntree,
		Quantity:     100,
		ActorID:      "actor-1",
		Comment:      "initial delivery",
	}
	record, err := repo.RecordMovement(context.Background(), movement, 3)
	require.NoError(t, err)

	assert.Equal(t, 100, record.CurrentQuantity)
	assert.Equal(t, int64(1), record.Version)
	assert.NotEmpty(t, movement.ID)

	mockDB.ExpectationsWereMet(t)
}

// The projection and the ledger are read under one transaction, so a
// movement committing mid-verification cannot make a healthy store look
// corrupt.
func TestReplaySnapshotReadsOneTransaction(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	db := database.NewFromSqlx(mockDB.DB, logger.New("test", "development"))
	repo := repository.NewStockRepository(db)

	createdAt := time.Now().UTC()

	mockDB.ExpectBegin()
	mockDB.Mock.ExpectQuery("FROM stock_records").
		WithArgs(testEntityID, testLotID).
		WillReturnRows(sqlmock.NewRows(recordColumns()).
			AddRow(testEntityID, testLotID, 42, 10, 5, nil, 2, createdAt))
	mockDB.Mock.ExpectQuery("FROM stock_movements").
		WithArgs(testEntityID, testLotID).
		WillReturnRows(sqlmock.NewRows(movementColumns()).
			AddRow("m-1", int64(1), testEntityID, testLotID, repository.MovementEntree, 42, 42, 42, "actor-1", "", createdAt))
	mockDB.ExpectCommit()

	record, movements, err := repo.ReplaySnapshot(context.Background(), testEntityID, testLotID)
	require.NoError(t, err)
	assert.Equal(t, 42, record.CurrentQuantity)
	require.Len(t, movements, 1)
	assert.Equal(t, int64(1), movements[0].Seq)

	mockDB.ExpectationsWereMet(t)
}

func TestReplaySnapshotMissingRecord(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	db := database.NewFromSqlx(mockDB.DB, logger.New("test", "development"))
	repo := repository.NewStockRepository(db)

	mockDB.ExpectBegin()
	mockDB.Mock.ExpectQuery("FROM stock_records").
		WithArgs(testEntityID, testLotID).
		WillReturnRows(sqlmock.NewRows(recordColumns()))
	mockDB.ExpectRollback()

	_, _, err := repo.ReplaySnapshot(context.Background(), testEntityID, testLotID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}

// The ledger is sorted by the insert-time sequence, not by created_at:
// NOW() is the transaction start timestamp and can disagree with the order
// movements actually acquired the projection row lock.
func TestListMovementsOrdersByApplicationSequence(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	db := database.NewFromSqlx(mockDB.DB, logger.New("test", "development"))
	repo := repository.NewStockRepository(db)

	earlier := time.Now().UTC().Add(-time.Minute)
	later := time.Now().UTC()

	// Seq order 1, 2 even though the second row carries the earlier
	// transaction timestamp.
	mockDB.Mock.ExpectQuery("ORDER BY seq").
		WithArgs(testEntityID, testLotID).
		WillReturnRows(sqlmock.NewRows(movementColumns()).
			AddRow("m-1", int64(1), testEntityID, testLotID, repository.MovementEntree, 10, 10, 10, "actor-1", "", later).
			AddRow("m-2", int64(2), testEntityID, testLotID, repository.MovementAdjustment, 5, -5, 5, "actor-2", "count", earlier))

	movements, err := repo.ListMovements(context.Background(), testEntityID, testLotID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, int64(1), movements[0].Seq)
	assert.Equal(t, int64(2), movements[1].Seq)
	assert.Equal(t, 5, repository.ReplayMovements(movements))

	mockDB.ExpectationsWereMet(t)
}

func TestGetRecordNotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	db := database.NewFromSqlx(mockDB.DB, logger.New("test", "development"))
	repo := repository.NewStockRepository(db)

	mockDB.Mock.ExpectQuery("FROM stock_records").
		WithArgs(testEntityID, testLotID).
		WillReturnRows(sqlmock.NewRows(recordColumns()))

	_, err := repo.GetRecord(context.Background(), testEntityID, testLotID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}

func TestUpdateThresholdsRejectsInvertedPair(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	db := database.NewFromSqlx(mockDB.DB, logger.New("test", "development"))
	repo := repository.NewStockRepository(db)

	_, err := repo.UpdateThresholds(context.Background(), testEntityID, testLotID, 10, 20)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	mockDB.ExpectationsWereMet(t)
}
