package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"

	apperrors "github.com/djiba142/Pharmacie-sub000/pkg/errors"
)

// PostgreSQL error codes relevant to the single-row transaction discipline.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// IsSerializationFailure reports whether err is a retryable transaction
// conflict (serialization failure or deadlock).
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
}

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *apperrors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return apperrors.New("CONFLICT", formatConstraintMessage(pqErr), 409)

	// Foreign key violation (23503)
	case "23503":
		return apperrors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return apperrors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *apperrors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return apperrors.Validation(map[string]string{
			"current_quantity": "must not be negative",
		})

	case strings.Contains(constraint, "thresholds_ordered"):
		return apperrors.Validation(map[string]string{
			"minimal_threshold": "must not exceed the alert threshold",
		})

	case strings.Contains(constraint, "level_valid"):
		return apperrors.Validation(map[string]string{
			"level": "must be one of: National, Regional, Prefectoral, Peripheral",
		})

	case strings.Contains(constraint, "status_valid"):
		return apperrors.BadRequest("data validation failed: invalid status value")

	default:
		return apperrors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "stock_records_entity_lot"):
		return "a stock record for this entity and lot already exists"
	case strings.Contains(constraint, "batch_number"):
		return "a lot with this batch number already exists for the medicament"
	default:
		return "a record with these values already exists"
	}
}
