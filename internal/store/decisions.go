package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/assetverse/internal/model"
)

// Decision steps, in execution order.
const (
	StepLoadRequest    = "load_request"
	StepDecrementAsset = "decrement_asset"
	StepAllocation     = "increment_allocation"
	StepFinalize       = "finalize_request"
	StepCommit         = "commit"
)

// StepError reports the decision step at which the store failed. Every
// earlier step of the same decision has been rolled back.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("decision step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// stepError leaves domain outcomes (not found, conflicts, bad input) bare and
// tags everything else with the failing step.
func stepError(step string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidInput) {
		return err
	}
	return &StepError{Step: step, Err: err}
}

// DecideRequest applies an approve or reject decision to a pending request.
//
// On approve it decrements the asset by the requested quantity (failing with
// ErrInsufficientStock rather than going negative), increments the
// allocation counter of the employee's first connection whose company email
// matches, and marks the request approved. A missing connection is not an
// error; the result reports AllocationCounted=false. On reject only the
// request changes.
//
// All writes share one transaction. The database is opened with BEGIN
// IMMEDIATE, so concurrent decisions serialize instead of both reading the
// same quantity.
func DecideRequest(ctx context.Context, db *sql.DB, d model.Decision) (*model.DecisionResult, error) {
	if !d.Status.IsDecision() {
		return nil, fmt.Errorf("%w: decision must be %q or %q", ErrInvalidInput, model.RequestApproved, model.RequestRejected)
	}
	if d.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, stepError(StepLoadRequest, fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback()

	req, err := GetRequest(ctx, tx, d.RequestID)
	if err != nil {
		return nil, stepError(StepLoadRequest, err)
	}
	if req.Status != model.RequestPending {
		return nil, fmt.Errorf("%w: request is %s", ErrAlreadyDecided, req.Status)
	}

	if d.Quantity == 0 {
		d.Quantity = req.Quantity
	}
	if d.AssetID == "" {
		d.AssetID = req.Product.AssetID
	}
	if d.EmployeeID == "" {
		d.EmployeeID = req.EmployeeID
	}
	if d.CompanyEmail == "" {
		d.CompanyEmail = req.Product.CompanyEmail
	}

	result := &model.DecisionResult{}

	if d.Status == model.RequestApproved {
		remaining, err := DecrementQuantity(ctx, tx, d.AssetID, d.Quantity)
		if err != nil {
			return nil, stepError(StepDecrementAsset, err)
		}
		result.QuantityRemaining = &remaining

		counted, err := incrementAllocation(ctx, tx, d.EmployeeID, d.CompanyEmail)
		if err != nil {
			return nil, stepError(StepAllocation, err)
		}
		result.AllocationCounted = counted
	}

	if err := finalizeRequest(ctx, tx, req.ID, d.Status); err != nil {
		return nil, stepError(StepFinalize, err)
	}

	decided, err := GetRequest(ctx, tx, req.ID)
	if err != nil {
		return nil, stepError(StepFinalize, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, stepError(StepCommit, fmt.Errorf("committing decision: %w", err))
	}

	result.Request = decided
	return result, nil
}

// incrementAllocation adds one to the allocation counter of the employee's
// first connection with the given company email. It reports whether a
// connection matched.
func incrementAllocation(ctx context.Context, db DBTX, employeeID, companyEmail string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE connections SET allocation_count = allocation_count + 1
		 WHERE rowid = (SELECT rowid FROM connections
		                WHERE employee_id = ? AND company_email = ?
		                ORDER BY rowid LIMIT 1)`,
		employeeID, companyEmail,
	)
	if err != nil {
		return false, fmt.Errorf("incrementing allocation count: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("incrementing allocation count: %w", err)
	}
	return n > 0, nil
}
