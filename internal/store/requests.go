package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/erazemk/assetverse/internal/model"
)

const requestColumns = `id, asset_id, asset_name, asset_type, asset_image, company_email,
	requester_name, requester_email, employee_id, quantity, note, status,
	requested_at, status_changed_at`

func scanRequest(row interface{ Scan(...any) error }) (*model.Request, error) {
	r := &model.Request{}
	var status string
	err := row.Scan(&r.ID, &r.Product.AssetID, &r.Product.Name, &r.Product.Type, &r.Product.Image,
		&r.Product.CompanyEmail, &r.RequesterName, &r.RequesterEmail, &r.EmployeeID,
		&r.Quantity, &r.Note, &status, &r.RequestedAt, &r.StatusChangedAt)
	if err != nil {
		return nil, err
	}
	r.Status = model.RequestStatus(status)
	return r, nil
}

// NewRequest holds the requester-supplied fields of a submission.
type NewRequest struct {
	EmployeeID     string
	RequesterName  string
	RequesterEmail string
	Quantity       int
	Note           string
}

// SubmitRequest records a pending request for the product described by the
// snapshot.
func SubmitRequest(ctx context.Context, db DBTX, product model.ProductSnapshot, in NewRequest) (*model.Request, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if product.AssetID == "" {
		return nil, fmt.Errorf("%w: asset id required", ErrInvalidInput)
	}

	id := newID()
	ts := now()
	_, err := db.ExecContext(ctx,
		`INSERT INTO requests (id, asset_id, asset_name, asset_type, asset_image, company_email,
		                       requester_name, requester_email, employee_id, quantity, note, status,
		                       requested_at, status_changed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, product.AssetID, product.Name, product.Type, product.Image, product.CompanyEmail,
		in.RequesterName, in.RequesterEmail, in.EmployeeID, in.Quantity, in.Note,
		string(model.RequestPending), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("submitting request: %w", err)
	}

	return GetRequest(ctx, db, id)
}

// GetRequest returns a request by ID.
func GetRequest(ctx context.Context, db DBTX, id string) (*model.Request, error) {
	r, err := scanRequest(db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("request: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	return r, nil
}

// RequestFilter narrows ListRequests. Empty fields are ignored; the rest
// are combined with AND.
type RequestFilter struct {
	// Email matches either the requester's email or the owning company's.
	Email string
	// Search matches the product name or the requester name as a
	// case-insensitive substring.
	Search string
	// ProductType matches the snapshot's product type exactly.
	ProductType string
}

// ListRequests returns matching requests, newest first.
func ListRequests(ctx context.Context, db DBTX, f RequestFilter) ([]model.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE 1=1`
	var args []any

	if f.Email != "" {
		query += ` AND (requester_email = ? OR company_email = ?)`
		args = append(args, f.Email, f.Email)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := containsPattern(search)
		query += ` AND (fold(asset_name) LIKE ? ESCAPE '\' OR fold(requester_name) LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern)
	}
	if f.ProductType != "" {
		query += ` AND asset_type = ?`
		args = append(args, f.ProductType)
	}

	query += ` ORDER BY requested_at DESC, rowid DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	requests := []model.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

// finalizeRequest moves a pending request to a terminal status. It matches
// only pending rows, so a request is decided at most once.
func finalizeRequest(ctx context.Context, db DBTX, id string, status model.RequestStatus) error {
	result, err := db.ExecContext(ctx,
		`UPDATE requests SET status = ?, status_changed_at = ?
		 WHERE id = ? AND status = ?`,
		string(status), now(), id, string(model.RequestPending),
	)
	if err != nil {
		return fmt.Errorf("finalizing request: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrAlreadyDecided
	}
	return nil
}
