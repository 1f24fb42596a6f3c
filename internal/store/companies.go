package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/erazemk/assetverse/internal/model"
)

// CreateCompany creates an HR manager's company record with a zero
// employee count.
func CreateCompany(ctx context.Context, db DBTX, email, name, companyName string, packageLimit int) (*model.Company, error) {
	if packageLimit < 0 {
		return nil, fmt.Errorf("%w: package limit must not be negative", ErrInvalidInput)
	}

	id := newID()
	_, err := db.ExecContext(ctx,
		`INSERT INTO companies (id, email, name, company_name, package_limit, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, email, name, companyName, packageLimit, now(),
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, fmt.Errorf("creating company: %w", err)
	}

	return GetCompany(ctx, db, id)
}

// GetCompany returns a company by ID.
func GetCompany(ctx context.Context, db DBTX, id string) (*model.Company, error) {
	return getCompanyWhere(ctx, db, `id = ?`, id)
}

// GetCompanyByEmail returns a company by its HR manager's email.
func GetCompanyByEmail(ctx context.Context, db DBTX, email string) (*model.Company, error) {
	return getCompanyWhere(ctx, db, `email = ?`, email)
}

func getCompanyWhere(ctx context.Context, db DBTX, where string, arg any) (*model.Company, error) {
	c := &model.Company{}
	err := db.QueryRowContext(ctx,
		`SELECT id, email, name, company_name, package_limit, current_employee_count, created_at
		 FROM companies WHERE `+where, arg,
	).Scan(&c.ID, &c.Email, &c.Name, &c.CompanyName, &c.PackageLimit, &c.CurrentEmployeeCount, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("company: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting company: %w", err)
	}
	return c, nil
}

// ListPackages returns the subscription catalog, smallest tier first.
func ListPackages(ctx context.Context, db DBTX) ([]model.Package, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, employee_limit, price_cents, features
		 FROM packages ORDER BY employee_limit, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing packages: %w", err)
	}
	defer rows.Close()

	packages := []model.Package{}
	for rows.Next() {
		var p model.Package
		var features string
		if err := rows.Scan(&p.ID, &p.Name, &p.EmployeeLimit, &p.PriceCents, &features); err != nil {
			return nil, fmt.Errorf("scanning package: %w", err)
		}
		p.Features = []string{}
		for _, f := range strings.Split(features, ",") {
			if f = strings.TrimSpace(f); f != "" {
				p.Features = append(p.Features, f)
			}
		}
		packages = append(packages, p)
	}
	return packages, rows.Err()
}
