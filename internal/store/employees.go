package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/assetverse/internal/model"
)

const employeeColumns = `e.id, e.email, e.name, e.date_of_birth, e.created_at`

// CreateEmployee registers a new employee profile. The email must be unique.
func CreateEmployee(ctx context.Context, db DBTX, email, name, dateOfBirth string) (*model.Employee, error) {
	id := newID()
	_, err := db.ExecContext(ctx,
		`INSERT INTO employees (id, email, name, date_of_birth, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, email, name, dateOfBirth, now(),
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, fmt.Errorf("creating employee: %w", err)
	}

	return GetEmployee(ctx, db, id)
}

// GetEmployee returns an employee with its connections.
func GetEmployee(ctx context.Context, db DBTX, id string) (*model.Employee, error) {
	return getEmployeeWhere(ctx, db, `e.id = ?`, id)
}

// GetEmployeeByEmail returns an employee with its connections.
func GetEmployeeByEmail(ctx context.Context, db DBTX, email string) (*model.Employee, error) {
	return getEmployeeWhere(ctx, db, `e.email = ?`, email)
}

func getEmployeeWhere(ctx context.Context, db DBTX, where string, arg any) (*model.Employee, error) {
	e := &model.Employee{}
	err := db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees e WHERE `+where, arg,
	).Scan(&e.ID, &e.Email, &e.Name, &e.DateOfBirth, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("employee: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting employee: %w", err)
	}

	employees := []model.Employee{*e}
	if err := loadConnections(ctx, db, employees); err != nil {
		return nil, err
	}
	return &employees[0], nil
}

// AddConnection inserts conn into the employee's connection set. An entry
// with the same company and manager is the same element: a connected conn
// promotes a pending entry, anything else leaves it untouched and added is
// false. On an insertion or a promotion the company's employee counter is
// moved by companyDelta in the same transaction.
func AddConnection(ctx context.Context, db *sql.DB, employeeID string, conn model.Connection, companyDelta int) (bool, error) {
	if conn.CompanyID == "" || conn.CompanyManagerID == "" {
		return false, fmt.Errorf("%w: company id and manager id required", ErrInvalidInput)
	}
	if conn.Status == "" {
		conn.Status = model.ConnectionPending
	}
	if !conn.Status.Valid() {
		return false, fmt.Errorf("%w: unknown connection status %q", ErrInvalidInput, conn.Status)
	}
	if conn.AllocationCount < 0 {
		return false, fmt.Errorf("%w: allocation count must not be negative", ErrInvalidInput)
	}
	if conn.JoinDate.IsZero() {
		conn.JoinDate = now()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM employees WHERE id = ?`, employeeID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("employee: %w", ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("checking employee: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO connections (employee_id, company_id, company_manager_id, company_email,
		                          company_name, status, allocation_count, join_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (employee_id, company_id, company_manager_id) DO UPDATE
		 SET status = excluded.status
		 WHERE connections.status = 'pending' AND excluded.status = 'connected'`,
		employeeID, conn.CompanyID, conn.CompanyManagerID, conn.CompanyEmail,
		conn.CompanyName, string(conn.Status), conn.AllocationCount, conn.JoinDate.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("adding connection: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("adding connection: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if companyDelta != 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE companies SET current_employee_count = MAX(current_employee_count + ?, 0) WHERE id = ?`,
			companyDelta, conn.CompanyID,
		)
		if err != nil {
			return false, fmt.Errorf("updating company employee count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing connection: %w", err)
	}
	return true, nil
}

// RemoveEmployee deletes the employee and its connections. Only when a row
// was actually deleted is the company's employee counter decremented.
// Removing an unknown employee deletes nothing and is not an error.
func RemoveEmployee(ctx context.Context, db *sql.DB, employeeID, companyID string) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM employees WHERE id = ?`, employeeID)
	if err != nil {
		return 0, fmt.Errorf("deleting employee: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting employee: %w", err)
	}

	if deleted > 0 && companyID != "" {
		_, err = tx.ExecContext(ctx,
			`UPDATE companies SET current_employee_count = current_employee_count - 1
			 WHERE id = ? AND current_employee_count > 0`,
			companyID,
		)
		if err != nil {
			return 0, fmt.Errorf("updating company employee count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing employee removal: %w", err)
	}
	return deleted, nil
}

// ListConnectedCompanies returns the companies the employee with the given
// email is connected to, in join order.
func ListConnectedCompanies(ctx context.Context, db DBTX, email string) ([]model.ConnectedCompany, error) {
	var employeeID string
	err := db.QueryRowContext(ctx, `SELECT id FROM employees WHERE email = ?`, email).Scan(&employeeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("employee: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting employee: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT company_name, company_manager_id FROM connections
		 WHERE employee_id = ? AND status = ?
		 ORDER BY rowid`,
		employeeID, string(model.ConnectionConnected),
	)
	if err != nil {
		return nil, fmt.Errorf("listing connected companies: %w", err)
	}
	defer rows.Close()

	companies := []model.ConnectedCompany{}
	for rows.Next() {
		var c model.ConnectedCompany
		if err := rows.Scan(&c.CompanyName, &c.CompanyManagerID); err != nil {
			return nil, fmt.Errorf("scanning connected company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// ListTeam returns every employee connected to the given company manager.
func ListTeam(ctx context.Context, db DBTX, companyManagerID string) ([]model.Employee, error) {
	return queryEmployees(ctx, db,
		`SELECT `+employeeColumns+` FROM employees e
		 WHERE EXISTS (SELECT 1 FROM connections c
		               WHERE c.employee_id = e.id AND c.company_manager_id = ? AND c.status = ?)
		 ORDER BY e.name, e.email`,
		companyManagerID, string(model.ConnectionConnected),
	)
}

// ListBirthdays returns the connected team members born in the given month
// of any year.
func ListBirthdays(ctx context.Context, db DBTX, companyManagerID string, month time.Month) ([]model.Employee, error) {
	return queryEmployees(ctx, db,
		`SELECT `+employeeColumns+` FROM employees e
		 WHERE EXISTS (SELECT 1 FROM connections c
		               WHERE c.employee_id = e.id AND c.company_manager_id = ? AND c.status = ?)
		   AND substr(e.date_of_birth, 6, 2) = ?
		 ORDER BY substr(e.date_of_birth, 9, 2), e.name`,
		companyManagerID, string(model.ConnectionConnected), fmt.Sprintf("%02d", int(month)),
	)
}

// EmployeeFilter narrows SearchEmployees. Empty fields are ignored; the
// rest are combined with AND.
type EmployeeFilter struct {
	CompanyManagerID string
	Name             string
	Email            string
}

// SearchEmployees returns employees matching every non-empty filter field.
// Name matches as a case-insensitive substring. CompanyManagerID matches a
// connection to that manager in any status.
func SearchEmployees(ctx context.Context, db DBTX, f EmployeeFilter) ([]model.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees e WHERE 1=1`
	var args []any

	if f.CompanyManagerID != "" {
		query += ` AND EXISTS (SELECT 1 FROM connections c
		                       WHERE c.employee_id = e.id AND c.company_manager_id = ?)`
		args = append(args, f.CompanyManagerID)
	}
	if name := strings.TrimSpace(f.Name); name != "" {
		query += ` AND fold(e.name) LIKE ? ESCAPE '\'`
		args = append(args, containsPattern(name))
	}
	if f.Email != "" {
		query += ` AND e.email = ?`
		args = append(args, f.Email)
	}

	query += ` ORDER BY e.name, e.email`

	return queryEmployees(ctx, db, query, args...)
}

func queryEmployees(ctx context.Context, db DBTX, query string, args ...any) ([]model.Employee, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}
	defer rows.Close()

	employees := []model.Employee{}
	for rows.Next() {
		var e model.Employee
		if err := rows.Scan(&e.ID, &e.Email, &e.Name, &e.DateOfBirth, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning employee: %w", err)
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}

	if err := loadConnections(ctx, db, employees); err != nil {
		return nil, err
	}
	return employees, nil
}

// loadConnections fills the Connections of each employee in one query,
// preserving insertion order.
func loadConnections(ctx context.Context, db DBTX, employees []model.Employee) error {
	if len(employees) == 0 {
		return nil
	}

	index := make(map[string]int, len(employees))
	args := make([]any, 0, len(employees))
	for i := range employees {
		employees[i].Connections = []model.Connection{}
		index[employees[i].ID] = i
		args = append(args, employees[i].ID)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT employee_id, company_id, company_manager_id, company_email, company_name,
		        status, allocation_count, join_date
		 FROM connections WHERE employee_id IN (`+placeholders(len(args))+`)
		 ORDER BY rowid`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("loading connections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var employeeID, status string
		var c model.Connection
		if err := rows.Scan(&employeeID, &c.CompanyID, &c.CompanyManagerID, &c.CompanyEmail,
			&c.CompanyName, &status, &c.AllocationCount, &c.JoinDate); err != nil {
			return fmt.Errorf("scanning connection: %w", err)
		}
		c.Status = model.ConnectionStatus(status)
		i := index[employeeID]
		employees[i].Connections = append(employees[i].Connections, c)
	}
	return rows.Err()
}
