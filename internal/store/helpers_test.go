package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/erazemk/assetverse/internal/model"
)

func mustEmployee(t *testing.T, database *sql.DB, email, name, dob string) *model.Employee {
	t.Helper()
	e, err := CreateEmployee(context.Background(), database, email, name, dob)
	if err != nil {
		t.Fatalf("CreateEmployee(%s): %v", email, err)
	}
	return e
}

func mustCompany(t *testing.T, database *sql.DB, email, companyName string) *model.Company {
	t.Helper()
	c, err := CreateCompany(context.Background(), database, email, "HR "+companyName, companyName, 10)
	if err != nil {
		t.Fatalf("CreateCompany(%s): %v", email, err)
	}
	return c
}

func connectionTo(c *model.Company, status model.ConnectionStatus) model.Connection {
	return model.Connection{
		CompanyID:        c.ID,
		CompanyManagerID: c.Email,
		CompanyEmail:     c.Email,
		CompanyName:      c.CompanyName,
		Status:           status,
	}
}

func mustConnect(t *testing.T, database *sql.DB, e *model.Employee, c *model.Company, status model.ConnectionStatus) {
	t.Helper()
	added, err := AddConnection(context.Background(), database, e.ID, connectionTo(c, status), 1)
	if err != nil {
		t.Fatalf("AddConnection: %v", err)
	}
	if !added {
		t.Fatalf("expected connection of %s to %s to be added", e.Email, c.Email)
	}
}

func mustAsset(t *testing.T, database *sql.DB, companyEmail, name, assetType string, quantity int) *model.Asset {
	t.Helper()
	a, err := CreateAsset(context.Background(), database, companyEmail, name, assetType, "", quantity)
	if err != nil {
		t.Fatalf("CreateAsset(%s): %v", name, err)
	}
	return a
}

func mustRequest(t *testing.T, database *sql.DB, a *model.Asset, e *model.Employee, quantity int) *model.Request {
	t.Helper()
	r, err := SubmitRequest(context.Background(), database, snapshotOf(a), NewRequest{
		EmployeeID:     e.ID,
		RequesterName:  e.Name,
		RequesterEmail: e.Email,
		Quantity:       quantity,
	})
	if err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}
	return r
}

func snapshotOf(a *model.Asset) model.ProductSnapshot {
	return model.ProductSnapshot{
		AssetID:      a.ID,
		Name:         a.Name,
		Type:         a.Type,
		Image:        a.Image,
		CompanyEmail: a.CompanyEmail,
	}
}

func mustGetEmployee(t *testing.T, database *sql.DB, id string) *model.Employee {
	t.Helper()
	e, err := GetEmployee(context.Background(), database, id)
	if err != nil {
		t.Fatalf("GetEmployee: %v", err)
	}
	return e
}

func mustGetCompany(t *testing.T, database *sql.DB, id string) *model.Company {
	t.Helper()
	c, err := GetCompany(context.Background(), database, id)
	if err != nil {
		t.Fatalf("GetCompany: %v", err)
	}
	return c
}

func mustGetAsset(t *testing.T, database *sql.DB, id string) *model.Asset {
	t.Helper()
	a, err := GetAsset(context.Background(), database, id)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	return a
}

// stepClock makes now return strictly increasing times for the duration of
// the test.
func stepClock(t *testing.T) {
	t.Helper()
	orig := now
	ts := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	now = func() time.Time {
		ts = ts.Add(time.Minute)
		return ts
	}
	t.Cleanup(func() { now = orig })
}
