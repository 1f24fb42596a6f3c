package model

import (
	"fmt"
	"time"
)

// Employee is a self-registered person who can join companies.
type Employee struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	Name        string       `json:"name"`
	DateOfBirth string       `json:"dateOfBirth,omitempty"`
	Connections []Connection `json:"connections"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Connection is an employee's membership in one company.
type Connection struct {
	CompanyID        string           `json:"companyId"`
	CompanyManagerID string           `json:"companyManagerId"`
	CompanyEmail     string           `json:"companyEmail"`
	CompanyName      string           `json:"companyName"`
	Status           ConnectionStatus `json:"status"`
	AllocationCount  int              `json:"allocationCount"`
	JoinDate         time.Time        `json:"joinDate"`
}

// ConnectionKey identifies a connection within one employee's set.
type ConnectionKey struct {
	CompanyID        string
	CompanyManagerID string
}

// Key returns the set key of the connection.
func (c Connection) Key() ConnectionKey {
	return ConnectionKey{CompanyID: c.CompanyID, CompanyManagerID: c.CompanyManagerID}
}

// ConnectionStatus is the membership state of a connection.
type ConnectionStatus string

// Connection statuses.
const (
	ConnectionPending   ConnectionStatus = "pending"
	ConnectionConnected ConnectionStatus = "connected"
)

// Valid reports whether s is a known connection status.
func (s ConnectionStatus) Valid() bool {
	return s == ConnectionPending || s == ConnectionConnected
}

// ConnectedCompany is the projection returned when listing an employee's companies.
type ConnectedCompany struct {
	CompanyName      string `json:"companyName"`
	CompanyManagerID string `json:"companyManagerId"`
}

// DateOfBirthLayout is the wire and storage format of Employee.DateOfBirth.
const DateOfBirthLayout = "2006-01-02"

// ParseDateOfBirth parses a YYYY-MM-DD date.
func ParseDateOfBirth(s string) (time.Time, error) {
	t, err := time.Parse(DateOfBirthLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date of birth must be YYYY-MM-DD: %w", err)
	}
	return t, nil
}
