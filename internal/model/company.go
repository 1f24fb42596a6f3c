package model

import "time"

// Company is the HR manager's record. CurrentEmployeeCount is maintained by
// increments and decrements on join and removal, not recomputed.
type Company struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	Name                 string    `json:"name"`
	CompanyName          string    `json:"companyName"`
	PackageLimit         int       `json:"packageLimit"`
	CurrentEmployeeCount int       `json:"currentEmployeeCount"`
	CreatedAt            time.Time `json:"createdAt"`
}

// Package is a subscription tier from the catalog.
type Package struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	EmployeeLimit int      `json:"employeeLimit"`
	PriceCents    int      `json:"priceCents"`
	Features      []string `json:"features"`
}
