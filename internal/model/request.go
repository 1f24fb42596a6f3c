package model

import "time"

// RequestStatus is the lifecycle state of an asset request.
type RequestStatus string

// Request statuses. Approve and reject are terminal.
const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approve"
	RequestRejected RequestStatus = "reject"
)

// IsDecision reports whether s is a terminal decision.
func (s RequestStatus) IsDecision() bool {
	return s == RequestApproved || s == RequestRejected
}

// ProductSnapshot is the copy of an asset's descriptive fields taken when a
// request is submitted.
type ProductSnapshot struct {
	AssetID      string `json:"assetId"`
	Name         string `json:"productName"`
	Type         string `json:"productType"`
	Image        string `json:"productImage,omitempty"`
	CompanyEmail string `json:"companyEmail"`
}

// Request is an employee's ask for a quantity of an asset.
type Request struct {
	ID              string          `json:"id"`
	Product         ProductSnapshot `json:"product"`
	RequesterName   string          `json:"requesterName"`
	RequesterEmail  string          `json:"requesterEmail"`
	EmployeeID      string          `json:"requesterId"`
	Quantity        int             `json:"quantity"`
	Note            string          `json:"note,omitempty"`
	Status          RequestStatus   `json:"status"`
	RequestedAt     time.Time       `json:"requestDate"`
	StatusChangedAt time.Time       `json:"statusChangedAt"`
}

// Decision carries the inputs of a request decision. Zero-valued fields are
// filled from the stored request.
type Decision struct {
	RequestID    string
	Status       RequestStatus
	Quantity     int
	AssetID      string
	EmployeeID   string
	CompanyEmail string
}

// DecisionResult reports the outcome of a decision.
type DecisionResult struct {
	Request           *Request `json:"request"`
	QuantityRemaining *int     `json:"quantityRemaining,omitempty"`
	AllocationCounted bool     `json:"allocationCounted"`
}
