package model

import "time"

// Asset is a quantity-tracked inventory entry owned by one company.
type Asset struct {
	ID           string    `json:"id"`
	CompanyEmail string    `json:"companyEmail"`
	Name         string    `json:"productName"`
	Type         string    `json:"productType"`
	Image        string    `json:"productImage,omitempty"`
	ImageMime    string    `json:"imageMime,omitempty"`
	Quantity     int       `json:"productQuantity"`
	CreatedAt    time.Time `json:"dateAdded"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Asset types used by the client. The store accepts any type string.
const (
	AssetTypeReturnable    = "Returnable"
	AssetTypeNonReturnable = "Non-returnable"
)

// AssetUpdate holds the fields replaced by a full asset edit.
type AssetUpdate struct {
	Name     string
	Image    string
	Type     string
	Quantity int
}
