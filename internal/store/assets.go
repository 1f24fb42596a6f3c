package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/erazemk/assetverse/internal/model"
)

const assetColumns = `id, company_email, name, type, image, COALESCE(image_mime, ''), quantity, created_at, updated_at`

func scanAsset(row interface{ Scan(...any) error }) (*model.Asset, error) {
	a := &model.Asset{}
	err := row.Scan(&a.ID, &a.CompanyEmail, &a.Name, &a.Type, &a.Image, &a.ImageMime, &a.Quantity, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAsset adds an asset to a company's inventory. The quantity is stored
// as given.
func CreateAsset(ctx context.Context, db DBTX, companyEmail, name, assetType, image string, quantity int) (*model.Asset, error) {
	id := newID()
	ts := now()
	_, err := db.ExecContext(ctx,
		`INSERT INTO assets (id, company_email, name, type, image, quantity, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, companyEmail, name, assetType, image, quantity, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("creating asset: %w", err)
	}

	return GetAsset(ctx, db, id)
}

// GetAsset returns an asset by ID.
func GetAsset(ctx context.Context, db DBTX, id string) (*model.Asset, error) {
	a, err := scanAsset(db.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting asset: %w", err)
	}
	return a, nil
}

// UpdateAsset replaces the name, image, type and quantity of an asset.
func UpdateAsset(ctx context.Context, db DBTX, id string, u model.AssetUpdate) (*model.Asset, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE assets SET name = ?, image = ?, type = ?, quantity = ?, updated_at = ?
		 WHERE id = ?`,
		u.Name, u.Image, u.Type, u.Quantity, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating asset: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("asset: %w", ErrNotFound)
	}

	return GetAsset(ctx, db, id)
}

// AssetFilter narrows SearchAssets. Empty fields are ignored.
type AssetFilter struct {
	CompanyEmail string
	Search       string
}

// SearchAssets returns assets whose name contains Search (case-insensitive),
// newest first.
func SearchAssets(ctx context.Context, db DBTX, f AssetFilter) ([]model.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE 1=1`
	var args []any

	if f.CompanyEmail != "" {
		query += ` AND company_email = ?`
		args = append(args, f.CompanyEmail)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		query += ` AND fold(name) LIKE ? ESCAPE '\'`
		args = append(args, containsPattern(search))
	}

	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching assets: %w", err)
	}
	defer rows.Close()

	assets := []model.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning asset: %w", err)
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// DeleteAsset removes an asset. Requests referencing it keep their snapshot.
func DeleteAsset(ctx context.Context, db DBTX, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting asset: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("asset: %w", ErrNotFound)
	}
	return nil
}

// DecrementQuantity subtracts amount from the asset's quantity only if at
// least amount is available, in a single statement. It returns the
// remaining quantity, ErrInsufficientStock when the stock is too low, or
// ErrNotFound for an unknown asset.
func DecrementQuantity(ctx context.Context, db DBTX, id string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	var remaining int
	err := db.QueryRowContext(ctx,
		`UPDATE assets SET quantity = quantity - ?, updated_at = ?
		 WHERE id = ? AND quantity >= ?
		 RETURNING quantity`,
		amount, now(), id, amount,
	).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("decrementing asset quantity: %w", err)
	}

	var available int
	err = db.QueryRowContext(ctx, `SELECT quantity FROM assets WHERE id = ?`, id).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("asset: %w", ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("checking asset quantity: %w", err)
	}
	return 0, fmt.Errorf("%w: have %d, need %d", ErrInsufficientStock, available, amount)
}

// SetAssetImage stores processed image bytes for an asset.
func SetAssetImage(ctx context.Context, db DBTX, id string, image []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE assets SET image_data = ?, image_mime = ?, updated_at = ? WHERE id = ?`,
		image, mime, now(), id,
	)
	if err != nil {
		return fmt.Errorf("setting asset image: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("asset: %w", ErrNotFound)
	}
	return nil
}

// GetAssetImage returns an asset's stored image and MIME type. An asset
// without an uploaded image yields ErrNotFound.
func GetAssetImage(ctx context.Context, db DBTX, id string) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image_data, image_mime FROM assets WHERE id = ?`, id,
	).Scan(&image, &mime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("asset: %w", ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting asset image: %w", err)
	}
	if len(image) == 0 {
		return nil, "", fmt.Errorf("asset image: %w", ErrNotFound)
	}
	return image, mime.String, nil
}
