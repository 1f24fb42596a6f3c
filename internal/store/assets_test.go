package store

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/erazemk/assetverse/internal/db"
	"github.com/erazemk/assetverse/internal/model"
)

func TestCreateAndUpdateAsset(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a, err := CreateAsset(ctx, database, "hr@acme.test", "Laptop", model.AssetTypeReturnable, "https://img.test/laptop.png", 10)
	if err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	if a.Quantity != 10 || a.CompanyEmail != "hr@acme.test" {
		t.Errorf("unexpected asset: %+v", a)
	}

	updated, err := UpdateAsset(ctx, database, a.ID, model.AssetUpdate{
		Name:     "Laptop Pro",
		Image:    "",
		Type:     model.AssetTypeNonReturnable,
		Quantity: 3,
	})
	if err != nil {
		t.Fatalf("UpdateAsset: %v", err)
	}
	if updated.Name != "Laptop Pro" || updated.Type != model.AssetTypeNonReturnable || updated.Quantity != 3 || updated.Image != "" {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.CompanyEmail != "hr@acme.test" {
		t.Errorf("expected company email to be unchanged, got %q", updated.CompanyEmail)
	}

	_, err = UpdateAsset(ctx, database, "missing", model.AssetUpdate{Name: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteAsset(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := mustAsset(t, database, "hr@acme.test", "Chair", model.AssetTypeReturnable, 1)
	if err := DeleteAsset(ctx, database, a.ID); err != nil {
		t.Fatalf("DeleteAsset: %v", err)
	}
	if _, err := GetAsset(ctx, database, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := DeleteAsset(ctx, database, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSearchAssets(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	stepClock(t)

	mustAsset(t, database, "hr@acme.test", "Laptop", model.AssetTypeReturnable, 1)
	mustAsset(t, database, "hr@acme.test", "Desktop", model.AssetTypeReturnable, 1)
	mustAsset(t, database, "hr@acme.test", "LAPTOP", model.AssetTypeReturnable, 1)
	mustAsset(t, database, "hr@acme.test", "overlap", model.AssetTypeNonReturnable, 1)
	mustAsset(t, database, "hr@globex.test", "Laptop bag", model.AssetTypeNonReturnable, 1)
	mustAsset(t, database, "hr@acme.test", "50% off voucher", model.AssetTypeNonReturnable, 1)
	mustAsset(t, database, "hr@acme.test", "ÉCRAN 27", model.AssetTypeReturnable, 1)

	names := func(assets []model.Asset) []string {
		out := []string{}
		for _, a := range assets {
			out = append(out, a.Name)
		}
		return out
	}

	tests := []struct {
		name   string
		filter AssetFilter
		want   []string
	}{
		{
			name:   "substring any case newest first",
			filter: AssetFilter{CompanyEmail: "hr@acme.test", Search: "lap"},
			want:   []string{"overlap", "LAPTOP", "Laptop"},
		},
		{
			name:   "all companies",
			filter: AssetFilter{Search: "laptop"},
			want:   []string{"Laptop bag", "LAPTOP", "Laptop"},
		},
		{
			name:   "company only",
			filter: AssetFilter{CompanyEmail: "hr@globex.test"},
			want:   []string{"Laptop bag"},
		},
		{
			name:   "percent is literal",
			filter: AssetFilter{Search: "%"},
			want:   []string{"50% off voucher"},
		},
		{
			name:   "non-ASCII case folding",
			filter: AssetFilter{CompanyEmail: "hr@acme.test", Search: "écran"},
			want:   []string{"ÉCRAN 27"},
		},
		{
			name:   "no match",
			filter: AssetFilter{Search: "monitor"},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SearchAssets(ctx, database, tt.filter)
			if err != nil {
				t.Fatalf("SearchAssets: %v", err)
			}
			if diff := cmp.Diff(tt.want, names(got)); diff != "" {
				t.Errorf("SearchAssets mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecrementQuantity(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := mustAsset(t, database, "hr@acme.test", "Laptop", model.AssetTypeReturnable, 5)

	remaining, err := DecrementQuantity(ctx, database, a.ID, 3)
	if err != nil {
		t.Fatalf("DecrementQuantity: %v", err)
	}
	if remaining != 2 {
		t.Errorf("expected 2 remaining, got %d", remaining)
	}

	_, err = DecrementQuantity(ctx, database, a.ID, 3)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got %v", err)
	}
	if q := mustGetAsset(t, database, a.ID).Quantity; q != 2 {
		t.Errorf("expected quantity to stay 2, got %d", q)
	}

	remaining, err = DecrementQuantity(ctx, database, a.ID, 2)
	if err != nil {
		t.Fatalf("DecrementQuantity to zero: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected 0 remaining, got %d", remaining)
	}

	if _, err := DecrementQuantity(ctx, database, "missing", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := DecrementQuantity(ctx, database, a.ID, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAssetImage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := mustAsset(t, database, "hr@acme.test", "Laptop", model.AssetTypeReturnable, 1)

	if _, _, err := GetAssetImage(ctx, database, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound before upload, got %v", err)
	}

	data := []byte{0xff, 0xd8, 0xff, 0x00}
	if err := SetAssetImage(ctx, database, a.ID, data, "image/jpeg"); err != nil {
		t.Fatalf("SetAssetImage: %v", err)
	}

	got, mime, err := GetAssetImage(ctx, database, a.ID)
	if err != nil {
		t.Fatalf("GetAssetImage: %v", err)
	}
	if !bytes.Equal(got, data) || mime != "image/jpeg" {
		t.Errorf("unexpected image %v (%s)", got, mime)
	}
	if m := mustGetAsset(t, database, a.ID).ImageMime; m != "image/jpeg" {
		t.Errorf("expected asset mime image/jpeg, got %q", m)
	}

	if err := SetAssetImage(ctx, database, "missing", data, "image/jpeg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
