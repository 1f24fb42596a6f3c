package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/assetverse/internal/imaging"
	"github.com/erazemk/assetverse/internal/model"
	"github.com/erazemk/assetverse/internal/store"
)

// AssetsHandler handles the asset inventory endpoints.
type AssetsHandler struct {
	DB     *sql.DB
	Images *imaging.Processor
}

type assetRequest struct {
	CompanyEmail string `json:"companyEmail"`
	Name         string `json:"productName"`
	Type         string `json:"productType"`
	Image        string `json:"productImage"`
	Quantity     int    `json:"productQuantity"`
}

// Create handles POST /assets.
func (h *AssetsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		jsonError(w, http.StatusBadRequest, "productName required")
		return
	}
	companyEmail := strings.ToLower(strings.TrimSpace(req.CompanyEmail))
	if companyEmail == "" {
		jsonError(w, http.StatusBadRequest, "companyEmail required")
		return
	}

	asset, err := store.CreateAsset(r.Context(), h.DB, companyEmail, strings.TrimSpace(req.Name), req.Type, req.Image, req.Quantity)
	if err != nil {
		storeError(w, err, "creating asset")
		return
	}

	slog.Info("asset created", "asset", asset.ID, "company", asset.CompanyEmail, "quantity", asset.Quantity)
	jsonResponse(w, http.StatusCreated, asset)
}

// Update handles PATCH /assets/{id}. Name, image, type and quantity are
// replaced as a whole.
func (h *AssetsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		jsonError(w, http.StatusBadRequest, "productName required")
		return
	}

	asset, err := store.UpdateAsset(r.Context(), h.DB, r.PathValue("id"), model.AssetUpdate{
		Name:     strings.TrimSpace(req.Name),
		Image:    req.Image,
		Type:     req.Type,
		Quantity: req.Quantity,
	})
	if err != nil {
		storeError(w, err, "updating asset")
		return
	}

	slog.Info("asset updated", "asset", asset.ID, "quantity", asset.Quantity)
	jsonResponse(w, http.StatusOK, asset)
}

// List handles GET /assets?search=&email=.
func (h *AssetsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	assets, err := store.SearchAssets(r.Context(), h.DB, store.AssetFilter{
		CompanyEmail: strings.ToLower(strings.TrimSpace(q.Get("email"))),
		Search:       q.Get("search"),
	})
	if err != nil {
		storeError(w, err, "searching assets")
		return
	}
	jsonResponse(w, http.StatusOK, assets)
}

// Get handles GET /assets/{id}.
func (h *AssetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	asset, err := store.GetAsset(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		storeError(w, err, "getting asset")
		return
	}
	jsonResponse(w, http.StatusOK, asset)
}

// Delete handles DELETE /assets/{id}.
func (h *AssetsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := store.DeleteAsset(r.Context(), h.DB, id); err != nil {
		storeError(w, err, "deleting asset")
		return
	}

	slog.Info("asset deleted", "asset", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "asset deleted"})
}

// UploadImage handles PUT /assets/{id}/image.
func (h *AssetsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	limit := h.Images.MaxBytes
	if limit <= 0 {
		limit = imaging.DefaultMaxBytes
	}
	// Leave room for the multipart framing around the file.
	r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)

	if err := r.ParseMultipartForm(limit); err != nil {
		jsonError(w, http.StatusRequestEntityTooLarge, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	img, err := h.Images.Process(file)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		jsonError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case err != nil:
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetAssetImage(r.Context(), h.DB, id, img.Data, img.MIME); err != nil {
		storeError(w, err, "saving asset image")
		return
	}

	slog.Info("asset image uploaded", "asset", id, "bytes", len(img.Data), "width", img.Width, "height", img.Height)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /assets/{id}/image.
func (h *AssetsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetAssetImage(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		storeError(w, err, "getting asset image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
