package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/assetverse/internal/model"
	"github.com/erazemk/assetverse/internal/store"
)

// CompaniesHandler handles HR manager records and the package catalog.
type CompaniesHandler struct {
	DB *sql.DB
}

type createCompanyRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	CompanyName  string `json:"companyName"`
	PackageLimit int    `json:"packageLimit"`
}

// Create handles POST /hrManager.
func (h *CompaniesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCompanyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email, err := model.NormalizeEmail(req.Email)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.CompanyName) == "" {
		jsonError(w, http.StatusBadRequest, "companyName required")
		return
	}

	company, err := store.CreateCompany(r.Context(), h.DB, email, strings.TrimSpace(req.Name), strings.TrimSpace(req.CompanyName), req.PackageLimit)
	if err != nil {
		storeError(w, err, "creating company")
		return
	}

	slog.Info("company created", "company", company.ID, "email", company.Email)
	jsonResponse(w, http.StatusCreated, company)
}

// GetByEmail handles GET /hrManager?email=.
func (h *CompaniesHandler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email")))
	if email == "" {
		jsonError(w, http.StatusBadRequest, "email required")
		return
	}

	company, err := store.GetCompanyByEmail(r.Context(), h.DB, email)
	if err != nil {
		storeError(w, err, "getting company")
		return
	}
	jsonResponse(w, http.StatusOK, company)
}

// Get handles GET /hrManager/{id}.
func (h *CompaniesHandler) Get(w http.ResponseWriter, r *http.Request) {
	company, err := store.GetCompany(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		storeError(w, err, "getting company")
		return
	}
	jsonResponse(w, http.StatusOK, company)
}

// Packages handles GET /packages.
func (h *CompaniesHandler) Packages(w http.ResponseWriter, r *http.Request) {
	packages, err := store.ListPackages(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "listing packages")
		return
	}
	jsonResponse(w, http.StatusOK, packages)
}
