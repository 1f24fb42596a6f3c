package api

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/assetverse/internal/metrics"
	"github.com/erazemk/assetverse/internal/model"
	"github.com/erazemk/assetverse/internal/store"
)

// RequestsHandler handles the request ledger and decision endpoints.
type RequestsHandler struct {
	DB      *sql.DB
	Metrics *metrics.Metrics
}

type submitRequest struct {
	AssetID        string `json:"assetId"`
	EmployeeID     string `json:"employeeId"`
	RequesterName  string `json:"requesterName"`
	RequesterEmail string `json:"requesterEmail"`
	Quantity       int    `json:"quantity"`
	Note           string `json:"note"`
}

type decideRequest struct {
	Status       string `json:"status"`
	Quantity     int    `json:"quantity"`
	AssetID      string `json:"assetId"`
	EmployeeID   string `json:"requesterId"`
	CompanyEmail string `json:"companyEmail"`
}

// Submit handles POST /requestData. The product snapshot is copied from the
// asset as it is now.
func (h *RequestsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.AssetID == "" {
		jsonError(w, http.StatusBadRequest, "assetId required")
		return
	}
	if req.Quantity < 1 {
		jsonError(w, http.StatusBadRequest, "quantity must be at least 1")
		return
	}

	requesterEmail := strings.ToLower(strings.TrimSpace(req.RequesterEmail))
	if requesterEmail == "" {
		if claims := GetClaims(r.Context()); claims != nil {
			requesterEmail = claims.Email
		}
	}

	asset, err := store.GetAsset(r.Context(), h.DB, req.AssetID)
	if err != nil {
		storeError(w, err, "getting asset")
		return
	}

	created, err := store.SubmitRequest(r.Context(), h.DB, model.ProductSnapshot{
		AssetID:      asset.ID,
		Name:         asset.Name,
		Type:         asset.Type,
		Image:        asset.Image,
		CompanyEmail: asset.CompanyEmail,
	}, store.NewRequest{
		EmployeeID:     req.EmployeeID,
		RequesterName:  strings.TrimSpace(req.RequesterName),
		RequesterEmail: requesterEmail,
		Quantity:       req.Quantity,
		Note:           req.Note,
	})
	if err != nil {
		storeError(w, err, "submitting request")
		return
	}

	slog.Info("request submitted", "request", created.ID, "asset", asset.ID, "requester", created.RequesterEmail, "quantity", created.Quantity)
	jsonResponse(w, http.StatusCreated, created)
}

// List handles GET /requestData?email=&search=&filter=.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	requests, err := store.ListRequests(r.Context(), h.DB, store.RequestFilter{
		Email:       strings.ToLower(strings.TrimSpace(q.Get("email"))),
		Search:      q.Get("search"),
		ProductType: q.Get("filter"),
	})
	if err != nil {
		storeError(w, err, "listing requests")
		return
	}
	jsonResponse(w, http.StatusOK, requests)
}

// Get handles GET /requestData/{id}.
func (h *RequestsHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := store.GetRequest(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		storeError(w, err, "getting request")
		return
	}
	jsonResponse(w, http.StatusOK, req)
}

// Decide handles PATCH /requestData/{id}. Once started, a decision runs to
// completion even if the client goes away.
func (h *RequestsHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req decideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status := model.RequestStatus(req.Status)
	decision := model.Decision{
		RequestID:    id,
		Status:       status,
		Quantity:     req.Quantity,
		AssetID:      req.AssetID,
		EmployeeID:   req.EmployeeID,
		CompanyEmail: strings.ToLower(strings.TrimSpace(req.CompanyEmail)),
	}

	label := string(status)
	if !status.IsDecision() {
		label = "invalid"
	}

	ctx := context.WithoutCancel(r.Context())
	result, err := store.DecideRequest(ctx, h.DB, decision)
	h.Metrics.ObserveDecision(label, err)

	var stepErr *store.StepError
	if errors.As(err, &stepErr) {
		slog.Error("request decision rolled back",
			"request", id,
			"decision", status,
			"step", stepErr.Step,
			"error", stepErr.Err,
		)
		jsonError(w, http.StatusServiceUnavailable, "decision failed at "+stepErr.Step+"; no changes were kept")
		return
	}
	if err != nil {
		storeError(w, err, "deciding request")
		return
	}

	if status == model.RequestApproved && !result.AllocationCounted {
		slog.Warn("approved request has no matching connection; allocation not counted",
			"request", id,
			"employee", result.Request.EmployeeID,
			"company", result.Request.Product.CompanyEmail,
		)
	}

	attrs := []any{"request", id, "decision", status}
	if result.QuantityRemaining != nil {
		attrs = append(attrs, "remaining", *result.QuantityRemaining)
	}
	slog.Info("request decided", attrs...)
	jsonResponse(w, http.StatusOK, result)
}
