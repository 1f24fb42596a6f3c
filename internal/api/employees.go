package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/assetverse/internal/metrics"
	"github.com/erazemk/assetverse/internal/model"
	"github.com/erazemk/assetverse/internal/store"
)

// EmployeesHandler handles the membership directory endpoints.
type EmployeesHandler struct {
	DB      *sql.DB
	Metrics *metrics.Metrics
	// Now picks the current month for birthdays. Nil means time.Now.
	Now func() time.Time
}

func (h *EmployeesHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

type createEmployeeRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	DateOfBirth string `json:"dateOfBirth"`
}

type addConnectionRequest struct {
	CompanyID        string     `json:"companyId"`
	CompanyManagerID string     `json:"companyManagerId"`
	CompanyEmail     string     `json:"companyEmail"`
	CompanyName      string     `json:"companyName"`
	Status           string     `json:"status"`
	AllocationCount  int        `json:"allocationCount"`
	JoinDate         *time.Time `json:"joinDate"`
	// EmployeeCountDelta moves the company's employee counter when the
	// connection is new. It defaults to 1 for connected entries and 0 for
	// pending ones.
	EmployeeCountDelta *int `json:"employeeCountDelta"`
}

type addConnectionResponse struct {
	Added    bool            `json:"added"`
	Employee *model.Employee `json:"employee"`
}

// Create handles POST /employee.
func (h *EmployeesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEmployeeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}
	email, err := model.NormalizeEmail(req.Email)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DateOfBirth != "" {
		if _, err := model.ParseDateOfBirth(req.DateOfBirth); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	employee, err := store.CreateEmployee(r.Context(), h.DB, email, name, req.DateOfBirth)
	if err != nil {
		storeError(w, err, "creating employee")
		return
	}

	slog.Info("employee registered", "employee", employee.ID, "email", employee.Email)
	jsonResponse(w, http.StatusCreated, employee)
}

// Get handles GET /employee/{id}.
func (h *EmployeesHandler) Get(w http.ResponseWriter, r *http.Request) {
	employee, err := store.GetEmployee(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		storeError(w, err, "getting employee")
		return
	}
	jsonResponse(w, http.StatusOK, employee)
}

// Search handles GET /employee.
func (h *EmployeesHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	employees, err := store.SearchEmployees(r.Context(), h.DB, store.EmployeeFilter{
		CompanyManagerID: q.Get("companyManagerId"),
		Name:             q.Get("search"),
		Email:            strings.ToLower(strings.TrimSpace(q.Get("email"))),
	})
	if err != nil {
		storeError(w, err, "searching employees")
		return
	}
	jsonResponse(w, http.StatusOK, employees)
}

// AddConnection handles PATCH /employee/{id}.
func (h *EmployeesHandler) AddConnection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req addConnectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conn := model.Connection{
		CompanyID:        req.CompanyID,
		CompanyManagerID: req.CompanyManagerID,
		CompanyEmail:     strings.ToLower(strings.TrimSpace(req.CompanyEmail)),
		CompanyName:      req.CompanyName,
		Status:           model.ConnectionStatus(req.Status),
		AllocationCount:  req.AllocationCount,
	}
	if req.JoinDate != nil {
		conn.JoinDate = *req.JoinDate
	}

	delta := 0
	if conn.Status == model.ConnectionConnected {
		delta = 1
	}
	if req.EmployeeCountDelta != nil {
		delta = *req.EmployeeCountDelta
	}

	added, err := store.AddConnection(r.Context(), h.DB, id, conn, delta)
	h.Metrics.ObserveConnection(added, err)
	if err != nil {
		storeError(w, err, "adding connection")
		return
	}

	employee, err := store.GetEmployee(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "getting employee")
		return
	}

	if added {
		slog.Info("connection added", "employee", id, "company", conn.CompanyID, "status", conn.Status, "delta", delta)
	}
	jsonResponse(w, http.StatusOK, addConnectionResponse{Added: added, Employee: employee})
}

// Remove handles DELETE /employee/{id}?companyId=.
func (h *EmployeesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	companyID := r.URL.Query().Get("companyId")
	if companyID == "" {
		jsonError(w, http.StatusBadRequest, "companyId required")
		return
	}

	deleted, err := store.RemoveEmployee(r.Context(), h.DB, id, companyID)
	if err != nil {
		storeError(w, err, "removing employee")
		return
	}

	if deleted > 0 {
		slog.Info("employee removed", "employee", id, "company", companyID)
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"deletedCount": deleted})
}

// ConnectedCompanies handles GET /employee/companies/{email}.
func (h *EmployeesHandler) ConnectedCompanies(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.PathValue("email")))
	companies, err := store.ListConnectedCompanies(r.Context(), h.DB, email)
	if err != nil {
		storeError(w, err, "listing connected companies")
		return
	}
	jsonResponse(w, http.StatusOK, companies)
}

// Team handles GET /team/{companyManagerId}.
func (h *EmployeesHandler) Team(w http.ResponseWriter, r *http.Request) {
	team, err := store.ListTeam(r.Context(), h.DB, r.PathValue("companyManagerId"))
	if err != nil {
		storeError(w, err, "listing team")
		return
	}
	jsonResponse(w, http.StatusOK, team)
}

// Birthdays handles GET /team/birthdays/{companyManagerId}.
func (h *EmployeesHandler) Birthdays(w http.ResponseWriter, r *http.Request) {
	team, err := store.ListBirthdays(r.Context(), h.DB, r.PathValue("companyManagerId"), h.now().Month())
	if err != nil {
		storeError(w, err, "listing birthdays")
		return
	}
	jsonResponse(w, http.StatusOK, team)
}
