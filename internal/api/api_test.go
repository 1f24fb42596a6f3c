package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/erazemk/assetverse/internal/auth"
	"github.com/erazemk/assetverse/internal/db"
	"github.com/erazemk/assetverse/internal/metrics"
	"github.com/erazemk/assetverse/internal/model"
	"github.com/erazemk/assetverse/internal/store"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	server, _, token := setupTestServerWithDB(t)
	return server, token
}

func setupTestServerWithDB(t *testing.T) (*httptest.Server, *sql.DB, string) {
	t.Helper()
	return newTestServer(t, Options{})
}

// newTestServer serves a fresh database with opts, filling in the test
// secret, metrics and CORS origin, and returns a token for hr@acme.test.
func newTestServer(t *testing.T, opts Options) (*httptest.Server, *sql.DB, string) {
	t.Helper()
	database := db.NewTestDB(t)
	opts.JWTSecret = testJWTSecret
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	opts.CORSOrigins = []string{"https://app.assetverse.test"}
	server := httptest.NewServer(NewRouter(database, opts))
	t.Cleanup(server.Close)

	creds := map[string]string{"email": "hr@acme.test", "password": "password"}
	if status := doJSON(t, http.MethodPost, server.URL+"/auth/register", "", creds, nil); status != http.StatusCreated {
		t.Fatalf("register failed: %d", status)
	}

	var login loginResponse
	if status := doJSON(t, http.MethodPost, server.URL+"/auth/login", "", creds, &login); status != http.StatusOK {
		t.Fatalf("login failed: %d", status)
	}
	if login.Token == "" {
		t.Fatal("empty token from login")
	}

	return server, database, login.Token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// doJSON sends body as JSON and decodes the response into out when out is
// non-nil. It returns the status code.
func doJSON(t *testing.T, method, url, token string, body, out any) int {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

// seed creates a company, a connected employee and an asset over HTTP.
func seed(t *testing.T, url, token string, quantity int) (*model.Company, *model.Employee, *model.Asset) {
	t.Helper()

	var company model.Company
	if status := doJSON(t, http.MethodPost, url+"/hrManager", token, map[string]any{
		"name": "Hannah", "email": "hr@acme.test", "companyName": "Acme", "packageLimit": 5,
	}, &company); status != http.StatusCreated {
		t.Fatalf("create company: %d", status)
	}

	var employee model.Employee
	if status := doJSON(t, http.MethodPost, url+"/employee", token, map[string]any{
		"name": "Alice", "email": "alice@example.com", "dateOfBirth": "1990-04-02",
	}, &employee); status != http.StatusCreated {
		t.Fatalf("create employee: %d", status)
	}

	var added addConnectionResponse
	if status := doJSON(t, http.MethodPatch, url+"/employee/"+employee.ID, token, map[string]any{
		"companyId": company.ID, "companyManagerId": company.Email, "companyEmail": company.Email,
		"companyName": company.CompanyName, "status": "connected",
	}, &added); status != http.StatusOK {
		t.Fatalf("add connection: %d", status)
	}
	if !added.Added {
		t.Fatal("expected connection to be added")
	}

	var asset model.Asset
	if status := doJSON(t, http.MethodPost, url+"/assets", token, map[string]any{
		"companyEmail": company.Email, "productName": "Laptop", "productType": model.AssetTypeReturnable,
		"productQuantity": quantity,
	}, &asset); status != http.StatusCreated {
		t.Fatalf("create asset: %d", status)
	}

	return &company, added.Employee, &asset
}

func submit(t *testing.T, url, token string, a *model.Asset, e *model.Employee, quantity int) *model.Request {
	t.Helper()
	var req model.Request
	if status := doJSON(t, http.MethodPost, url+"/requestData", token, map[string]any{
		"assetId": a.ID, "employeeId": e.ID, "requesterName": e.Name, "requesterEmail": e.Email, "quantity": quantity,
	}, &req); status != http.StatusCreated {
		t.Fatalf("submit request: %d", status)
	}
	return &req
}

func metricsBody(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func TestLoginEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	tests := []struct {
		name  string
		creds map[string]string
		want  int
	}{
		{"wrong password", map[string]string{"email": "hr@acme.test", "password": "wrong-password"}, http.StatusUnauthorized},
		{"unknown account", map[string]string{"email": "nobody@acme.test", "password": "password"}, http.StatusUnauthorized},
		{"missing password", map[string]string{"email": "hr@acme.test"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status := doJSON(t, http.MethodPost, server.URL+"/auth/login", "", tt.creds, nil); status != tt.want {
				t.Errorf("expected %d, got %d", tt.want, status)
			}
		})
	}
}

func TestRegisterValidation(t *testing.T) {
	server, _ := setupTestServer(t)

	tests := []struct {
		name  string
		creds map[string]string
		want  int
	}{
		{"duplicate", map[string]string{"email": "HR@acme.test", "password": "password"}, http.StatusConflict},
		{"short password", map[string]string{"email": "new@acme.test", "password": "short"}, http.StatusBadRequest},
		{"bad email", map[string]string{"email": "not-an-email", "password": "password"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status := doJSON(t, http.MethodPost, server.URL+"/auth/register", "", tt.creds, nil); status != tt.want {
				t.Errorf("expected %d, got %d", tt.want, status)
			}
		})
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	server, token := setupTestServer(t)

	if status := doJSON(t, http.MethodGet, server.URL+"/employee", token, nil, nil); status != http.StatusOK {
		t.Fatalf("expected 200 before logout, got %d", status)
	}
	if status := doJSON(t, http.MethodPost, server.URL+"/auth/logout", token, nil, nil); status != http.StatusOK {
		t.Fatalf("logout: %d", status)
	}
	if status := doJSON(t, http.MethodGet, server.URL+"/employee", token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", status)
	}
}

func TestChangePassword(t *testing.T) {
	server, token := setupTestServer(t)

	body := map[string]string{"currentPassword": "wrong-password", "newPassword": "new-password"}
	if status := doJSON(t, http.MethodPut, server.URL+"/auth/password", token, body, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong current password, got %d", status)
	}

	body["currentPassword"] = "password"
	if status := doJSON(t, http.MethodPut, server.URL+"/auth/password", token, body, nil); status != http.StatusOK {
		t.Fatalf("change password: %d", status)
	}

	creds := map[string]string{"email": "hr@acme.test", "password": "new-password"}
	if status := doJSON(t, http.MethodPost, server.URL+"/auth/login", "", creds, nil); status != http.StatusOK {
		t.Errorf("expected login with new password, got %d", status)
	}
}

func TestDecisionFlow(t *testing.T) {
	server, token := setupTestServer(t)
	_, employee, asset := seed(t, server.URL, token, 10)
	req := submit(t, server.URL, token, asset, employee, 3)

	if req.Status != model.RequestPending || req.Product.Name != "Laptop" {
		t.Fatalf("unexpected submitted request: %+v", req)
	}

	var result model.DecisionResult
	status := doJSON(t, http.MethodPatch, server.URL+"/requestData/"+req.ID, token, map[string]any{
		"status": "approve", "quantity": 3, "assetId": asset.ID, "requesterId": employee.ID, "companyEmail": asset.CompanyEmail,
	}, &result)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if result.Request.Status != model.RequestApproved {
		t.Errorf("expected approve, got %s", result.Request.Status)
	}
	if result.QuantityRemaining == nil || *result.QuantityRemaining != 7 {
		t.Errorf("expected 7 remaining, got %v", result.QuantityRemaining)
	}
	if !result.AllocationCounted {
		t.Error("expected allocation to be counted")
	}

	var got model.Asset
	doJSON(t, http.MethodGet, server.URL+"/assets/"+asset.ID, "", nil, &got)
	if got.Quantity != 7 {
		t.Errorf("expected quantity 7, got %d", got.Quantity)
	}

	var emp model.Employee
	doJSON(t, http.MethodGet, server.URL+"/employee/"+employee.ID, token, nil, &emp)
	if len(emp.Connections) != 1 || emp.Connections[0].AllocationCount != 1 {
		t.Errorf("expected allocation count 1, got %+v", emp.Connections)
	}

	// A second decision on the same request is a conflict.
	status = doJSON(t, http.MethodPatch, server.URL+"/requestData/"+req.ID, token, map[string]any{"status": "reject"}, nil)
	if status != http.StatusConflict {
		t.Errorf("expected 409 for re-decision, got %d", status)
	}

	body := metricsBody(t, server.URL)
	for _, want := range []string{
		`assetverse_request_decisions_total{decision="approve",outcome="ok"} 1`,
		`assetverse_request_decisions_total{decision="reject",outcome="already_decided"} 1`,
		`assetverse_connections_added_total{result="added"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics", want)
		}
	}
}

func TestDecideInsufficientStock(t *testing.T) {
	server, token := setupTestServer(t)
	_, employee, asset := seed(t, server.URL, token, 2)
	req := submit(t, server.URL, token, asset, employee, 3)

	status := doJSON(t, http.MethodPatch, server.URL+"/requestData/"+req.ID, token, map[string]any{"status": "approve"}, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}

	var got model.Request
	doJSON(t, http.MethodGet, server.URL+"/requestData/"+req.ID, token, nil, &got)
	if got.Status != model.RequestPending {
		t.Errorf("expected request to stay pending, got %s", got.Status)
	}
}

func TestDecideStepFailureRollsBack(t *testing.T) {
	server, database, token := setupTestServerWithDB(t)
	_, employee, asset := seed(t, server.URL, token, 10)
	req := submit(t, server.URL, token, asset, employee, 3)

	_, err := database.Exec(`CREATE TRIGGER fail_allocation BEFORE UPDATE ON connections
		BEGIN SELECT RAISE(ABORT, 'disk unavailable'); END`)
	if err != nil {
		t.Fatalf("creating trigger: %v", err)
	}

	status := doJSON(t, http.MethodPatch, server.URL+"/requestData/"+req.ID, token, map[string]any{"status": "approve"}, nil)
	if status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", status)
	}

	var got model.Asset
	doJSON(t, http.MethodGet, server.URL+"/assets/"+asset.ID, "", nil, &got)
	if got.Quantity != 10 {
		t.Errorf("expected quantity 10 after rollback, got %d", got.Quantity)
	}
	var stored model.Request
	doJSON(t, http.MethodGet, server.URL+"/requestData/"+req.ID, token, nil, &stored)
	if stored.Status != model.RequestPending {
		t.Errorf("expected request to stay pending, got %s", stored.Status)
	}

	body := metricsBody(t, server.URL)
	for _, want := range []string{
		`assetverse_decision_step_failures_total{step="increment_allocation"} 1`,
		`assetverse_request_decisions_total{decision="approve",outcome="error"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics", want)
		}
	}
}

func TestDecideValidation(t *testing.T) {
	server, token := setupTestServer(t)

	tests := []struct {
		name string
		id   string
		body any
		want int
	}{
		{"unknown request", "missing", map[string]any{"status": "approve"}, http.StatusNotFound},
		{"bad status", "missing", map[string]any{"status": "approved"}, http.StatusBadRequest},
		{"bad body", "missing", "not an object", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status := doJSON(t, http.MethodPatch, server.URL+"/requestData/"+tt.id, token, tt.body, nil); status != tt.want {
				t.Errorf("expected %d, got %d", tt.want, status)
			}
		})
	}
}

func TestUnauthenticatedDecisionChangesNothing(t *testing.T) {
	server, database, token := setupTestServerWithDB(t)
	_, employee, asset := seed(t, server.URL, token, 10)
	req := submit(t, server.URL, token, asset, employee, 3)

	for _, bad := range []string{"", "not-a-token"} {
		status := doJSON(t, http.MethodPatch, server.URL+"/requestData/"+req.ID, bad, map[string]any{"status": "approve"}, nil)
		if status != http.StatusUnauthorized {
			t.Errorf("token %q: expected 401, got %d", bad, status)
		}
	}

	ctx := context.Background()
	got, err := store.GetRequest(ctx, database, req.ID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.Status != model.RequestPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
	a, err := store.GetAsset(ctx, database, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if a.Quantity != 10 {
		t.Errorf("expected quantity 10, got %d", a.Quantity)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	server, _ := setupTestServer(t)

	protected := []struct{ method, path string }{
		{http.MethodPost, "/employee"},
		{http.MethodGet, "/employee"},
		{http.MethodPatch, "/employee/x"},
		{http.MethodDelete, "/employee/x?companyId=y"},
		{http.MethodGet, "/team/hr@acme.test"},
		{http.MethodPost, "/hrManager"},
		{http.MethodPost, "/assets"},
		{http.MethodPatch, "/assets/x"},
		{http.MethodDelete, "/assets/x"},
		{http.MethodPost, "/requestData"},
		{http.MethodGet, "/requestData"},
	}
	for _, p := range protected {
		if status := doJSON(t, p.method, server.URL+p.path, "", nil, nil); status != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", p.method, p.path, status)
		}
	}

	public := []string{"/", "/healthz", "/packages", "/assets", "/metrics"}
	for _, path := range public {
		if status := doJSON(t, http.MethodGet, server.URL+path, "", nil, nil); status != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, status)
		}
	}
}

func TestForeignTokenRejected(t *testing.T) {
	server, _ := setupTestServer(t)

	token, err := auth.GenerateToken("other-secret", "hr@acme.test", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if status := doJSON(t, http.MethodGet, server.URL+"/employee", token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for token signed with another secret, got %d", status)
	}
}

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (*auth.Claims, error) {
	if token != "let-me-in" {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{Email: "ops@acme.test"}, nil
}

func TestCustomVerifier(t *testing.T) {
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(database, Options{Verifier: stubVerifier{}}))
	t.Cleanup(server.Close)

	if status := doJSON(t, http.MethodGet, server.URL+"/employee", "let-me-in", nil, nil); status != http.StatusOK {
		t.Errorf("expected 200 with accepted token, got %d", status)
	}
	if status := doJSON(t, http.MethodGet, server.URL+"/employee", "nope", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 with rejected token, got %d", status)
	}
}

func TestEmployeeDirectoryFlow(t *testing.T) {
	server, token := setupTestServer(t)
	company, employee, _ := seed(t, server.URL, token, 1)

	// Re-adding the same connection is a no-op.
	var again addConnectionResponse
	doJSON(t, http.MethodPatch, server.URL+"/employee/"+employee.ID, token, map[string]any{
		"companyId": company.ID, "companyManagerId": company.Email, "companyEmail": company.Email,
		"companyName": company.CompanyName, "status": "connected",
	}, &again)
	if again.Added || len(again.Employee.Connections) != 1 {
		t.Errorf("expected duplicate connection to be ignored, got %+v", again)
	}

	var c model.Company
	doJSON(t, http.MethodGet, server.URL+"/hrManager?email="+company.Email, token, nil, &c)
	if c.CurrentEmployeeCount != 1 {
		t.Errorf("expected employee count 1, got %d", c.CurrentEmployeeCount)
	}

	var companies []model.ConnectedCompany
	doJSON(t, http.MethodGet, server.URL+"/employee/companies/"+employee.Email, token, nil, &companies)
	if len(companies) != 1 || companies[0].CompanyName != "Acme" || companies[0].CompanyManagerID != company.Email {
		t.Errorf("unexpected connected companies: %+v", companies)
	}
	if status := doJSON(t, http.MethodGet, server.URL+"/employee/companies/nobody@example.com", token, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown employee, got %d", status)
	}

	var team []model.Employee
	doJSON(t, http.MethodGet, server.URL+"/team/"+company.Email, token, nil, &team)
	if len(team) != 1 {
		t.Errorf("expected team of 1, got %d", len(team))
	}

	var found []model.Employee
	doJSON(t, http.MethodGet, server.URL+"/employee?companyManagerId="+company.Email+"&search=ALI", token, nil, &found)
	if len(found) != 1 {
		t.Errorf("expected 1 search result, got %d", len(found))
	}

	var removed map[string]int64
	doJSON(t, http.MethodDelete, fmt.Sprintf("%s/employee/%s?companyId=%s", server.URL, employee.ID, company.ID), token, nil, &removed)
	if removed["deletedCount"] != 1 {
		t.Errorf("expected 1 deletion, got %v", removed)
	}
	doJSON(t, http.MethodDelete, fmt.Sprintf("%s/employee/%s?companyId=%s", server.URL, employee.ID, company.ID), token, nil, &removed)
	if removed["deletedCount"] != 0 {
		t.Errorf("expected 0 deletions on repeat, got %v", removed)
	}

	doJSON(t, http.MethodGet, server.URL+"/hrManager/"+company.ID, token, nil, &c)
	if c.CurrentEmployeeCount != 0 {
		t.Errorf("expected employee count 0, got %d", c.CurrentEmployeeCount)
	}
}

func TestBirthdaysEndpoint(t *testing.T) {
	april := time.Date(2026, time.April, 15, 9, 0, 0, 0, time.UTC)
	server, _, token := newTestServer(t, Options{Now: func() time.Time { return april }})
	company, _, _ := seed(t, server.URL, token, 1)

	// Alice from seed is born on April 2.
	for _, e := range []struct{ name, email, dob string }{
		{"Bob", "bob@example.com", "1979-04-20"},
		{"Carol", "carol@example.com", "1985-05-01"},
	} {
		var created model.Employee
		if status := doJSON(t, http.MethodPost, server.URL+"/employee", token, map[string]any{
			"name": e.name, "email": e.email, "dateOfBirth": e.dob,
		}, &created); status != http.StatusCreated {
			t.Fatalf("create %s: %d", e.name, status)
		}
		if status := doJSON(t, http.MethodPatch, server.URL+"/employee/"+created.ID, token, map[string]any{
			"companyId": company.ID, "companyManagerId": company.Email, "companyEmail": company.Email,
			"companyName": company.CompanyName, "status": "connected",
		}, nil); status != http.StatusOK {
			t.Fatalf("connect %s: %d", e.name, status)
		}
	}

	var birthdays []model.Employee
	if status := doJSON(t, http.MethodGet, server.URL+"/team/birthdays/"+company.Email, token, nil, &birthdays); status != http.StatusOK {
		t.Fatalf("birthdays: %d", status)
	}

	var names []string
	for _, e := range birthdays {
		names = append(names, e.Name)
	}
	if diff := cmp.Diff([]string{"Alice", "Bob"}, names); diff != "" {
		t.Errorf("birthdays mismatch (-want +got):\n%s", diff)
	}
}

func TestAssetsAPI(t *testing.T) {
	server, token := setupTestServer(t)

	for _, name := range []string{"Laptop", "Desktop", "LAPTOP stand"} {
		status := doJSON(t, http.MethodPost, server.URL+"/assets", token, map[string]any{
			"companyEmail": "hr@acme.test", "productName": name, "productType": model.AssetTypeReturnable, "productQuantity": 1,
		}, nil)
		if status != http.StatusCreated {
			t.Fatalf("create %s: %d", name, status)
		}
	}

	var assets []model.Asset
	doJSON(t, http.MethodGet, server.URL+"/assets?search=lap&email=hr@acme.test", "", nil, &assets)
	if len(assets) != 2 {
		t.Errorf("expected 2 matches, got %d", len(assets))
	}

	var updated model.Asset
	status := doJSON(t, http.MethodPatch, server.URL+"/assets/"+assets[0].ID, token, map[string]any{
		"productName": "Laptop Pro", "productType": model.AssetTypeNonReturnable, "productQuantity": 9,
	}, &updated)
	if status != http.StatusOK || updated.Name != "Laptop Pro" || updated.Quantity != 9 {
		t.Errorf("unexpected update result %d: %+v", status, updated)
	}

	tests := []struct {
		method, path string
		body         any
		want         int
	}{
		{http.MethodGet, "/assets/missing", nil, http.StatusNotFound},
		{http.MethodPatch, "/assets/missing", map[string]any{"productName": "x"}, http.StatusNotFound},
		{http.MethodDelete, "/assets/missing", nil, http.StatusNotFound},
		{http.MethodPost, "/assets", map[string]any{"companyEmail": "hr@acme.test"}, http.StatusBadRequest},
		{http.MethodDelete, "/assets/" + assets[1].ID, nil, http.StatusOK},
		{http.MethodGet, "/assets/" + assets[1].ID, nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		if status := doJSON(t, tt.method, server.URL+tt.path, token, tt.body, nil); status != tt.want {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, status)
		}
	}
}

func TestAssetImageUpload(t *testing.T) {
	server, token := setupTestServer(t)

	var asset model.Asset
	doJSON(t, http.MethodPost, server.URL+"/assets", token, map[string]any{
		"companyEmail": "hr@acme.test", "productName": "Chair", "productQuantity": 1,
	}, &asset)

	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{0, 128, 0, 255})
		}
	}
	var pngData bytes.Buffer
	png.Encode(&pngData, img)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("image", "chair.png")
	part.Write(pngData.Bytes())
	mw.Close()

	req, _ := http.NewRequest(http.MethodPut, server.URL+"/assets/"+asset.ID+"/image", &body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/assets/" + asset.ID + "/image")
	if err != nil {
		t.Fatalf("get image: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", ct)
	}
}

func TestListRequestsFilters(t *testing.T) {
	server, token := setupTestServer(t)
	_, employee, asset := seed(t, server.URL, token, 10)
	submit(t, server.URL, token, asset, employee, 1)
	submit(t, server.URL, token, asset, employee, 2)

	tests := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"?email=alice@example.com", 2},
		{"?email=hr@acme.test", 2},
		{"?email=bob@example.com", 0},
		{"?search=laptop", 2},
		{"?filter=" + model.AssetTypeReturnable, 2},
		{"?filter=Returnabl", 0},
	}
	for _, tt := range tests {
		var requests []model.Request
		doJSON(t, http.MethodGet, server.URL+"/requestData"+tt.query, token, nil, &requests)
		if len(requests) != tt.want {
			t.Errorf("GET /requestData%s: expected %d, got %d", tt.query, tt.want, len(requests))
		}
	}

	if status := doJSON(t, http.MethodPost, server.URL+"/requestData", token, map[string]any{
		"assetId": asset.ID, "quantity": 0,
	}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for zero quantity, got %d", status)
	}
	if status := doJSON(t, http.MethodPost, server.URL+"/requestData", token, map[string]any{
		"assetId": "missing", "quantity": 1,
	}, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown asset, got %d", status)
	}
}

func TestCORSPreflight(t *testing.T) {
	server, _ := setupTestServer(t)

	for origin, wantAllowed := range map[string]bool{
		"https://app.assetverse.test": true,
		"https://evil.example":        false,
	} {
		req, _ := http.NewRequest(http.MethodOptions, server.URL+"/requestData/x", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("preflight: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("%s: expected 204, got %d", origin, resp.StatusCode)
		}
		got := resp.Header.Get("Access-Control-Allow-Origin") == origin
		if got != wantAllowed {
			t.Errorf("%s: allowed = %v, want %v", origin, got, wantAllowed)
		}
	}
}

func TestRecoverMiddleware(t *testing.T) {
	handler := RecoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	database := db.NewTestDB(t)
	handler := NewRouter(database, Options{JWTSecret: testJWTSecret})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	database.Close()
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after close, got %d", rec.Code)
	}
}
