package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/assetverse/internal/auth"
	"github.com/erazemk/assetverse/internal/imaging"
	"github.com/erazemk/assetverse/internal/metrics"
)

// Options configures NewRouter. Zero values select defaults.
type Options struct {
	// Verifier checks bearer tokens. Nil means a JWTVerifier over JWTSecret
	// and the database's revocation list.
	Verifier    auth.Verifier
	JWTSecret   string
	TokenTTL    time.Duration
	Metrics     *metrics.Metrics
	MetricsPath string
	Images      *imaging.Processor
	CORSOrigins []string
	// Now is the clock for date-relative endpoints. Nil means time.Now.
	Now func() time.Time
}

// NewRouter creates the HTTP handler with all endpoints and middleware.
func NewRouter(db *sql.DB, opts Options) http.Handler {
	mux := http.NewServeMux()

	verifier := opts.Verifier
	if verifier == nil {
		verifier = &auth.JWTVerifier{Secret: opts.JWTSecret, DB: db}
	}
	images := opts.Images
	if images == nil {
		images = &imaging.Processor{}
	}

	healthHandler := &HealthHandler{DB: db}
	authHandler := &AuthHandler{DB: db, JWTSecret: opts.JWTSecret, TokenTTL: opts.TokenTTL}
	employeesHandler := &EmployeesHandler{DB: db, Metrics: opts.Metrics, Now: opts.Now}
	companiesHandler := &CompaniesHandler{DB: db}
	assetsHandler := &AssetsHandler{DB: db, Images: images}
	requestsHandler := &RequestsHandler{DB: db, Metrics: opts.Metrics}

	authMW := AuthMiddleware(verifier)
	protected := func(h http.HandlerFunc) http.Handler { return authMW(h) }

	// Public.
	mux.HandleFunc("GET /{$}", healthHandler.Root)
	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /packages", companiesHandler.Packages)
	mux.HandleFunc("POST /auth/register", authHandler.Register)
	mux.HandleFunc("POST /auth/login", authHandler.Login)
	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, opts.Metrics.Handler())
	}

	// Account.
	mux.Handle("POST /auth/logout", protected(authHandler.Logout))
	mux.Handle("PUT /auth/password", protected(authHandler.ChangePassword))

	// Membership directory.
	mux.Handle("POST /employee", protected(employeesHandler.Create))
	mux.Handle("GET /employee", protected(employeesHandler.Search))
	mux.Handle("GET /employee/{id}", protected(employeesHandler.Get))
	mux.Handle("PATCH /employee/{id}", protected(employeesHandler.AddConnection))
	mux.Handle("DELETE /employee/{id}", protected(employeesHandler.Remove))
	mux.Handle("GET /employee/companies/{email}", protected(employeesHandler.ConnectedCompanies))
	mux.Handle("GET /team/{companyManagerId}", protected(employeesHandler.Team))
	mux.Handle("GET /team/birthdays/{companyManagerId}", protected(employeesHandler.Birthdays))

	// Companies.
	mux.Handle("POST /hrManager", protected(companiesHandler.Create))
	mux.Handle("GET /hrManager", protected(companiesHandler.GetByEmail))
	mux.Handle("GET /hrManager/{id}", protected(companiesHandler.Get))

	// Asset inventory: reads are public, writes need a token.
	mux.HandleFunc("GET /assets", assetsHandler.List)
	mux.HandleFunc("GET /assets/{id}", assetsHandler.Get)
	mux.HandleFunc("GET /assets/{id}/image", assetsHandler.GetImage)
	mux.Handle("POST /assets", protected(assetsHandler.Create))
	mux.Handle("PATCH /assets/{id}", protected(assetsHandler.Update))
	mux.Handle("DELETE /assets/{id}", protected(assetsHandler.Delete))
	mux.Handle("PUT /assets/{id}/image", protected(assetsHandler.UploadImage))

	// Request ledger and decisions.
	mux.Handle("POST /requestData", protected(requestsHandler.Submit))
	mux.Handle("GET /requestData", protected(requestsHandler.List))
	mux.Handle("GET /requestData/{id}", protected(requestsHandler.Get))
	mux.Handle("PATCH /requestData/{id}", protected(requestsHandler.Decide))

	var handler http.Handler = mux
	handler = CORSMiddleware(opts.CORSOrigins)(handler)
	handler = RecoverMiddleware(handler)
	handler = LoggingMiddleware(opts.Metrics)(handler)
	return handler
}
