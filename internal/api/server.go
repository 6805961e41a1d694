// Package api serves the sync polling API and the admin endpoints over HTTP.
package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jnst/storefront-sync/internal/metrics"
	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/service"
)

// APIKeyHeader carries the shared secret. It is also accepted as a query parameter.
const APIKeyHeader = "X-API-Key"

// Options configures authentication and export defaults.
type Options struct {
	// APIKeys maps a subject to its polling key; an empty key disables the check.
	APIKeys map[model.Subject]string
	// AdminAPIKey guards /admin; admin requests are refused while it is empty.
	AdminAPIKey  string
	ExportFormat string
}

// APIServer handles HTTP requests for the sync API.
type APIServer struct {
	feeds        map[model.Subject]service.ChangeFeed
	apiKeys      map[model.Subject]string
	adminKey     string
	exportFormat string
	orders       service.OrderService
	users        service.UserService
	exports      service.ExportService
}

// NewAPIServer creates a new API server instance.
func NewAPIServer(
	opts Options,
	orders service.OrderService,
	users service.UserService,
	exports service.ExportService,
	feeds ...service.ChangeFeed,
) *APIServer {
	bySubject := make(map[model.Subject]service.ChangeFeed, len(feeds))
	for _, f := range feeds {
		bySubject[f.Subject()] = f
	}

	exportFormat := opts.ExportFormat
	if exportFormat == "" {
		exportFormat = "xlsx"
	}

	return &APIServer{
		feeds:        bySubject,
		apiKeys:      opts.APIKeys,
		adminKey:     opts.AdminAPIKey,
		exportFormat: exportFormat,
		orders:       orders,
		users:        users,
		exports:      exports,
	}
}

// Handler returns the routed handler. Every route answers with and without a trailing slash.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, h)
		mux.HandleFunc(pattern+"/{$}", h)
	}

	handle("GET /api/{subject}/changes", s.ListChanges)
	handle("GET /api/{subject}/batch", s.GetDetailBatch)
	handle("GET /api/{subject}/{uuid}", s.GetDetail)
	handle("GET /api/order-sync", s.withSubject(model.SubjectOrder, s.ListChanges))
	handle("GET /api/user-sync", s.withSubject(model.SubjectUser, s.ListChanges))

	handle("POST /admin/orders", s.admin(s.CreateOrder))
	handle("PATCH /admin/orders/{uuid}", s.admin(s.UpdateOrder))
	handle("DELETE /admin/orders/{uuid}", s.admin(s.DeleteOrder))
	handle("POST /admin/users", s.admin(s.CreateUser))
	handle("PATCH /admin/users/{uuid}", s.admin(s.UpdateUser))
	handle("DELETE /admin/users/{uuid}", s.admin(s.DeleteUser))
	handle("GET /admin/export/{subject}", s.admin(s.Export))

	return mux
}

// HealthCheck handles GET /health endpoint for service health check.
func (*APIServer) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withSubject pins the subject path value for the legacy change-list routes.
func (*APIServer) withSubject(subject model.Subject, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.SetPathValue("subject", subject.Plural())
		next(w, r)
	}
}

// feed resolves the subject of the request and checks its API key.
// It writes the error reply itself and returns nil when the request must stop.
func (s *APIServer) feed(w http.ResponseWriter, r *http.Request) service.ChangeFeed {
	subject, err := model.ParseSubject(r.PathValue("subject"))
	if err != nil {
		writeError(w, http.StatusNotFound, codeNotFound, "unknown subject")
		return nil
	}

	feed, ok := s.feeds[subject]
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "unknown subject")
		return nil
	}

	if !authorized(r, s.apiKeys[subject]) {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "X-API-Key header is required")
		return nil
	}

	return feed
}

func (s *APIServer) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" || !authorized(r, s.adminKey) {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "X-API-Key header is required")
			return
		}

		next(w, r)
	}
}

// authorized compares the provided key with want in constant time. An empty want allows everything.
func authorized(r *http.Request, want string) bool {
	if want == "" {
		return true
	}

	got := r.Header.Get(APIKeyHeader)
	if got == "" {
		got = r.URL.Query().Get(APIKeyHeader)
	}

	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// instrument counts the response of a polling endpoint.
func instrument(w http.ResponseWriter, subject model.Subject, endpoint string) (*statusRecorder, func()) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	return rec, func() {
		metrics.APIRequests.WithLabelValues(subject.String(), endpoint, strconv.Itoa(rec.status)).Inc()
	}
}
