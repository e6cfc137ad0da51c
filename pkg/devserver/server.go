package devserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/stockyard/pkg/audit"
	"github.com/platinummonkey/stockyard/pkg/httputil"
	"github.com/platinummonkey/stockyard/pkg/observability"
	"github.com/platinummonkey/stockyard/pkg/permmatrix"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// Options configures a Server
type Options struct {
	// PathPrefix is where the API is mounted, "/api" by default
	PathPrefix     string
	Tokens         []string
	AllowedOrigins []string
	Logger         *observability.Logger
	// Registry enables /metrics and HTTP metrics when set
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	OTel     *observability.OTelMetrics
	Health   *observability.HealthChecker
	// Audit records every grant change; nil discards
	Audit audit.Logger
}

// Server is the reference backend for the permission endpoints
type Server struct {
	store  *Store
	opts   Options
	logger *observability.Logger
	router *mux.Router
}

// NewServer creates a server and registers its routes
func NewServer(store *Store, opts Options) *Server {
	if opts.PathPrefix == "" {
		opts.PathPrefix = "/api"
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	if opts.Audit == nil {
		opts.Audit = audit.NopLogger()
	}

	s := &Server{
		store:  store,
		opts:   opts,
		logger: opts.Logger,
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the root handler with tracing applied
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "stockyard-devserver")
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(s.logger))
	s.router.Use(httputil.RecoveryMiddleware(s.logger))
	s.router.Use(httputil.CORSMiddleware(s.opts.AllowedOrigins))
	if s.opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.opts.Metrics))
	}
	if s.opts.OTel != nil {
		s.router.Use(s.otelMiddleware)
	}

	health := s.opts.Health
	if health == nil {
		health = observability.NewHealthChecker(s.store.DB(), nil, "")
	}
	s.router.HandleFunc("/health", health.Liveness).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", health.Readiness).Methods(http.MethodGet)
	if s.opts.Registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.opts.Registry)).Methods(http.MethodGet)
	}

	// Preflight requests carry no credentials; CORSMiddleware answers them
	s.router.PathPrefix(s.opts.PathPrefix).Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	api := s.router.PathPrefix(s.opts.PathPrefix).Subrouter()
	api.Use(httputil.BearerAuthMiddleware(s.opts.Tokens))
	api.Use(httputil.MaxBytesMiddleware(maxBodyBytes))

	api.HandleFunc("/roles", s.listRoles).Methods(http.MethodGet)
	api.HandleFunc("/permissions", s.listPermissions).Methods(http.MethodGet)
	api.HandleFunc("/permissions/paged", s.pagePermissions).Methods(http.MethodGet)
	api.HandleFunc("/role-permissions", s.listAccess).Methods(http.MethodGet)
	api.HandleFunc("/role-permissions/bulk-update", s.bulkUpdate).Methods(http.MethodPost)
}

func (s *Server) otelMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		s.opts.OTel.RecordHTTPRequest(r.Context(), r.Method, route, rw.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.store.ListRoles(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	httputil.WriteOK(w, roles)
}

func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := s.store.ListPermissions(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	httputil.WriteOK(w, perms)
}

func (s *Server) pagePermissions(w http.ResponseWriter, r *http.Request) {
	paging, err := httputil.ParsePaging(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	page, err := s.store.PagePermissions(r.Context(), paging.Search, paging.Start, paging.Length)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	httputil.WritePage(w, httputil.Page{
		Draw:            paging.Draw,
		Data:            page.Permissions,
		RecordsTotal:    page.Total,
		RecordsFiltered: page.Filtered,
	})
}

// listAccess returns a bare array, the shape the dashboard backend uses for
// this listing
func (s *Server) listAccess(w http.ResponseWriter, r *http.Request) {
	grants, err := s.store.ListAccess(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, grants)
}

func (s *Server) bulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req permmatrix.BulkUpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Updates) == 0 {
		httputil.WriteRejected(w, "no updates")
		return
	}

	n, err := s.store.BulkUpdate(r.Context(), req.Updates)
	if errors.Is(err, ErrUnknownReference) {
		s.audit(r, rejectedEvent(r, audit.EventTypeBulkUpdateRejected, audit.EventStatusDenied, err))
		httputil.WriteRejected(w, err.Error())
		return
	}
	if err != nil {
		s.audit(r, rejectedEvent(r, audit.EventTypeBulkUpdateFailed, audit.EventStatusFailure, err))
		s.internalError(w, r, err)
		return
	}

	for _, u := range req.Updates {
		s.audit(r, audit.PermissionEvent(r, u.RoleID, u.PermissionID, u.HasAccess))
	}
	observability.FromContext(observability.WithLogger(r.Context(), s.logger)).
		WithField("updates", n).Info("permissions updated")
	httputil.WriteOK(w, map[string]int{"updated": n})
}

func rejectedEvent(r *http.Request, eventType audit.EventType, status audit.EventStatus, err error) *audit.Event {
	event := audit.NewEvent(r, eventType, status)
	event.ErrorMessage = err.Error()
	return event
}

// audit records event; a failing audit log does not fail the request
func (s *Server) audit(r *http.Request, event *audit.Event) {
	if err := s.opts.Audit.Log(r.Context(), event); err != nil {
		s.logger.WithError(err).WithField("event_type", string(event.EventType)).Warn("failed to write audit event")
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.FromContext(observability.WithLogger(r.Context(), s.logger)).
		WithError(err).WithField("path", r.URL.Path).Error("request failed")
	httputil.WriteInternalError(w, errors.New("internal error"))
}
