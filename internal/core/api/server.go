package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/seckatie/sitesd/internal/core/db"
	"github.com/seckatie/sitesd/internal/metrics"
)

// BasePath is where the sites API is mounted.
const BasePath = "/api/v1/sites/"

// SiteRepository is the storage surface the API serves.
type SiteRepository interface {
	AddSite(ctx context.Context, name, url string) (db.Site, error)
	GetSite(ctx context.Context, id string) (db.Site, error)
	ListSites(ctx context.Context, skip, limit int) ([]db.Site, error)
	ListAllSites(ctx context.Context) ([]db.Site, error)
	CountSites(ctx context.Context) (int, error)
	UpdateSite(ctx context.Context, id string, in db.SiteUpdate) (db.Site, error)
	DeleteSite(ctx context.Context, id string) error
}

// RefreshQueue accepts bulk refresh requests. The refresh itself runs in the
// background.
type RefreshQueue interface {
	EnqueueStale(ctx context.Context) (int, error)
}

type Server struct {
	repo    SiteRepository
	refresh RefreshQueue
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewServer(repo SiteRepository, refresh RefreshQueue, log *slog.Logger, m *metrics.Metrics) *Server {
	return &Server{
		repo:    repo,
		refresh: refresh,
		log:     log,
		metrics: m,
	}
}

// RegisterRoutes mounts the API on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle(BasePath, s.instrument(http.HandlerFunc(s.handleSites)))
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(routeName(r), strconv.Itoa(rec.status)).Inc()
		}
	})
}
