package web

import (
	"context"
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/seckatie/sitesd/internal/client"
	"github.com/seckatie/sitesd/internal/query"
)

//go:embed templates/*.html static/*.css
var templatesFS embed.FS

// SitesAPI is the part of the API client the pages use.
type SitesAPI interface {
	CreateSite(ctx context.Context, in client.SiteCreate) (*client.Site, error)
	ReadSites(ctx context.Context, params client.ReadSitesParams) (*client.SitesPage, error)
	ReadSite(ctx context.Context, id string) (*client.Site, error)
	UpdateSite(ctx context.Context, id string, in client.SiteUpdate) (*client.Site, error)
	DeleteSite(ctx context.Context, id string) error
}

type Server struct {
	api       SitesAPI
	cache     *query.Cache[*client.SitesPage]
	refresh   *RefreshTrigger
	menus     actionMenus
	templates *template.Template
	staticFS  http.FileSystem
	log       *slog.Logger
}

// NewServer creates the sites UI. refresh may be nil, in which case showing
// a page triggers no background update.
func NewServer(api SitesAPI, cache *query.Cache[*client.SitesPage], refresh *RefreshTrigger, log *slog.Logger) (*Server, error) {
	templates, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	staticSub, err := fs.Sub(templatesFS, "static")
	if err != nil {
		return nil, err
	}

	return &Server{
		api:       api,
		cache:     cache,
		refresh:   refresh,
		menus:     defaultMenus,
		templates: templates,
		staticFS:  http.FS(staticSub),
		log:       log,
	}, nil
}

func (ws *Server) RegisterRoutes(mux *http.ServeMux) {
	ws.registerStaticRoutes(mux)

	mux.HandleFunc("/", ws.handleIndex)
	mux.HandleFunc("/sites", ws.handleSites)
	mux.HandleFunc("/sites/", ws.handleSiteRoutes) // add, add/validate, table, {id}, {id}/edit, {id}/delete
}

func (ws *Server) registerStaticRoutes(mux *http.ServeMux) {
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(ws.staticFS)))
}
