package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/seckatie/sitesd/internal/core/db"
)

// Default page size when the caller sends no limit.
const defaultLimit = 100

// handleSites routes everything under BasePath:
//
//	GET    /            list (skip, limit)
//	POST   /            create
//	PUT    /update      queue a bulk content refresh
//	GET    /{id}        read
//	PUT    /{id}        partial update
//	DELETE /{id}        delete
func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, BasePath)

	switch {
	case rest == "":
		switch r.Method {
		case http.MethodGet:
			s.readSites(w, r)
		case http.MethodPost:
			s.createSite(w, r)
		default:
			s.methodNotAllowed(w)
		}
	case rest == "update":
		if r.Method != http.MethodPut {
			s.methodNotAllowed(w)
			return
		}
		s.updateSites(w, r)
	case !strings.Contains(rest, "/"):
		switch r.Method {
		case http.MethodGet:
			s.readSite(w, r, rest)
		case http.MethodPut:
			s.updateSite(w, r, rest)
		case http.MethodDelete:
			s.deleteSite(w, r, rest)
		default:
			s.methodNotAllowed(w)
		}
	default:
		s.writeDetail(w, http.StatusNotFound, "Not Found")
	}
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *Server) readSites(w http.ResponseWriter, r *http.Request) {
	skip, ok := queryInt(r, "skip", 0)
	if !ok || skip < 0 {
		s.writeDetail(w, http.StatusUnprocessableEntity, []validationDetail{{
			Loc: []string{"query", "skip"}, Msg: "skip must be an integer >= 0", Type: "value_error",
		}})
		return
	}
	limit, ok := queryInt(r, "limit", defaultLimit)
	if !ok || limit <= 0 {
		s.writeDetail(w, http.StatusUnprocessableEntity, []validationDetail{{
			Loc: []string{"query", "limit"}, Msg: "limit must be an integer > 0", Type: "value_error",
		}})
		return
	}

	ctx := r.Context()
	count, err := s.repo.CountSites(ctx)
	if err != nil {
		s.internalError(w, "count sites", err)
		return
	}
	sites, err := s.repo.ListSites(ctx, skip, limit)
	if err != nil {
		s.internalError(w, "list sites", err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPublicList(sites, count))
}

func (s *Server) createSite(w http.ResponseWriter, r *http.Request) {
	var in siteCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeDetail(w, http.StatusUnprocessableEntity, "Invalid JSON in request body")
		return
	}

	var missing []validationDetail
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, validationDetail{Loc: []string{"body", "name"}, Msg: "Field required", Type: "missing"})
	}
	if strings.TrimSpace(in.URL) == "" {
		missing = append(missing, validationDetail{Loc: []string{"body", "url"}, Msg: "Field required", Type: "missing"})
	}
	if len(missing) > 0 {
		s.writeDetail(w, http.StatusUnprocessableEntity, missing)
		return
	}

	site, err := s.repo.AddSite(r.Context(), in.Name, in.URL)
	if err != nil {
		if errors.Is(err, db.ErrInvalidSite) {
			s.writeDetail(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.internalError(w, "create site", err)
		return
	}
	s.log.Info("site created", "site", site.ID, "url", site.URL)
	s.writeJSON(w, http.StatusOK, toPublic(site, false))
}

// updateSites queues stale sites for a content refresh and answers with the
// current list straight away.
func (s *Server) updateSites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.refresh != nil {
		queued, err := s.refresh.EnqueueStale(ctx)
		if err != nil {
			s.internalError(w, "queue refresh", err)
			return
		}
		s.log.Debug("bulk refresh requested", "queued", queued)
	}

	sites, err := s.repo.ListAllSites(ctx)
	if err != nil {
		s.internalError(w, "list sites", err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPublicList(sites, len(sites)))
}

func (s *Server) readSite(w http.ResponseWriter, r *http.Request, id string) {
	site, err := s.repo.GetSite(r.Context(), id)
	if err != nil {
		s.siteError(w, "get site", err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPublic(site, true))
}

func (s *Server) updateSite(w http.ResponseWriter, r *http.Request, id string) {
	var in siteUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeDetail(w, http.StatusUnprocessableEntity, "Invalid JSON in request body")
		return
	}
	site, err := s.repo.UpdateSite(r.Context(), id, db.SiteUpdate{Name: in.Name, URL: in.URL})
	if err != nil {
		s.siteError(w, "update site", err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPublic(site, false))
}

func (s *Server) deleteSite(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.repo.DeleteSite(r.Context(), id); err != nil {
		s.siteError(w, "delete site", err)
		return
	}
	s.log.Info("site deleted", "site", id)
	s.writeJSON(w, http.StatusOK, message{Message: "Site deleted successfully"})
}

// siteError maps storage errors for single-site operations.
func (s *Server) siteError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		s.writeDetail(w, http.StatusNotFound, "Site not found")
	case errors.Is(err, db.ErrInvalidSite):
		s.writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.internalError(w, op, err)
	}
}

// internalError logs the full error and returns a generic message.
func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.Error("operation failed", "operation", op, "error", err)
	s.writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
}
