package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// writeJSON writes v with the given status. Encoding failures are logged; the
// status line has already been sent by then.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

// writeDetail writes an error body of the form {"detail": ...}.
func (s *Server) writeDetail(w http.ResponseWriter, status int, detail any) {
	s.writeJSON(w, status, errorResponse{Detail: detail})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter) {
	s.writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

// routeName maps a request path to a low-cardinality metrics label.
func routeName(r *http.Request) string {
	rest := strings.TrimPrefix(r.URL.Path, BasePath)
	switch {
	case rest == "":
		return "sites"
	case rest == "update":
		return "sites_update"
	case !strings.Contains(rest, "/"):
		return "site"
	default:
		return "other"
	}
}
