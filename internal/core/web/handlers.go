package web

import (
	"bytes"
	"net/http"
)

// renderTemplate renders a template with the standard HTML content-type header.
// The template is executed into a buffer first so a failure can still send a
// clean 500.
func (ws *Server) renderTemplate(w http.ResponseWriter, templateName string, status int, data any) {
	var buf bytes.Buffer
	if err := ws.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		ws.log.Error("failed to execute template", "template", templateName, "error", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		ws.log.Debug("failed to write response", "template", templateName, "error", err)
	}
}

// requireMethod checks if the request method matches the expected method.
// Returns true if the method matches, false otherwise (and sends 405 response).
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
