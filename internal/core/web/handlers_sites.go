package web

import (
	"net/http"
	"strings"

	"github.com/seckatie/sitesd/internal/client"
)

func (ws *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	http.Redirect(w, r, "/sites", http.StatusFound)
}

func (ws *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ws.sitesPage(w, r)
	case http.MethodPost:
		ws.createSite(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleSiteRoutes routes everything below /sites/.
func (ws *Server) handleSiteRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/sites/"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case rest == "add":
		if requireMethod(w, r, http.MethodGet) {
			ws.addSiteModal(w, r)
		}
	case rest == "add/validate":
		if requireMethod(w, r, http.MethodPost) {
			ws.validateSiteField(w, r)
		}
	case rest == "table":
		if requireMethod(w, r, http.MethodGet) {
			ws.sitesTable(w, r)
		}
	case len(parts) == 1 && parts[0] != "":
		if requireMethod(w, r, http.MethodPost) {
			ws.updateSite(w, r, parts[0])
		}
	case len(parts) == 2 && parts[1] == "edit":
		if requireMethod(w, r, http.MethodGet) {
			ws.editSiteModal(w, r, parts[0])
		}
	case len(parts) == 2 && parts[1] == "delete":
		if requireMethod(w, r, http.MethodPost) {
			ws.deleteSite(w, r, parts[0])
		}
	default:
		http.NotFound(w, r)
	}
}

// sitesPage renders the full page: heading, navbar and table.
func (ws *Server) sitesPage(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r.URL.Query().Get("page"))
	ws.renderPage(w, r, page, nil, nil, http.StatusOK)
}

func (ws *Server) renderPage(w http.ResponseWriter, r *http.Request, page int, modal *formView, t *toast, status int) {
	ws.renderTemplate(w, "sites.html", status, pageView{
		Title: "Site Management",
		Table: ws.initialTable(r.Context(), page),
		Modal: modal,
		Toast: t,
	})
}

// sitesTable renders the table for one page, fetching it if needed.
func (ws *Server) sitesTable(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r.URL.Query().Get("page"))
	tv, err := ws.loadTable(r.Context(), page)
	if err != nil {
		ws.log.Warn("failed to load sites", "page", page, "error", err)
		tv.Error = ErrorMessage(err)
		trigger{}.toast(errorToast(err)).set(w)
	}
	ws.renderTemplate(w, "table", http.StatusOK, tv)
}

func (ws *Server) addSiteModal(w http.ResponseWriter, r *http.Request) {
	form := addSiteForm()
	if !isHTMX(r) {
		ws.renderPage(w, r, 1, &form, nil, http.StatusOK)
		return
	}
	ws.renderTemplate(w, "site_form", http.StatusOK, form)
}

// validateSiteField checks one field on blur and returns its error list.
func (ws *Server) validateSiteField(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	if _, ok := rules[field]; !ok {
		http.Error(w, "Unknown field", http.StatusBadRequest)
		return
	}
	msgs := validateField(field, r.PostFormValue(field))
	ws.renderTemplate(w, "field_errors", http.StatusOK, fieldView{ID: field, Messages: msgs})
}

func (ws *Server) createSite(w http.ResponseWriter, r *http.Request) {
	form := addSiteForm()
	form.Name = r.PostFormValue(fieldName)
	form.URL = r.PostFormValue(fieldURL)

	if form.Errors = validateSiteForm(form.Name, form.URL); form.Errors != nil {
		ws.renderForm(w, r, form, nil, http.StatusUnprocessableEntity)
		return
	}

	site, err := ws.api.CreateSite(r.Context(), client.SiteCreate{
		Name: strings.TrimSpace(form.Name),
		URL:  strings.TrimSpace(form.URL),
	})
	ws.invalidateSites()
	if err != nil {
		ws.log.Warn("failed to create site", "error", err)
		ws.renderForm(w, r, form, errorToast(err), http.StatusOK)
		return
	}

	ws.log.Info("site created", "site", site.ID, "url", site.URL)
	ws.closeModal(w, r, successToast("Site created successfully."))
}

// renderForm shows the modal again, keeping what the user typed. HTMX only
// swaps 2xx responses, so status applies to full page renders.
func (ws *Server) renderForm(w http.ResponseWriter, r *http.Request, form formView, t *toast, status int) {
	if isHTMX(r) {
		trigger{}.toast(t).set(w)
		ws.renderTemplate(w, "site_form", http.StatusOK, form)
		return
	}
	ws.renderPage(w, r, 1, &form, t, status)
}

// closeModal empties the modal slot, which closes it and drops its form
// state, and tells the table to reload. Plain form posts are redirected back
// to the page instead.
func (ws *Server) closeModal(w http.ResponseWriter, r *http.Request, t *toast) {
	if isHTMX(r) {
		trigger{}.toast(t).sitesChanged().set(w)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/sites", http.StatusSeeOther)
}
