package web

import (
	"net/http"
	"strings"

	"github.com/seckatie/sitesd/internal/client"
)

func (ws *Server) editSiteModal(w http.ResponseWriter, r *http.Request, id string) {
	site, err := ws.api.ReadSite(r.Context(), id)
	if err != nil {
		ws.log.Warn("failed to read site", "site", id, "error", err)
		ws.notify(w, r, errorToast(err), false)
		return
	}
	form := editSiteForm(site.ID, site.Name, site.URL)
	if !isHTMX(r) {
		ws.renderPage(w, r, 1, &form, nil, http.StatusOK)
		return
	}
	ws.renderTemplate(w, "site_form", http.StatusOK, form)
}

func (ws *Server) updateSite(w http.ResponseWriter, r *http.Request, id string) {
	form := editSiteForm(id, r.PostFormValue(fieldName), r.PostFormValue(fieldURL))
	if form.Errors = validateSiteForm(form.Name, form.URL); form.Errors != nil {
		ws.renderForm(w, r, form, nil, http.StatusUnprocessableEntity)
		return
	}

	name := strings.TrimSpace(form.Name)
	siteURL := strings.TrimSpace(form.URL)
	_, err := ws.api.UpdateSite(r.Context(), id, client.SiteUpdate{Name: &name, URL: &siteURL})
	ws.invalidateSites()
	if err != nil {
		ws.log.Warn("failed to update site", "site", id, "error", err)
		ws.renderForm(w, r, form, errorToast(err), http.StatusOK)
		return
	}

	ws.log.Info("site updated", "site", id)
	ws.closeModal(w, r, successToast("Site updated successfully."))
}

func (ws *Server) deleteSite(w http.ResponseWriter, r *http.Request, id string) {
	err := ws.api.DeleteSite(r.Context(), id)
	ws.invalidateSites()
	if err != nil {
		ws.log.Warn("failed to delete site", "site", id, "error", err)
		ws.notify(w, r, errorToast(err), true)
		return
	}

	ws.log.Info("site deleted", "site", id)
	ws.notify(w, r, successToast("The site was deleted successfully."), true)
}

// notify answers with only a toast. For plain requests the toast is shown
// on a fresh render of the page.
func (ws *Server) notify(w http.ResponseWriter, r *http.Request, t *toast, changed bool) {
	if isHTMX(r) {
		tr := trigger{}.toast(t)
		if changed {
			tr.sitesChanged()
		}
		tr.set(w)
		w.WriteHeader(http.StatusOK)
		return
	}
	ws.renderPage(w, r, 1, nil, t, http.StatusOK)
}
