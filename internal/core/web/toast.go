package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/seckatie/sitesd/internal/client"
)

// Toast statuses understood by the page script.
const (
	toastSuccess = "success"
	toastError   = "error"
)

type toast struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

func successToast(description string) *toast {
	return &toast{Title: "Success!", Description: description, Status: toastSuccess}
}

func errorToast(err error) *toast {
	return &toast{Title: "Something went wrong.", Description: ErrorMessage(err), Status: toastError}
}

// ErrorMessage turns an API call failure into text for the user. Field errors
// are joined, a 404 reads "Site not found", other API errors use the server's
// message and anything else (transport failures, timeouts) is generic.
func ErrorMessage(err error) string {
	var apiErr *client.APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		if len(apiErr.Details) > 0 {
			msgs := make([]string, 0, len(apiErr.Details))
			for _, d := range apiErr.Details {
				msgs = append(msgs, d.Msg)
			}
			return strings.Join(msgs, ", ")
		}
		if apiErr.Status == http.StatusNotFound {
			return "Site not found"
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return http.StatusText(apiErr.Status)
	default:
		return "Something went wrong."
	}
}

// trigger collects HTMX client-side events for the HX-Trigger header.
type trigger map[string]any

func (tr trigger) toast(t *toast) trigger {
	if t != nil {
		tr["showToast"] = t
	}
	return tr
}

// sitesChanged tells the table to reload its current page.
func (tr trigger) sitesChanged() trigger {
	tr["sitesChanged"] = true
	return tr
}

// set writes the HX-Trigger header. It must be called before the body is
// written.
func (tr trigger) set(w http.ResponseWriter) {
	if len(tr) == 0 {
		return
	}
	b, err := json.Marshal(tr)
	if err != nil {
		return
	}
	w.Header().Set("HX-Trigger", string(b))
}
