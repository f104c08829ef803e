package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotFound is matched by errors.Is for any 404 answer.
var ErrNotFound = errors.New("not found")

// Site is a site as the API returns it. Updated is nil until the content has
// been fetched once.
type Site struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	URL       string  `json:"url"`
	Updated   *string `json:"updated"`
	CreatedAt string  `json:"created_at"`
	Content   string  `json:"content,omitempty"`
}

// SitesPage is one page of the list endpoint. Count is the total number of
// sites, not the length of Data.
type SitesPage struct {
	Data  []Site `json:"data"`
	Count int    `json:"count"`
}

type SiteCreate struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SiteUpdate leaves nil fields unchanged.
type SiteUpdate struct {
	Name *string `json:"name,omitempty"`
	URL  *string `json:"url,omitempty"`
}

// ReadSitesParams selects a window of the site list. A zero Limit lets the
// server pick its default.
type ReadSitesParams struct {
	Skip  int
	Limit int
}

// ValidationDetail is one rejected field of a request body.
type ValidationDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// Field returns the last element of Loc, usually the field name.
func (d ValidationDetail) Field() string {
	if len(d.Loc) == 0 {
		return ""
	}
	return d.Loc[len(d.Loc)-1]
}

// APIError is a non-2xx answer from the sites API. Message holds the detail
// string when the server sent one; Details holds field errors when it sent a
// list instead.
type APIError struct {
	Status  int
	Message string
	Details []ValidationDetail
}

func (e *APIError) Error() string {
	switch {
	case len(e.Details) > 0:
		msgs := make([]string, 0, len(e.Details))
		for _, d := range e.Details {
			if f := d.Field(); f != "" {
				msgs = append(msgs, f+": "+d.Msg)
			} else {
				msgs = append(msgs, d.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	case e.Message != "":
		return e.Message
	default:
		return fmt.Sprintf("request failed: status %d %s", e.Status, http.StatusText(e.Status))
	}
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}
