package db

type Site struct {
	ID   string
	Name string
	URL  string
	// Content is the visible text captured by the last content refresh.
	Content string
	// Updated is the RFC3339 time of the last content refresh, or "" if the
	// site has never been refreshed.
	Updated string
	// CreatedAt is stored in the DB as RFC3339 text.
	CreatedAt string
}

// SiteUpdate carries a partial update; nil fields are left untouched.
type SiteUpdate struct {
	Name *string
	URL  *string
}
