package api

import "github.com/seckatie/sitesd/internal/core/db"

// sitePublic is the wire form of a site.
type sitePublic struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	URL       string  `json:"url"`
	Updated   *string `json:"updated"`
	CreatedAt string  `json:"created_at"`
	Content   string  `json:"content,omitempty"`
}

type sitesPublic struct {
	Data  []sitePublic `json:"data"`
	Count int          `json:"count"`
}

type siteCreate struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type siteUpdate struct {
	Name *string `json:"name"`
	URL  *string `json:"url"`
}

type message struct {
	Message string `json:"message"`
}

// validationDetail describes one failed field, in the shape the client
// decodes into ValidationDetail.
type validationDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type errorResponse struct {
	Detail any `json:"detail"`
}

func toPublic(s db.Site, withContent bool) sitePublic {
	p := sitePublic{
		ID:        s.ID,
		Name:      s.Name,
		URL:       s.URL,
		CreatedAt: s.CreatedAt,
	}
	if s.Updated != "" {
		updated := s.Updated
		p.Updated = &updated
	}
	if withContent {
		p.Content = s.Content
	}
	return p
}

func toPublicList(sites []db.Site, count int) sitesPublic {
	out := sitesPublic{Data: make([]sitePublic, 0, len(sites)), Count: count}
	for _, s := range sites {
		out.Data = append(out.Data, toPublic(s, false))
	}
	return out
}
