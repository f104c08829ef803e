package web

import (
	"context"
	"strconv"

	"github.com/seckatie/sitesd/internal/client"
	"github.com/seckatie/sitesd/internal/query"
)

// PerPage is the number of sites per table page.
const PerPage = 5

const sitesScope = "sites"

// parsePage reads the 1-based page number; anything missing, malformed or
// below 1 is page 1.
func parsePage(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// pageQuery is the list window for a page.
func pageQuery(page int) client.ReadSitesParams {
	return client.ReadSitesParams{Skip: (page - 1) * PerPage, Limit: PerPage}
}

func pageKey(page int) string {
	return query.Key{Scope: sitesScope, Page: page}.String()
}

func (ws *Server) fetchPage(page int) query.FetchFunc[*client.SitesPage] {
	return func(ctx context.Context) (*client.SitesPage, error) {
		return ws.api.ReadSites(ctx, pageQuery(page))
	}
}

// newTableView lays out a page of sites. Placeholder rows never enable
// "next", since they may belong to a different page.
func (ws *Server) newTableView(page int, sites []client.Site, placeholder bool) tableView {
	rows := make([]siteRow, 0, len(sites))
	for _, s := range sites {
		row := siteRow{ID: s.ID, Name: s.Name, URL: s.URL, Updated: FormatUpdated(s.Updated)}
		row.Actions = ws.menus.For(row)
		rows = append(rows, row)
	}
	return tableView{
		Page:        page,
		Rows:        rows,
		Placeholder: placeholder,
		HasNext:     !placeholder && len(sites) == PerPage,
		HasPrev:     page > 1,
	}
}

// initialTable builds the table for a full page render without calling the
// API. A fresh cached page is shown as is; otherwise the most recent cached
// page is shown as a placeholder, or a skeleton when there is none, and the
// table loads its page once it is on screen.
func (ws *Server) initialTable(ctx context.Context, page int) tableView {
	if st, ok := ws.cache.Peek(pageKey(page)); ok && st.Fresh {
		tv := ws.newTableView(page, st.Value.Data, false)
		ws.shown(ctx, tv)
		return tv
	}
	if prev, ok := ws.cache.Placeholder(sitesScope); ok {
		return ws.newTableView(page, prev.Data, true)
	}
	return tableView{Page: page, Loading: true, HasPrev: page > 1}
}

// loadTable fetches a page through the cache.
func (ws *Server) loadTable(ctx context.Context, page int) (tableView, error) {
	res, err := ws.cache.Fetch(ctx, pageKey(page), ws.fetchPage(page))
	if err != nil {
		return tableView{Page: page, HasPrev: page > 1}, err
	}
	tv := ws.newTableView(page, res.Data, false)
	ws.shown(ctx, tv)
	return tv, nil
}

// shown runs the side effects of displaying a page: the background content
// refresh and the next-page prefetch.
func (ws *Server) shown(ctx context.Context, tv tableView) {
	if ws.refresh != nil {
		ws.refresh.ListFetched()
	}
	if tv.HasNext {
		ws.cache.Prefetch(ctx, pageKey(tv.NextPage()), ws.fetchPage(tv.NextPage()))
	}
}

func (ws *Server) invalidateSites() {
	n := ws.cache.Invalidate(sitesScope)
	ws.log.Debug("sites cache invalidated", "entries", n)
}
