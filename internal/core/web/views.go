package web

type siteRow struct {
	ID      string
	Name    string
	URL     string
	Updated string // already formatted, "" when never fetched
	Actions []Action
}

func (r siteRow) EntityKind() string { return kindSite }
func (r siteRow) EntityID() string   { return r.ID }

type tableView struct {
	Page        int
	Rows        []siteRow
	Loading     bool // nothing to show yet, render the skeleton
	Placeholder bool // rows belong to an earlier fetch and are shown dimmed
	HasNext     bool
	HasPrev     bool
	Error       string
}

func (v tableView) PrevPage() int { return v.Page - 1 }
func (v tableView) NextPage() int { return v.Page + 1 }

// Pending reports whether the table should load its page when it appears.
func (v tableView) Pending() bool { return v.Loading || v.Placeholder }

// SkeletonCells is the number of placeholder cells in the loading row.
func (v tableView) SkeletonCells() []struct{} { return make([]struct{}, 4) }

type formView struct {
	Title  string
	Action string // form POST target
	Submit string
	Name   string
	URL    string
	Errors fieldErrors
}

type fieldView struct {
	ID       string
	Messages []string
}

type pageView struct {
	Title string
	Table tableView
	Modal *formView
	Toast *toast
}
