package web

import "net/url"

// Actionable is a row the actions menu can act on.
type Actionable interface {
	EntityKind() string
	EntityID() string
}

// Action is one entry of a row's actions menu.
type Action struct {
	Label string
	// Method and URL are issued by htmx; the response goes to the modal slot.
	Method  string
	URL     string
	Confirm string
	Danger  bool
}

// ActionSet builds the menu entries for one kind of entity. A nil handler
// leaves its entry out.
type ActionSet struct {
	Edit   func(id string) Action
	Delete func(id string) Action
}

// For returns the menu entries for e.
func (s ActionSet) For(e Actionable) []Action {
	id := e.EntityID()
	var out []Action
	if s.Edit != nil {
		out = append(out, s.Edit(id))
	}
	if s.Delete != nil {
		out = append(out, s.Delete(id))
	}
	return out
}

// actionMenus maps entity kinds to their action sets.
type actionMenus map[string]ActionSet

func (m actionMenus) For(e Actionable) []Action {
	set, ok := m[e.EntityKind()]
	if !ok {
		return nil
	}
	return set.For(e)
}

const kindSite = "site"

var siteActions = ActionSet{
	Edit: func(id string) Action {
		return Action{Label: "Edit Site", Method: "get", URL: "/sites/" + url.PathEscape(id) + "/edit"}
	},
	Delete: func(id string) Action {
		return Action{
			Label:   "Delete Site",
			Method:  "post",
			URL:     "/sites/" + url.PathEscape(id) + "/delete",
			Confirm: "Are you sure? This site will be permanently deleted.",
			Danger:  true,
		}
	},
}

var defaultMenus = actionMenus{kindSite: siteActions}
