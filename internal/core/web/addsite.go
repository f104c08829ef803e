package web

import (
	"net/url"
	"strings"
)

// Form fields.
const (
	fieldName = "name"
	fieldURL  = "url"
)

// fieldErrors holds every failing rule per field, in rule order.
type fieldErrors map[string][]string

// Field returns the view for one field's error list.
func (fe fieldErrors) Field(id string) fieldView {
	return fieldView{ID: id, Messages: fe[id]}
}

// rules lists the checks run for each field. Only required-ness is checked
// today; a field can still carry several messages once more rules exist.
var rules = map[string][]func(string) string{
	fieldName: {required("Name is required.")},
	fieldURL:  {required("URL is required.")},
}

func required(msg string) func(string) string {
	return func(v string) string {
		if strings.TrimSpace(v) == "" {
			return msg
		}
		return ""
	}
}

// validateField runs all rules for field and returns every failure.
func validateField(field, value string) []string {
	var msgs []string
	for _, rule := range rules[field] {
		if msg := rule(value); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// validateSiteForm returns nil when both fields pass.
func validateSiteForm(name, siteURL string) fieldErrors {
	errs := fieldErrors{}
	if msgs := validateField(fieldName, name); len(msgs) > 0 {
		errs[fieldName] = msgs
	}
	if msgs := validateField(fieldURL, siteURL); len(msgs) > 0 {
		errs[fieldURL] = msgs
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func addSiteForm() formView {
	return formView{Title: "Add Site", Action: "/sites", Submit: "Save"}
}

func editSiteForm(id, name, siteURL string) formView {
	return formView{Title: "Edit Site", Action: "/sites/" + url.PathEscape(id), Submit: "Save", Name: name, URL: siteURL}
}
