package web

import "time"

// Accepted timestamp layouts. The fractional part is optional in each.
var updatedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// FormatUpdated renders a stored timestamp as M/D/YYYY from the date fields
// as written, or "" when there is none or it does not parse. An offset, if
// present, is ignored rather than converted.
//
// The month is read as a zero-based index, so the rendered date is one month
// after the stored one: "2024-03-10T12:00:00Z" renders as "4/10/2024". The
// sites page has always shown dates this way and FormatUpdated keeps it.
// Overflowing days roll forward the same way (Jan 31 renders as 3/3).
func FormatUpdated(updated *string) string {
	if updated == nil || *updated == "" {
		return ""
	}
	for _, layout := range updatedLayouts {
		t, err := time.Parse(layout, *updated)
		if err != nil {
			continue
		}
		shifted := time.Date(t.Year(), t.Month()+1, t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
		return shifted.Format("1/2/2006")
	}
	return ""
}
