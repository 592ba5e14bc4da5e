package extract

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

// scopeSelf marks a selector that resolves to the matched item element
// itself instead of a descendant. Both spellings are accepted.
func isScopeSelector(selector string) bool {
	s := strings.TrimSpace(selector)
	return s == ":scope" || s == "self"
}

// SelectorError reports an invalid or missing CSS selector. It is surfaced
// when a profile is saved, never during a refresh run.
type SelectorError struct {
	Field    string
	Selector string
	Reason   string
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("invalid %s selector %q: %s", e.Field, e.Selector, e.Reason)
}

// Spec holds the validated CSS selectors describing how to locate items on
// a listing page. Construct through NewSpec; raw strings from user input
// must not reach the extractor.
type Spec struct {
	Item    string
	Title   string
	Link    string
	Summary string // optional, empty means no summary extraction
}

// NewSpec validates each selector and returns a usable Spec. The summary
// selector may be empty; the others are required.
func NewSpec(item, title, link, summary string) (Spec, error) {
	spec := Spec{
		Item:    strings.TrimSpace(item),
		Title:   strings.TrimSpace(title),
		Link:    strings.TrimSpace(link),
		Summary: strings.TrimSpace(summary),
	}

	if spec.Item == "" {
		return Spec{}, &SelectorError{Field: "item", Selector: item, Reason: "selector is required"}
	}
	if spec.Title == "" {
		return Spec{}, &SelectorError{Field: "title", Selector: title, Reason: "selector is required"}
	}
	if spec.Link == "" {
		return Spec{}, &SelectorError{Field: "link", Selector: link, Reason: "selector is required"}
	}

	checks := []struct {
		field    string
		selector string
		optional bool
	}{
		{"item", spec.Item, false},
		{"title", spec.Title, false},
		{"link", spec.Link, false},
		{"summary", spec.Summary, true},
	}
	for _, c := range checks {
		if c.optional && c.selector == "" {
			continue
		}
		if c.field != "item" && isScopeSelector(c.selector) {
			continue
		}
		if _, err := cascadia.Parse(c.selector); err != nil {
			return Spec{}, &SelectorError{Field: c.field, Selector: c.selector, Reason: err.Error()}
		}
	}

	return spec, nil
}
