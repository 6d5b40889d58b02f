package domain

import "strings"

// Visibility restricts a listing by the public-view flag.
type Visibility string

const (
	VisibilityAny     Visibility = ""
	VisibilityVisible Visibility = "visible"
	VisibilityHidden  Visibility = "hidden"
)

// ParseVisibility accepts "", "any", "visible", "hidden", "true" and "false".
func ParseVisibility(raw string) (Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "any", "all":
		return VisibilityAny, nil
	case "visible", "true":
		return VisibilityVisible, nil
	case "hidden", "false":
		return VisibilityHidden, nil
	default:
		return "", ErrInvalidVisibility
	}
}

// ItemFilter narrows a collection listing.
type ItemFilter struct {
	Collection Collection `json:"collection"`
	Kind       string     `json:"kind,omitempty"`
	Visibility Visibility `json:"visibility,omitempty"`
}

// Validate checks the filter against the collection's discriminators.
func (f ItemFilter) Validate() error {
	if _, ok := lookupSpec(f.Collection); !ok {
		return ErrInvalidCollection
	}
	if f.Kind != "" && !f.Collection.HasKind(f.Kind) {
		return ErrInvalidKind
	}
	switch f.Visibility {
	case VisibilityAny, VisibilityVisible, VisibilityHidden:
		return nil
	default:
		return ErrInvalidVisibility
	}
}

// Matches reports whether item passes the filter.
func (f ItemFilter) Matches(item Item) bool {
	if item.Collection != f.Collection {
		return false
	}
	if f.Kind != "" && item.Kind != f.Kind {
		return false
	}
	switch f.Visibility {
	case VisibilityVisible:
		return item.Visible
	case VisibilityHidden:
		return !item.Visible
	}
	return true
}

// Key returns a stable cache key for the filter within its collection.
func (f ItemFilter) Key() string {
	kind := f.Kind
	if kind == "" {
		kind = "*"
	}
	visibility := string(f.Visibility)
	if visibility == "" {
		visibility = "any"
	}
	return kind + "|" + visibility
}
