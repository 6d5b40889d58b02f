package domain

import (
	"fmt"
	"strings"
)

// Category is one named pipeline stage. Its ID doubles as the drop-target id.
type Category struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Pipeline is the ordered, fixed set of status categories a board renders.
type Pipeline []Category

// DefaultPipeline returns the outreach pipeline used when no override is configured.
func DefaultPipeline() Pipeline {
	return Pipeline{
		{ID: "soon", Title: "Soon"},
		{ID: "contacted", Title: "Contacted"},
		{ID: "conversation", Title: "In Conversation"},
		{ID: "ghosted", Title: "Ghosted"},
		{ID: "dub", Title: "Dub"},
	}
}

// NewPipeline validates and normalizes categories into a pipeline.
func NewPipeline(categories []Category) (Pipeline, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("empty pipeline: %w", ErrInvalidCategory)
	}
	out := make(Pipeline, 0, len(categories))
	seen := map[string]struct{}{}
	for _, raw := range categories {
		id := normalizeCategoryID(raw.ID)
		title := strings.TrimSpace(raw.Title)
		if id == "" {
			return nil, fmt.Errorf("category id is required: %w", ErrInvalidCategory)
		}
		if title == "" {
			title = id
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("duplicate category %q: %w", id, ErrInvalidCategory)
		}
		seen[id] = struct{}{}
		out = append(out, Category{ID: id, Title: title})
	}
	return out, nil
}

// Contains reports whether id names one of the pipeline categories.
func (p Pipeline) Contains(id string) bool {
	return p.Index(id) >= 0
}

// Index returns the position of id in the pipeline, or -1.
func (p Pipeline) Index(id string) int {
	for i, category := range p {
		if category.ID == id {
			return i
		}
	}
	return -1
}

// Title returns the display title for id, falling back to the id itself.
func (p Pipeline) Title(id string) string {
	if idx := p.Index(id); idx >= 0 {
		return p[idx].Title
	}
	return id
}

// First returns the first category id, used as the default status for new items.
func (p Pipeline) First() string {
	if len(p) == 0 {
		return ""
	}
	return p[0].ID
}

// IDs returns the category ids in pipeline order.
func (p Pipeline) IDs() []string {
	out := make([]string, 0, len(p))
	for _, category := range p {
		out = append(out, category.ID)
	}
	return out
}

func normalizeCategoryID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
