package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/evanschultz/reeldesk/internal/domain"
)

const (
	detailsStyle    = "dark"
	minDetailsWrap  = 24
	maxDetailsWidth = 96
)

// detailsRenderer renders one item as a glamour document for the details
// pane. The term renderer is rebuilt only when the wrap width changes.
type detailsRenderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
}

func newDetailsRenderer() *detailsRenderer {
	return &detailsRenderer{style: detailsStyle}
}

// render returns the styled pane body for item. On failure it returns the
// markdown source alongside the error.
func (r *detailsRenderer) render(item domain.Item, url string, width int) (string, error) {
	doc := detailsDocument(item, url)
	wrap := max(minDetailsWrap, width)
	if r.renderer == nil || r.width != wrap {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.style),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return doc, fmt.Errorf("build details renderer: %w", err)
		}
		r.renderer = renderer
		r.width = wrap
	}
	out, err := r.renderer.Render(doc)
	if err != nil {
		return doc, fmt.Errorf("render %s details: %w", item.ID, err)
	}
	return strings.TrimRight(out, "\n"), nil
}

// detailsDocument lays out the title, the non-empty fields, the public URL
// and the free-form notes as markdown.
func detailsDocument(item domain.Item, url string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", item.Title)
	for _, field := range detailFields(item) {
		fmt.Fprintf(&b, "- **%s:** %s\n", field[0], field[1])
	}
	if url = strings.TrimSpace(url); url != "" {
		fmt.Fprintf(&b, "- **URL:** %s\n", url)
	}
	if notes := strings.TrimSpace(item.Details.Notes); notes != "" {
		b.WriteString("\n---\n\n")
		b.WriteString(notes)
	}
	return b.String()
}

func detailFields(item domain.Item) [][2]string {
	d := item.Details
	candidates := [][2]string{
		{"Kind", item.Kind},
		{"Status", item.Status},
		{"Visible", fmt.Sprintf("%t", item.Visible)},
		{"Order", fmt.Sprintf("%d", item.DisplayOrder)},
		{"Studio", d.Studio},
		{"Director", d.Director},
		{"Role", d.Role},
		{"Year", d.Year},
		{"Company", d.Company},
		{"Position", d.Position},
		{"Email", d.Email},
		{"Phone", d.Phone},
		{"Website", d.Website},
		{"Facebook", d.Facebook},
		{"Location", d.Location},
		{"Storage", d.StoragePath},
	}
	if d.Rating > 0 {
		candidates = append(candidates, [2]string{"Rating", strings.Repeat("★", d.Rating)})
	}
	out := candidates[:0]
	for _, field := range candidates {
		if strings.TrimSpace(field[1]) != "" {
			out = append(out, field)
		}
	}
	return out
}
