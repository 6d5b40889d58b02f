package tui

import (
	"strings"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// keyMap holds every binding the board and list tabs respond to.
type keyMap struct {
	quit       key.Binding
	reload     key.Binding
	toggleHelp key.Binding
	nextTab    key.Binding
	prevTab    key.Binding
	moveLeft   key.Binding
	moveRight  key.Binding
	moveUp     key.Binding
	moveDown   key.Binding
	pick       key.Binding
	drop       key.Binding
	cancel     key.Binding
	reorder    key.Binding
	shiftUp    key.Binding
	shiftDown  key.Binding
	kindFilter key.Binding
	details    key.Binding
	copyURL    key.Binding
}

// KeyOverrides replaces default keys. Blank fields keep the defaults.
type KeyOverrides struct {
	Pick    string
	Reorder string
	Details string
	CopyURL string
}

// newKeyMap constructs the default bindings.
func newKeyMap() keyMap {
	return keyMap{
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:     key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reload")),
		toggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		nextTab:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		prevTab:    key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
		moveLeft:   key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		moveRight:  key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		moveUp:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		moveDown:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		pick:       key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "pick up")),
		drop:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop / commit")),
		cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "release / cancel")),
		reorder:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "start reorder")),
		shiftUp:    key.NewBinding(key.WithKeys("K", "shift+k"), key.WithHelp("K", "move item up")),
		shiftDown:  key.NewBinding(key.WithKeys("J", "shift+j"), key.WithHelp("J", "move item down")),
		kindFilter: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "cycle kind")),
		details:    key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "details")),
		copyURL:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy public url")),
	}
}

// applyOverrides rebinds the configurable keys.
func (k *keyMap) applyOverrides(o KeyOverrides) {
	configureBinding(&k.pick, o.Pick, "space", "pick up")
	configureBinding(&k.reorder, o.Reorder, "r", "start reorder")
	configureBinding(&k.details, o.Details, "i", "details")
	configureBinding(&k.copyURL, o.CopyURL, "y", "copy public url")
}

// ShortHelp returns the compact binding list.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.nextTab, k.pick, k.drop, k.cancel, k.reorder, k.details, k.toggleHelp, k.quit}
}

// FullHelp returns every binding grouped by purpose.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.nextTab, k.prevTab, k.moveLeft, k.moveRight, k.moveUp, k.moveDown},
		{k.pick, k.drop, k.cancel, k.reorder, k.shiftUp, k.shiftDown},
		{k.kindFilter, k.details, k.copyURL, k.reload, k.toggleHelp, k.quit},
	}
}

// configureBinding rebinds b to raw, falling back when raw is blank.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, help := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(help, desc)
}

// parseBindingKeys expands one configured key into matcher keys and help text.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	switch {
	case strings.EqualFold(raw, "space") || raw == " ":
		return []string{" ", "space"}, "space"
	case utf8.RuneCountInString(raw) == 1:
		if strings.ToUpper(raw) == raw && strings.ToLower(raw) != raw {
			return []string{raw, "shift+" + strings.ToLower(raw)}, raw
		}
		return []string{raw}, raw
	default:
		return []string{strings.ToLower(raw)}, raw
	}
}
