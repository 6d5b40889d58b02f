package tui

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"slices"
	"strings"
	"sync"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"

	"github.com/evanschultz/reeldesk/internal/app"
	"github.com/evanschultz/reeldesk/internal/domain"
)

// Model is the root bubbletea model. Board tabs drive app.Board and list
// tabs drive app.Reorder; neither ever writes the store directly.
type Model struct {
	store       app.CollectionStore
	pipeline    domain.Pipeline
	notes       *app.Notifications
	logger      app.Logger
	reorderOpts app.ReorderOptions
	mediaURL    func(domain.Item) string
	copyText    func(string) error
	subs        *subscriptions
	details     *detailsRenderer

	ready  bool
	width  int
	height int
	err    error
	status string

	help help.Model
	keys keyMap

	tabs   []domain.CollectionSpec
	tab    int
	boards map[domain.Collection]*app.Board
	lists  map[string]*app.Reorder
	// kinds holds the kind index per collection; -1 shows every kind.
	kinds map[domain.Collection]int

	focusCol    int
	focusRow    int
	hoverCol    int
	listRow     int
	showDetails bool
}

// loadedMsg reports one finished collection load.
type loadedMsg struct {
	collection domain.Collection
	err        error
}

// dropSettledMsg reports a background status mutation that finished.
type dropSettledMsg struct {
	collection domain.Collection
	result     app.DropResult
	err        error
}

// commitMsg reports one finished reorder commit.
type commitMsg struct {
	collection domain.Collection
	report     app.CommitReport
	err        error
}

// invalidatedMsg carries one invalidation plus the channel to keep reading.
type invalidatedMsg struct {
	collection domain.Collection
	ch         <-chan app.Invalidation
}

type copiedMsg struct {
	url string
	err error
}

// subscriptions owns invalidation feed cancel funcs shared by model copies.
type subscriptions struct {
	mu      sync.Mutex
	cancels []func()
}

func (s *subscriptions) add(cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels = append(s.cancels, cancel)
}

func (s *subscriptions) close() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// NewModel constructs the UI over one collection store.
func NewModel(store app.CollectionStore, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		store:    store,
		pipeline: domain.DefaultPipeline(),
		notes:    app.NewNotifications(32, nil),
		copyText: clipboard.WriteAll,
		subs:     &subscriptions{},
		details:  newDetailsRenderer(),
		status:   "loading...",
		help:     h,
		keys:     newKeyMap(),
		tabs:     domain.Collections(),
		boards:   map[domain.Collection]*app.Board{},
		lists:    map[string]*app.Reorder{},
		kinds:    map[domain.Collection]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	if store == nil {
		m.err = errors.New("collection store is required")
		return m
	}
	for _, spec := range m.tabs {
		if spec.Mode == domain.ModeBoard {
			board, err := app.NewBoard(store, app.BoardConfig{
				Collection: spec.ID,
				Pipeline:   m.pipeline,
				Sink:       m.notes,
				Logger:     m.logger,
			})
			if err != nil {
				m.err = err
				return m
			}
			m.boards[spec.ID] = board
			continue
		}
		scopes := []string{""}
		m.kinds[spec.ID] = -1
		if spec.KindScoped {
			scopes = spec.Kinds
			m.kinds[spec.ID] = 0
		}
		for _, kind := range scopes {
			engine, err := app.NewReorder(store, app.ReorderConfig{
				Filter:  domain.ItemFilter{Collection: spec.ID, Kind: kind},
				Sink:    m.notes,
				Options: m.reorderOpts,
			})
			if err != nil {
				m.err = err
				return m
			}
			m.lists[scopeKey(spec.ID, kind)] = engine
		}
	}
	return m
}

// Init loads every collection and starts the invalidation feeds.
func (m Model) Init() tea.Cmd {
	if m.err != nil {
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(m.tabs)*2)
	for _, spec := range m.tabs {
		cmds = append(cmds, m.loadCmd(spec.ID))
	}
	cmds = append(cmds, m.subscribeCmds()...)
	return tea.Batch(cmds...)
}

// Close cancels invalidation feeds and waits for in-flight status writes.
func (m Model) Close() {
	if m.subs != nil {
		m.subs.close()
	}
	for _, board := range m.boards {
		board.Wait()
	}
}

// Update applies one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.status = "load " + string(msg.collection) + " failed: " + msg.err.Error()
			return m, nil
		}
		m.clampFocus()
		if m.status == "loading..." {
			m.status = "ready"
		}
		return m, nil

	case dropSettledMsg:
		m.drainNotifications()
		return m, m.loadCmd(msg.collection)

	case commitMsg:
		m.drainNotifications()
		if msg.err != nil && errors.Is(msg.err, app.ErrValidation) {
			return m, nil
		}
		m.clampFocus()
		if msg.err == nil {
			return m, m.loadCmd(msg.collection)
		}
		return m, nil

	case invalidatedMsg:
		return m, tea.Batch(m.loadCmd(msg.collection), waitForInvalidation(msg.collection, msg.ch))

	case copiedMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
			return m, nil
		}
		m.status = "copied " + msg.url
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	default:
		return m, nil
	}
}

// handleKey routes global keys, then board or list keys.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	if m.err != nil {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadCmd(m.current().ID)
	case key.Matches(msg, m.keys.nextTab):
		return m.switchTab(1)
	case key.Matches(msg, m.keys.prevTab):
		return m.switchTab(-1)
	case key.Matches(msg, m.keys.details):
		m.showDetails = !m.showDetails
		return m, nil
	case key.Matches(msg, m.keys.copyURL):
		return m.copySelectedURL()
	}
	if m.current().Mode == domain.ModeBoard {
		return m.handleBoardKey(msg)
	}
	return m.handleListKey(msg)
}

// switchTab moves between collections unless a gesture is in progress.
func (m Model) switchTab(delta int) (tea.Model, tea.Cmd) {
	if m.gestureActive() {
		m.status = "finish the current move first"
		return m, nil
	}
	m.tab = wrapIndex(m.tab, delta, len(m.tabs))
	m.focusCol, m.focusRow, m.listRow = 0, 0, 0
	m.clampFocus()
	return m, nil
}

func (m Model) handleBoardKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	board := m.boards[m.current().ID]
	if board == nil {
		return m, nil
	}
	ctx := context.Background()

	if board.State() == app.BoardDragging {
		switch {
		case key.Matches(msg, m.keys.moveLeft):
			m.hoverCol = clamp(m.hoverCol-1, 0, len(m.pipeline)-1)
			board.OnHover(m.pipeline[m.hoverCol].ID)
		case key.Matches(msg, m.keys.moveRight):
			m.hoverCol = clamp(m.hoverCol+1, 0, len(m.pipeline)-1)
			board.OnHover(m.pipeline[m.hoverCol].ID)
		case key.Matches(msg, m.keys.drop):
			result := board.OnDrop(ctx, m.pipeline[m.hoverCol].ID)
			return m.afterDrop(board.Collection(), result)
		case key.Matches(msg, m.keys.cancel):
			result := board.OnRelease(ctx)
			return m.afterDrop(board.Collection(), result)
		}
		return m, nil
	}

	columns := board.Columns()
	switch {
	case key.Matches(msg, m.keys.moveLeft):
		m.focusCol = clamp(m.focusCol-1, 0, len(columns)-1)
		m.clampFocus()
	case key.Matches(msg, m.keys.moveRight):
		m.focusCol = clamp(m.focusCol+1, 0, len(columns)-1)
		m.clampFocus()
	case key.Matches(msg, m.keys.moveUp):
		m.focusRow--
		m.clampFocus()
	case key.Matches(msg, m.keys.moveDown):
		m.focusRow++
		m.clampFocus()
	case key.Matches(msg, m.keys.pick):
		item, ok := m.focusedBoardItem()
		if !ok {
			return m, nil
		}
		if err := board.OnPick(item.ID); err != nil {
			m.reportEngineError(err)
			return m, nil
		}
		m.hoverCol = m.focusCol
		board.OnHover(m.pipeline[m.hoverCol].ID)
	}
	return m, nil
}

// afterDrop follows a moved item and waits for its status write.
func (m Model) afterDrop(collection domain.Collection, result app.DropResult) (tea.Model, tea.Cmd) {
	if !result.Mutated() {
		return m, nil
	}
	m.focusCol = max(0, m.pipeline.Index(result.To))
	m.focusOnBoardItem(result.ItemID)
	m.status = fmt.Sprintf("moving to %s...", m.pipeline.Title(result.To))
	return m, func() tea.Msg {
		err := result.Wait(context.Background())
		return dropSettledMsg{collection: collection, result: result, err: err}
	}
}

func (m Model) handleListKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	engine := m.listEngine()
	if engine == nil {
		return m, nil
	}
	ctx := context.Background()
	items := m.visibleItems()

	if engine.State() != app.ReorderReordering {
		switch {
		case key.Matches(msg, m.keys.moveUp):
			m.listRow = clamp(m.listRow-1, 0, len(items)-1)
		case key.Matches(msg, m.keys.moveDown):
			m.listRow = clamp(m.listRow+1, 0, len(items)-1)
		case key.Matches(msg, m.keys.kindFilter):
			m.cycleKind()
			return m, m.loadCmd(m.current().ID)
		case key.Matches(msg, m.keys.reorder):
			if !m.current().KindScoped && m.kinds[m.current().ID] >= 0 {
				m.status = "clear the kind filter to reorder " + m.current().Label
				return m, nil
			}
			if err := engine.StartReorder(); err != nil {
				m.reportEngineError(err)
				return m, nil
			}
			m.status = "reordering: space pick • J/K move • enter commit • esc cancel"
		}
		return m, nil
	}

	session := engine.Session()
	switch {
	case session.Active() && (key.Matches(msg, m.keys.moveUp) || key.Matches(msg, m.keys.moveDown)):
		to := m.listRow - 1
		if key.Matches(msg, m.keys.moveDown) {
			to = m.listRow + 1
		}
		if to < 0 || to >= len(items) {
			return m, nil
		}
		engine.OnHover(items[to].ID)
		m.listRow = m.indexOf(session.ActiveItemID)
	case key.Matches(msg, m.keys.moveUp):
		m.listRow = clamp(m.listRow-1, 0, len(items)-1)
	case key.Matches(msg, m.keys.moveDown):
		m.listRow = clamp(m.listRow+1, 0, len(items)-1)
	case key.Matches(msg, m.keys.shiftUp), key.Matches(msg, m.keys.shiftDown):
		if session.Active() {
			return m, nil
		}
		to := m.listRow - 1
		if key.Matches(msg, m.keys.shiftDown) {
			to = m.listRow + 1
		}
		if err := engine.MoveItem(m.listRow, to); err != nil {
			m.reportEngineError(err)
			return m, nil
		}
		m.listRow = to
	case key.Matches(msg, m.keys.pick):
		if session.Active() || len(items) == 0 {
			return m, nil
		}
		if err := engine.OnPick(items[m.listRow].ID); err != nil {
			m.reportEngineError(err)
		}
	case key.Matches(msg, m.keys.drop):
		if session.Active() {
			engine.OnDrop(ctx, items[m.listRow].ID)
			m.listRow = m.indexOf(session.ActiveItemID)
			return m, nil
		}
		m.status = "saving order..."
		collection := m.current().ID
		return m, func() tea.Msg {
			report, err := engine.CommitReorder(ctx)
			return commitMsg{collection: collection, report: report, err: err}
		}
	case key.Matches(msg, m.keys.cancel):
		if session.Active() {
			engine.OnRelease(ctx)
			m.listRow = m.indexOf(session.ActiveItemID)
			return m, nil
		}
		if err := engine.CancelReorder(); err != nil {
			m.reportEngineError(err)
			return m, nil
		}
		m.status = "reorder cancelled"
		m.clampFocus()
	}
	return m, nil
}

// copySelectedURL copies the selected media item's public URL.
func (m Model) copySelectedURL() (tea.Model, tea.Cmd) {
	if m.current().ID != domain.CollectionMedia || m.mediaURL == nil {
		return m, nil
	}
	item, ok := m.selectedItem()
	if !ok {
		return m, nil
	}
	url := m.mediaURL(item)
	if url == "" {
		m.status = "no public url for " + item.Title
		return m, nil
	}
	write := m.copyText
	return m, func() tea.Msg {
		return copiedMsg{url: url, err: write(url)}
	}
}

// reportEngineError shows engine errors, skipping validation failures.
func (m *Model) reportEngineError(err error) {
	if err == nil || errors.Is(err, app.ErrValidation) {
		return
	}
	m.status = err.Error()
}

// drainNotifications shows the newest notification in the status line.
func (m *Model) drainNotifications() {
	for _, note := range m.notes.Drain() {
		m.status = note.Message
	}
}

func (m *Model) cycleKind() {
	spec := m.current()
	if len(spec.Kinds) == 0 {
		return
	}
	next := m.kinds[spec.ID] + 1
	switch {
	case spec.KindScoped && next >= len(spec.Kinds):
		next = 0
	case !spec.KindScoped && next >= len(spec.Kinds):
		next = -1
	}
	m.kinds[spec.ID] = next
	m.listRow = 0
	m.status = "kind: " + m.kindLabel()
}

func (m Model) kindLabel() string {
	spec := m.current()
	idx := m.kinds[spec.ID]
	if idx < 0 || idx >= len(spec.Kinds) {
		return "all"
	}
	return spec.Kinds[idx]
}

func (m Model) current() domain.CollectionSpec {
	if len(m.tabs) == 0 {
		return domain.CollectionSpec{}
	}
	return m.tabs[clamp(m.tab, 0, len(m.tabs)-1)]
}

// listEngine returns the reorder engine for the current tab and kind scope.
func (m Model) listEngine() *app.Reorder {
	spec := m.current()
	if spec.Mode != domain.ModeReorder {
		return nil
	}
	if spec.KindScoped {
		return m.lists[scopeKey(spec.ID, m.kindLabel())]
	}
	return m.lists[scopeKey(spec.ID, "")]
}

// visibleItems returns the rows the list tab renders.
func (m Model) visibleItems() []domain.Item {
	engine := m.listEngine()
	if engine == nil {
		return nil
	}
	items := engine.Items()
	spec := m.current()
	if spec.KindScoped || m.kinds[spec.ID] < 0 {
		return items
	}
	kind := m.kindLabel()
	return slices.DeleteFunc(items, func(item domain.Item) bool { return item.Kind != kind })
}

func (m Model) indexOf(itemID string) int {
	return max(0, slices.IndexFunc(m.visibleItems(), func(item domain.Item) bool { return item.ID == itemID }))
}

func (m Model) gestureActive() bool {
	spec := m.current()
	if board := m.boards[spec.ID]; board != nil {
		return board.State() != app.BoardIdle
	}
	if engine := m.listEngine(); engine != nil {
		return engine.State() == app.ReorderReordering
	}
	return false
}

func (m Model) focusedBoardItem() (domain.Item, bool) {
	board := m.boards[m.current().ID]
	if board == nil {
		return domain.Item{}, false
	}
	columns := board.Columns()
	if m.focusCol < 0 || m.focusCol >= len(columns) {
		return domain.Item{}, false
	}
	items := columns[m.focusCol].Items
	if m.focusRow < 0 || m.focusRow >= len(items) {
		return domain.Item{}, false
	}
	return items[m.focusRow], true
}

func (m *Model) focusOnBoardItem(itemID string) {
	board := m.boards[m.current().ID]
	if board == nil {
		return
	}
	columns := board.Columns()
	if m.focusCol >= len(columns) {
		return
	}
	if idx := slices.IndexFunc(columns[m.focusCol].Items, func(item domain.Item) bool { return item.ID == itemID }); idx >= 0 {
		m.focusRow = idx
	}
}

func (m Model) selectedItem() (domain.Item, bool) {
	if m.current().Mode == domain.ModeBoard {
		return m.focusedBoardItem()
	}
	items := m.visibleItems()
	if m.listRow < 0 || m.listRow >= len(items) {
		return domain.Item{}, false
	}
	return items[m.listRow], true
}

func (m *Model) clampFocus() {
	if board := m.boards[m.current().ID]; board != nil {
		columns := board.Columns()
		m.focusCol = clamp(m.focusCol, 0, len(columns)-1)
		if len(columns) == 0 {
			m.focusRow = 0
			return
		}
		m.focusRow = clamp(m.focusRow, 0, len(columns[m.focusCol].Items)-1)
		return
	}
	m.listRow = clamp(m.listRow, 0, len(m.visibleItems())-1)
}

// loadCmd reloads every engine backing collection.
func (m Model) loadCmd(collection domain.Collection) tea.Cmd {
	if board := m.boards[collection]; board != nil {
		return func() tea.Msg {
			return loadedMsg{collection: collection, err: board.Load(context.Background())}
		}
	}
	engines := make([]*app.Reorder, 0, 3)
	for _, spec := range m.tabs {
		if spec.ID != collection {
			continue
		}
		kinds := []string{""}
		if spec.KindScoped {
			kinds = spec.Kinds
		}
		for _, kind := range kinds {
			if engine := m.lists[scopeKey(collection, kind)]; engine != nil {
				engines = append(engines, engine)
			}
		}
	}
	if len(engines) == 0 {
		return nil
	}
	return func() tea.Msg {
		var errs []error
		for _, engine := range engines {
			errs = append(errs, engine.Load(context.Background()))
		}
		return loadedMsg{collection: collection, err: errors.Join(errs...)}
	}
}

// subscribeCmds starts one invalidation reader per collection.
func (m Model) subscribeCmds() []tea.Cmd {
	sub, ok := m.store.(app.Subscriber)
	if !ok {
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(m.tabs))
	for _, spec := range m.tabs {
		ch, cancel := sub.Subscribe(spec.ID)
		m.subs.add(cancel)
		cmds = append(cmds, waitForInvalidation(spec.ID, ch))
	}
	return cmds
}

func waitForInvalidation(collection domain.Collection, ch <-chan app.Invalidation) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return invalidatedMsg{collection: collection, ch: ch}
	}
}

func scopeKey(collection domain.Collection, kind string) string {
	return string(collection) + "/" + kind
}

// View renders the active tab.
func (m Model) View() tea.View {
	view := tea.NewView(m.render())
	view.AltScreen = true
	return view
}

// render builds the full screen as plain text.
func (m Model) render() string {
	if m.err != nil {
		return "error: " + m.err.Error() + "\n\npress q to quit\n"
	}
	if !m.ready {
		return "loading..."
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)
	proxyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)

	spec := m.current()
	header := titleStyle.Render("reeldesk") + "  " + m.renderTabs(accent, dim)
	header += statusStyle.Render("  [" + m.modeLabel() + "]")
	if spec.Mode == domain.ModeReorder && len(spec.Kinds) > 0 {
		header += statusStyle.Render("  kind: " + m.kindLabel())
	}

	var body string
	if spec.Mode == domain.ModeBoard {
		body = m.renderBoard(accent, muted, dim)
	} else {
		body = m.renderList(accent, muted, dim)
	}

	sections := []string{header, "", body}
	if proxy := m.carriedProxy(); proxy != "" {
		sections = append(sections, proxyStyle.Render(proxy))
	}
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	fullContent := content + "\n" + helpLine

	if m.showDetails {
		if overlay := m.renderDetails(accent, m.width-8); overlay != "" {
			height := lipgloss.Height(fullContent)
			if m.height > 0 {
				height = m.height
			}
			fullContent = overlayOnContent(fullContent, overlay, max(1, m.width), max(1, height))
		}
	}
	return fullContent
}

func (m Model) modeLabel() string {
	spec := m.current()
	if board := m.boards[spec.ID]; board != nil {
		return string(board.State())
	}
	if engine := m.listEngine(); engine != nil {
		return string(engine.State())
	}
	return ""
}

func (m Model) renderTabs(accent, dim color.Color) string {
	active := lipgloss.NewStyle().Bold(true).Foreground(accent).Underline(true)
	inactive := lipgloss.NewStyle().Foreground(dim)
	parts := make([]string, 0, len(m.tabs))
	for idx, spec := range m.tabs {
		if idx == m.tab {
			parts = append(parts, active.Render(spec.Label))
			continue
		}
		parts = append(parts, inactive.Render(spec.Label))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderBoard(accent, muted, dim color.Color) string {
	board := m.boards[m.current().ID]
	if board == nil {
		return ""
	}
	columns := board.Columns()
	dragging := board.State() == app.BoardDragging
	active := board.Session().ActiveItemID
	colWidth := m.columnWidth(len(columns))

	baseColStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1).
		MarginRight(1).
		Width(colWidth)
	focusColStyle := baseColStyle.BorderForeground(accent)
	hoverColStyle := baseColStyle.BorderForeground(lipgloss.Color("212"))
	colTitle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	carriedStyle := lipgloss.NewStyle().Foreground(muted).Strikethrough(true)
	subStyle := lipgloss.NewStyle().Foreground(muted)

	views := make([]string, 0, len(columns))
	for colIdx, column := range columns {
		lines := []string{colTitle.Render(fmt.Sprintf("%s (%d)", column.Category.Title, len(column.Items)))}
		if len(column.Items) == 0 {
			lines = append(lines, emptyStyle.Render("(empty)"))
		}
		for rowIdx, item := range column.Items {
			selected := !dragging && colIdx == m.focusCol && rowIdx == m.focusRow
			prefix := "  "
			if selected {
				prefix = "│ "
			}
			title := prefix + truncate(item.Title, max(1, colWidth-6))
			switch {
			case item.ID == active:
				title = carriedStyle.Render(title)
			case selected:
				title = selectedStyle.Render(title)
			}
			lines = append(lines, title)
			if sub := secondaryLine(item); sub != "" {
				lines = append(lines, "  "+subStyle.Render(truncate(sub, max(1, colWidth-6))))
			}
		}
		content := strings.Join(lines, "\n")
		switch {
		case dragging && colIdx == m.hoverCol:
			views = append(views, hoverColStyle.Render(content))
		case !dragging && colIdx == m.focusCol:
			views = append(views, focusColStyle.Render(content))
		default:
			views = append(views, baseColStyle.Render(content))
		}
	}
	out := lipgloss.JoinHorizontal(lipgloss.Top, views...)
	if unplaced := board.Unplaced(); len(unplaced) > 0 {
		out += "\n" + emptyStyle.Render(fmt.Sprintf("%d items outside the pipeline", len(unplaced)))
	}
	return out
}

func (m Model) renderList(accent, muted, dim color.Color) string {
	engine := m.listEngine()
	if engine == nil {
		return ""
	}
	items := m.visibleItems()
	reordering := engine.State() == app.ReorderReordering
	active := engine.Session().ActiveItemID

	border := dim
	if reordering {
		border = accent
	}
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Width(max(24, m.width-2))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	carriedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("212"))
	subStyle := lipgloss.NewStyle().Foreground(muted)

	lines := make([]string, 0, len(items)+1)
	if reordering {
		lines = append(lines, subStyle.Render("draft order (not saved)"))
	}
	if len(items) == 0 {
		lines = append(lines, subStyle.Render("(empty)"))
	}
	for idx, item := range items {
		prefix := "  "
		if idx == m.listRow {
			prefix = "│ "
		}
		row := fmt.Sprintf("%s%2d. %s", prefix, idx, item.Title)
		if sub := secondaryLine(item); sub != "" {
			row += "  " + subStyle.Render(sub)
		}
		switch {
		case item.ID == active:
			row = carriedStyle.Render(row)
		case idx == m.listRow:
			row = selectedStyle.Render(row)
		}
		lines = append(lines, row)
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// carriedProxy describes the item currently being dragged.
func (m Model) carriedProxy() string {
	spec := m.current()
	if board := m.boards[spec.ID]; board != nil {
		session := board.Session()
		if !session.Active() {
			return ""
		}
		item, _ := board.Item(session.ActiveItemID)
		return fmt.Sprintf("carrying %q → %s", item.Title, m.pipeline.Title(session.OverTargetID))
	}
	engine := m.listEngine()
	if engine == nil {
		return ""
	}
	session := engine.Session()
	if !session.Active() {
		return ""
	}
	idx := m.indexOf(session.ActiveItemID)
	items := m.visibleItems()
	if idx >= len(items) {
		return ""
	}
	return fmt.Sprintf("carrying %q at position %d", items[idx].Title, idx)
}

// renderDetails renders the selected item in a bordered pane. A render
// failure shows the raw document with the error underneath.
func (m Model) renderDetails(accent color.Color, width int) string {
	item, ok := m.selectedItem()
	if !ok {
		return ""
	}
	var url string
	if m.current().ID == domain.CollectionMedia && m.mediaURL != nil {
		url = m.mediaURL(item)
	}
	width = max(minDetailsWrap, min(width, maxDetailsWidth))
	body, err := m.details.render(item, url, width-4)
	if err != nil {
		if m.logger != nil {
			m.logger.Debug("details render failed", "item", item.ID, "err", err)
		}
		body += "\n\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render("details: "+err.Error())
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1).
		Width(width).
		Render(body)
}

// secondaryLine summarizes the collection-specific fields of one item.
func secondaryLine(item domain.Item) string {
	d := item.Details
	parts := make([]string, 0, 3)
	switch item.Collection {
	case domain.CollectionMedia:
		parts = append(parts, item.Kind)
		if !item.Visible {
			parts = append(parts, "hidden")
		}
	case domain.CollectionExperience:
		parts = append(parts, d.Role, d.Studio, d.Year)
	case domain.CollectionPeople:
		parts = append(parts, d.Company, d.Position)
	case domain.CollectionStudios:
		parts = append(parts, d.Location)
	}
	parts = slices.DeleteFunc(parts, func(s string) bool { return strings.TrimSpace(s) == "" })
	return strings.Join(parts, " · ")
}

func (m Model) columnWidth(columns int) int {
	if columns <= 0 || m.width <= 0 {
		return 24
	}
	return max(14, m.width/columns-3)
}

// wrapIndex moves current by delta and wraps within [0,total).
func wrapIndex(current, delta, total int) int {
	if total <= 0 {
		return 0
	}
	return ((current+delta)%total + total) % total
}

// clamp bounds v to [minV, maxV], preferring minV when the range is empty.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines pads or truncates content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent centers overlay above base.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}

	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	baseLayer := lipgloss.NewLayer(base).X(0).Y(0).Z(0)
	centeredOverlay := lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
	overlayLayer := lipgloss.NewLayer(centeredOverlay).X(0).Y(0).Z(10)

	canvas.Compose(baseLayer)
	canvas.Compose(overlayLayer)
	return canvas.Render()
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
