// Package tui is the interactive terminal client. All data access goes
// through a listsync.Controller; the model here only translates keys into
// mutations and the controller's effects into bubbletea commands.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smallcodebases/shopping/internal/listsync"
)

const refreshInterval = 30 * time.Second

type viewKind int

const (
	viewList viewKind = iota
	viewItems
	viewStores
	viewItemDetail
	viewStoreDetail
)

type inputKind int

const (
	inputNone inputKind = iota
	inputAddItem
	inputRenameItem
	inputAddStore
	inputRenameStore
	inputAddSection
	inputRenameSection
)

// Messages fed back into Update by the effect commands.
type (
	mutationDoneMsg     struct{ res listsync.MutationResult }
	mutationFailedMsg   struct{ err error }
	refreshDoneMsg      struct{ snap *listsync.Snapshot }
	refreshUnchangedMsg struct{}
	refreshFailedMsg    struct{ err error }
	cacheSavedMsg       struct{}
	cacheChangedMsg     struct{}
	tickMsg             time.Time
)

type Model struct {
	ctl         *listsync.Controller
	rc          listsync.RemoteClient
	cache       *listsync.SnapshotCache
	cacheEvents <-chan struct{}
	logger      *slog.Logger

	view        viewKind
	cursor      map[viewKind]int
	storeFilter int
	detailItem  int64
	detailStore int64

	input     textinput.Model
	inputMode inputKind
	inputErr  string
	renameID  int64

	search    textinput.Model
	searching bool

	width, height int
}

// Run connects to the server, seeds the controller from the snapshot cache,
// and hands the terminal to bubbletea until the user quits.
func Run(ctx context.Context, baseURL, cachePath string, logger *slog.Logger) error {
	rc := listsync.NewHTTPClient(baseURL)
	cache := listsync.NewSnapshotCache(cachePath)
	ctl := listsync.NewController(logger)

	if snap, err := cache.Load(); err != nil {
		logger.Warn("ignoring unreadable snapshot cache", "error", err)
	} else if snap != nil {
		ctl.AdoptSnapshot(snap)
	}

	events := make(chan struct{}, 1)
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		err := cache.Watch(watchCtx, func() {
			select {
			case events <- struct{}{}:
			default:
			}
		})
		if err != nil && watchCtx.Err() == nil {
			logger.Warn("snapshot cache watcher stopped", "error", err)
		}
	}()

	m := newModel(ctl, rc, cache, events, logger)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

func newModel(ctl *listsync.Controller, rc listsync.RemoteClient, cache *listsync.SnapshotCache, events <-chan struct{}, logger *slog.Logger) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 200

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search"
	search.CharLimit = 100

	return Model{
		ctl:         ctl,
		rc:          rc,
		cache:       cache,
		cacheEvents: events,
		logger:      logger,
		cursor:      map[viewKind]int{},
		input:       input,
		search:      search,
		width:       80,
		height:      24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.runEffects(m.ctl.Start()),
		m.waitForCache(),
		tickRefresh(),
		textinput.Blink,
	)
}

// Effect plumbing

func (m Model) runEffects(effects []listsync.Effect) tea.Cmd {
	var cmds []tea.Cmd
	for _, eff := range effects {
		switch e := eff.(type) {
		case listsync.SendEffect:
			cmds = append(cmds, m.sendCmd(e.Mutation))
		case listsync.FetchEffect:
			cmds = append(cmds, m.fetchCmd(e.IfVersion))
		}
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

func (m Model) sendCmd(mut listsync.Mutation) tea.Cmd {
	rc := m.rc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		res, err := mut.Send(ctx, rc)
		if err != nil {
			return mutationFailedMsg{err}
		}
		return mutationDoneMsg{res}
	}
}

func (m Model) fetchCmd(ifVersion int64) tea.Cmd {
	rc := m.rc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		snap, unchanged, err := rc.FetchAll(ctx, ifVersion)
		switch {
		case err != nil:
			return refreshFailedMsg{err}
		case unchanged:
			return refreshUnchangedMsg{}
		default:
			return refreshDoneMsg{snap}
		}
	}
}

func (m Model) saveCache() tea.Cmd {
	// Clone now, synchronously: the command runs on another goroutine and
	// the controller keeps mutating the confirmed snapshot in place as
	// later acknowledgements land.
	cache, snap := m.cache, m.ctl.Confirmed().Clone()
	logger := m.logger
	return func() tea.Msg {
		if err := cache.Save(snap); err != nil {
			logger.Warn("saving snapshot cache", "error", err)
		}
		return cacheSavedMsg{}
	}
}

func (m Model) waitForCache() tea.Cmd {
	events := m.cacheEvents
	return func() tea.Msg {
		<-events
		return cacheChangedMsg{}
	}
}

func tickRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case mutationDoneMsg:
		return m, tea.Batch(m.runEffects(m.ctl.MutationDone(msg.res)), m.saveCache())

	case mutationFailedMsg:
		return m, m.runEffects(m.ctl.MutationFailed(msg.err))

	case refreshDoneMsg:
		return m, tea.Batch(m.runEffects(m.ctl.RefreshDone(msg.snap)), m.saveCache())

	case refreshUnchangedMsg:
		return m, m.runEffects(m.ctl.RefreshUnchanged())

	case refreshFailedMsg:
		return m, m.runEffects(m.ctl.RefreshFailed(msg.err))

	case cacheSavedMsg:
		return m, nil

	case cacheChangedMsg:
		if snap, err := m.cache.Load(); err == nil && snap != nil {
			m.ctl.AdoptSnapshot(snap)
		}
		return m, m.waitForCache()

	case tickMsg:
		return m, tea.Batch(m.runEffects(m.ctl.Refresh()), tickRefresh())

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.inputMode != inputNone {
		return m.handleInputKey(msg)
	}
	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "r":
		return m, m.runEffects(m.ctl.Refresh())
	case "tab", "shift+tab":
		return m.cycleView(msg.String() == "tab"), nil
	case "esc":
		m.ctl.ClearError()
		switch m.view {
		case viewItemDetail:
			m.view = viewItems
		case viewStoreDetail:
			m.view = viewStores
		}
		return m, nil
	}

	switch m.view {
	case viewList:
		return m.handleListKey(msg)
	case viewItems:
		return m.handleItemsKey(msg)
	case viewStores:
		return m.handleStoresKey(msg)
	case viewItemDetail:
		return m.handleItemDetailKey(msg)
	case viewStoreDetail:
		return m.handleStoreDetailKey(msg)
	}
	return m, nil
}

func (m Model) cycleView(forward bool) Model {
	order := []viewKind{viewList, viewItems, viewStores}
	current := m.view
	if current == viewItemDetail {
		current = viewItems
	}
	if current == viewStoreDetail {
		current = viewStores
	}
	idx := 0
	for i, v := range order {
		if v == current {
			idx = i
		}
	}
	if forward {
		idx = (idx + 1) % len(order)
	} else {
		idx = (idx + len(order) - 1) % len(order)
	}
	m.view = order[idx]
	// Leaving a view forgets the checked-off leftovers.
	m.ctl.ClearJustOff()
	return m
}

// Text input mode (add / rename prompts)

func (m Model) startInput(mode inputKind, placeholder, value string, renameID int64) Model {
	m.inputMode = mode
	m.inputErr = ""
	m.renameID = renameID
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
	return m
}

func (m Model) stopInput() Model {
	m.inputMode = inputNone
	m.inputErr = ""
	m.input.SetValue("")
	m.input.Blur()
	return m
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.stopInput(), nil
	case "enter":
		name := strings.TrimSpace(m.input.Value())
		if name == "" {
			m.inputErr = "name cannot be empty"
			return m, nil
		}
		mut, err := m.inputMutation(name)
		if err != nil {
			m.inputErr = err.Error()
			return m, nil
		}
		cmd := m.runEffects(m.ctl.Enqueue(mut))
		return m.stopInput(), cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) inputMutation(name string) (listsync.Mutation, error) {
	effective := m.ctl.Effective()
	switch m.inputMode {
	case inputAddItem:
		if effective.ItemNameTaken(name, 0) {
			return nil, fmt.Errorf("an item named %q already exists", name)
		}
		return listsync.NewCreateItem(name, true, nil), nil
	case inputRenameItem:
		if effective.ItemNameTaken(name, m.renameID) {
			return nil, fmt.Errorf("an item named %q already exists", name)
		}
		return listsync.NewRenameItem(m.renameID, name), nil
	case inputAddStore:
		if effective.StoreNameTaken(name, 0) {
			return nil, fmt.Errorf("a store named %q already exists", name)
		}
		return listsync.NewCreateStore(name, nil), nil
	case inputRenameStore:
		if effective.StoreNameTaken(name, m.renameID) {
			return nil, fmt.Errorf("a store named %q already exists", name)
		}
		return listsync.NewRenameStore(m.renameID, name), nil
	case inputAddSection:
		return listsync.NewCreateSection(m.detailStore, name), nil
	case inputRenameSection:
		return listsync.NewRenameSection(m.renameID, name), nil
	}
	return nil, fmt.Errorf("nothing to do")
}

// Search mode

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.cursor[viewItems] = 0
	return m, cmd
}

// List view: what to buy, grouped by the selected store's section order.

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.listRows()
	switch msg.String() {
	case "up", "k":
		m.moveCursor(viewList, -1, len(rows))
	case "down", "j":
		m.moveCursor(viewList, 1, len(rows))
	case "left", "h":
		m.storeFilter--
		m.clampStoreFilter()
		m.cursor[viewList] = 0
		m.ctl.ClearJustOff()
	case "right", "l":
		m.storeFilter++
		m.clampStoreFilter()
		m.cursor[viewList] = 0
		m.ctl.ClearJustOff()
	case " ":
		if it, ok := rowAt(rows, m.cursor[viewList]); ok {
			if it.OnList {
				// Keep it visible so a slip of the thumb can be undone.
				m.ctl.MarkJustOff(it.ID)
				return m, m.runEffects(m.ctl.Enqueue(&listsync.ItemOff{Item: it.ID}))
			}
			return m, m.runEffects(m.ctl.Enqueue(&listsync.ItemOn{Item: it.ID}))
		}
	}
	return m, nil
}

// Items view: the full catalogue with live search.

func (m Model) handleItemsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.searchResults()
	switch msg.String() {
	case "up", "k":
		m.moveCursor(viewItems, -1, len(items))
	case "down", "j":
		m.moveCursor(viewItems, 1, len(items))
	case "/":
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink
	case " ":
		if it, ok := at(items, m.cursor[viewItems]); ok {
			if it.OnList {
				return m, m.runEffects(m.ctl.Enqueue(&listsync.ItemOff{Item: it.ID}))
			}
			return m, m.runEffects(m.ctl.Enqueue(&listsync.ItemOn{Item: it.ID}))
		}
	case "a":
		return m.startInput(inputAddItem, "new item", "", 0), textinput.Blink
	case "e":
		if it, ok := at(items, m.cursor[viewItems]); ok {
			return m.startInput(inputRenameItem, "rename item", it.Name, it.ID), textinput.Blink
		}
	case "d":
		if it, ok := at(items, m.cursor[viewItems]); ok {
			return m, m.runEffects(m.ctl.Enqueue(&listsync.DeleteItem{ID: it.ID}))
		}
	case "enter":
		if it, ok := at(items, m.cursor[viewItems]); ok {
			m.detailItem = it.ID
			m.view = viewItemDetail
			m.cursor[viewItemDetail] = 0
		}
	}
	return m, nil
}

// Item detail: which stores sell it, and where.

func (m Model) handleItemDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	effective := m.ctl.Effective()
	stores := sortedStores(effective)
	switch msg.String() {
	case "up", "k":
		m.moveCursor(viewItemDetail, -1, len(stores))
	case "down", "j":
		m.moveCursor(viewItemDetail, 1, len(stores))
	case " ":
		if st, ok := at(stores, m.cursor[viewItemDetail]); ok {
			if is, ok := effective.Association(m.detailItem, st.ID); ok && is.Sold {
				return m, m.runEffects(m.ctl.Enqueue(&listsync.ItemNotInStore{Item: m.detailItem, Store: st.ID}))
			}
			return m, m.runEffects(m.ctl.Enqueue(&listsync.ItemInStore{Item: m.detailItem, Store: st.ID}))
		}
	case "left", "h":
		return m.cycleSection(effective, stores, -1)
	case "right", "l":
		return m.cycleSection(effective, stores, 1)
	case "enter":
		m.view = viewItems
	}
	return m, nil
}

// cycleSection moves the item through the selected store's sections, with
// "no section" between the last and the first.
func (m Model) cycleSection(effective *listsync.Snapshot, stores []listsync.Store, dir int) (tea.Model, tea.Cmd) {
	st, ok := at(stores, m.cursor[viewItemDetail])
	if !ok {
		return m, nil
	}
	is, ok := effective.Association(m.detailItem, st.ID)
	if !ok || !is.Sold {
		return m, nil
	}
	sections := effective.StoreSections(st.ID)
	if len(sections) == 0 {
		return m, nil
	}

	// Positions: -1 means no section, 0..n-1 index into sections.
	current := -1
	if is.Section != nil {
		for i, sec := range sections {
			if sec.ID == *is.Section {
				current = i
			}
		}
	}
	next := current + dir
	if next < -1 {
		next = len(sections) - 1
	}
	if next >= len(sections) {
		next = -1
	}

	var section *int64
	if next >= 0 {
		id := sections[next].ID
		section = &id
	}
	mut := &listsync.ItemInStore{Item: m.detailItem, Store: st.ID, Section: section}
	return m, m.runEffects(m.ctl.Enqueue(mut))
}

// Stores view

func (m Model) handleStoresKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	stores := sortedStores(m.ctl.Effective())
	switch msg.String() {
	case "up", "k":
		m.moveCursor(viewStores, -1, len(stores))
	case "down", "j":
		m.moveCursor(viewStores, 1, len(stores))
	case "a":
		return m.startInput(inputAddStore, "new store", "", 0), textinput.Blink
	case "e":
		if st, ok := at(stores, m.cursor[viewStores]); ok {
			return m.startInput(inputRenameStore, "rename store", st.Name, st.ID), textinput.Blink
		}
	case "d":
		if st, ok := at(stores, m.cursor[viewStores]); ok {
			return m, m.runEffects(m.ctl.Enqueue(&listsync.DeleteStore{ID: st.ID}))
		}
	case "enter":
		if st, ok := at(stores, m.cursor[viewStores]); ok {
			m.detailStore = st.ID
			m.view = viewStoreDetail
			m.cursor[viewStoreDetail] = 0
		}
	}
	return m, nil
}

// Store detail: the store's sections in walking order.

func (m Model) handleStoreDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sections := m.ctl.Effective().StoreSections(m.detailStore)
	switch msg.String() {
	case "up", "k":
		m.moveCursor(viewStoreDetail, -1, len(sections))
	case "down", "j":
		m.moveCursor(viewStoreDetail, 1, len(sections))
	case "a":
		return m.startInput(inputAddSection, "new section", "", 0), textinput.Blink
	case "e":
		if sec, ok := at(sections, m.cursor[viewStoreDetail]); ok {
			return m.startInput(inputRenameSection, "rename section", sec.Name, sec.ID), textinput.Blink
		}
	case "d":
		if sec, ok := at(sections, m.cursor[viewStoreDetail]); ok {
			return m, m.runEffects(m.ctl.Enqueue(&listsync.DeleteSection{ID: sec.ID}))
		}
	case "K", "shift+up":
		return m.moveSection(sections, -1)
	case "J", "shift+down":
		return m.moveSection(sections, 1)
	case "enter":
		m.view = viewStores
	}
	return m, nil
}

func (m Model) moveSection(sections []listsync.Section, dir int) (tea.Model, tea.Cmd) {
	i := m.cursor[viewStoreDetail]
	j := i + dir
	if i < 0 || i >= len(sections) || j < 0 || j >= len(sections) {
		return m, nil
	}
	order := make([]int64, len(sections))
	for k, sec := range sections {
		order[k] = sec.ID
	}
	order[i], order[j] = order[j], order[i]
	m.cursor[viewStoreDetail] = j
	return m, m.runEffects(m.ctl.Enqueue(&listsync.ReorderSections{Store: m.detailStore, Sections: order}))
}

// Cursor helpers

func (m *Model) moveCursor(view viewKind, dir, length int) {
	c := m.cursor[view] + dir
	if c < 0 {
		c = 0
	}
	if c >= length {
		c = length - 1
	}
	if c < 0 {
		c = 0
	}
	m.cursor[view] = c
}

func (m *Model) clampStoreFilter() {
	n := len(m.ctl.Effective().Stores)
	if m.storeFilter < 0 {
		m.storeFilter = 0
	}
	if m.storeFilter > n {
		m.storeFilter = n
	}
}

func at[T any](s []T, i int) (T, bool) {
	var zero T
	if i < 0 || i >= len(s) {
		return zero, false
	}
	return s[i], true
}
