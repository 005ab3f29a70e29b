package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/smallcodebases/shopping/internal/listsync"
)

// Row building shared between Update and View, so the cursor always agrees
// with what is drawn.

type listGroup struct {
	title string
	items []listsync.Item
}

func (m Model) listGroups() []listGroup {
	effective := m.ctl.Effective()
	visible := func(it listsync.Item) bool {
		return it.OnList || m.ctl.IsJustOff(it.ID)
	}

	stores := sortedStores(effective)
	if m.storeFilter == 0 || m.storeFilter > len(stores) {
		var items []listsync.Item
		for _, it := range effective.ItemsByName() {
			if visible(it) {
				items = append(items, it)
			}
		}
		if len(items) == 0 {
			return nil
		}
		return []listGroup{{items: items}}
	}

	store := stores[m.storeFilter-1]
	soldHere := func(it listsync.Item) (*int64, bool) {
		is, ok := effective.Association(it.ID, store.ID)
		if !ok || !is.Sold {
			return nil, false
		}
		return is.Section, true
	}

	var groups []listGroup
	bySection := map[int64][]listsync.Item{}
	var unsorted, elsewhere []listsync.Item
	for _, it := range effective.ItemsByName() {
		if !visible(it) {
			continue
		}
		section, sold := soldHere(it)
		switch {
		case !sold:
			elsewhere = append(elsewhere, it)
		case section == nil:
			unsorted = append(unsorted, it)
		default:
			bySection[*section] = append(bySection[*section], it)
		}
	}
	for _, sec := range effective.StoreSections(store.ID) {
		if items := bySection[sec.ID]; len(items) > 0 {
			groups = append(groups, listGroup{title: sec.Name, items: items})
		}
	}
	if len(unsorted) > 0 {
		groups = append(groups, listGroup{title: "Somewhere in " + store.Name, items: unsorted})
	}
	if len(elsewhere) > 0 {
		groups = append(groups, listGroup{title: "Not sold here", items: elsewhere})
	}
	return groups
}

func (m Model) listRows() []listsync.Item {
	var rows []listsync.Item
	for _, g := range m.listGroups() {
		rows = append(rows, g.items...)
	}
	return rows
}

func rowAt(rows []listsync.Item, i int) (listsync.Item, bool) {
	return at(rows, i)
}

func (m Model) searchResults() []listsync.Item {
	return m.ctl.Search(m.search.Value())
}

func sortedStores(snap *listsync.Snapshot) []listsync.Store {
	stores := slices.Clone(snap.Stores)
	slices.SortFunc(stores, func(a, b listsync.Store) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
	return stores
}

// View

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n\n")

	switch m.view {
	case viewList:
		b.WriteString(m.listView())
	case viewItems:
		b.WriteString(m.itemsView())
	case viewStores:
		b.WriteString(m.storesView())
	case viewItemDetail:
		b.WriteString(m.itemDetailView())
	case viewStoreDetail:
		b.WriteString(m.storeDetailView())
	}

	if m.inputMode != inputNone {
		b.WriteString("\n")
		b.WriteString(m.inputView())
	}
	b.WriteString("\n")
	b.WriteString(m.footerView())
	return panel(b.String())
}

func (m Model) headerView() string {
	tabs := []struct {
		view  viewKind
		label string
	}{
		{viewList, "List"},
		{viewItems, "Items"},
		{viewStores, "Stores"},
	}
	active := m.view
	if active == viewItemDetail {
		active = viewItems
	}
	if active == viewStoreDetail {
		active = viewStores
	}

	parts := []string{titleStyle.Render("Shopping")}
	for _, tab := range tabs {
		if tab.view == active {
			parts = append(parts, activeTab.Render(tab.label))
		} else {
			parts = append(parts, tabStyle.Render(tab.label))
		}
	}

	status := fmt.Sprintf("v%d", m.ctl.Version())
	if n := m.ctl.QueueLen(); n > 0 {
		status += pendingStyle.Render(fmt.Sprintf("  %d pending", n))
	}
	if m.ctl.InFlight() {
		status += mutedStyle.Render("  syncing")
	}
	return strings.Join(parts, "  ") + "   " + mutedStyle.Render(status)
}

func (m Model) listView() string {
	var b strings.Builder
	b.WriteString(m.storeFilterView())
	b.WriteString("\n")

	groups := m.listGroups()
	if len(groups) == 0 {
		b.WriteString(mutedStyle.Render("nothing on the list"))
		return b.String()
	}

	cursor := m.cursor[viewList]
	idx := 0
	for _, g := range groups {
		if g.title != "" {
			b.WriteString(sectionStyle.Render(g.title))
			b.WriteString("\n")
		}
		for _, it := range g.items {
			b.WriteString(m.itemLine(it, idx == cursor, !it.OnList))
			b.WriteString("\n")
			idx++
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) storeFilterView() string {
	stores := sortedStores(m.ctl.Effective())
	label := "Everything"
	if m.storeFilter > 0 && m.storeFilter <= len(stores) {
		label = stores[m.storeFilter-1].Name
	}
	return mutedStyle.Render("◀ ") + titleStyle.Render(label) + mutedStyle.Render(" ▶")
}

func (m Model) itemsView() string {
	var b strings.Builder
	b.WriteString(m.search.View())
	b.WriteString("\n")

	items := m.searchResults()
	if len(items) == 0 {
		b.WriteString(mutedStyle.Render("no matching items"))
		return b.String()
	}
	cursor := m.cursor[viewItems]
	for i, it := range items {
		b.WriteString(m.itemLine(it, i == cursor, false))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) itemLine(it listsync.Item, selected, struck bool) string {
	box := boxUnchecked
	if it.OnList {
		box = boxChecked
	}
	name := it.Name
	if struck {
		name = doneStyle.Render(name)
	}
	line := fmt.Sprintf("%s %s", mutedStyle.Render(box), name)
	if selected {
		return selectedStyle.Render("> ") + line
	}
	return "  " + line
}

func (m Model) storesView() string {
	effective := m.ctl.Effective()
	stores := sortedStores(effective)
	if len(stores) == 0 {
		return mutedStyle.Render("no stores yet, press a to add one")
	}
	var b strings.Builder
	cursor := m.cursor[viewStores]
	for i, st := range stores {
		sections := len(effective.StoreSections(st.ID))
		line := fmt.Sprintf("%s %s", st.Name, mutedStyle.Render(fmt.Sprintf("(%d sections)", sections)))
		if i == cursor {
			line = selectedStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) itemDetailView() string {
	effective := m.ctl.Effective()
	it, ok := effective.Item(m.detailItem)
	if !ok {
		return mutedStyle.Render("item is gone")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(it.Name))
	b.WriteString("\n")

	stores := sortedStores(effective)
	if len(stores) == 0 {
		b.WriteString(mutedStyle.Render("no stores yet"))
		return b.String()
	}
	cursor := m.cursor[viewItemDetail]
	for i, st := range stores {
		status := mutedStyle.Render("unknown")
		if is, ok := effective.Association(it.ID, st.ID); ok {
			if !is.Sold {
				status = notSoldStyle.Render("not sold here")
			} else if is.Section != nil {
				if sec, ok := effective.Section(*is.Section); ok {
					status = soldStyle.Render("sold, " + sec.Name)
				} else {
					status = soldStyle.Render("sold")
				}
			} else {
				status = soldStyle.Render("sold")
			}
		}
		line := fmt.Sprintf("%s  %s", st.Name, status)
		if i == cursor {
			line = selectedStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) storeDetailView() string {
	effective := m.ctl.Effective()
	st, ok := effective.Store(m.detailStore)
	if !ok {
		return mutedStyle.Render("store is gone")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(st.Name))
	b.WriteString("\n")

	sections := effective.StoreSections(st.ID)
	if len(sections) == 0 {
		b.WriteString(mutedStyle.Render("no sections yet, press a to add one"))
		return b.String()
	}
	cursor := m.cursor[viewStoreDetail]
	for i, sec := range sections {
		line := fmt.Sprintf("%2d. %s", i+1, sec.Name)
		if i == cursor {
			line = selectedStyle.Render("> ") + line
		} else {
			line = "   " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) inputView() string {
	bar := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(0, 1)
	title := m.input.Placeholder
	if m.inputErr != "" {
		title += " — " + errorStyle.Render(m.inputErr)
	}
	return bar.Render(title + "\n" + m.input.View())
}

func (m Model) footerView() string {
	var lines []string
	if err := m.ctl.LastError(); err != "" {
		lines = append(lines, errorStyle.Render(err))
	}
	lines = append(lines, helpStyle.Render(m.helpLine()))
	return strings.Join(lines, "\n")
}

func (m Model) helpLine() string {
	switch m.view {
	case viewList:
		return "space got it · ←/→ store · tab view · r reload · q quit"
	case viewItems:
		return "space toggle · enter details · a add · e rename · d delete · / search · q quit"
	case viewStores:
		return "enter sections · a add · e rename · d delete · tab view · q quit"
	case viewItemDetail:
		return "space sold/not sold · ←/→ section · esc back"
	case viewStoreDetail:
		return "K/J move · a add · e rename · d delete · esc back"
	}
	return ""
}
