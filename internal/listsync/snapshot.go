// Package listsync keeps a local replica of the shopping data in step with
// the server. The confirmed snapshot only ever changes in response to a
// server message; everything the user sees is the confirmed snapshot with
// the still-pending mutations replayed on top.
package listsync

import (
	"slices"
	"strings"
)

type Item struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	OnList bool   `json:"on_list"`
}

type Store struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Section struct {
	ID       int64  `json:"id"`
	Store    int64  `json:"store"`
	Position int64  `json:"position"`
	Name     string `json:"name"`
}

type ItemStore struct {
	Item    int64  `json:"item"`
	Store   int64  `json:"store"`
	Sold    bool   `json:"sold"`
	Section *int64 `json:"section"`
}

// Snapshot is one complete, versioned copy of the data. Clones are cheap
// enough that the replay path takes one per projection rather than tracking
// partial updates.
type Snapshot struct {
	DataVersion int64       `json:"data_version"`
	Items       []Item      `json:"items"`
	Stores      []Store     `json:"stores"`
	Sections    []Section   `json:"sections"`
	ItemStores  []ItemStore `json:"item_stores"`
}

func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{
		DataVersion: s.DataVersion,
		Items:       slices.Clone(s.Items),
		Stores:      slices.Clone(s.Stores),
		Sections:    slices.Clone(s.Sections),
		ItemStores:  slices.Clone(s.ItemStores),
	}
}

func (s *Snapshot) Item(id int64) (Item, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

func (s *Snapshot) Store(id int64) (Store, bool) {
	for _, st := range s.Stores {
		if st.ID == id {
			return st, true
		}
	}
	return Store{}, false
}

func (s *Snapshot) Section(id int64) (Section, bool) {
	for _, sec := range s.Sections {
		if sec.ID == id {
			return sec, true
		}
	}
	return Section{}, false
}

func (s *Snapshot) Association(item, store int64) (ItemStore, bool) {
	for _, is := range s.ItemStores {
		if is.Item == item && is.Store == store {
			return is, true
		}
	}
	return ItemStore{}, false
}

// StoreSections returns the store's sections ordered by position.
func (s *Snapshot) StoreSections(store int64) []Section {
	var out []Section
	for _, sec := range s.Sections {
		if sec.Store == store {
			out = append(out, sec)
		}
	}
	slices.SortFunc(out, func(a, b Section) int {
		if a.Position != b.Position {
			return int(a.Position - b.Position)
		}
		return int(a.ID - b.ID)
	})
	return out
}

// ItemsByName returns the items sorted case-insensitively by name.
func (s *Snapshot) ItemsByName() []Item {
	out := slices.Clone(s.Items)
	slices.SortFunc(out, func(a, b Item) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out
}

// ItemNameTaken reports whether another item already uses the name. The
// server enforces the same rule; checking here keeps doomed mutations out of
// the queue.
func (s *Snapshot) ItemNameTaken(name string, excludeID int64) bool {
	for _, it := range s.Items {
		if it.ID != excludeID && it.Name == name {
			return true
		}
	}
	return false
}

// StoreNameTaken is ItemNameTaken for stores.
func (s *Snapshot) StoreNameTaken(name string, excludeID int64) bool {
	for _, st := range s.Stores {
		if st.ID != excludeID && st.Name == name {
			return true
		}
	}
	return false
}

func (s *Snapshot) removeItem(id int64) {
	s.Items = slices.DeleteFunc(s.Items, func(it Item) bool { return it.ID == id })
	s.ItemStores = slices.DeleteFunc(s.ItemStores, func(is ItemStore) bool { return is.Item == id })
}

func (s *Snapshot) removeStore(id int64) {
	s.Stores = slices.DeleteFunc(s.Stores, func(st Store) bool { return st.ID == id })
	s.Sections = slices.DeleteFunc(s.Sections, func(sec Section) bool { return sec.Store == id })
	s.ItemStores = slices.DeleteFunc(s.ItemStores, func(is ItemStore) bool { return is.Store == id })
}

func (s *Snapshot) removeSection(id int64) {
	s.Sections = slices.DeleteFunc(s.Sections, func(sec Section) bool { return sec.ID == id })
	for i := range s.ItemStores {
		if s.ItemStores[i].Section != nil && *s.ItemStores[i].Section == id {
			s.ItemStores[i].Section = nil
		}
	}
}
