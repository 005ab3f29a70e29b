package listsync

import (
	"context"
	"fmt"
	"strings"
)

// Mutation is one queued edit. Apply rewrites a snapshot the way the server
// will once the request lands, and is replayed over the confirmed snapshot
// every time the effective state is projected. Confirm folds the server's
// acknowledgement into the confirmed snapshot permanently; for everything
// except the creating mutations it is the same rewrite as Apply.
type Mutation interface {
	// Describe names the mutation for logs and the pending-edits display.
	Describe() string

	// Redundant reports whether the mutation would change nothing in the
	// given state. Redundant mutations are dropped instead of enqueued.
	Redundant(snap *Snapshot) bool

	// Apply optimistically rewrites snap in place.
	Apply(snap *Snapshot)

	// Send posts the mutation to the server.
	Send(ctx context.Context, rc RemoteClient) (MutationResult, error)

	// Confirm rewrites snap with the acknowledged result.
	Confirm(snap *Snapshot, res MutationResult)
}

func (s *Snapshot) upsertAssociation(item, store int64, sold bool, section *int64) {
	for i := range s.ItemStores {
		if s.ItemStores[i].Item == item && s.ItemStores[i].Store == store {
			s.ItemStores[i].Sold = sold
			s.ItemStores[i].Section = section
			return
		}
	}
	s.ItemStores = append(s.ItemStores, ItemStore{Item: item, Store: store, Sold: sold, Section: section})
}

// CreateItem

type CreateItem struct {
	Name   string `json:"name"`
	OnList bool   `json:"on_list"`
	Store  *int64 `json:"store"`
}

func NewCreateItem(name string, onList bool, store *int64) *CreateItem {
	return &CreateItem{Name: strings.TrimSpace(name), OnList: onList, Store: store}
}

func (m *CreateItem) Describe() string { return fmt.Sprintf("create item %q", m.Name) }

func (m *CreateItem) Redundant(*Snapshot) bool { return false }

// Apply is a no-op: the item has no id until the server assigns one, so a
// pending create is shown from the queue rather than projected into the
// snapshot.
func (m *CreateItem) Apply(*Snapshot) {}

func (m *CreateItem) Send(ctx context.Context, rc RemoteClient) (MutationResult, error) {
	return rc.Mutate(ctx, "create-item", m)
}

func (m *CreateItem) Confirm(snap *Snapshot, res MutationResult) {
	snap.Items = append(snap.Items, Item{ID: res.ID, Name: m.Name, OnList: m.OnList})
	if m.Store != nil {
		snap.upsertAssociation(res.ID, *m.Store, true, nil)
	}
}

// CreateStore

type CreateStore struct {
	Name string `json:"name"`
	Item *int64 `json:"item"`
}

func NewCreateStore(name string, item *int64) *CreateStore {
	return &CreateStore{Name: strings.TrimSpace(name), Item: item}
}

func (m *CreateStore) Describe() string { return fmt.Sprintf("create store %q", m.Name) }

func (m *CreateStore) Redundant(*Snapshot) bool { return false }

func (m *CreateStore) Apply(*Snapshot) {}

func (m *CreateStore) Send(ctx context.Context, rc RemoteClient) (MutationResult, error) {
	return rc.Mutate(ctx, "create-store", m)
}

func (m *CreateStore) Confirm(snap *Snapshot, res MutationResult) {
	snap.Stores = append(snap.Stores, Store{ID: res.ID, Name: m.Name})
	if m.Item != nil {
		snap.upsertAssociation(*m.Item, res.ID, true, nil)
	}
}

// CreateSection

type CreateSection struct {
	Store int64  `json:"store"`
	Name  string `json:"name"`
}

func NewCreateSection(store int64, name string) *CreateSection {
	return &CreateSection{Store: store, Name: strings.TrimSpace(name)}
}

func (m *CreateSection) Describe() string { return fmt.Sprintf("create section %q", m.Name) }

func (m *CreateSection) Redundant(*Snapshot) bool { return false }

func (m *CreateSection) Apply(*Snapshot) {}

func (m *CreateSection) Send(ctx context.Context, rc RemoteClient) (MutationResult, error) {
	return rc.Mutate(ctx, "create-section", m)
}

func (m *CreateSection) Confirm(snap *Snapshot, res MutationResult) {
	snap.Sections = append(snap.Sections, Section{
		ID:       res.ID,
		Store:    m.Store,
		Position: res.Position,
		Name:     m.Name,
	})
}

// DeleteItem

type DeleteItem struct {
	ID int64 `json:"id"`
}

func (m *DeleteItem) Describe() string { return fmt.Sprintf("delete item %d", m.ID) }

func (m *DeleteItem) Redundant(snap *Snapshot) bool {
	_, ok := snap.Item(m.ID)
	return !ok
}

func (m *DeleteItem) Apply(snap *Snapshot) { snap.removeItem(m.ID) }

func (m *DeleteItem) Send(ctx context.Context, rc RemoteClient) (MutationResult, error) {
	return rc.Mutate(ctx, "delete-item", m)
}

func (m *DeleteItem) Confirm(snap *Snapshot, _ MutationResult) { m.Apply(snap) }

// DeleteStore

type DeleteStore struct {
	ID int64 `json:"id"`
}

func (m *DeleteStore) Describe() string { return fmt.Sprintf("delete store %d", m.ID) }

func (m *DeleteStore) Redundant(snap *Snapshot) bool {
	_, ok := snap.Store(m.ID)
	return !ok
}

func (m *DeleteStore) Apply(snap *Snapshot) { snap.removeStore(m.ID) }

func (m *DeleteStore) Send(ctx context.Context, rc RemoteClient) (MutationResult, error) {
	return rc.Mutate(ctx, "delete-store", m)
}

func (m *DeleteStore) Confirm(snap *Snapshot, _ MutationResult) { m.Apply(snap) }

// DeleteSection

type DeleteSection struct {
	ID int64 `json:"id"`
}

func (m *DeleteSection) Describe() string { return fmt.Sprintf("delete section %d", m.ID) }

func (m *DeleteSection) Redundant(snap *Snapshot) bool {
	_, ok := snap.Section(m.ID)
	return !ok
}

func (m *DeleteSection) Apply(snap *Snapshot) { snap.removeSection(m.ID) }

func (m *DeleteSection) Send(ctx context.Context, rc RemoteClient) (MutationResult, error) {
	return rc.Mutate(ctx, "delete-section", m)
}

func (m *DeleteSection) Confirm(snap *Snapshot, _ MutationResult) { m.Apply(snap) }

// ItemInStore

type ItemInStore struct {
	Item    int64  `json:"item"`
	Store   int64  `json:"store"`
	Section *int64 `json:"section"`
}

func (m *ItemInStore) Describe() string {
	return fmt.Sprintf("item %d sold at store %d", m.Item, m.Store)
}

func (m *ItemInStore) Redundant(snap *Snapshot) bool {
	is, ok := snap.Association(m.Item, m.Store)
	if !ok || !is.Sold {
		return false
	}
	if m.Section == nil {
		return is.Section == nil
	}
	return is.Section != nil && *is.Section == *m.Section
}

func (m *ItemInStore) Apply(snap *Snapshot) {
	snap.upsertAssociation(m.Item, m.Store, true, m.Section)
}

func (m *ItemInStore) Send(ctx context.Context, rc RemoteClient) (MutationResult, error) {
	return rc.Mutate(ctx, "item-in-store", m)
}

func (m *ItemInStore) Confirm(snap *Snapshot, _ MutationResult) { m.Apply(snap) }

// ItemNotInStore

type ItemNotInStore struct {
	Item  int64 `json:"item"`
	Store int64 `json:"store"`
}

func (m *ItemNotInStore) Describe() string {
	return fmt.Sprintf("item %d not sold at store %d", m.Item, m.Store)
}

func (m *ItemNotInStore) Redundant(snap *Snapshot) bool {
	is, ok := snap.Association(m.Item, m.Store)
	return ok && !is.Sold
}

func (m *ItemNotInStore) Apply(snap *Snapshot) {
	snap.upsertAssociation(m.Item, m.Store, false, nil)
}

func (m *ItemNotInStore) Send(ctx context.Context, rc RemoteClient) (MutationResult, error) {
	return rc.Mutate(ctx, "item-not-in-store", m)
}

func (m *ItemNotInStore) Confirm(snap *Snapshot, _ MutationResult) { m.Apply(snap) }

// ItemOn / ItemOff

type ItemOn struct {
	Item int64 `json:"item"`
}

func (m *ItemOn) Describe() string { return fmt.Sprintf("item %d onto list", m.Item) }

func (m *ItemOn) Redundant(snap *Snapshot) bool {
	it, ok := snap.Item(m.Item)
	return ok && it.OnList
}

func (m *ItemOn) Apply(snap *Snapshot) {
	for i := range snap.Items {
		if snap.Items[i].ID == m.Item {
			snap.Items[i].OnList = true
		}
	}
}

func (m *ItemOn) Send(ctx context.Context, rc RemoteClient) (MutationResult, error) {
	return rc.Mutate(ctx, "item-on", m)
}

func (m *ItemOn) Confirm(snap *Snapshot, _ MutationResult) { m.Apply(snap) }

type ItemOff struct {
	Item int64 `json:"item"`
}

func (m *ItemOff) Describe() string { return fmt.Sprintf("item %d off list", m.Item) }

func (m *ItemOff) Redundant(snap *Snapshot) bool {
	it, ok := snap.Item(m.Item)
	return ok && !it.OnList
}

func (m *ItemOff) Apply(snap *Snapshot) {
	for i := range snap.Items {
		if snap.Items[i].ID == m.Item {
			snap.Items[i].OnList = false
		}
	}
}

func (m *ItemOff) Send(ctx context.Context, rc RemoteClient) (MutationResult, error) {
	return rc.Mutate(ctx, "item-off", m)
}

func (m *ItemOff) Confirm(snap *Snapshot, _ MutationResult) { m.Apply(snap) }

// RenameItem

type RenameItem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func NewRenameItem(id int64, name string) *RenameItem {
	return &RenameItem{ID: id, Name: strings.TrimSpace(name)}
}

func (m *RenameItem) Describe() string { return fmt.Sprintf("rename item %d to %q", m.ID, m.Name) }

func (m *RenameItem) Redundant(snap *Snapshot) bool {
	it, ok := snap.Item(m.ID)
	return ok && it.Name == m.Name
}

func (m *RenameItem) Apply(snap *Snapshot) {
	for i := range snap.Items {
		if snap.Items[i].ID == m.ID {
			snap.Items[i].Name = m.Name
		}
	}
}

func (m *RenameItem) Send(ctx context.Context, rc RemoteClient) (MutationResult, error) {
	return rc.Mutate(ctx, "rename-item", m)
}

func (m *RenameItem) Confirm(snap *Snapshot, _ MutationResult) { m.Apply(snap) }

// RenameStore

type RenameStore struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func NewRenameStore(id int64, name string) *RenameStore {
	return &RenameStore{ID: id, Name: strings.TrimSpace(name)}
}

func (m *RenameStore) Describe() string { return fmt.Sprintf("rename store %d to %q", m.ID, m.Name) }

func (m *RenameStore) Redundant(snap *Snapshot) bool {
	st, ok := snap.Store(m.ID)
	return ok && st.Name == m.Name
}

func (m *RenameStore) Apply(snap *Snapshot) {
	for i := range snap.Stores {
		if snap.Stores[i].ID == m.ID {
			snap.Stores[i].Name = m.Name
		}
	}
}

func (m *RenameStore) Send(ctx context.Context, rc RemoteClient) (MutationResult, error) {
	return rc.Mutate(ctx, "rename-store", m)
}

func (m *RenameStore) Confirm(snap *Snapshot, _ MutationResult) { m.Apply(snap) }

// RenameSection

type RenameSection struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func NewRenameSection(id int64, name string) *RenameSection {
	return &RenameSection{ID: id, Name: strings.TrimSpace(name)}
}

func (m *RenameSection) Describe() string {
	return fmt.Sprintf("rename section %d to %q", m.ID, m.Name)
}

func (m *RenameSection) Redundant(snap *Snapshot) bool {
	sec, ok := snap.Section(m.ID)
	return ok && sec.Name == m.Name
}

func (m *RenameSection) Apply(snap *Snapshot) {
	for i := range snap.Sections {
		if snap.Sections[i].ID == m.ID {
			snap.Sections[i].Name = m.Name
		}
	}
}

func (m *RenameSection) Send(ctx context.Context, rc RemoteClient) (MutationResult, error) {
	return rc.Mutate(ctx, "rename-section", m)
}

func (m *RenameSection) Confirm(snap *Snapshot, _ MutationResult) { m.Apply(snap) }

// ReorderSections

type ReorderSections struct {
	Store    int64   `json:"store"`
	Sections []int64 `json:"sections"`
}

func (m *ReorderSections) Describe() string {
	return fmt.Sprintf("reorder sections of store %d", m.Store)
}

func (m *ReorderSections) Redundant(snap *Snapshot) bool {
	current := snap.StoreSections(m.Store)
	if len(current) != len(m.Sections) {
		return false
	}
	for i, sec := range current {
		if sec.ID != m.Sections[i] {
			return false
		}
	}
	return true
}

func (m *ReorderSections) Apply(snap *Snapshot) {
	position := map[int64]int64{}
	for i, id := range m.Sections {
		position[id] = int64(i)
	}
	for i := range snap.Sections {
		if snap.Sections[i].Store != m.Store {
			continue
		}
		if p, ok := position[snap.Sections[i].ID]; ok {
			snap.Sections[i].Position = p
		}
	}
}

func (m *ReorderSections) Send(ctx context.Context, rc RemoteClient) (MutationResult, error) {
	return rc.Mutate(ctx, "reorder-sections", m)
}

func (m *ReorderSections) Confirm(snap *Snapshot, _ MutationResult) { m.Apply(snap) }
