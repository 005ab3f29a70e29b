package listsync

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestApplyItemInStoreUpsertsAssociation(t *testing.T) {
	snap := confirmedFixture(5)
	section := int64(1)

	// Existing association: the section moves.
	(&ItemInStore{Item: 1, Store: 1, Section: nil}).Apply(snap)
	is, ok := snap.Association(1, 1)
	assert.Equal(t, ok, true)
	assert.Equal(t, is.Sold, true)
	assert.Equal(t, is.Section, (*int64)(nil))

	// New association for an item with none.
	(&ItemInStore{Item: 2, Store: 1, Section: &section}).Apply(snap)
	is, ok = snap.Association(2, 1)
	assert.Equal(t, ok, true)
	assert.Equal(t, *is.Section, int64(1))
	assert.Equal(t, len(snap.ItemStores), 2)
}

func TestApplyItemNotInStoreClearsSoldAndSection(t *testing.T) {
	snap := confirmedFixture(5)
	(&ItemNotInStore{Item: 1, Store: 1}).Apply(snap)
	is, ok := snap.Association(1, 1)
	assert.Equal(t, ok, true)
	assert.Equal(t, is.Sold, false)
	assert.Equal(t, is.Section, (*int64)(nil))
}

func TestApplyDeleteStoreCascades(t *testing.T) {
	snap := confirmedFixture(5)
	(&DeleteStore{ID: 1}).Apply(snap)
	assert.Equal(t, len(snap.Stores), 0)
	assert.Equal(t, len(snap.Sections), 0)
	assert.Equal(t, len(snap.ItemStores), 0)
	assert.Equal(t, len(snap.Items), 2)
}

func TestApplyDeleteSectionKeepsAssociation(t *testing.T) {
	snap := confirmedFixture(5)
	(&DeleteSection{ID: 1}).Apply(snap)
	assert.Equal(t, len(snap.Sections), 0)
	is, ok := snap.Association(1, 1)
	assert.Equal(t, ok, true)
	assert.Equal(t, is.Section, (*int64)(nil))
}

func TestApplyDeleteItemRemovesAssociations(t *testing.T) {
	snap := confirmedFixture(5)
	(&DeleteItem{ID: 1}).Apply(snap)
	assert.Equal(t, len(snap.Items), 1)
	assert.Equal(t, len(snap.ItemStores), 0)
}

func TestApplyReorderSections(t *testing.T) {
	snap := confirmedFixture(5)
	snap.Sections = append(snap.Sections,
		Section{ID: 2, Store: 1, Position: 1, Name: "Bakery"},
		Section{ID: 3, Store: 1, Position: 2, Name: "Produce"},
	)

	(&ReorderSections{Store: 1, Sections: []int64{3, 1, 2}}).Apply(snap)
	ordered := snap.StoreSections(1)
	assert.Equal(t, ordered[0].ID, int64(3))
	assert.Equal(t, ordered[1].ID, int64(1))
	assert.Equal(t, ordered[2].ID, int64(2))
}

func TestReorderRedundantWhenOrderUnchanged(t *testing.T) {
	snap := confirmedFixture(5)
	snap.Sections = append(snap.Sections, Section{ID: 2, Store: 1, Position: 1, Name: "Bakery"})

	assert.Equal(t, (&ReorderSections{Store: 1, Sections: []int64{1, 2}}).Redundant(snap), true)
	assert.Equal(t, (&ReorderSections{Store: 1, Sections: []int64{2, 1}}).Redundant(snap), false)
}

func TestConfirmCreateItemUsesAssignedID(t *testing.T) {
	snap := confirmedFixture(5)
	store := int64(1)
	m := NewCreateItem("  Butter ", true, &store)

	// Optimistic application shows nothing: there is no id yet.
	before := len(snap.Items)
	m.Apply(snap)
	assert.Equal(t, len(snap.Items), before)

	m.Confirm(snap, MutationResult{DataVersion: 6, ID: 42})
	it, ok := snap.Item(42)
	assert.Equal(t, ok, true)
	assert.Equal(t, it.Name, "Butter")
	assert.Equal(t, it.OnList, true)
	is, ok := snap.Association(42, 1)
	assert.Equal(t, ok, true)
	assert.Equal(t, is.Sold, true)
}

func TestConfirmCreateSectionUsesAssignedPosition(t *testing.T) {
	snap := confirmedFixture(5)
	m := NewCreateSection(1, "Frozen")
	m.Confirm(snap, MutationResult{DataVersion: 6, ID: 7, Position: 1})

	sec, ok := snap.Section(7)
	assert.Equal(t, ok, true)
	assert.Equal(t, sec.Store, int64(1))
	assert.Equal(t, sec.Position, int64(1))
	assert.Equal(t, sec.Name, "Frozen")
}
