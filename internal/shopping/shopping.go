package shopping

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// ConflictError reports a precondition failure inside a mutation
// transaction: a duplicate name, a stale or unknown id, or a reorder
// request whose section set does not match the store's.
type ConflictError struct {
	Op     string
	Detail string
}

func (e *ConflictError) Error() string {
	if e.Detail == "" {
		return e.Op + ": conflict"
	}
	return e.Op + ": conflict: " + e.Detail
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

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

// ItemStore records whether an item is sold at a store, and optionally in
// which section. Sold false implies a null section.
type ItemStore struct {
	Item    int64  `json:"item"`
	Store   int64  `json:"store"`
	Sold    bool   `json:"sold"`
	Section *int64 `json:"section"`
}

// Snapshot is the full data set as of DataVersion. A snapshot is read in a
// single transaction, so the version and the rows are always consistent
// with each other.
type Snapshot struct {
	DataVersion int64       `json:"data_version"`
	Items       []Item      `json:"items"`
	Stores      []Store     `json:"stores"`
	Sections    []Section   `json:"sections"`
	ItemStores  []ItemStore `json:"item_stores"`
}
