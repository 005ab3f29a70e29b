package shopping

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// The mutation executor. Each operation runs in one all-or-nothing
// transaction whose final act is bumping the data version; precondition
// failures roll back without a bump and surface as ErrConflict.

func validName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidInput)
	}
	return name, nil
}

// CreateItem creates a new item, optionally recording it as sold at a
// store. Returns the new item id and the resulting data version.
func (s *SQLStore) CreateItem(ctx context.Context, name string, onList bool, storeID *int64) (int64, int64, error) {
	name, err := validName(name)
	if err != nil {
		return 0, 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	exists, err := s.txBool(ctx, tx, queryExistsItemByName, name)
	if err != nil {
		return 0, 0, err
	}
	if exists {
		return 0, 0, &ConflictError{Op: "create-item", Detail: "name already exists"}
	}

	itemID, err := s.txInt64(ctx, tx, queryInsertItem, name, onList)
	if err != nil {
		return 0, 0, err
	}
	if storeID != nil {
		storeExists, err := s.txBool(ctx, tx, queryExistsStoreByID, *storeID)
		if err != nil {
			return 0, 0, err
		}
		if !storeExists {
			return 0, 0, &ConflictError{Op: "create-item", Detail: "no such store"}
		}
		if _, err := s.txExec(ctx, tx, queryUpsertItemStore, itemID, *storeID, true, nil); err != nil {
			return 0, 0, err
		}
	}

	version, err := s.bumpDataVersion(ctx, tx)
	if err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return itemID, version, nil
}

// CreateStore creates a new store, optionally recording it as selling an
// item.
func (s *SQLStore) CreateStore(ctx context.Context, name string, itemID *int64) (int64, int64, error) {
	name, err := validName(name)
	if err != nil {
		return 0, 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	exists, err := s.txBool(ctx, tx, queryExistsStoreByName, name)
	if err != nil {
		return 0, 0, err
	}
	if exists {
		return 0, 0, &ConflictError{Op: "create-store", Detail: "name already exists"}
	}

	storeID, err := s.txInt64(ctx, tx, queryInsertStore, name)
	if err != nil {
		return 0, 0, err
	}
	if itemID != nil {
		itemExists, err := s.txBool(ctx, tx, queryExistsItemByID, *itemID)
		if err != nil {
			return 0, 0, err
		}
		if !itemExists {
			return 0, 0, &ConflictError{Op: "create-store", Detail: "no such item"}
		}
		if _, err := s.txExec(ctx, tx, queryUpsertItemStore, *itemID, storeID, true, nil); err != nil {
			return 0, 0, err
		}
	}

	version, err := s.bumpDataVersion(ctx, tx)
	if err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return storeID, version, nil
}

// CreateSection appends a new section at the end of the store's order.
// Returns the new section id, its position, and the data version.
func (s *SQLStore) CreateSection(ctx context.Context, storeID int64, name string) (int64, int64, int64, error) {
	name, err := validName(name)
	if err != nil {
		return 0, 0, 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, 0, err
	}
	defer tx.Rollback()

	storeExists, err := s.txBool(ctx, tx, queryExistsStoreByID, storeID)
	if err != nil {
		return 0, 0, 0, err
	}
	if !storeExists {
		return 0, 0, 0, &ConflictError{Op: "create-section", Detail: "no such store"}
	}

	var sectionID, position int64
	err = tx.StmtContext(ctx, s.stmts[queryInsertSection]).
		QueryRowContext(ctx, storeID, storeID, name).
		Scan(&sectionID, &position)
	if err != nil {
		return 0, 0, 0, err
	}

	version, err := s.bumpDataVersion(ctx, tx)
	if err != nil {
		return 0, 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, 0, err
	}
	return sectionID, position, version, nil
}

func (s *SQLStore) deleteByID(ctx context.Context, op string, key queryKey, id int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := s.txExec(ctx, tx, key, id)
	if err != nil {
		return 0, err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return 0, &ConflictError{Op: op, Detail: "no such id"}
	}

	version, err := s.bumpDataVersion(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

// DeleteItem removes an item; its item_stores rows go with it.
func (s *SQLStore) DeleteItem(ctx context.Context, id int64) (int64, error) {
	return s.deleteByID(ctx, "delete-item", queryDeleteItem, id)
}

// DeleteStore removes a store along with its sections and item_stores rows.
func (s *SQLStore) DeleteStore(ctx context.Context, id int64) (int64, error) {
	return s.deleteByID(ctx, "delete-store", queryDeleteStore, id)
}

// DeleteSection removes a section; item_stores rows pointing at it keep
// their store association with a null section.
func (s *SQLStore) DeleteSection(ctx context.Context, id int64) (int64, error) {
	return s.deleteByID(ctx, "delete-section", queryDeleteSection, id)
}

// ItemInStore records that an item is sold at a store, optionally in a
// specific section of that store.
func (s *SQLStore) ItemInStore(ctx context.Context, itemID, storeID int64, sectionID *int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	itemExists, err := s.txBool(ctx, tx, queryExistsItemByID, itemID)
	if err != nil {
		return 0, err
	}
	if !itemExists {
		return 0, &ConflictError{Op: "item-in-store", Detail: "no such item"}
	}
	if sectionID == nil {
		storeExists, err := s.txBool(ctx, tx, queryExistsStoreByID, storeID)
		if err != nil {
			return 0, err
		}
		if !storeExists {
			return 0, &ConflictError{Op: "item-in-store", Detail: "no such store"}
		}
	} else {
		// The section must exist and belong to this store.
		sectionExists, err := s.txBool(ctx, tx, queryExistsSectionByStoreAndID, storeID, *sectionID)
		if err != nil {
			return 0, err
		}
		if !sectionExists {
			return 0, &ConflictError{Op: "item-in-store", Detail: "no such section in store"}
		}
	}

	if _, err := s.txExec(ctx, tx, queryUpsertItemStore, itemID, storeID, true, sectionID); err != nil {
		return 0, err
	}

	version, err := s.bumpDataVersion(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

// ItemNotInStore records that an item is not sold at a store.
func (s *SQLStore) ItemNotInStore(ctx context.Context, itemID, storeID int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	itemExists, err := s.txBool(ctx, tx, queryExistsItemByID, itemID)
	if err != nil {
		return 0, err
	}
	if !itemExists {
		return 0, &ConflictError{Op: "item-not-in-store", Detail: "no such item"}
	}
	storeExists, err := s.txBool(ctx, tx, queryExistsStoreByID, storeID)
	if err != nil {
		return 0, err
	}
	if !storeExists {
		return 0, &ConflictError{Op: "item-not-in-store", Detail: "no such store"}
	}

	if _, err := s.txExec(ctx, tx, queryUpsertItemStore, itemID, storeID, false, nil); err != nil {
		return 0, err
	}

	version, err := s.bumpDataVersion(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

func (s *SQLStore) setOnList(ctx context.Context, op string, key queryKey, itemID int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := s.txExec(ctx, tx, key, itemID)
	if err != nil {
		return 0, err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return 0, &ConflictError{Op: op, Detail: "no such item"}
	}

	version, err := s.bumpDataVersion(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

// ItemOnList moves an item onto the shopping list.
func (s *SQLStore) ItemOnList(ctx context.Context, itemID int64) (int64, error) {
	return s.setOnList(ctx, "item-on", queryItemOnList, itemID)
}

// ItemOffList moves an item off the shopping list.
func (s *SQLStore) ItemOffList(ctx context.Context, itemID int64) (int64, error) {
	return s.setOnList(ctx, "item-off", queryItemOffList, itemID)
}

// RenameItem renames an item. Renaming to any name already in use is a
// conflict, including the item's own current name.
func (s *SQLStore) RenameItem(ctx context.Context, id int64, name string) (int64, error) {
	name, err := validName(name)
	if err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	exists, err := s.txBool(ctx, tx, queryExistsItemByName, name)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, &ConflictError{Op: "rename-item", Detail: "name already exists"}
	}
	if _, err := s.txExec(ctx, tx, queryUpdateItemName, name, id); err != nil {
		return 0, err
	}

	version, err := s.bumpDataVersion(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

// RenameStore renames a store, with the same already-in-use conflict rule
// as RenameItem.
func (s *SQLStore) RenameStore(ctx context.Context, id int64, name string) (int64, error) {
	name, err := validName(name)
	if err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	exists, err := s.txBool(ctx, tx, queryExistsStoreByName, name)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, &ConflictError{Op: "rename-store", Detail: "name already exists"}
	}
	if _, err := s.txExec(ctx, tx, queryUpdateStoreName, name, id); err != nil {
		return 0, err
	}

	version, err := s.bumpDataVersion(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

// RenameSection renames a section. Section names are not unique, so the
// only conflict is a missing section.
func (s *SQLStore) RenameSection(ctx context.Context, id int64, name string) (int64, error) {
	name, err := validName(name)
	if err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := s.txExec(ctx, tx, queryUpdateSectionName, name, id)
	if err != nil {
		return 0, err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return 0, &ConflictError{Op: "rename-section", Detail: "no such section"}
	}

	version, err := s.bumpDataVersion(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

// ReorderSections assigns positions 0..n-1 in the submitted order. The
// submitted ids must be exactly the store's current section ids, as a set;
// anything else is a conflict and no positions change.
func (s *SQLStore) ReorderSections(ctx context.Context, storeID int64, sectionIDs []int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.StmtContext(ctx, s.stmts[queryGetSectionIDsByStore]).QueryContext(ctx, storeID)
	if err != nil {
		return 0, err
	}
	var current []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		current = append(current, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	if !slices.Equal(current, slices.Sorted(slices.Values(sectionIDs))) {
		return 0, &ConflictError{Op: "reorder-sections", Detail: "section set mismatch"}
	}

	for position, sectionID := range sectionIDs {
		if _, err := s.txExec(ctx, tx, queryUpdateSectionPosition, int64(position), sectionID, storeID); err != nil {
			return 0, err
		}
	}

	version, err := s.bumpDataVersion(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}
