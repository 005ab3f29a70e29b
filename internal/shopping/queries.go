package shopping

type queryKey int

const (
	queryBumpDataVersion queryKey = iota
	queryDeleteItem
	queryDeleteSection
	queryDeleteStore
	queryExistsItemByID
	queryExistsItemByName
	queryExistsSectionByStoreAndID
	queryExistsStoreByID
	queryExistsStoreByName
	queryGetDataVersion
	queryGetItemStores
	queryGetItems
	queryGetSectionIDsByStore
	queryGetSections
	queryGetStores
	queryInsertItem
	queryInsertSection
	queryInsertStore
	queryItemOffList
	queryItemOnList
	queryUpdateItemName
	queryUpdateSectionName
	queryUpdateSectionPosition
	queryUpdateStoreName
	queryUpsertItemStore
)

// Each dialect carries its own query text. The statements are small enough
// that keeping two full sets is clearer than a placeholder-rewriting layer.
var sqliteQueries = map[queryKey]string{
	queryBumpDataVersion:           "UPDATE data_version SET version = version + 1 RETURNING version",
	queryDeleteItem:                "DELETE FROM items WHERE id = ?",
	queryDeleteSection:             "DELETE FROM sections WHERE id = ?",
	queryDeleteStore:               "DELETE FROM stores WHERE id = ?",
	queryExistsItemByID:            "SELECT EXISTS (SELECT 1 FROM items WHERE id = ?)",
	queryExistsItemByName:          "SELECT EXISTS (SELECT 1 FROM items WHERE name = ?)",
	queryExistsSectionByStoreAndID: "SELECT EXISTS (SELECT 1 FROM sections WHERE store = ? AND id = ?)",
	queryExistsStoreByID:           "SELECT EXISTS (SELECT 1 FROM stores WHERE id = ?)",
	queryExistsStoreByName:         "SELECT EXISTS (SELECT 1 FROM stores WHERE name = ?)",
	queryGetDataVersion:            "SELECT version FROM data_version",
	queryGetItemStores:             "SELECT item, store, sold, section FROM item_stores",
	queryGetItems:                  "SELECT id, name, on_list FROM items",
	queryGetSectionIDsByStore:      "SELECT id FROM sections WHERE store = ? ORDER BY id",
	queryGetSections:               "SELECT id, store, position, name FROM sections",
	queryGetStores:                 "SELECT id, name FROM stores",
	queryInsertItem:                "INSERT INTO items (name, on_list) VALUES (?, ?) RETURNING id",
	queryInsertSection:             "INSERT INTO sections (store, position, name) VALUES (?, COALESCE((SELECT MAX(position) + 1 FROM sections WHERE store = ?), 0), ?) RETURNING id, position",
	queryInsertStore:               "INSERT INTO stores (name) VALUES (?) RETURNING id",
	queryItemOffList:               "UPDATE items SET on_list = 0 WHERE id = ?",
	queryItemOnList:                "UPDATE items SET on_list = 1 WHERE id = ?",
	queryUpdateItemName:            "UPDATE items SET name = ? WHERE id = ?",
	queryUpdateSectionName:         "UPDATE sections SET name = ? WHERE id = ?",
	queryUpdateSectionPosition:     "UPDATE sections SET position = ? WHERE id = ? AND store = ?",
	queryUpdateStoreName:           "UPDATE stores SET name = ? WHERE id = ?",
	queryUpsertItemStore:           "INSERT INTO item_stores (item, store, sold, section) VALUES (?, ?, ?, ?) ON CONFLICT (item, store) DO UPDATE SET sold = excluded.sold, section = excluded.section",
}

var postgresQueries = map[queryKey]string{
	queryBumpDataVersion:           "UPDATE data_version SET version = version + 1 RETURNING version",
	queryDeleteItem:                "DELETE FROM items WHERE id = $1",
	queryDeleteSection:             "DELETE FROM sections WHERE id = $1",
	queryDeleteStore:               "DELETE FROM stores WHERE id = $1",
	queryExistsItemByID:            "SELECT EXISTS (SELECT 1 FROM items WHERE id = $1)",
	queryExistsItemByName:          "SELECT EXISTS (SELECT 1 FROM items WHERE name = $1)",
	queryExistsSectionByStoreAndID: "SELECT EXISTS (SELECT 1 FROM sections WHERE store = $1 AND id = $2)",
	queryExistsStoreByID:           "SELECT EXISTS (SELECT 1 FROM stores WHERE id = $1)",
	queryExistsStoreByName:         "SELECT EXISTS (SELECT 1 FROM stores WHERE name = $1)",
	queryGetDataVersion:            "SELECT version FROM data_version",
	queryGetItemStores:             "SELECT item, store, sold, section FROM item_stores",
	queryGetItems:                  "SELECT id, name, on_list FROM items",
	queryGetSectionIDsByStore:      "SELECT id FROM sections WHERE store = $1 ORDER BY id",
	queryGetSections:               "SELECT id, store, position, name FROM sections",
	queryGetStores:                 "SELECT id, name FROM stores",
	queryInsertItem:                "INSERT INTO items (name, on_list) VALUES ($1, $2) RETURNING id",
	queryInsertSection:             "INSERT INTO sections (store, position, name) VALUES ($1, COALESCE((SELECT MAX(position) + 1 FROM sections WHERE store = $2), 0), $3) RETURNING id, position",
	queryInsertStore:               "INSERT INTO stores (name) VALUES ($1) RETURNING id",
	queryItemOffList:               "UPDATE items SET on_list = FALSE WHERE id = $1",
	queryItemOnList:                "UPDATE items SET on_list = TRUE WHERE id = $1",
	queryUpdateItemName:            "UPDATE items SET name = $1 WHERE id = $2",
	queryUpdateSectionName:         "UPDATE sections SET name = $1 WHERE id = $2",
	queryUpdateSectionPosition:     "UPDATE sections SET position = $1 WHERE id = $2 AND store = $3",
	queryUpdateStoreName:           "UPDATE stores SET name = $1 WHERE id = $2",
	queryUpsertItemStore:           "INSERT INTO item_stores (item, store, sold, section) VALUES ($1, $2, $3, $4) ON CONFLICT (item, store) DO UPDATE SET sold = EXCLUDED.sold, section = EXCLUDED.section",
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		on_list INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS stores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS sections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		store INTEGER NOT NULL REFERENCES stores (id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS item_stores (
		item INTEGER NOT NULL REFERENCES items (id) ON DELETE CASCADE,
		store INTEGER NOT NULL REFERENCES stores (id) ON DELETE CASCADE,
		sold INTEGER NOT NULL,
		section INTEGER REFERENCES sections (id) ON DELETE SET NULL,
		PRIMARY KEY (item, store)
	)`,
	`CREATE TABLE IF NOT EXISTS data_version (version INTEGER NOT NULL)`,
	`INSERT INTO data_version (version) SELECT 0 WHERE NOT EXISTS (SELECT 1 FROM data_version)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		on_list BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS stores (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS sections (
		id BIGSERIAL PRIMARY KEY,
		store BIGINT NOT NULL REFERENCES stores (id) ON DELETE CASCADE,
		position BIGINT NOT NULL,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS item_stores (
		item BIGINT NOT NULL REFERENCES items (id) ON DELETE CASCADE,
		store BIGINT NOT NULL REFERENCES stores (id) ON DELETE CASCADE,
		sold BOOLEAN NOT NULL,
		section BIGINT REFERENCES sections (id) ON DELETE SET NULL,
		PRIMARY KEY (item, store)
	)`,
	`CREATE TABLE IF NOT EXISTS data_version (version BIGINT NOT NULL)`,
	`INSERT INTO data_version (version) SELECT 0 WHERE NOT EXISTS (SELECT 1 FROM data_version)`,
}
