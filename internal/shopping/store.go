package shopping

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type dialect struct {
	name    string
	driver  string
	queries map[queryKey]string
	schema  []string
	// setup statements run once per connection pool, before the schema.
	setup []string
}

var sqliteDialect = dialect{
	name:    "sqlite",
	driver:  "sqlite",
	queries: sqliteQueries,
	schema:  sqliteSchema,
	setup: []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	},
}

var postgresDialect = dialect{
	name:    "postgres",
	driver:  "postgres",
	queries: postgresQueries,
	schema:  postgresSchema,
}

// DialectFactory resolves a DSN to a dialect and driver DSN. Factories can
// be registered for additional schemes; the built-in set covers sqlite
// files and postgres URLs.
type DialectFactory func(dsn string) (dialect, string, error)

var dialectRegistry = struct {
	mu        sync.RWMutex
	factories map[string]DialectFactory
}{
	factories: map[string]DialectFactory{},
}

func RegisterDialectFactory(scheme string, factory DialectFactory) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme == "" || factory == nil {
		return
	}
	dialectRegistry.mu.Lock()
	defer dialectRegistry.mu.Unlock()
	dialectRegistry.factories[scheme] = factory
}

func lookupDialectFactory(scheme string) (DialectFactory, bool) {
	dialectRegistry.mu.RLock()
	defer dialectRegistry.mu.RUnlock()
	factory, ok := dialectRegistry.factories[strings.ToLower(strings.TrimSpace(scheme))]
	return factory, ok
}

func resolveDialect(dsn string) (dialect, string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return dialect{}, "", fmt.Errorf("%w: empty dsn", ErrInvalidInput)
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		// Not a URL; treat as a sqlite file path.
		return sqliteDialect, dsn, nil
	}
	scheme := strings.ToLower(strings.TrimSpace(parsed.Scheme))
	if factory, ok := lookupDialectFactory(scheme); ok {
		return factory(dsn)
	}
	switch scheme {
	case "":
		return sqliteDialect, dsn, nil
	case "file", "sqlite":
		path := strings.TrimSpace(parsed.Path)
		if path == "" {
			path = strings.TrimSpace(parsed.Opaque)
		}
		if path == "" {
			path = strings.TrimSpace(parsed.Host)
		}
		if path == "" {
			return dialect{}, "", fmt.Errorf("%w: dsn %q has no path", ErrInvalidInput, dsn)
		}
		return sqliteDialect, path, nil
	case "memory", "mem", "inmem":
		return sqliteDialect, ":memory:", nil
	case "postgres", "postgresql":
		return postgresDialect, dsn, nil
	default:
		return dialect{}, "", fmt.Errorf("unsupported store scheme: %s", scheme)
	}
}

// SQLStore is the single source of truth. Every mutating operation runs in
// one transaction that ends by bumping the data version; the bump and the
// row changes are never observable separately.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	stmts   map[queryKey]*sql.Stmt
}

// Open opens (and if necessary creates) the store behind dsn.
func Open(dsn string) (*SQLStore, error) {
	d, driverDSN, err := resolveDialect(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driver, driverDSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", d.name, err)
	}
	if d.name == "sqlite" {
		// One connection, never closed when idle. Serializing all writers
		// through a single connection avoids busy-retry loops; every query
		// here is small and fast, so that costs nothing. It also means the
		// per-connection pragmas only need to be set once.
		db.SetConnMaxLifetime(0)
		db.SetMaxIdleConns(1)
		db.SetMaxOpenConns(1)
	}
	store := &SQLStore{db: db, dialect: d, stmts: map[queryKey]*sql.Stmt{}}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) init() error {
	for _, stmt := range s.dialect.setup {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store setup: %w", err)
		}
	}
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store schema: %w", err)
		}
	}
	for key, query := range s.dialect.queries {
		stmt, err := s.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("preparing %q: %w", query, err)
		}
		s.stmts[key] = stmt
	}
	return nil
}

func (s *SQLStore) Close() error {
	for _, stmt := range s.stmts {
		_ = stmt.Close()
	}
	return s.db.Close()
}

// Version reads the current data version outside any transaction.
func (s *SQLStore) Version(ctx context.Context) (int64, error) {
	var version int64
	err := s.stmts[queryGetDataVersion].QueryRowContext(ctx).Scan(&version)
	return version, err
}

// Snapshot reads the entire data set in one transaction. If ifVersion is
// non-negative and equals the current version, Snapshot returns
// (nil, version, nil) without reading the tables.
func (s *SQLStore) Snapshot(ctx context.Context, ifVersion int64) (*Snapshot, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback()

	var version int64
	err = tx.StmtContext(ctx, s.stmts[queryGetDataVersion]).QueryRowContext(ctx).Scan(&version)
	if err != nil {
		return nil, 0, err
	}
	if ifVersion >= 0 && ifVersion == version {
		return nil, version, nil
	}

	snap := &Snapshot{
		DataVersion: version,
		Items:       []Item{},
		Stores:      []Store{},
		Sections:    []Section{},
		ItemStores:  []ItemStore{},
	}

	rows, err := tx.StmtContext(ctx, s.stmts[queryGetItems]).QueryContext(ctx)
	if err != nil {
		return nil, 0, err
	}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.Name, &item.OnList); err != nil {
			rows.Close()
			return nil, 0, err
		}
		snap.Items = append(snap.Items, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, err
	}
	rows.Close()

	rows, err = tx.StmtContext(ctx, s.stmts[queryGetStores]).QueryContext(ctx)
	if err != nil {
		return nil, 0, err
	}
	for rows.Next() {
		var store Store
		if err := rows.Scan(&store.ID, &store.Name); err != nil {
			rows.Close()
			return nil, 0, err
		}
		snap.Stores = append(snap.Stores, store)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, err
	}
	rows.Close()

	rows, err = tx.StmtContext(ctx, s.stmts[queryGetSections]).QueryContext(ctx)
	if err != nil {
		return nil, 0, err
	}
	for rows.Next() {
		var section Section
		if err := rows.Scan(&section.ID, &section.Store, &section.Position, &section.Name); err != nil {
			rows.Close()
			return nil, 0, err
		}
		snap.Sections = append(snap.Sections, section)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, err
	}
	rows.Close()

	rows, err = tx.StmtContext(ctx, s.stmts[queryGetItemStores]).QueryContext(ctx)
	if err != nil {
		return nil, 0, err
	}
	for rows.Next() {
		var itemStore ItemStore
		if err := rows.Scan(&itemStore.Item, &itemStore.Store, &itemStore.Sold, &itemStore.Section); err != nil {
			rows.Close()
			return nil, 0, err
		}
		snap.ItemStores = append(snap.ItemStores, itemStore)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, err
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	return snap, version, nil
}

// Transaction-scoped query helpers.

func (s *SQLStore) txExec(ctx context.Context, tx *sql.Tx, key queryKey, args ...any) (sql.Result, error) {
	return tx.StmtContext(ctx, s.stmts[key]).ExecContext(ctx, args...)
}

func (s *SQLStore) txBool(ctx context.Context, tx *sql.Tx, key queryKey, args ...any) (bool, error) {
	var x bool
	err := tx.StmtContext(ctx, s.stmts[key]).QueryRowContext(ctx, args...).Scan(&x)
	return x, err
}

func (s *SQLStore) txInt64(ctx context.Context, tx *sql.Tx, key queryKey, args ...any) (int64, error) {
	var x int64
	err := tx.StmtContext(ctx, s.stmts[key]).QueryRowContext(ctx, args...).Scan(&x)
	return x, err
}

func (s *SQLStore) bumpDataVersion(ctx context.Context, tx *sql.Tx) (int64, error) {
	return s.txInt64(ctx, tx, queryBumpDataVersion)
}
