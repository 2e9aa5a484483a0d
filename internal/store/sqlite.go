package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/greenatlas/compliance-assistant/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for local
// development and tests; Postgres is the production backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS states (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS brands (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS products (
	id       TEXT PRIMARY KEY,
	brand_id TEXT NOT NULL REFERENCES brands(id),
	name     TEXT NOT NULL,
	UNIQUE (brand_id, name)
);

CREATE TABLE IF NOT EXISTS state_brand_products (
	id         TEXT PRIMARY KEY,
	state_id   TEXT NOT NULL REFERENCES states(id),
	brand_id   TEXT NOT NULL REFERENCES brands(id),
	product_id TEXT NOT NULL REFERENCES products(id),
	details    TEXT,
	UNIQUE (state_id, brand_id, product_id)
);

CREATE TABLE IF NOT EXISTS knowledge_entries (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	tags       TEXT NOT NULL DEFAULT '[]',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS drive_files (
	id            TEXT PRIMARY KEY,
	file_name     TEXT NOT NULL,
	file_url      TEXT,
	mime_type     TEXT NOT NULL,
	brand         TEXT,
	category      TEXT,
	subcategories TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_sbp_state_id ON state_brand_products(state_id);
CREATE INDEX IF NOT EXISTS idx_sbp_brand_id ON state_brand_products(brand_id);
CREATE INDEX IF NOT EXISTS idx_knowledge_updated_at ON knowledge_entries(updated_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) FindState(ctx context.Context, name string) (*StateRow, error) {
	return s.stateRow(ctx,
		`SELECT id, name FROM states WHERE lower(name) = lower(?) LIMIT 1`,
		name, "find state")
}

func (s *SQLiteStore) FindStateFuzzy(ctx context.Context, name string) (*StateRow, error) {
	return s.stateRow(ctx,
		`SELECT id, name FROM states WHERE lower(name) LIKE '%' || lower(?) || '%' ORDER BY name LIMIT 1`,
		name, "find state fuzzy")
}

func (s *SQLiteStore) stateRow(ctx context.Context, query, name, op string) (*StateRow, error) {
	var row StateRow
	err := s.db.QueryRowContext(ctx, query, name).Scan(&row.ID, &row.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s %s", op, name)
	}
	return &row, nil
}

func (s *SQLiteStore) FindBrands(ctx context.Context, name string) ([]BrandRow, error) {
	return s.brandRows(ctx,
		`SELECT id, name FROM brands WHERE lower(name) = lower(?) ORDER BY name`,
		name, "find brands")
}

func (s *SQLiteStore) FindBrandsFuzzy(ctx context.Context, name string) ([]BrandRow, error) {
	return s.brandRows(ctx,
		`SELECT id, name FROM brands WHERE lower(name) LIKE '%' || lower(?) || '%' ORDER BY name`,
		name, "find brands fuzzy")
}

func (s *SQLiteStore) brandRows(ctx context.Context, query, name, op string) ([]BrandRow, error) {
	rows, err := s.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s %s", op, name)
	}
	defer rows.Close()

	var out []BrandRow
	for rows.Next() {
		var b BrandRow
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, eris.Wrapf(err, "sqlite: %s scan", op)
		}
		out = append(out, b)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: %s rows", op)
}

func (s *SQLiteStore) QueryAllowList(ctx context.Context, filter AllowListFilter) ([]model.LegalityFact, error) {
	query := `SELECT s.name, b.name, p.name, COALESCE(a.details, '')
		FROM state_brand_products a
		JOIN states s ON s.id = a.state_id
		JOIN brands b ON b.id = a.brand_id
		JOIN products p ON p.id = a.product_id`

	var (
		clauses []string
		args    []any
	)
	if filter.StateID != "" {
		clauses = append(clauses, "a.state_id = ?")
		args = append(args, filter.StateID)
	}
	if len(filter.BrandIDs) > 0 {
		in := "a.brand_id IN ("
		for i, id := range filter.BrandIDs {
			if i > 0 {
				in += ", "
			}
			in += "?"
			args = append(args, id)
		}
		clauses = append(clauses, in+")")
	}
	if filter.ProductContains != "" {
		clauses = append(clauses, "lower(p.name) LIKE '%' || lower(?) || '%'")
		args = append(args, filter.ProductContains)
	}
	query += whereClause(clauses)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query allow list")
	}
	defer rows.Close()

	var facts []model.LegalityFact
	for rows.Next() {
		f := model.LegalityFact{IsLegal: true}
		if err := rows.Scan(&f.State, &f.Brand, &f.Product, &f.Details); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan allow list")
		}
		facts = append(facts, f)
	}
	return facts, eris.Wrap(rows.Err(), "sqlite: allow list rows")
}

func (s *SQLiteStore) SearchKnowledge(ctx context.Context, substring string, limit int) ([]model.KnowledgeEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, tags, updated_at FROM knowledge_entries
		 WHERE lower(title) LIKE '%' || lower(?) || '%' OR lower(content) LIKE '%' || lower(?) || '%'
		 ORDER BY updated_at DESC LIMIT ?`,
		substring, substring, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search knowledge")
	}
	defer rows.Close()

	var entries []model.KnowledgeEntry
	for rows.Next() {
		var (
			e    model.KnowledgeEntry
			tags string
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Content, &tags, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan knowledge")
		}
		if tags != "" {
			if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
				return nil, eris.Wrap(err, "sqlite: decode knowledge tags")
			}
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: knowledge rows")
}

const sqliteFileColumns = `id, file_name, COALESCE(file_url, ''), mime_type, COALESCE(brand, ''), COALESCE(category, ''), subcategories`

func (s *SQLiteStore) FileByID(ctx context.Context, id string) (*model.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteFileColumns+` FROM drive_files WHERE id = ?`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: file by id %s", id)
	}
	files, err := scanSQLiteFiles(rows)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: file by id %s", id)
	}
	if len(files) == 0 {
		return nil, nil
	}
	return &files[0], nil
}

func (s *SQLiteStore) FindBrandLogoFiles(ctx context.Context, brand string) ([]model.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteFileColumns+` FROM drive_files
		 WHERE lower(brand) = lower(?) AND lower(file_name) LIKE '%logo%'`,
		brand,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: brand logo files %s", brand)
	}
	files, err := scanSQLiteFiles(rows)
	return files, eris.Wrapf(err, "sqlite: brand logo files %s", brand)
}

func (s *SQLiteStore) SearchFiles(ctx context.Context, filter FileFilter) ([]model.FileRecord, error) {
	var (
		clauses []string
		args    []any
	)
	like := func(col, v string) {
		clauses = append(clauses, "lower("+col+") LIKE '%' || lower(?) || '%'")
		args = append(args, v)
	}
	for _, term := range filter.NameTerms {
		like("file_name", term)
	}
	if filter.Brand != "" {
		like("brand", filter.Brand)
	}
	if filter.Category != "" {
		like("category", filter.Category)
	}
	if filter.NameContains != "" {
		like("file_name", filter.NameContains)
	}
	if filter.MimeContains != "" {
		like("mime_type", filter.MimeContains)
	}
	if len(clauses) == 0 {
		return nil, nil
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteFileColumns+` FROM drive_files WHERE `+joinClauses(clauses, " OR ")+` LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search files")
	}
	files, err := scanSQLiteFiles(rows)
	return files, eris.Wrap(err, "sqlite: search files")
}

func (s *SQLiteStore) SeedFixture(ctx context.Context, fx *Fixture) error {
	stateIDs := map[string]string{}
	for _, name := range fx.States {
		id, err := s.upsertNamed(ctx, "states", name)
		if err != nil {
			return err
		}
		stateIDs[name] = id
	}

	brandIDs := map[string]string{}
	for _, name := range fx.Brands {
		id, err := s.upsertNamed(ctx, "brands", name)
		if err != nil {
			return err
		}
		brandIDs[name] = id
	}

	productIDs := map[string]string{}
	for _, p := range fx.Products {
		brandID, ok := brandIDs[p.Brand]
		if !ok {
			return eris.Errorf("sqlite: seed product %q references unknown brand %q", p.Name, p.Brand)
		}
		id := uuid.New().String()
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO products (id, brand_id, name) VALUES (?, ?, ?)
			 ON CONFLICT (brand_id, name) DO UPDATE SET name = excluded.name RETURNING id`,
			id, brandID, p.Name,
		).Scan(&id)
		if err != nil {
			return eris.Wrapf(err, "sqlite: seed product %s", p.Name)
		}
		productIDs[p.Brand+"/"+p.Name] = id
	}

	for _, row := range fx.AllowList {
		stateID, ok := stateIDs[row.State]
		if !ok {
			return eris.Errorf("sqlite: seed allow-list references unknown state %q", row.State)
		}
		brandID, ok := brandIDs[row.Brand]
		if !ok {
			return eris.Errorf("sqlite: seed allow-list references unknown brand %q", row.Brand)
		}
		productID, ok := productIDs[row.Brand+"/"+row.Product]
		if !ok {
			return eris.Errorf("sqlite: seed allow-list references unknown product %q", row.Product)
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO state_brand_products (id, state_id, brand_id, product_id, details) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (state_id, brand_id, product_id) DO UPDATE SET details = excluded.details`,
			uuid.New().String(), stateID, brandID, productID, row.Details,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: seed allow-list")
		}
	}

	for _, k := range fx.Knowledge {
		tags, err := json.Marshal(k.Tags)
		if err != nil {
			return eris.Wrap(err, "sqlite: encode knowledge tags")
		}
		updatedAt := k.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO knowledge_entries (id, title, content, tags, updated_at) VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), k.Title, k.Content, string(tags), updatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: seed knowledge %s", k.Title)
		}
	}

	for _, f := range fx.Files {
		subs := f.Subcategories
		if len(subs) > model.MaxSubcategories {
			subs = subs[:model.MaxSubcategories]
		}
		subsJSON, err := json.Marshal(subs)
		if err != nil {
			return eris.Wrap(err, "sqlite: encode subcategories")
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO drive_files (id, file_name, file_url, mime_type, brand, category, subcategories) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), f.FileName, nullable(f.FileURL), f.MimeType, nullable(f.Brand), nullable(f.Category), string(subsJSON),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: seed file %s", f.FileName)
		}
	}

	return nil
}

func (s *SQLiteStore) upsertNamed(ctx context.Context, table, name string) (string, error) {
	id := uuid.New().String()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO `+table+` (id, name) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET name = excluded.name RETURNING id`,
		id, name,
	).Scan(&id)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: seed %s %s", table, name)
	}
	return id, nil
}

func scanSQLiteFiles(rows *sql.Rows) ([]model.FileRecord, error) {
	defer rows.Close()

	var files []model.FileRecord
	for rows.Next() {
		var (
			f    model.FileRecord
			subs string
		)
		if err := rows.Scan(&f.ID, &f.FileName, &f.FileURL, &f.MimeType, &f.Brand, &f.Category, &subs); err != nil {
			return nil, eris.Wrap(err, "scan file row")
		}
		if subs != "" {
			if err := json.Unmarshal([]byte(subs), &f.Subcategories); err != nil {
				return nil, eris.Wrap(err, "decode subcategories")
			}
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
