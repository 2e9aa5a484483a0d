package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/greenatlas/compliance-assistant/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses, satisfied by pgxmock
// in tests.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest lookups.
var preparedStatements = map[string]string{
	"find_state":        `SELECT id, name FROM states WHERE lower(name) = lower($1) LIMIT 1`,
	"find_state_fuzzy":  `SELECT id, name FROM states WHERE name ILIKE '%' || $1 || '%' ORDER BY name LIMIT 1`,
	"find_brands":       `SELECT id, name FROM brands WHERE lower(name) = lower($1) ORDER BY name`,
	"find_brands_fuzzy": `SELECT id, name FROM brands WHERE name ILIKE '%' || $1 || '%' ORDER BY name`,
	"file_by_id":        `SELECT id, file_name, COALESCE(file_url, ''), mime_type, COALESCE(brand, ''), COALESCE(category, ''), subcategories FROM drive_files WHERE id = $1`,
	"brand_logo_files":  `SELECT id, file_name, COALESCE(file_url, ''), mime_type, COALESCE(brand, ''), COALESCE(category, ''), subcategories FROM drive_files WHERE brand ILIKE $1 AND file_name ILIKE '%logo%'`,
	"search_knowledge":  `SELECT id, title, content, tags, updated_at FROM knowledge_entries WHERE title ILIKE '%' || $1 || '%' OR content ILIKE '%' || $1 || '%' ORDER BY updated_at DESC LIMIT $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS states (
	id   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS brands (
	id   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS products (
	id       TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	brand_id TEXT NOT NULL REFERENCES brands(id),
	name     TEXT NOT NULL,
	UNIQUE (brand_id, name)
);

CREATE TABLE IF NOT EXISTS state_brand_products (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	state_id   TEXT NOT NULL REFERENCES states(id),
	brand_id   TEXT NOT NULL REFERENCES brands(id),
	product_id TEXT NOT NULL REFERENCES products(id),
	details    TEXT,
	UNIQUE (state_id, brand_id, product_id)
);

CREATE TABLE IF NOT EXISTS knowledge_entries (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	tags       JSONB NOT NULL DEFAULT '[]',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS drive_files (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	file_name     TEXT NOT NULL,
	file_url      TEXT,
	mime_type     TEXT NOT NULL,
	brand         TEXT,
	category      TEXT,
	subcategories JSONB NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_sbp_state_id ON state_brand_products(state_id);
CREATE INDEX IF NOT EXISTS idx_sbp_brand_id ON state_brand_products(brand_id);
CREATE INDEX IF NOT EXISTS idx_products_brand_id ON products(brand_id);
CREATE INDEX IF NOT EXISTS idx_knowledge_updated_at ON knowledge_entries(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_drive_files_brand ON drive_files(brand);
`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) FindState(ctx context.Context, name string) (*StateRow, error) {
	return s.stateRow(ctx, preparedStatements["find_state"], name, "find state")
}

func (s *PostgresStore) FindStateFuzzy(ctx context.Context, name string) (*StateRow, error) {
	return s.stateRow(ctx, preparedStatements["find_state_fuzzy"], name, "find state fuzzy")
}

func (s *PostgresStore) stateRow(ctx context.Context, sql, name, op string) (*StateRow, error) {
	var row StateRow
	err := s.pool.QueryRow(ctx, sql, name).Scan(&row.ID, &row.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s %s", op, name)
	}
	return &row, nil
}

func (s *PostgresStore) FindBrands(ctx context.Context, name string) ([]BrandRow, error) {
	return s.brandRows(ctx, preparedStatements["find_brands"], name, "find brands")
}

func (s *PostgresStore) FindBrandsFuzzy(ctx context.Context, name string) ([]BrandRow, error) {
	return s.brandRows(ctx, preparedStatements["find_brands_fuzzy"], name, "find brands fuzzy")
}

func (s *PostgresStore) brandRows(ctx context.Context, sql, name, op string) ([]BrandRow, error) {
	rows, err := s.pool.Query(ctx, sql, name)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s %s", op, name)
	}
	defer rows.Close()

	var out []BrandRow
	for rows.Next() {
		var b BrandRow
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, eris.Wrapf(err, "postgres: %s scan", op)
		}
		out = append(out, b)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: %s rows", op)
}

// QueryAllowList joins the allow-list against the reference tables. Rows
// come back in relation order; callers must not assume any sort.
func (s *PostgresStore) QueryAllowList(ctx context.Context, filter AllowListFilter) ([]model.LegalityFact, error) {
	sql := `SELECT s.name, b.name, p.name, COALESCE(a.details, '')
		FROM state_brand_products a
		JOIN states s ON s.id = a.state_id
		JOIN brands b ON b.id = a.brand_id
		JOIN products p ON p.id = a.product_id`

	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if filter.StateID != "" {
		clauses = append(clauses, "a.state_id = "+arg(filter.StateID))
	}
	if len(filter.BrandIDs) > 0 {
		clauses = append(clauses, "a.brand_id = ANY("+arg(filter.BrandIDs)+")")
	}
	if filter.ProductContains != "" {
		clauses = append(clauses, "p.name ILIKE '%' || "+arg(filter.ProductContains)+" || '%'")
	}
	sql += whereClause(clauses)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query allow list")
	}
	defer rows.Close()

	var facts []model.LegalityFact
	for rows.Next() {
		f := model.LegalityFact{IsLegal: true}
		if err := rows.Scan(&f.State, &f.Brand, &f.Product, &f.Details); err != nil {
			return nil, eris.Wrap(err, "postgres: scan allow list")
		}
		facts = append(facts, f)
	}
	return facts, eris.Wrap(rows.Err(), "postgres: allow list rows")
}

func (s *PostgresStore) SearchKnowledge(ctx context.Context, substring string, limit int) ([]model.KnowledgeEntry, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["search_knowledge"], substring, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search knowledge")
	}
	defer rows.Close()

	var entries []model.KnowledgeEntry
	for rows.Next() {
		var (
			e    model.KnowledgeEntry
			tags []byte
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Content, &tags, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan knowledge")
		}
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &e.Tags); err != nil {
				return nil, eris.Wrap(err, "postgres: decode knowledge tags")
			}
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: knowledge rows")
}

func (s *PostgresStore) FileByID(ctx context.Context, id string) (*model.FileRecord, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["file_by_id"], id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: file by id %s", id)
	}
	files, err := scanFiles(rows)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: file by id %s", id)
	}
	if len(files) == 0 {
		return nil, nil
	}
	return &files[0], nil
}

func (s *PostgresStore) FindBrandLogoFiles(ctx context.Context, brand string) ([]model.FileRecord, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["brand_logo_files"], brand)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: brand logo files %s", brand)
	}
	files, err := scanFiles(rows)
	return files, eris.Wrapf(err, "postgres: brand logo files %s", brand)
}

func (s *PostgresStore) SearchFiles(ctx context.Context, filter FileFilter) ([]model.FileRecord, error) {
	sql := `SELECT id, file_name, COALESCE(file_url, ''), mime_type, COALESCE(brand, ''), COALESCE(category, ''), subcategories FROM drive_files`

	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	for _, term := range filter.NameTerms {
		clauses = append(clauses, "file_name ILIKE '%' || "+arg(term)+" || '%'")
	}
	if filter.Brand != "" {
		clauses = append(clauses, "brand ILIKE '%' || "+arg(filter.Brand)+" || '%'")
	}
	if filter.Category != "" {
		clauses = append(clauses, "category ILIKE '%' || "+arg(filter.Category)+" || '%'")
	}
	if filter.NameContains != "" {
		clauses = append(clauses, "file_name ILIKE '%' || "+arg(filter.NameContains)+" || '%'")
	}
	if filter.MimeContains != "" {
		clauses = append(clauses, "mime_type ILIKE '%' || "+arg(filter.MimeContains)+" || '%'")
	}
	if len(clauses) == 0 {
		return nil, nil
	}
	sql += " WHERE " + joinClauses(clauses, " OR ")

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	sql += " LIMIT " + arg(limit)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search files")
	}
	files, err := scanFiles(rows)
	return files, eris.Wrap(err, "postgres: search files")
}

// SeedFixture loads reference data. Existing rows with the same natural key
// are left alone.
func (s *PostgresStore) SeedFixture(ctx context.Context, fx *Fixture) error {
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
			return eris.Errorf("postgres: seed product %q references unknown brand %q", p.Name, p.Brand)
		}
		id := uuid.New().String()
		err := s.pool.QueryRow(ctx,
			`INSERT INTO products (id, brand_id, name) VALUES ($1, $2, $3)
			 ON CONFLICT (brand_id, name) DO UPDATE SET name = EXCLUDED.name RETURNING id`,
			id, brandID, p.Name,
		).Scan(&id)
		if err != nil {
			return eris.Wrapf(err, "postgres: seed product %s", p.Name)
		}
		productIDs[p.Brand+"/"+p.Name] = id
	}

	for _, row := range fx.AllowList {
		stateID, ok := stateIDs[row.State]
		if !ok {
			return eris.Errorf("postgres: seed allow-list references unknown state %q", row.State)
		}
		brandID, ok := brandIDs[row.Brand]
		if !ok {
			return eris.Errorf("postgres: seed allow-list references unknown brand %q", row.Brand)
		}
		productID, ok := productIDs[row.Brand+"/"+row.Product]
		if !ok {
			return eris.Errorf("postgres: seed allow-list references unknown product %q", row.Product)
		}
		_, err := s.pool.Exec(ctx,
			`INSERT INTO state_brand_products (id, state_id, brand_id, product_id, details) VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (state_id, brand_id, product_id) DO UPDATE SET details = EXCLUDED.details`,
			uuid.New().String(), stateID, brandID, productID, row.Details,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: seed allow-list")
		}
	}

	for _, k := range fx.Knowledge {
		tags, err := json.Marshal(k.Tags)
		if err != nil {
			return eris.Wrap(err, "postgres: encode knowledge tags")
		}
		updatedAt := k.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO knowledge_entries (id, title, content, tags, updated_at) VALUES ($1, $2, $3, $4, $5)`,
			uuid.New().String(), k.Title, k.Content, tags, updatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: seed knowledge %s", k.Title)
		}
	}

	for _, f := range fx.Files {
		subs := f.Subcategories
		if len(subs) > model.MaxSubcategories {
			subs = subs[:model.MaxSubcategories]
		}
		subsJSON, err := json.Marshal(subs)
		if err != nil {
			return eris.Wrap(err, "postgres: encode subcategories")
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO drive_files (id, file_name, file_url, mime_type, brand, category, subcategories) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New().String(), f.FileName, nullable(f.FileURL), f.MimeType, nullable(f.Brand), nullable(f.Category), subsJSON,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: seed file %s", f.FileName)
		}
	}

	return nil
}

func (s *PostgresStore) upsertNamed(ctx context.Context, table, name string) (string, error) {
	id := uuid.New().String()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+table+` (id, name) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id`,
		id, name,
	).Scan(&id)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: seed %s %s", table, name)
	}
	return id, nil
}

func scanFiles(rows pgx.Rows) ([]model.FileRecord, error) {
	defer rows.Close()

	var files []model.FileRecord
	for rows.Next() {
		var (
			f    model.FileRecord
			subs []byte
		)
		if err := rows.Scan(&f.ID, &f.FileName, &f.FileURL, &f.MimeType, &f.Brand, &f.Category, &subs); err != nil {
			return nil, eris.Wrap(err, "scan file row")
		}
		if len(subs) > 0 {
			if err := json.Unmarshal(subs, &f.Subcategories); err != nil {
				return nil, eris.Wrap(err, "decode subcategories")
			}
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
