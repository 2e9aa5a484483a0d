package store

import (
	"context"

	"github.com/greenatlas/compliance-assistant/internal/model"
)

// StateRow is a row from the states reference table.
type StateRow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BrandRow is a row from the brands reference table.
type BrandRow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AllowListFilter constrains the allow-list join. Zero values mean the
// constraint is not applied.
type AllowListFilter struct {
	StateID         string   `json:"state_id,omitempty"`
	BrandIDs        []string `json:"brand_ids,omitempty"`
	ProductContains string   `json:"product_contains,omitempty"`
}

// FileFilter constrains the file index search. NameTerms are ORed against
// the filename together with the field-specific filters.
type FileFilter struct {
	NameTerms    []string `json:"name_terms,omitempty"`
	Brand        string   `json:"brand,omitempty"`
	Category     string   `json:"category,omitempty"`
	NameContains string   `json:"name_contains,omitempty"`
	MimeContains string   `json:"mime_contains,omitempty"`
	Limit        int      `json:"limit,omitempty"`
}

// Store defines the persistence interface backing the query engine.
// Lookups that find nothing return (nil, nil), not an error.
type Store interface {
	// States
	FindState(ctx context.Context, name string) (*StateRow, error)
	FindStateFuzzy(ctx context.Context, name string) (*StateRow, error)

	// Brands
	FindBrands(ctx context.Context, name string) ([]BrandRow, error)
	FindBrandsFuzzy(ctx context.Context, name string) ([]BrandRow, error)

	// Allow-list join (states x brands x products)
	QueryAllowList(ctx context.Context, filter AllowListFilter) ([]model.LegalityFact, error)

	// Knowledge base, most recently updated first, capped at limit.
	SearchKnowledge(ctx context.Context, substring string, limit int) ([]model.KnowledgeEntry, error)

	// File index
	FileByID(ctx context.Context, id string) (*model.FileRecord, error)
	FindBrandLogoFiles(ctx context.Context, brand string) ([]model.FileRecord, error)
	SearchFiles(ctx context.Context, filter FileFilter) ([]model.FileRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	SeedFixture(ctx context.Context, fx *Fixture) error
	Close() error
}
