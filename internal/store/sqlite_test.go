package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testFixture(t *testing.T) *Fixture {
	t.Helper()
	fx, err := LoadFixture(strings.NewReader(`
states:
  - Texas
  - North Carolina
brands:
  - Galaxy Treats
  - Torch
products:
  - brand: Galaxy Treats
    name: Delta-8 Gummies
  - brand: Torch
    name: Delta-8 Disposable
allow_list:
  - state: Texas
    brand: Galaxy Treats
    product: Delta-8 Gummies
    details: hemp-derived under 0.3% delta-9
knowledge:
  - title: Shipping policy
    content: Ground shipping only for vape products.
    tags: [shipping, policy]
files:
  - file_name: galaxy-treats-logo.png
    file_url: https://drive.example.com/galaxy-treats-logo.png
    mime_type: image/png
    brand: Galaxy Treats
    category: branding
    subcategories: [brand assets]
  - file_name: wholesale-pricelist.pdf
    mime_type: application/pdf
    brand: Galaxy Treats
    category: sales
`))
	require.NoError(t, err)
	return fx
}

func TestSQLite_SeedAndLookups(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, s.SeedFixture(ctx, testFixture(t)))

	t.Run("find state exact", func(t *testing.T) {
		row, err := s.FindState(ctx, "texas")
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, "Texas", row.Name)
	})

	t.Run("find state fuzzy", func(t *testing.T) {
		row, err := s.FindStateFuzzy(ctx, "carolina")
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, "North Carolina", row.Name)
	})

	t.Run("state not found", func(t *testing.T) {
		row, err := s.FindState(ctx, "Atlantis")
		require.NoError(t, err)
		assert.Nil(t, row)
	})

	t.Run("find brands fuzzy", func(t *testing.T) {
		brands, err := s.FindBrandsFuzzy(ctx, "galaxy")
		require.NoError(t, err)
		require.Len(t, brands, 1)
		assert.Equal(t, "Galaxy Treats", brands[0].Name)
	})

	t.Run("allow list with filters", func(t *testing.T) {
		state, err := s.FindState(ctx, "Texas")
		require.NoError(t, err)
		require.NotNil(t, state)

		facts, err := s.QueryAllowList(ctx, AllowListFilter{
			StateID:         state.ID,
			ProductContains: "delta-8",
		})
		require.NoError(t, err)
		require.Len(t, facts, 1)
		assert.Equal(t, "Delta-8 Gummies", facts[0].Product)
		assert.True(t, facts[0].IsLegal)
		assert.Equal(t, "hemp-derived under 0.3% delta-9", facts[0].Details)
	})

	t.Run("search knowledge", func(t *testing.T) {
		entries, err := s.SearchKnowledge(ctx, "shipping", 5)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "Shipping policy", entries[0].Title)
		assert.Equal(t, []string{"shipping", "policy"}, entries[0].Tags)
		assert.False(t, entries[0].UpdatedAt.IsZero())
	})

	t.Run("brand logo files", func(t *testing.T) {
		files, err := s.FindBrandLogoFiles(ctx, "galaxy treats")
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "galaxy-treats-logo.png", files[0].FileName)
		assert.Equal(t, []string{"brand assets"}, files[0].Subcategories)
	})

	t.Run("file by id round trip", func(t *testing.T) {
		files, err := s.FindBrandLogoFiles(ctx, "Galaxy Treats")
		require.NoError(t, err)
		require.Len(t, files, 1)

		got, err := s.FileByID(ctx, files[0].ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, files[0].FileName, got.FileName)
	})

	t.Run("file by id not found", func(t *testing.T) {
		got, err := s.FileByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("search files by term", func(t *testing.T) {
		files, err := s.SearchFiles(ctx, FileFilter{NameTerms: []string{"pricelist"}})
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "wholesale-pricelist.pdf", files[0].FileName)
		assert.Empty(t, files[0].FileURL, "missing URL comes back empty, not null")
	})

	t.Run("search files by mime", func(t *testing.T) {
		files, err := s.SearchFiles(ctx, FileFilter{MimeContains: "image"})
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "image/png", files[0].MimeType)
	})

	t.Run("empty filter returns nothing", func(t *testing.T) {
		files, err := s.SearchFiles(ctx, FileFilter{})
		require.NoError(t, err)
		assert.Nil(t, files)
	})
}

func TestSQLite_SeedIsIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	fx := testFixture(t)

	require.NoError(t, s.SeedFixture(ctx, fx))
	require.NoError(t, s.SeedFixture(ctx, fx))

	brands, err := s.FindBrandsFuzzy(ctx, "torch")
	require.NoError(t, err)
	assert.Len(t, brands, 1, "re-seeding must not duplicate reference rows")

	state, err := s.FindState(ctx, "Texas")
	require.NoError(t, err)
	require.NotNil(t, state)

	facts, err := s.QueryAllowList(ctx, AllowListFilter{StateID: state.ID})
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}

func TestLoadFixture(t *testing.T) {
	fx := testFixture(t)

	assert.Equal(t, []string{"Texas", "North Carolina"}, fx.States)
	assert.Len(t, fx.Products, 2)
	assert.Equal(t, "Galaxy Treats", fx.Products[0].Brand)
	require.Len(t, fx.AllowList, 1)
	assert.Equal(t, "hemp-derived under 0.3% delta-9", fx.AllowList[0].Details)
	require.Len(t, fx.Knowledge, 1)
	assert.Equal(t, []string{"shipping", "policy"}, fx.Knowledge[0].Tags)
	require.Len(t, fx.Files, 2)
	assert.Equal(t, []string{"brand assets"}, fx.Files[0].Subcategories)
}

func TestLoadFixture_BadYAML(t *testing.T) {
	_, err := LoadFixture(strings.NewReader("states: {not: a list"))
	assert.Error(t, err)
}

func TestSQLite_KnowledgeOrdering(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	fx := &Fixture{
		Knowledge: []FixtureKnowledge{
			{Title: "Old shipping note", Content: "outdated", UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			{Title: "New shipping note", Content: "current", UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
	require.NoError(t, s.SeedFixture(ctx, fx))

	entries, err := s.SearchKnowledge(ctx, "shipping", 5)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "New shipping note", entries[0].Title, "newest first")
}
