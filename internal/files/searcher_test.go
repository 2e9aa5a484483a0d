package files

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenatlas/compliance-assistant/internal/model"
	"github.com/greenatlas/compliance-assistant/internal/store/storetest"
)

func fileIndex() *storetest.MemoryStore {
	m := storetest.New()
	m.Files = []model.FileRecord{
		{
			ID:       "f47ac10b-58cc-4372-a567-0e02b2c3d479",
			FileName: "galaxy-treats-logo.png",
			FileURL:  "https://drive.example.com/galaxy-treats-logo.png",
			MimeType: "image/png",
			Brand:    "Galaxy Treats",
			Category: "branding",
		},
		{
			ID:       "c0a80121-0001-4000-8000-000000000002",
			FileName: "wholesale-pricelist.pdf",
			FileURL:  "https://drive.example.com/wholesale-pricelist.pdf",
			MimeType: "application/pdf",
			Brand:    "Galaxy Treats",
			Category: "sales",
		},
		{
			ID:            "c0a80121-0001-4000-8000-000000000003",
			FileName:      "moonwlkr-distribution-agreement.pdf",
			FileURL:       "https://drive.example.com/moonwlkr-agreement.pdf",
			MimeType:      "application/pdf",
			Brand:         "Moonwlkr",
			Category:      "legal",
			Subcategories: []string{"contracts", "catalog"},
		},
	}
	return m
}

func TestSearch_FileIDShortCircuit(t *testing.T) {
	m := fileIndex()
	s := NewSearcher(m, Config{})

	hits, err := s.Search(context.Background(), model.SearchParams{
		FileID: "f47ac10b-58cc-4372-a567-0e02b2c3d479",
		Query:  "ignored when an id is present",
	})

	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "galaxy-treats-logo.png", hits[0].File.FileName)
	assert.Equal(t, 1.0, hits[0].Confidence)
	assert.Zero(t, m.Calls["SearchFiles"])
}

func TestSearch_FileIDNotFound(t *testing.T) {
	m := fileIndex()
	s := NewSearcher(m, Config{})

	hits, err := s.Search(context.Background(), model.SearchParams{
		FileID: "00000000-0000-4000-8000-000000000000",
	})

	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_BrandLogoShortCircuit(t *testing.T) {
	m := fileIndex()
	s := NewSearcher(m, Config{})

	hits, err := s.Search(context.Background(), model.SearchParams{
		Brand:    "Galaxy Treats",
		FileType: "logo",
	})

	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "galaxy-treats-logo.png", hits[0].File.FileName)
	assert.Equal(t, 1.0, hits[0].Confidence)
	assert.Zero(t, m.Calls["SearchFiles"], "logo probe hit skips the general search")
}

func TestSearch_BrandWithoutLogoFallsThrough(t *testing.T) {
	m := fileIndex()
	s := NewSearcher(m, Config{})

	hits, err := s.Search(context.Background(), model.SearchParams{
		Brand: "Moonwlkr",
		Query: "distribution agreement",
	})

	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "moonwlkr-distribution-agreement.pdf", hits[0].File.FileName)
	assert.Equal(t, 1, m.Calls["SearchFiles"])
}

func TestSearch_ConfidenceFloor(t *testing.T) {
	m := fileIndex()
	s := NewSearcher(m, Config{})

	// The category filter pulls the agreement back from the store, but
	// "catalog" only grazes a subcategory and "seasonal" matches nothing:
	// the score lands at the floor and the hit is dropped.
	hits, err := s.Search(context.Background(), model.SearchParams{
		Query:    "seasonal catalog",
		Category: "legal",
	})

	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, 1, m.Calls["SearchFiles"], "the store was queried, the scorer filtered")
}

func TestSearch_ConfidenceFloorOverride(t *testing.T) {
	m := fileIndex()
	s := NewSearcher(m, Config{ConfidenceFloor: 0.95})

	// Same request as the fall-through test: the agreement scores 14/15,
	// but a raised floor drops even that.
	hits, err := s.Search(context.Background(), model.SearchParams{
		Brand: "Moonwlkr",
		Query: "distribution agreement",
	})

	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, 1, m.Calls["SearchFiles"])
}

func TestSearch_TopResultsOverride(t *testing.T) {
	m := storetest.New()
	m.Files = []model.FileRecord{
		{ID: "f1", FileName: "spring-catalog.pdf", Category: "sales"},
		{ID: "f2", FileName: "summer-catalog.pdf", Category: "sales"},
	}
	s := NewSearcher(m, Config{TopResults: 1})

	hits, err := s.Search(context.Background(), model.SearchParams{
		Query:    "catalog",
		Category: "sales",
	})

	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestScore(t *testing.T) {
	logoFile := model.FileRecord{
		FileName: "galaxy-treats-logo.png",
		Brand:    "Galaxy Treats",
		Category: "branding",
	}

	tests := []struct {
		name   string
		params model.SearchParams
		rec    model.FileRecord
		want   float64
	}{
		{
			name:   "verbatim filename match maxes out",
			params: model.SearchParams{Query: "wholesale-pricelist.pdf"},
			rec:    model.FileRecord{FileName: "wholesale-pricelist.pdf"},
			// verbatim 5 + filename term 3, one term, capped at 1.
			want: 1.0,
		},
		{
			name:   "logo request against logo file",
			params: model.SearchParams{Query: "logo", FileType: "logo"},
			rec:    logoFile,
			// "logo" dedupes to one term: verbatim 5 + logo bonus 3 +
			// filename 3 over 1*5, capped at 1.
			want: 1.0,
		},
		{
			name:   "brand term with full-match bonus",
			params: model.SearchParams{Query: "treats"},
			rec:    model.FileRecord{FileName: "report.pdf", Brand: "Treats"},
			// brand 2 + full-match 3 over 1*5.
			want: 1.0,
		},
		{
			name:   "short brand skips full-match bonus",
			params: model.SearchParams{Query: "koi"},
			rec:    model.FileRecord{FileName: "report.pdf", Brand: "Koi"},
			// brand 2 only; "koi" is too short for the bonus.
			want: 0.4,
		},
		{
			name:   "category and subcategory overlap",
			params: model.SearchParams{Query: "legal contracts"},
			rec: model.FileRecord{
				FileName:      "agreement.pdf",
				Category:      "legal",
				Subcategories: []string{"contracts"},
			},
			// category 2 + subcategory 1 over 2*5.
			want: 0.3,
		},
		{
			name:   "no terms",
			params: model.SearchParams{Query: "a b"},
			rec:    logoFile,
			want:   0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.params, tt.rec), 1e-9)
		})
	}
}

func TestScore_DuplicateTermsCountOnce(t *testing.T) {
	rec := model.FileRecord{
		FileName: "brand-assets.zip",
		Category: "branding",
	}

	// The classifier routinely echoes the same word into query and fileType;
	// the score must not shift when it does.
	once := Score(model.SearchParams{Query: "brand logo"}, rec)
	twice := Score(model.SearchParams{Query: "brand logo", FileType: "logo"}, rec)
	assert.InDelta(t, 0.5, once, 1e-9)
	assert.Equal(t, once, twice)
}
