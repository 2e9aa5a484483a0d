package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenatlas/compliance-assistant/internal/model"
	"github.com/greenatlas/compliance-assistant/internal/store/storetest"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		title   string
		content string
		want    float64
	}{
		{
			name:    "term in title and content",
			query:   "shipping",
			title:   "Shipping policy",
			content: "We handle shipping to all states.",
			want:    1.0, // (3+1)/(1*4)
		},
		{
			name:    "term in title only",
			query:   "shipping",
			title:   "Shipping policy",
			content: "Ground only.",
			want:    0.75, // 3/(1*4)
		},
		{
			name:    "term in content only",
			query:   "shipping",
			title:   "Logistics",
			content: "Free shipping over $500.",
			want:    0.25, // 1/(1*4)
		},
		{
			name:    "one of two terms matches",
			query:   "shipping rates",
			title:   "Shipping policy",
			content: "Shipping is flat fee.",
			want:    0.5, // (3+1)/(2*4)
		},
		{
			name:    "no overlap",
			query:   "returns",
			title:   "Shipping policy",
			content: "Ground only.",
			want:    0,
		},
		{
			name:    "short terms ignored",
			query:   "is it legal",
			title:   "Is it legal?",
			content: "it is",
			want:    0.75, // only "legal" scores: 3/(1*4)
		},
		{
			name:  "empty query",
			query: "  ",
			title: "Anything",
			want:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.query, tt.title, tt.content), 1e-9)
		})
	}
}

func TestScore_TermOrderIndependent(t *testing.T) {
	title := "Delta-8 shipping restrictions"
	content := "Shipping delta-8 products requires age verification."

	a := Score("delta-8 shipping rules", title, content)
	b := Score("rules shipping delta-8", title, content)
	assert.Equal(t, a, b)
}

func TestSearch_RanksAndCaps(t *testing.T) {
	m := storetest.New()
	now := time.Now()
	m.Knowledge = []model.KnowledgeEntry{
		{ID: "k1", Title: "Returns policy", Content: "How to process returns.", UpdatedAt: now},
		{ID: "k2", Title: "Shipping carriers", Content: "Carrier list, no mention.", UpdatedAt: now},
		{ID: "k3", Title: "FAQ", Content: "We offer free shipping.", UpdatedAt: now},
		{ID: "k4", Title: "Shipping policy", Content: "Shipping rules by state.", UpdatedAt: now},
		{ID: "k5", Title: "Shipping insurance", Content: "Optional coverage.", UpdatedAt: now},
	}
	s := NewSearcher(m, Config{})

	hits, err := s.Search(context.Background(), "shipping")

	require.NoError(t, err)
	require.Len(t, hits, 3, "results cap at three")
	assert.Equal(t, "k4", hits[0].Entry.ID, "title+content hit ranks first")
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Confidence, hits[i].Confidence)
	}
}

func TestSearch_TopResultsOverride(t *testing.T) {
	m := storetest.New()
	m.Knowledge = []model.KnowledgeEntry{
		{ID: "k1", Title: "Shipping policy", Content: "Shipping rules by state."},
		{ID: "k2", Title: "Shipping carriers", Content: "Carrier list."},
	}
	s := NewSearcher(m, Config{TopResults: 1})

	hits, err := s.Search(context.Background(), "shipping")

	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "k1", hits[0].Entry.ID)
}

func TestSearch_NoMinimumScore(t *testing.T) {
	m := storetest.New()
	m.Knowledge = []model.KnowledgeEntry{
		{ID: "k1", Title: "Glossary", Content: "Definition of terpene profiles."},
	}
	s := NewSearcher(m, Config{})

	// Substring match in the store, weak term overlap. Knowledge hits are
	// never dropped for low confidence.
	hits, err := s.Search(context.Background(), "terpene")

	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Greater(t, hits[0].Confidence, 0.0)
}

func TestSearch_EmptyQuery(t *testing.T) {
	m := storetest.New()
	s := NewSearcher(m, Config{})

	hits, err := s.Search(context.Background(), "   ")

	require.NoError(t, err)
	assert.Nil(t, hits)
	assert.Zero(t, m.Calls["SearchKnowledge"])
}
