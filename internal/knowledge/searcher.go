// Package knowledge performs free-text search over the knowledge base with
// a term-overlap relevance scorer.
package knowledge

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/greenatlas/compliance-assistant/internal/model"
	"github.com/greenatlas/compliance-assistant/internal/store"
)

const (
	// defaultFetchLimit caps the candidate rows pulled from the store.
	defaultFetchLimit = 5
	// defaultTopResults caps the scored results returned.
	defaultTopResults = 3
	// minTermLen drops noise words from scoring.
	minTermLen = 3

	titleWeight   = 3.0
	contentWeight = 1.0
	// normDivisor scales the per-term maximum (title + content hit) with
	// headroom so only strong overlaps approach 1.0.
	normDivisor = 4.0
)

// Config tunes candidate fetching and result shaping. Zero values take the
// defaults; the scoring weights are fixed.
type Config struct {
	FetchLimit int
	TopResults int
}

// Searcher queries the knowledge base.
type Searcher struct {
	store store.Store
	cfg   Config
}

// NewSearcher creates a Searcher backed by the given store.
func NewSearcher(st store.Store, cfg Config) *Searcher {
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = defaultFetchLimit
	}
	if cfg.TopResults <= 0 {
		cfg.TopResults = defaultTopResults
	}
	return &Searcher{store: st, cfg: cfg}
}

// Search fetches candidates whose title or content contains the query
// substring, scores them by term overlap, and returns the top results.
// There is no minimum-score cutoff for knowledge results.
func (s *Searcher) Search(ctx context.Context, query string) ([]model.KnowledgeHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	entries, err := s.store.SearchKnowledge(ctx, query, s.cfg.FetchLimit)
	if err != nil {
		return nil, eris.Wrap(err, "knowledge: search")
	}

	hits := make([]model.KnowledgeHit, 0, len(entries))
	for _, e := range entries {
		hits = append(hits, model.KnowledgeHit{
			Entry:      e,
			Confidence: Score(query, e.Title, e.Content),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Confidence > hits[j].Confidence
	})
	if len(hits) > s.cfg.TopResults {
		hits = hits[:s.cfg.TopResults]
	}
	return hits, nil
}

// Score rates how well an entry matches the query: +3 per query term found
// in the title, +1 per term found in the content, normalized into [0,1].
// Terms shorter than three characters are ignored, so the score is
// independent of term order.
func Score(query, title, content string) float64 {
	terms := scoringTerms(query)
	if len(terms) == 0 {
		return 0
	}

	lowerTitle := strings.ToLower(title)
	lowerContent := strings.ToLower(content)

	var score float64
	for _, term := range terms {
		if strings.Contains(lowerTitle, term) {
			score += titleWeight
		}
		if strings.Contains(lowerContent, term) {
			score += contentWeight
		}
	}

	normalized := score / (float64(len(terms)) * normDivisor)
	if normalized > 1 {
		normalized = 1
	}
	return normalized
}

func scoringTerms(query string) []string {
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		if len(t) >= minTermLen {
			terms = append(terms, t)
		}
	}
	return terms
}
