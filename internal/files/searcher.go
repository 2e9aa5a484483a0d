// Package files searches the file/document index with filename, brand, and
// category heuristics and a relevance scorer tuned for exact and logo
// matches.
package files

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/greenatlas/compliance-assistant/internal/model"
	"github.com/greenatlas/compliance-assistant/internal/store"
)

const (
	defaultFetchLimit = 10
	defaultTopResults = 3
	minTermLen        = 3

	// defaultConfidenceFloor drops weak file matches entirely. Knowledge
	// results have no such floor; loose file matches are noisier.
	defaultConfidenceFloor = 0.2

	verbatimBonus  = 5.0
	logoBonus      = 3.0
	fileNameWeight = 3.0
	brandWeight    = 2.0
	brandFullBonus = 3.0
	categoryWeight = 2.0
	subcatWeight   = 1.0
	normDivisor    = 5.0

	// brandFullMatchMinLen guards the full-brand-match bonus against short
	// generic terms.
	brandFullMatchMinLen = 4
)

// Config tunes candidate fetching and result shaping. Zero values take the
// defaults; the scoring weights are fixed.
type Config struct {
	FetchLimit      int
	TopResults      int
	ConfidenceFloor float64
}

// Searcher queries the file index.
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
	if cfg.ConfidenceFloor <= 0 {
		cfg.ConfidenceFloor = defaultConfidenceFloor
	}
	return &Searcher{store: st, cfg: cfg}
}

// Search resolves file hits for the given params. A fileId short-circuits
// to a direct lookup; a brand triggers a targeted brand-logo probe before
// the general search. General results below the confidence floor are
// dropped.
func (s *Searcher) Search(ctx context.Context, params model.SearchParams) ([]model.FileHit, error) {
	if params.FileID != "" {
		return s.byID(ctx, params.FileID)
	}

	if params.Brand != "" {
		hits, err := s.exactBrandLogo(ctx, params.Brand)
		if err != nil {
			return nil, err
		}
		if len(hits) > 0 {
			return hits, nil
		}
	}

	return s.general(ctx, params)
}

func (s *Searcher) byID(ctx context.Context, id string) ([]model.FileHit, error) {
	file, err := s.store.FileByID(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "files: by id %s", id)
	}
	if file == nil {
		zap.L().Debug("files: no record for id", zap.String("file_id", id))
		return nil, nil
	}
	return []model.FileHit{{File: *file, Confidence: 1.0}}, nil
}

func (s *Searcher) exactBrandLogo(ctx context.Context, brand string) ([]model.FileHit, error) {
	records, err := s.store.FindBrandLogoFiles(ctx, brand)
	if err != nil {
		return nil, eris.Wrapf(err, "files: brand logo probe %s", brand)
	}
	hits := make([]model.FileHit, 0, len(records))
	for _, rec := range records {
		hits = append(hits, model.FileHit{File: rec, Confidence: 1.0})
	}
	return hits, nil
}

func (s *Searcher) general(ctx context.Context, params model.SearchParams) ([]model.FileHit, error) {
	filter := store.FileFilter{Limit: s.cfg.FetchLimit}
	for _, v := range []string{params.Query, params.Brand, params.Product} {
		if v != "" {
			filter.NameTerms = append(filter.NameTerms, v)
		}
	}
	filter.Brand = params.Brand
	filter.Category = params.Category
	if params.FileType == "logo" {
		filter.NameContains = "logo"
	} else if params.FileType != "" {
		filter.MimeContains = params.FileType
	}

	records, err := s.store.SearchFiles(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "files: general search")
	}

	var hits []model.FileHit
	for _, rec := range records {
		conf := Score(params, rec)
		if conf <= s.cfg.ConfidenceFloor {
			continue
		}
		hits = append(hits, model.FileHit{File: rec, Confidence: conf})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Confidence > hits[j].Confidence
	})
	if len(hits) > s.cfg.TopResults {
		hits = hits[:s.cfg.TopResults]
	}
	return hits, nil
}

// Score rates a file record against the search params. Exact filename
// matches and logo requests that hit logo files are weighted far above
// loose term overlap.
func Score(params model.SearchParams, rec model.FileRecord) float64 {
	terms := scoringTerms(params.Query, params.Brand, params.FileType)
	if len(terms) == 0 {
		return 0
	}

	lowerName := strings.ToLower(rec.FileName)
	lowerBrand := strings.ToLower(rec.Brand)
	lowerCategory := strings.ToLower(rec.Category)
	lowerQuery := strings.ToLower(strings.TrimSpace(params.Query))

	var score float64

	if lowerQuery != "" && strings.Contains(lowerName, lowerQuery) {
		score += verbatimBonus
	}
	if mentionsLogo(params) && strings.Contains(lowerName, "logo") {
		score += logoBonus
	}

	for _, term := range terms {
		if strings.Contains(lowerName, term) {
			score += fileNameWeight
		}
		if lowerBrand != "" && strings.Contains(lowerBrand, term) {
			score += brandWeight
			if term == lowerBrand && len(term) > brandFullMatchMinLen {
				score += brandFullBonus
			}
		}
		if lowerCategory != "" && strings.Contains(lowerCategory, term) {
			score += categoryWeight
		}
		for _, sub := range rec.Subcategories {
			if sub != "" && strings.Contains(strings.ToLower(sub), term) {
				score += subcatWeight
			}
		}
	}

	normalized := score / (float64(len(terms)) * normDivisor)
	if normalized > 1 {
		normalized = 1
	}
	return normalized
}

func mentionsLogo(params model.SearchParams) bool {
	return strings.Contains(strings.ToLower(params.Query), "logo") ||
		strings.EqualFold(params.FileType, "logo")
}

// scoringTerms collects the distinct terms across the params. A word that
// appears in both query and fileType ("logo") counts once, so duplicated
// params cannot dilute or inflate the normalized score.
func scoringTerms(parts ...string) []string {
	seen := map[string]bool{}
	var terms []string
	for _, part := range parts {
		for _, t := range strings.Fields(strings.ToLower(part)) {
			if len(t) >= minTermLen && !seen[t] {
				seen[t] = true
				terms = append(terms, t)
			}
		}
	}
	return terms
}
