// Package aggregate fans a classified request out to the per-source
// searchers, merges their results, and chooses a single provenance for the
// answer.
package aggregate

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/greenatlas/compliance-assistant/internal/legality"
	"github.com/greenatlas/compliance-assistant/internal/model"
)

// noMatchMessage is the fixed provenance message when every queried source
// comes back empty.
const noMatchMessage = "No matching information found in any database"

// LegalityResolver answers structured legality queries.
type LegalityResolver interface {
	Resolve(ctx context.Context, params model.SearchParams) ([]model.LegalityFact, error)
}

// KnowledgeSearcher searches the free-text knowledge base.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string) ([]model.KnowledgeHit, error)
}

// FileSearcher searches the file index.
type FileSearcher interface {
	Search(ctx context.Context, params model.SearchParams) ([]model.FileHit, error)
}

// Aggregator runs the requested sources concurrently and assembles the
// evidence bundle.
type Aggregator struct {
	legality  LegalityResolver
	knowledge KnowledgeSearcher
	files     FileSearcher
}

// New creates an Aggregator over the three searchers.
func New(lr LegalityResolver, ks KnowledgeSearcher, fs FileSearcher) *Aggregator {
	return &Aggregator{legality: lr, knowledge: ks, files: fs}
}

// Aggregate queries only the requested sources, in parallel, and merges
// their results. A single source failing contributes an empty result, never
// a failed request.
func (a *Aggregator) Aggregate(ctx context.Context, sources []model.SourceTag, params model.SearchParams) model.EvidenceBundle {
	var bundle model.EvidenceBundle

	g, gctx := errgroup.WithContext(ctx)

	if containsTag(sources, model.SourceStateMap) {
		g.Go(func() error {
			facts, err := a.legality.Resolve(gctx, params)
			if err != nil {
				logSourceFailure(model.SourceStateMap, err)
				return nil
			}
			bundle.Facts = facts
			return nil
		})
	}
	if containsTag(sources, model.SourceKnowledgeBase) {
		g.Go(func() error {
			hits, err := a.knowledge.Search(gctx, knowledgeQuery(params))
			if err != nil {
				logSourceFailure(model.SourceKnowledgeBase, err)
				return nil
			}
			bundle.Knowledge = hits
			return nil
		})
	}
	if containsTag(sources, model.SourceDriveFiles) {
		g.Go(func() error {
			hits, err := a.files.Search(gctx, params)
			if err != nil {
				logSourceFailure(model.SourceDriveFiles, err)
				return nil
			}
			bundle.Files = hits
			return nil
		})
	}

	// Branches never return errors; Wait only joins them.
	_ = g.Wait()

	bundle.Source = chooseProvenance(bundle, params)
	return bundle
}

// chooseProvenance applies the fixed precedence: structured legality facts
// beat knowledge text, which beats loose file matches. The order is part of
// the answer contract; do not reorder.
func chooseProvenance(bundle model.EvidenceBundle, params model.SearchParams) model.Provenance {
	if len(bundle.Facts) > 0 {
		first := bundle.Facts[0]
		return model.Provenance{
			Source: model.SourceStateMap,
			Found:  true,
			State:  legality.CanonicalState(first.State),
			Brand:  first.Brand,
		}
	}
	if len(bundle.Knowledge) > 0 {
		return model.Provenance{
			Source: model.SourceKnowledgeBase,
			Found:  true,
		}
	}
	if len(bundle.Files) > 0 {
		return model.Provenance{
			Source:       model.SourceDriveFiles,
			Found:        true,
			Brand:        params.Brand,
			BrandLogoURL: findBrandLogoURL(bundle.Files),
		}
	}
	return model.Provenance{
		Source:  model.SourceNoMatch,
		Found:   false,
		Message: noMatchMessage,
	}
}

// findBrandLogoURL surfaces a representative logo from the file hits: an
// image mime type whose filename contains "logo". Absence is fine.
func findBrandLogoURL(hits []model.FileHit) string {
	for _, h := range hits {
		if strings.HasPrefix(h.File.MimeType, "image/") &&
			strings.Contains(strings.ToLower(h.File.FileName), "logo") &&
			h.File.FileURL != "" {
			return h.File.FileURL
		}
	}
	return ""
}

// knowledgeQuery picks the text the knowledge searcher runs on.
func knowledgeQuery(params model.SearchParams) string {
	if params.Query != "" {
		return params.Query
	}
	// Without a free-text query, fall back to whatever names were
	// extracted so the knowledge base still gets a chance.
	parts := make([]string, 0, 3)
	for _, v := range []string{params.Product, params.Brand, params.State} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func logSourceFailure(tag model.SourceTag, err error) {
	zap.L().Warn("aggregate: source query failed",
		zap.String("source", string(tag)),
		zap.Error(err),
	)
}

func containsTag(tags []model.SourceTag, tag model.SourceTag) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
