// Package legality resolves {state, brand, product} parameters against the
// relational legality graph. Facts are only ever asserted from allow-list
// rows; a missing row means "not asserted", never "prohibited".
package legality

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/greenatlas/compliance-assistant/internal/model"
	"github.com/greenatlas/compliance-assistant/internal/store"
)

var titleCaser = cases.Title(language.AmericanEnglish)

// Resolver answers structured legality queries.
type Resolver struct {
	store store.Store
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

// Resolve looks up legality facts for the given params. Name resolution is
// exact-then-fuzzy for state and brand; product is always a contains
// filter. If a state was asked for but cannot be found, the resolution
// aborts empty rather than fabricate a claim.
func (r *Resolver) Resolve(ctx context.Context, params model.SearchParams) ([]model.LegalityFact, error) {
	var filter store.AllowListFilter

	if params.State != "" {
		state, err := r.resolveState(ctx, params.State)
		if err != nil {
			return nil, err
		}
		if state == nil {
			zap.L().Debug("legality: state not found, aborting",
				zap.String("state", params.State),
			)
			return nil, nil
		}
		filter.StateID = state.ID
	}

	if params.Brand != "" {
		brandIDs, err := r.resolveBrands(ctx, params.Brand)
		if err != nil {
			return nil, err
		}
		// No matching brand constrains nothing; the brand filter is
		// simply dropped rather than matching zero rows on a typo.
		filter.BrandIDs = brandIDs
	}

	filter.ProductContains = params.Product

	if filter.StateID == "" && len(filter.BrandIDs) == 0 && filter.ProductContains == "" {
		return nil, nil
	}

	facts, err := r.store.QueryAllowList(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "legality: query allow list")
	}
	return facts, nil
}

// resolveState finds a state by exact name, then by contains match.
func (r *Resolver) resolveState(ctx context.Context, name string) (*store.StateRow, error) {
	state, err := r.store.FindState(ctx, name)
	if err != nil {
		return nil, eris.Wrapf(err, "legality: find state %s", name)
	}
	if state != nil {
		return state, nil
	}
	state, err = r.store.FindStateFuzzy(ctx, name)
	if err != nil {
		return nil, eris.Wrapf(err, "legality: find state fuzzy %s", name)
	}
	return state, nil
}

// resolveBrands finds brand IDs by exact name, then by contains match. A
// fuzzy match with several candidates returns the union of their IDs; the
// resolver never arbitrarily picks one.
func (r *Resolver) resolveBrands(ctx context.Context, name string) ([]string, error) {
	brands, err := r.store.FindBrands(ctx, name)
	if err != nil {
		return nil, eris.Wrapf(err, "legality: find brands %s", name)
	}
	if len(brands) == 0 {
		brands, err = r.store.FindBrandsFuzzy(ctx, name)
		if err != nil {
			return nil, eris.Wrapf(err, "legality: find brands fuzzy %s", name)
		}
	}
	ids := make([]string, 0, len(brands))
	for _, b := range brands {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

// CanonicalState renders a state name in title case for provenance
// display ("texas" -> "Texas").
func CanonicalState(name string) string {
	return titleCaser.String(name)
}
