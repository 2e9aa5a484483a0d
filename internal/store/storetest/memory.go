// Package storetest provides an in-memory Store with the same matching
// semantics as the SQL backends, for use in unit tests.
package storetest

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/greenatlas/compliance-assistant/internal/model"
	"github.com/greenatlas/compliance-assistant/internal/store"
)

// MemoryStore implements store.Store over in-memory slices. Individual
// operations can be forced to fail through the Err* fields. Methods may be
// called from concurrent goroutines, as the aggregator does; seed the data
// fields before handing the store out.
type MemoryStore struct {
	States    []store.StateRow
	Brands    []store.BrandRow
	Products  []Product
	AllowRows []AllowRow
	Knowledge []model.KnowledgeEntry
	Files     []model.FileRecord

	ErrStates    error
	ErrBrands    error
	ErrAllowList error
	ErrKnowledge error
	ErrFiles     error

	mu sync.Mutex
	// Calls counts invocations by method name. Read it only after the
	// calling goroutines have been joined.
	Calls map[string]int
}

// Product links a product to its brand.
type Product struct {
	ID      string
	BrandID string
	Name    string
}

// AllowRow is an allow-list row by ID.
type AllowRow struct {
	StateID   string
	BrandID   string
	ProductID string
	Details   string
}

// New creates an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{Calls: map[string]int{}}
}

func (m *MemoryStore) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Calls == nil {
		m.Calls = map[string]int{}
	}
	m.Calls[method]++
}

func (m *MemoryStore) FindState(_ context.Context, name string) (*store.StateRow, error) {
	m.record("FindState")
	if m.ErrStates != nil {
		return nil, m.ErrStates
	}
	for _, s := range m.States {
		if strings.EqualFold(s.Name, name) {
			row := s
			return &row, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) FindStateFuzzy(_ context.Context, name string) (*store.StateRow, error) {
	m.record("FindStateFuzzy")
	if m.ErrStates != nil {
		return nil, m.ErrStates
	}
	for _, s := range m.States {
		if containsFold(s.Name, name) {
			row := s
			return &row, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) FindBrands(_ context.Context, name string) ([]store.BrandRow, error) {
	m.record("FindBrands")
	if m.ErrBrands != nil {
		return nil, m.ErrBrands
	}
	var out []store.BrandRow
	for _, b := range m.Brands {
		if strings.EqualFold(b.Name, name) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MemoryStore) FindBrandsFuzzy(_ context.Context, name string) ([]store.BrandRow, error) {
	m.record("FindBrandsFuzzy")
	if m.ErrBrands != nil {
		return nil, m.ErrBrands
	}
	var out []store.BrandRow
	for _, b := range m.Brands {
		if containsFold(b.Name, name) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MemoryStore) QueryAllowList(_ context.Context, filter store.AllowListFilter) ([]model.LegalityFact, error) {
	m.record("QueryAllowList")
	if m.ErrAllowList != nil {
		return nil, m.ErrAllowList
	}
	var facts []model.LegalityFact
	for _, row := range m.AllowRows {
		if filter.StateID != "" && row.StateID != filter.StateID {
			continue
		}
		if len(filter.BrandIDs) > 0 && !containsString(filter.BrandIDs, row.BrandID) {
			continue
		}
		product := m.productByID(row.ProductID)
		if product == nil {
			continue
		}
		if filter.ProductContains != "" && !containsFold(product.Name, filter.ProductContains) {
			continue
		}
		facts = append(facts, model.LegalityFact{
			State:   m.stateName(row.StateID),
			Brand:   m.brandName(row.BrandID),
			Product: product.Name,
			IsLegal: true,
			Details: row.Details,
		})
	}
	return facts, nil
}

func (m *MemoryStore) SearchKnowledge(_ context.Context, substring string, limit int) ([]model.KnowledgeEntry, error) {
	m.record("SearchKnowledge")
	if m.ErrKnowledge != nil {
		return nil, m.ErrKnowledge
	}
	var out []model.KnowledgeEntry
	for _, e := range m.Knowledge {
		if containsFold(e.Title, substring) || containsFold(e.Content, substring) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) FileByID(_ context.Context, id string) (*model.FileRecord, error) {
	m.record("FileByID")
	if m.ErrFiles != nil {
		return nil, m.ErrFiles
	}
	for _, f := range m.Files {
		if f.ID == id {
			rec := f
			return &rec, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) FindBrandLogoFiles(_ context.Context, brand string) ([]model.FileRecord, error) {
	m.record("FindBrandLogoFiles")
	if m.ErrFiles != nil {
		return nil, m.ErrFiles
	}
	var out []model.FileRecord
	for _, f := range m.Files {
		if strings.EqualFold(f.Brand, brand) && containsFold(f.FileName, "logo") {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *MemoryStore) SearchFiles(_ context.Context, filter store.FileFilter) ([]model.FileRecord, error) {
	m.record("SearchFiles")
	if m.ErrFiles != nil {
		return nil, m.ErrFiles
	}

	match := func(f model.FileRecord) bool {
		for _, term := range filter.NameTerms {
			if containsFold(f.FileName, term) {
				return true
			}
		}
		if filter.Brand != "" && containsFold(f.Brand, filter.Brand) {
			return true
		}
		if filter.Category != "" && containsFold(f.Category, filter.Category) {
			return true
		}
		if filter.NameContains != "" && containsFold(f.FileName, filter.NameContains) {
			return true
		}
		if filter.MimeContains != "" && containsFold(f.MimeType, filter.MimeContains) {
			return true
		}
		return false
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	var out []model.FileRecord
	for _, f := range m.Files {
		if match(f) {
			out = append(out, f)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }

func (m *MemoryStore) SeedFixture(_ context.Context, fx *store.Fixture) error {
	for i, name := range fx.States {
		m.States = append(m.States, store.StateRow{ID: idFor("state", i), Name: name})
	}
	for i, name := range fx.Brands {
		m.Brands = append(m.Brands, store.BrandRow{ID: idFor("brand", i), Name: name})
	}
	for i, p := range fx.Products {
		brand := m.brandByName(p.Brand)
		if brand == nil {
			continue
		}
		m.Products = append(m.Products, Product{ID: idFor("product", i), BrandID: brand.ID, Name: p.Name})
	}
	for _, row := range fx.AllowList {
		state := m.stateByName(row.State)
		brand := m.brandByName(row.Brand)
		product := m.productByName(row.Brand, row.Product)
		if state == nil || brand == nil || product == nil {
			continue
		}
		m.AllowRows = append(m.AllowRows, AllowRow{
			StateID:   state.ID,
			BrandID:   brand.ID,
			ProductID: product.ID,
			Details:   row.Details,
		})
	}
	for i, k := range fx.Knowledge {
		m.Knowledge = append(m.Knowledge, model.KnowledgeEntry{
			ID:        idFor("knowledge", i),
			Title:     k.Title,
			Content:   k.Content,
			Tags:      k.Tags,
			UpdatedAt: k.UpdatedAt,
		})
	}
	for i, f := range fx.Files {
		subs := f.Subcategories
		if len(subs) > model.MaxSubcategories {
			subs = subs[:model.MaxSubcategories]
		}
		m.Files = append(m.Files, model.FileRecord{
			ID:            idFor("file", i),
			FileName:      f.FileName,
			FileURL:       f.FileURL,
			MimeType:      f.MimeType,
			Brand:         f.Brand,
			Category:      f.Category,
			Subcategories: subs,
		})
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) stateByName(name string) *store.StateRow {
	for _, s := range m.States {
		if strings.EqualFold(s.Name, name) {
			row := s
			return &row
		}
	}
	return nil
}

func (m *MemoryStore) brandByName(name string) *store.BrandRow {
	for _, b := range m.Brands {
		if strings.EqualFold(b.Name, name) {
			row := b
			return &row
		}
	}
	return nil
}

func (m *MemoryStore) productByName(brand, name string) *Product {
	b := m.brandByName(brand)
	if b == nil {
		return nil
	}
	for _, p := range m.Products {
		if p.BrandID == b.ID && strings.EqualFold(p.Name, name) {
			row := p
			return &row
		}
	}
	return nil
}

func (m *MemoryStore) productByID(id string) *Product {
	for _, p := range m.Products {
		if p.ID == id {
			row := p
			return &row
		}
	}
	return nil
}

func (m *MemoryStore) stateName(id string) string {
	for _, s := range m.States {
		if s.ID == id {
			return s.Name
		}
	}
	return ""
}

func (m *MemoryStore) brandName(id string) string {
	for _, b := range m.Brands {
		if b.ID == id {
			return b.Name
		}
	}
	return ""
}

func idFor(kind string, i int) string {
	return kind + "-" + strconv.Itoa(i+1)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
