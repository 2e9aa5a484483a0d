package model

import "time"

// SearchParams is the structured parameter bag the classifier extracts from
// an utterance. Empty string means the parameter is absent. Built once per
// request and read-only downstream.
type SearchParams struct {
	State    string `json:"state,omitempty"`
	Brand    string `json:"brand,omitempty"`
	Product  string `json:"product,omitempty"`
	Query    string `json:"query,omitempty"`
	FileType string `json:"fileType,omitempty"`
	FileID   string `json:"fileId,omitempty"`
	Category string `json:"category,omitempty"`
}

// Classification is the outcome of intent classification: which sources to
// query and with what parameters.
type Classification struct {
	Sources []SourceTag  `json:"dataSources"`
	Params  SearchParams `json:"searchParams"`
}

// HasSource reports whether the classification selected the given tag.
func (c Classification) HasSource(tag SourceTag) bool {
	for _, s := range c.Sources {
		if s == tag {
			return true
		}
	}
	return false
}

// LegalityFact asserts that a product from a brand is legal in a state.
// Facts are derived by joining the allow-list relation; absence of a row is
// "not asserted", never an explicit prohibition.
type LegalityFact struct {
	State   string `json:"state"`
	Brand   string `json:"brand"`
	Product string `json:"product"`
	IsLegal bool   `json:"isLegal"`
	Details string `json:"details,omitempty"`
}

// KnowledgeEntry is a free-text knowledge base article. Read-only to the
// engine.
type KnowledgeEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KnowledgeHit pairs a knowledge entry with its source-local relevance
// score in [0,1].
type KnowledgeHit struct {
	Entry      KnowledgeEntry `json:"entry"`
	Confidence float64        `json:"confidence"`
}

// MaxSubcategories is the number of optional subcategory slots on a file
// record.
const MaxSubcategories = 6

// FileRecord is an indexed file or document. Read-only to the engine.
type FileRecord struct {
	ID            string   `json:"id"`
	FileName      string   `json:"fileName"`
	FileURL       string   `json:"fileUrl,omitempty"`
	MimeType      string   `json:"mimeType"`
	Brand         string   `json:"brand,omitempty"`
	Category      string   `json:"category,omitempty"`
	Subcategories []string `json:"subcategories,omitempty"`
}

// FileHit pairs a file record with its source-local relevance score in
// [0,1].
type FileHit struct {
	File       FileRecord `json:"file"`
	Confidence float64    `json:"confidence"`
}

// EvidenceBundle aggregates the results of every queried source plus the
// chosen provenance. Built fresh per request, never persisted by the
// engine.
type EvidenceBundle struct {
	Facts     []LegalityFact `json:"legalityFacts,omitempty"`
	Knowledge []KnowledgeHit `json:"knowledgeHits,omitempty"`
	Files     []FileHit      `json:"fileHits,omitempty"`
	Source    Provenance     `json:"sourceInfo"`
}

// Empty reports whether no source produced any evidence.
func (b EvidenceBundle) Empty() bool {
	return len(b.Facts) == 0 && len(b.Knowledge) == 0 && len(b.Files) == 0
}
