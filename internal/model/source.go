package model

import "github.com/rotisserie/eris"

// SourceTag identifies one of the evidence sources the engine can query.
type SourceTag string

const (
	SourceStateMap      SourceTag = "state_map"
	SourceKnowledgeBase SourceTag = "knowledge_base"
	SourceDriveFiles    SourceTag = "drive_files"
	SourceNoMatch       SourceTag = "no_match"
)

// queryableSources are the tags the classifier may select. SourceNoMatch is
// an outcome, never a query target.
var queryableSources = map[SourceTag]bool{
	SourceStateMap:      true,
	SourceKnowledgeBase: true,
	SourceDriveFiles:    true,
}

// ParseSourceTag validates a raw tag from model output. Unknown tags are
// rejected rather than passed through.
func ParseSourceTag(raw string) (SourceTag, error) {
	tag := SourceTag(raw)
	if !queryableSources[tag] {
		return "", eris.Errorf("model: unknown source tag %q", raw)
	}
	return tag, nil
}

// Provenance names which evidence source produced the primary answer for a
// request. Exactly one is chosen per request.
type Provenance struct {
	Source       SourceTag `json:"source"`
	Found        bool      `json:"found"`
	Brand        string    `json:"brand,omitempty"`
	State        string    `json:"state,omitempty"`
	Message      string    `json:"message,omitempty"`
	BrandLogoURL string    `json:"brandLogo,omitempty"`
}
