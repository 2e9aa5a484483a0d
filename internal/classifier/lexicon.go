package classifier

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var lexiconYAML []byte

// Lexicon holds the known-brand list and the keyword-to-filetype table used
// by heuristic extraction.
type Lexicon struct {
	Brands    []string        `yaml:"brands"`
	FileTypes []FileTypeEntry `yaml:"file_types"`
}

// FileTypeEntry maps a file type to the keywords that imply it. Entry order
// is significant: earlier entries win.
type FileTypeEntry struct {
	Type     string   `yaml:"type"`
	Keywords []string `yaml:"keywords"`
}

// DefaultLexicon parses the embedded lexicon.
func DefaultLexicon() (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(lexiconYAML, &lex); err != nil {
		return nil, eris.Wrap(err, "classifier: parse lexicon")
	}
	return &lex, nil
}

// ExtractBrand returns the first known brand mentioned in the utterance,
// case-insensitive, or "".
func (l *Lexicon) ExtractBrand(utterance string) string {
	lower := strings.ToLower(utterance)
	for _, brand := range l.Brands {
		if strings.Contains(lower, strings.ToLower(brand)) {
			return brand
		}
	}
	return ""
}

// ExtractFileType returns the file type implied by the first matching
// keyword in the utterance, or "".
func (l *Lexicon) ExtractFileType(utterance string) string {
	lower := strings.ToLower(utterance)
	for _, entry := range l.FileTypes {
		for _, kw := range entry.Keywords {
			if strings.Contains(lower, kw) {
				return entry.Type
			}
		}
	}
	return ""
}
