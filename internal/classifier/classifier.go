// Package classifier turns a user utterance into a set of target data
// sources and a structured parameter bag. Unambiguous patterns (UUIDs,
// logo phrasing) are resolved locally; everything else goes through one
// completion call with a heuristic fallback.
package classifier

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greenatlas/compliance-assistant/internal/llm"
	"github.com/greenatlas/compliance-assistant/internal/model"
)

var (
	uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

	// "the logo for Galaxy Treats", "an image of Torch"
	assetOfBrandPattern = regexp.MustCompile(`(?i)\b(logo|image|icon|picture|photo|file)s?\s+(?:for|of)\s+(?:the\s+)?([A-Za-z0-9][A-Za-z0-9 '&-]*)`)

	// "find me the Galaxy Treats logo"
	findBrandAssetPattern = regexp.MustCompile(`(?i)\bfind\s+(?:me\s+)?(?:the|a|an)\s+(.+?)\s+(logo|image|file|document)s?\b`)

	// Words that imply the file index must be consulted.
	fileWordPattern = regexp.MustCompile(`(?i)\b(logo|file|image|document|pdf|picture|photo)\b`)
)

// assetFileTypes normalizes a matched asset keyword to a file type hint.
var assetFileTypes = map[string]string{
	"logo":     "logo",
	"icon":     "image",
	"image":    "image",
	"picture":  "image",
	"photo":    "image",
	"file":     "document",
	"document": "document",
}

// classifySystemPrompt is the contract for the model path. The model must
// answer with strict JSON naming the sources to query.
const classifySystemPrompt = `You route questions about hemp product legality to data sources. Respond with ONLY a JSON object, no prose:
{"dataSources": [...], "searchParams": {...}}

Sources:
- "state_map": structured product-legality questions (is X legal in state Y). Params: state, brand, product.
- "knowledge_base": policy, shipping, compliance, and general questions. Params: query.
- "drive_files": requests for files, logos, images, or documents. Params: brand, fileType, query, category.

Examples:
"Is Delta-8 legal in Texas?" -> {"dataSources":["state_map"],"searchParams":{"state":"Texas","product":"Delta-8"}}
"What is the shipping policy?" -> {"dataSources":["knowledge_base"],"searchParams":{"query":"shipping policy"}}
"Send me the Torch logo" -> {"dataSources":["drive_files"],"searchParams":{"brand":"Torch","fileType":"logo"}}
Questions may need several sources; include every source that could help.`

// recentWindow is how many trailing messages accompany the utterance on the
// model path.
const recentWindow = 3

// Classifier decides which sources a request should query.
type Classifier struct {
	completer llm.Completer
	lex       *Lexicon
}

// New creates a Classifier. completer may be nil, in which case every
// non-fast-path utterance takes the heuristic fallback.
func New(completer llm.Completer, lex *Lexicon) *Classifier {
	return &Classifier{completer: completer, lex: lex}
}

// Classify maps an utterance (plus recent conversation) to data sources and
// search params. It always produces a usable classification; model and
// parse failures degrade to heuristics internally.
func (c *Classifier) Classify(ctx context.Context, utterance string, recent []model.Message) model.Classification {
	// Fast path: a UUID in the utterance is a direct file reference.
	if token := uuidPattern.FindString(utterance); token != "" {
		if id, err := uuid.Parse(token); err == nil {
			return model.Classification{
				Sources: []model.SourceTag{model.SourceDriveFiles},
				Params:  model.SearchParams{FileID: id.String()},
			}
		}
	}

	// Fast path: unambiguous logo/file phrasing.
	if cls, ok := c.matchAssetPhrasing(utterance); ok {
		return cls
	}

	cls, err := c.classifyWithModel(ctx, utterance, recent)
	if err != nil {
		zap.L().Warn("classifier: model path failed, using heuristics",
			zap.Error(err),
		)
		return c.fallback(utterance)
	}

	// The model sometimes misses obvious file requests; force the file
	// index in when file words appear.
	if !cls.HasSource(model.SourceDriveFiles) && fileWordPattern.MatchString(utterance) {
		cls.Sources = append(cls.Sources, model.SourceDriveFiles)
	}

	return cls
}

// matchAssetPhrasing checks both logo-phrasing patterns and extracts the
// bounded brand name.
func (c *Classifier) matchAssetPhrasing(utterance string) (model.Classification, bool) {
	if m := assetOfBrandPattern.FindStringSubmatch(utterance); m != nil {
		return assetClassification(m[2], m[1]), true
	}
	if m := findBrandAssetPattern.FindStringSubmatch(utterance); m != nil {
		return assetClassification(m[1], m[2]), true
	}
	return model.Classification{}, false
}

func assetClassification(brand, assetWord string) model.Classification {
	return model.Classification{
		Sources: []model.SourceTag{model.SourceDriveFiles},
		Params: model.SearchParams{
			Brand:    cleanBrand(brand),
			FileType: assetFileTypes[strings.ToLower(assetWord)],
		},
	}
}

// cleanBrand trims trailing punctuation and filler from a captured brand
// name.
func cleanBrand(brand string) string {
	brand = strings.TrimSpace(brand)
	brand = strings.TrimRight(brand, ".!?,;:")
	brand = strings.TrimSuffix(brand, " please")
	return strings.TrimSpace(brand)
}

// classifyWire mirrors the JSON shape the model is instructed to emit.
type classifyWire struct {
	DataSources  []string           `json:"dataSources"`
	SearchParams model.SearchParams `json:"searchParams"`
}

func (c *Classifier) classifyWithModel(ctx context.Context, utterance string, recent []model.Message) (model.Classification, error) {
	if c.completer == nil {
		return model.Classification{}, errNoCompleter
	}

	window := recent
	if len(window) > recentWindow {
		window = window[len(window)-recentWindow:]
	}
	msgs := make([]model.Message, 0, len(window)+1)
	msgs = append(msgs, window...)
	msgs = append(msgs, model.Message{Role: model.RoleUser, Content: utterance})

	text, err := c.completer.Complete(ctx, classifySystemPrompt, msgs)
	if err != nil {
		return model.Classification{}, err
	}

	return parseClassification(text)
}

// parseClassification decodes the model's JSON strictly: unknown source
// tags are dropped, and a result with no valid source is a parse failure.
func parseClassification(text string) (model.Classification, error) {
	raw := extractJSONObject(text)
	if raw == "" {
		return model.Classification{}, errNoJSON
	}

	var wire classifyWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return model.Classification{}, err
	}

	var sources []model.SourceTag
	for _, s := range wire.DataSources {
		tag, err := model.ParseSourceTag(s)
		if err != nil {
			zap.L().Debug("classifier: dropping unknown source tag",
				zap.String("tag", s),
			)
			continue
		}
		if !containsTag(sources, tag) {
			sources = append(sources, tag)
		}
	}
	if len(sources) == 0 {
		return model.Classification{}, errNoSources
	}

	return model.Classification{Sources: sources, Params: wire.SearchParams}, nil
}

// fallback is the fixed recovery when the model path fails entirely.
func (c *Classifier) fallback(utterance string) model.Classification {
	return model.Classification{
		Sources: []model.SourceTag{model.SourceKnowledgeBase, model.SourceDriveFiles},
		Params: model.SearchParams{
			Query:    utterance,
			Brand:    c.lex.ExtractBrand(utterance),
			FileType: c.lex.ExtractFileType(utterance),
		},
	}
}

// extractJSONObject returns the outermost {...} block in text, tolerating
// code fences and surrounding prose.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func containsTag(tags []model.SourceTag, tag model.SourceTag) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
