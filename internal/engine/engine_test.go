package engine

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenatlas/compliance-assistant/internal/aggregate"
	"github.com/greenatlas/compliance-assistant/internal/classifier"
	"github.com/greenatlas/compliance-assistant/internal/files"
	"github.com/greenatlas/compliance-assistant/internal/knowledge"
	"github.com/greenatlas/compliance-assistant/internal/legality"
	"github.com/greenatlas/compliance-assistant/internal/model"
	"github.com/greenatlas/compliance-assistant/internal/store"
	"github.com/greenatlas/compliance-assistant/internal/store/storetest"
	"github.com/greenatlas/compliance-assistant/internal/synthesize"
)

type scriptedCompleter struct {
	text      string
	err       error
	calls     int
	gotSystem string
}

func (s *scriptedCompleter) Complete(_ context.Context, system string, _ []model.Message) (string, error) {
	s.calls++
	s.gotSystem = system
	return s.text, s.err
}

// newPipeline assembles a full engine over the memory store with scripted
// classify and answer completers.
func newPipeline(t *testing.T, m *storetest.MemoryStore, classify, answer *scriptedCompleter) *Engine {
	t.Helper()
	lex, err := classifier.DefaultLexicon()
	require.NoError(t, err)

	agg := aggregate.New(
		legality.NewResolver(m),
		knowledge.NewSearcher(m, knowledge.Config{}),
		files.NewSearcher(m, files.Config{}),
	)
	return New(
		classifier.New(classify, lex),
		agg,
		synthesize.New(answer),
	)
}

func seededStore() *storetest.MemoryStore {
	m := storetest.New()
	m.States = []store.StateRow{{ID: "state-1", Name: "Texas"}}
	m.Brands = []store.BrandRow{{ID: "brand-1", Name: "Galaxy Treats"}}
	m.Products = []storetest.Product{{ID: "product-1", BrandID: "brand-1", Name: "Delta-8 Gummies"}}
	m.AllowRows = []storetest.AllowRow{
		{StateID: "state-1", BrandID: "brand-1", ProductID: "product-1", Details: "hemp-derived"},
	}
	m.Files = []model.FileRecord{{
		ID:       "f47ac10b-58cc-4372-a567-0e02b2c3d479",
		FileName: "galaxy-treats-logo.png",
		FileURL:  "https://drive.example.com/galaxy-treats-logo.png",
		MimeType: "image/png",
		Brand:    "Galaxy Treats",
		Category: "branding",
	}}
	return m
}

func userMessage(text string) []model.Message {
	return []model.Message{{Role: model.RoleUser, Content: text}}
}

func TestRespond_NoMessages(t *testing.T) {
	eng := newPipeline(t, storetest.New(), &scriptedCompleter{}, &scriptedCompleter{})

	_, err := eng.Respond(context.Background(), ChatRequest{})

	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestRespond_LegalityQuestion(t *testing.T) {
	classify := &scriptedCompleter{
		text: `{"dataSources":["state_map"],"searchParams":{"state":"texas","brand":"Galaxy Treats","product":"delta-8"}}`,
	}
	answer := &scriptedCompleter{
		text: "Delta-8 Gummies by Galaxy Treats are legal in Texas per the state legality map.",
	}
	eng := newPipeline(t, seededStore(), classify, answer)

	resp, err := eng.Respond(context.Background(), ChatRequest{
		Messages: userMessage("Is Galaxy Treats delta-8 legal in Texas?"),
		ChatID:   "chat-1",
	})

	require.NoError(t, err)
	assert.Equal(t, model.SourceStateMap, resp.Source.Source)
	assert.True(t, resp.Source.Found)
	assert.Equal(t, "Texas", resp.Source.State)
	assert.Equal(t, "Galaxy Treats", resp.Source.Brand)
	assert.Equal(t, answer.text, resp.Response)
	assert.Contains(t, answer.gotSystem, "Delta-8 Gummies by Galaxy Treats is legal in Texas (hemp-derived)")
}

func TestRespond_BrandLogoRequest(t *testing.T) {
	classify := &scriptedCompleter{}
	answer := &scriptedCompleter{
		text: "I found the Galaxy Treats logo in the file library; a download link is available.",
	}
	eng := newPipeline(t, seededStore(), classify, answer)

	resp, err := eng.Respond(context.Background(), ChatRequest{
		Messages: userMessage("show me the logo for Galaxy Treats"),
	})

	require.NoError(t, err)
	assert.Zero(t, classify.calls, "logo phrasing resolves without a model call")
	assert.Equal(t, model.SourceDriveFiles, resp.Source.Source)
	assert.True(t, resp.Source.Found)
	assert.Equal(t, "Galaxy Treats", resp.Source.Brand)
	assert.Equal(t, "https://drive.example.com/galaxy-treats-logo.png", resp.Source.BrandLogoURL,
		"the logo URL travels in provenance for the UI")
	assert.NotContains(t, answer.gotSystem, "https://",
		"the model context never carries raw URLs")
}

func TestRespond_NothingFound(t *testing.T) {
	classify := &scriptedCompleter{
		text: `{"dataSources":["state_map","knowledge_base","drive_files"],"searchParams":{"query":"underwater basket weaving"}}`,
	}
	answer := &scriptedCompleter{
		text: "I could not find anything on that. Could you name the brand? You can also submit an information request form.",
	}
	eng := newPipeline(t, storetest.New(), classify, answer)

	resp, err := eng.Respond(context.Background(), ChatRequest{
		Messages: userMessage("tell me about underwater basket weaving"),
	})

	require.NoError(t, err)
	assert.Equal(t, model.SourceNoMatch, resp.Source.Source)
	assert.False(t, resp.Source.Found)
	assert.Equal(t, "No matching information found in any database", resp.Source.Message)
	assert.Equal(t, answer.text, resp.Response)
}

func TestRespond_SynthesisFailureDegradesToApology(t *testing.T) {
	classify := &scriptedCompleter{
		text: `{"dataSources":["state_map"],"searchParams":{"state":"texas"}}`,
	}
	answer := &scriptedCompleter{err: eris.New("model unavailable")}
	eng := newPipeline(t, seededStore(), classify, answer)

	resp, err := eng.Respond(context.Background(), ChatRequest{
		Messages: userMessage("Is delta-8 legal in Texas?"),
	})

	require.NoError(t, err, "synthesis failure is not a request failure")
	assert.Equal(t, synthesize.Apology(), resp.Response)
	assert.Equal(t, model.SourceStateMap, resp.Source.Source,
		"provenance still reflects the evidence that was found")
}

func TestRespond_StoreFailureDegradesToNoMatch(t *testing.T) {
	m := seededStore()
	m.ErrStates = eris.New("db down")
	m.ErrKnowledge = eris.New("db down")
	m.ErrFiles = eris.New("db down")

	classify := &scriptedCompleter{
		text: `{"dataSources":["state_map","knowledge_base","drive_files"],"searchParams":{"state":"texas","query":"delta-8"}}`,
	}
	answer := &scriptedCompleter{text: "Nothing was found; please try again or submit a request form."}
	eng := newPipeline(t, m, classify, answer)

	resp, err := eng.Respond(context.Background(), ChatRequest{
		Messages: userMessage("Is delta-8 legal in Texas?"),
	})

	require.NoError(t, err, "source failures never fail the request")
	assert.Equal(t, model.SourceNoMatch, resp.Source.Source)
}
