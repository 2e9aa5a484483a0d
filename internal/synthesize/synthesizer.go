// Package synthesize renders aggregated evidence into a context block and
// issues the final completion request.
package synthesize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/greenatlas/compliance-assistant/internal/llm"
	"github.com/greenatlas/compliance-assistant/internal/model"
)

// contentTruncateLen caps knowledge entry content in the context block.
const contentTruncateLen = 500

// apology is the fixed user-safe reply when the synthesis call fails. It
// must never be replaced by a raw error.
const apology = "I'm sorry, I ran into a problem while putting your answer together. Please try again in a moment."

// systemContract fixes the assistant's tone and format rules.
const systemContract = `You are a compliance assistant for hemp product retailers. Answer using ONLY the evidence provided in the context block.

Rules:
- Always name which source category your answer came from (state legality map, knowledge base, or file library).
- Never include raw file URLs in your answer; say a download link is available instead.
- Legality statements must come from the state legality map evidence only. If the map has no entry, say the legality is not confirmed rather than guessing.
- If the context says nothing was found, ask one clarifying follow-up question and suggest submitting an information request form.
- Keep answers short and direct.`

// emptyEvidenceNote instructs the model when every source came back empty.
const emptyEvidenceNote = `No matching information was found in any data source for this question. Tell the user plainly that nothing was found, ask a clarifying follow-up question, and point them at the information request form.`

// Synthesizer issues the final completion.
type Synthesizer struct {
	completer llm.Completer
}

// New creates a Synthesizer over the given completion client.
func New(completer llm.Completer) *Synthesizer {
	return &Synthesizer{completer: completer}
}

// Synthesize renders the bundle and asks the model for the final answer.
// Failures degrade to a fixed apology; the caller always gets usable text.
func (s *Synthesizer) Synthesize(ctx context.Context, conversation []model.Message, bundle model.EvidenceBundle) string {
	system := systemContract + "\n\n=== CONTEXT ===\n" + RenderContext(bundle)

	text, err := s.completer.Complete(ctx, system, conversation)
	if err != nil {
		zap.L().Error("synthesize: completion failed", zap.Error(err))
		return apology
	}
	return strings.TrimSpace(text)
}

// RenderContext formats the evidence bundle into the Markdown-ish context
// block, one section per populated category, in fixed order. File URLs are
// never rendered, only a download-availability flag.
func RenderContext(bundle model.EvidenceBundle) string {
	if bundle.Empty() {
		return emptyEvidenceNote
	}

	var b strings.Builder

	if len(bundle.Facts) > 0 {
		b.WriteString("## State legality map\n")
		for _, f := range bundle.Facts {
			fmt.Fprintf(&b, "- %s by %s is legal in %s", f.Product, f.Brand, f.State)
			if f.Details != "" {
				fmt.Fprintf(&b, " (%s)", f.Details)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(bundle.Knowledge) > 0 {
		b.WriteString("## Knowledge base\n")
		for _, h := range bundle.Knowledge {
			fmt.Fprintf(&b, "### %s\n%s\n", h.Entry.Title, truncate(h.Entry.Content, contentTruncateLen))
			if len(h.Entry.Tags) > 0 {
				fmt.Fprintf(&b, "Tags: %s\n", strings.Join(h.Entry.Tags, ", "))
			}
			b.WriteString("\n")
		}
	}

	if len(bundle.Files) > 0 {
		b.WriteString("## File library\n")
		for _, h := range bundle.Files {
			fmt.Fprintf(&b, "- %s", h.File.FileName)
			if h.File.ID != "" {
				fmt.Fprintf(&b, " (id: %s)", h.File.ID)
			}
			if h.File.Brand != "" {
				fmt.Fprintf(&b, ", brand: %s", h.File.Brand)
			}
			if h.File.Category != "" {
				fmt.Fprintf(&b, ", category: %s", h.File.Category)
			}
			if h.File.FileURL != "" {
				b.WriteString(", download link available")
			}
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// Apology returns the fixed degraded-answer text, exported for the HTTP
// layer's tests.
func Apology() string {
	return apology
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
