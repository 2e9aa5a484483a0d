package anthropic

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/greenatlas/compliance-assistant/internal/model"
)

// Completer adapts a Client to the engine's llm.Completer contract for a
// fixed model.
type Completer struct {
	client    Client
	model     string
	maxTokens int64
	phase     string
}

// NewCompleter builds a Completer bound to the given model. The phase label
// is only used for usage logging.
func NewCompleter(client Client, mdl string, maxTokens int, phase string) *Completer {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Completer{
		client:    client,
		model:     mdl,
		maxTokens: int64(maxTokens),
		phase:     phase,
	}
}

func (c *Completer) Complete(ctx context.Context, system string, msgs []model.Message) (string, error) {
	resp, err := c.client.CreateMessage(ctx, MessageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  msgs,
	})
	if err != nil {
		return "", eris.Wrap(err, "anthropic: complete")
	}
	resp.Usage.LogUsage(c.model, c.phase)
	if resp.Text == "" {
		return "", eris.New("anthropic: empty completion")
	}
	return resp.Text, nil
}
