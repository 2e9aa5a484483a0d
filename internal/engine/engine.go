// Package engine runs the classify -> aggregate -> synthesize pipeline for
// a single chat request. The engine holds no cross-request state; every
// request builds its evidence bundle from scratch.
package engine

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/greenatlas/compliance-assistant/internal/aggregate"
	"github.com/greenatlas/compliance-assistant/internal/classifier"
	"github.com/greenatlas/compliance-assistant/internal/model"
	"github.com/greenatlas/compliance-assistant/internal/synthesize"
)

// ErrNoMessages is returned when a request carries no conversation.
var ErrNoMessages = eris.New("engine: no messages provided")

// ChatRequest is the request contract of the chat operation.
type ChatRequest struct {
	Messages []model.Message `json:"messages"`
	ChatID   string          `json:"chatId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
}

// ChatResponse is the success contract of the chat operation.
type ChatResponse struct {
	Response string           `json:"response"`
	Source   model.Provenance `json:"sourceInfo"`
}

// Engine wires the pipeline stages together.
type Engine struct {
	classifier  *classifier.Classifier
	aggregator  *aggregate.Aggregator
	synthesizer *synthesize.Synthesizer
}

// New assembles an Engine from its stages.
func New(c *classifier.Classifier, a *aggregate.Aggregator, s *synthesize.Synthesizer) *Engine {
	return &Engine{classifier: c, aggregator: a, synthesizer: s}
}

// Respond runs the full pipeline for one request. The only error surfaced
// to callers is a malformed request; everything downstream degrades to a
// usable answer.
func (e *Engine) Respond(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if len(req.Messages) == 0 {
		return ChatResponse{}, ErrNoMessages
	}

	started := time.Now()
	utterance := model.LastUserContent(req.Messages)
	recent := req.Messages[:len(req.Messages)-1]

	cls := e.classifier.Classify(ctx, utterance, recent)
	zap.L().Debug("engine: classified",
		zap.String("chat_id", req.ChatID),
		zap.Any("sources", cls.Sources),
	)

	bundle := e.aggregator.Aggregate(ctx, cls.Sources, cls.Params)

	answer := e.synthesizer.Synthesize(ctx, req.Messages, bundle)

	zap.L().Info("engine: request complete",
		zap.String("chat_id", req.ChatID),
		zap.String("user_id", req.UserID),
		zap.String("source", string(bundle.Source.Source)),
		zap.Bool("found", bundle.Source.Found),
		zap.Duration("elapsed", time.Since(started)),
	)

	return ChatResponse{Response: answer, Source: bundle.Source}, nil
}
