package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/greenatlas/compliance-assistant/internal/aggregate"
	"github.com/greenatlas/compliance-assistant/internal/classifier"
	"github.com/greenatlas/compliance-assistant/internal/engine"
	"github.com/greenatlas/compliance-assistant/internal/files"
	"github.com/greenatlas/compliance-assistant/internal/knowledge"
	"github.com/greenatlas/compliance-assistant/internal/legality"
	"github.com/greenatlas/compliance-assistant/internal/llm"
	"github.com/greenatlas/compliance-assistant/internal/store"
	"github.com/greenatlas/compliance-assistant/internal/synthesize"
	"github.com/greenatlas/compliance-assistant/pkg/anthropic"
)

// appEnv holds the wired application components for a command invocation.
type appEnv struct {
	Store  store.Store
	Engine *engine.Engine
}

// openStore connects the configured database backend.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEngine wires the full pipeline: store, completion clients, the three
// searchers, aggregator, and synthesizer.
func initEngine(ctx context.Context) (*appEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	lex, err := classifier.DefaultLexicon()
	if err != nil {
		st.Close()
		return nil, err
	}

	client := anthropic.NewClient(cfg.Anthropic.Key)
	classify := llm.NewRateLimited(
		anthropic.NewCompleter(client, cfg.Anthropic.ClassifyModel, cfg.Anthropic.MaxTokens, "classify"),
		cfg.Anthropic.RequestsPerSec,
	)
	answer := llm.NewRateLimited(
		anthropic.NewCompleter(client, cfg.Anthropic.AnswerModel, cfg.Anthropic.MaxTokens, "answer"),
		cfg.Anthropic.RequestsPerSec,
	)

	eng := engine.New(
		classifier.New(classify, lex),
		aggregate.New(
			legality.NewResolver(st),
			knowledge.NewSearcher(st, knowledge.Config{
				FetchLimit: cfg.Engine.KnowledgeFetchLimit,
				TopResults: cfg.Engine.TopResults,
			}),
			files.NewSearcher(st, files.Config{
				FetchLimit:      cfg.Engine.FileFetchLimit,
				TopResults:      cfg.Engine.TopResults,
				ConfidenceFloor: cfg.Engine.FileConfidenceFloor,
			}),
		),
		synthesize.New(answer),
	)

	return &appEnv{Store: st, Engine: eng}, nil
}

// Close releases the environment's resources.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}
