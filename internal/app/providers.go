package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/SnippyKid/OmegaChat-sub000/internal/config"
	"github.com/SnippyKid/OmegaChat-sub000/internal/repo/llm"
	"github.com/SnippyKid/OmegaChat-sub000/internal/repo/mongodb"
	"github.com/SnippyKid/OmegaChat-sub000/internal/socket"
	"github.com/SnippyKid/OmegaChat-sub000/internal/usecase"
)

func newMongoDB(lc fx.Lifecycle, cfg *config.Config) (*mongodb.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := mongodb.NewConnection(ctx, cfg.Database.URI, cfg.Database.Database)
	if err != nil {
		return nil, fmt.Errorf("init mongo client: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return db.Client.Ping(ctx, nil)
		},
		OnStop: func(ctx context.Context) error {
			return db.Close(ctx)
		},
	})

	return db, nil
}

// newLLMProvider picks the backend from config, or infers it from whichever
// credential is present, preferring Google AI.
func newLLMProvider(cfg *config.Config) (llm.Provider, error) {
	switch cfg.LLM.Provider {
	case "googleai":
		return llm.NewGoogleAIProvider(cfg.LLM.GoogleAIAPIKey), nil
	case "openai":
		return llm.NewOpenAIProvider(cfg.LLM.OpenAIBaseURL, cfg.LLM.OpenAIAPIKey), nil
	case "":
		if cfg.LLM.GoogleAIAPIKey != "" {
			return llm.NewGoogleAIProvider(cfg.LLM.GoogleAIAPIKey), nil
		}
		if cfg.LLM.OpenAIAPIKey != "" {
			return llm.NewOpenAIProvider(cfg.LLM.OpenAIBaseURL, cfg.LLM.OpenAIAPIKey), nil
		}
		return nil, fmt.Errorf("no LLM credential configured")
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLM.Provider)
	}
}

func newModelCache(cfg *config.Config) llm.ModelCache {
	return llm.NewModelCache(cfg.LLM.ModelCacheTTL)
}

func newBroadcaster(hub *socket.Hub) usecase.Broadcaster {
	return hub
}

// EnsureIndexes builds the room indexes (unique invite code among them)
// before the server starts taking traffic.
func EnsureIndexes(lc fx.Lifecycle, roomRepo mongodb.RoomRepository) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return roomRepo.EnsureIndexes(ctx)
		},
	})
}
