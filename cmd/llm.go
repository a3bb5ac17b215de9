package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/joescharf/kanban/internal/llm"
	"github.com/joescharf/kanban/internal/store"
)

// newLLMClient creates an LLM client from config/env, or returns nil if no API key is configured.
func newLLMClient() *llm.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	return llm.NewClient(apiKey, viper.GetString("anthropic.model"))
}

// priorityIDs returns the configured priority ids in order.
func priorityIDs(ctx context.Context, s store.Store) ([]string, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	ids := make([]string, len(cfg.Priorities))
	for i, p := range cfg.Priorities {
		ids[i] = p.ID
	}
	return ids, nil
}
