// Package openai embeds text through the OpenAI embeddings API.
package openai

import (
	"context"
	"fmt"

	"github.com/praxishq/praxis/internal/memory/embeddings"
	"github.com/sashabaranov/go-openai"
)

const defaultModel = "text-embedding-3-small"

// Provider calls the OpenAI embeddings endpoint.
type Provider struct {
	client *openai.Client
	model  string
}

var _ embeddings.Provider = (*Provider)(nil)

// Config for the OpenAI backend. Model defaults to
// text-embedding-3-small; BaseURL overrides the API host for
// compatible gateways.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embeddings: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	return &Provider{client: openai.NewClientWithConfig(cc), model: cfg.Model}, nil
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned for model %s", p.model)
	}
	return resp.Data[0].Embedding, nil
}
