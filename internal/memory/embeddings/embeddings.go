// Package embeddings defines the vector embedding boundary used by the
// memory manager. Implementations live in subpackages.
package embeddings

import "context"

// Provider turns text into a vector. Memory content is embedded one
// record at a time, at store and at retrieval.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name identifies the backend in logs.
	Name() string
}

// Config selects and configures an embedding backend.
type Config struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}
