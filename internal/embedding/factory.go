package embedding

import (
	"context"
	"fmt"

	"github.com/kosa-aws-develop-figh2team/embed-service/internal/config"
	"go.uber.org/zap"
)

// Provider identifies an embedding backend.
type Provider string

const (
	// ProviderBedrock uses Amazon Bedrock Titan text embeddings.
	ProviderBedrock Provider = "bedrock"
	// ProviderOpenAI uses an OpenAI-compatible embeddings endpoint.
	ProviderOpenAI Provider = "openai"
	// ProviderMock uses deterministic hash-based embeddings. Tests and local dev only.
	ProviderMock Provider = "mock"
)

// NewEmbedder creates the embedder selected by cfg.Provider.
// Supported providers: "bedrock" (default), "openai", "mock".
func NewEmbedder(ctx context.Context, cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	switch Provider(cfg.Provider) {
	case ProviderBedrock, "":
		return NewTitanEmbedder(ctx, cfg.Region, cfg.ModelID, cfg.Dimensions, logger)
	case ProviderOpenAI:
		return NewOpenAIEmbedder(cfg.APIKeyEnv, cfg.ModelID, cfg.BaseURL, cfg.Dimensions)
	case ProviderMock:
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: bedrock, openai, mock)", cfg.Provider)
	}
}
