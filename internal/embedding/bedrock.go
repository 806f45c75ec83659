package embedding

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"
)

// TitanEmbedder produces embeddings with Amazon Bedrock's Titan text models.
// The client is constructed once and injected; there is no process-wide cache.
type TitanEmbedder struct {
	client     *bedrockruntime.Client
	modelID    string
	dimensions int
	logger     *zap.Logger
}

type titanRequest struct {
	InputText string `json:"inputText"`
}

type titanResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewTitanEmbedder builds a Bedrock runtime client for the given region and
// model. Credentials come from the default AWS credential chain.
func NewTitanEmbedder(ctx context.Context, region, modelID string, dimensions int, logger *zap.Logger) (*TitanEmbedder, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &TitanEmbedder{
		client:     bedrockruntime.NewFromConfig(awsCfg),
		modelID:    modelID,
		dimensions: dimensions,
		logger:     logger,
	}, nil
}

// Embed invokes the Titan model for a single text.
func (e *TitanEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(titanRequest{InputText: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal titan request: %w", err)
	}

	out, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.modelID),
		Body:        payload,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke failed: %w", err)
	}

	var resp titanResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse titan response: %w", err)
	}
	if err := checkDimensions(resp.Embedding, e.dimensions); err != nil {
		return nil, err
	}
	e.logger.Debug("embedding generated", zap.String("model", e.modelID), zap.Int("dimensions", len(resp.Embedding)))
	return resp.Embedding, nil
}

// EmbedBatch embeds each text sequentially; Titan accepts one input per invocation.
func (e *TitanEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *TitanEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the Bedrock client holds no persistent connections.
func (e *TitanEmbedder) Close() error {
	return nil
}
