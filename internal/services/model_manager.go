package services

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// ModelType distinguishes what a resolved model instance is used for.
type ModelType string

const ModelTypeTextEmbedding ModelType = "text-embedding"

// ModelInstance is a resolved embedding model a tenant is entitled to use.
type ModelInstance struct {
	Provider  string
	Model     string
	ModelType ModelType
}

// ModelManager resolves a (provider, model) pair for a tenant. Resolution is
// fatal on an unknown provider or model: dataset updates must not persist an
// embedding configuration that cannot actually embed.
type ModelManager interface {
	GetModelInstance(ctx context.Context, tenantID, provider string, modelType ModelType, model string) (*ModelInstance, error)
}

// OpenAIModelManager resolves models against the OpenAI API.
type OpenAIModelManager struct {
	client *openai.Client
	log    *logrus.Entry
}

var _ ModelManager = (*OpenAIModelManager)(nil)

func NewOpenAIModelManager(apiKey, baseURL string) *OpenAIModelManager {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIModelManager{
		client: openai.NewClientWithConfig(cfg),
		log:    logrus.WithField("component", "model_manager"),
	}
}

func (m *OpenAIModelManager) GetModelInstance(ctx context.Context, tenantID, provider string, modelType ModelType, model string) (*ModelInstance, error) {
	if provider != "openai" {
		return nil, fmt.Errorf("model provider %q not found", provider)
	}
	if modelType != ModelTypeTextEmbedding {
		return nil, fmt.Errorf("model type %q not supported by provider %q", modelType, provider)
	}
	if _, err := m.client.GetModel(ctx, model); err != nil {
		return nil, fmt.Errorf("resolve model %q for tenant %s: %w", model, tenantID, err)
	}
	m.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"provider":  provider,
		"model":     model,
	}).Debug("resolved embedding model")
	return &ModelInstance{Provider: provider, Model: model, ModelType: modelType}, nil
}

// Embedder turns chunk texts into vectors. Vector maintenance tasks use it
// when a dataset's embedding model changes.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder embeds texts through the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

var _ Embedder = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.EmbeddingModel(model),
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d, want %d", len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
