package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable marks a provider that has no usable credentials. Callers
// degrade instead of retrying.
var ErrUnavailable = errors.New("ai provider unavailable")

// Task types passed through to providers that distinguish document and
// query embeddings.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, dim int, text string, taskType string) ([]float32, error)
}

type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
}

type embedder struct {
	provider      IEmbedProvider
	model         string
	dim           int
	maxInputChars int
}

// NewEmbedder binds a provider to a model. dim is the vector size the
// storage schema expects; vectors of any other length are rejected here so
// they never reach the database. maxInputChars caps the text sent to the
// provider, 0 means no cap.
func NewEmbedder(p IEmbedProvider, model string, dim int, maxInputChars int) IEmbedder {
	return &embedder{provider: p, model: model, dim: dim, maxInputChars: maxInputChars}
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if e.maxInputChars > 0 {
		if runes := []rune(text); len(runes) > e.maxInputChars {
			text = string(runes[:e.maxInputChars])
		}
	}
	vec, err := e.provider.Embed(ctx, e.model, e.dim, text, taskType)
	if err != nil {
		return nil, err
	}
	if e.dim > 0 && len(vec) != e.dim {
		return nil, fmt.Errorf("provider %s returned %d-dim embedding, want %d", e.provider.Name(), len(vec), e.dim)
	}
	return vec, nil
}

func (e *embedder) ModelName() string {
	return e.model
}

type EmbedProviderFactory func(args interface{}) (IEmbedProvider, error)

var embedRegistry = map[string]EmbedProviderFactory{}

func RegisterEmbed(name string, factory EmbedProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embed provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
