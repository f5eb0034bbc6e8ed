package providers

import (
	"context"

	"github.com/ecamargo/wabot/pkg/logger"
)

// Fallback routes chat calls to a primary provider and retries once against
// a secondary provider (with its own model) when the primary errors.
type Fallback struct {
	primary        LLMProvider
	secondary      LLMProvider
	secondaryModel string
}

func NewFallback(primary, secondary LLMProvider, secondaryModel string) *Fallback {
	return &Fallback{
		primary:        primary,
		secondary:      secondary,
		secondaryModel: secondaryModel,
	}
}

func (f *Fallback) Name() string { return f.primary.Name() }

func (f *Fallback) Chat(ctx context.Context, messages []Message, tools []ToolSpec, model string, opts Options) (*Response, error) {
	resp, err := f.primary.Chat(ctx, messages, tools, model, opts)
	if err == nil {
		return resp, nil
	}
	if f.secondary == nil {
		return nil, err
	}

	logger.WarnCF("providers", "Primary provider failed, using fallback",
		map[string]interface{}{
			"primary":           f.primary.Name(),
			"primary_provider":  InferProviderFromModel(model),
			"fallback":          f.secondary.Name(),
			"fallback_model":    f.secondaryModel,
			"fallback_provider": InferProviderFromModel(f.secondaryModel),
			"error":             err.Error(),
		})
	return f.secondary.Chat(ctx, messages, tools, f.secondaryModel, opts)
}
