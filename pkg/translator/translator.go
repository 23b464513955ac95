// Package translator turns broadcast text into a listener's language.
package translator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"live-relay-be/internal/errs"
	"live-relay-be/pkg/llm"
	"live-relay-be/pkg/llm/factory"
)

type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

type Config struct {
	Provider string // "ollama", "huggingface" or "http"
	BaseURL  string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

func New(cfg Config) (Translator, error) {
	if cfg.Provider == "http" {
		return NewHTTPTranslator(cfg.BaseURL, cfg.APIKey, &http.Client{Timeout: cfg.Timeout}), nil
	}

	provider, err := factory.NewLLMProvider(factory.Config{
		Provider: cfg.Provider,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return NewLLMTranslator(provider), nil
}

// wrapFailure classifies err: a cancelled ctx becomes ErrCancelled, anything
// else ErrTranslationFailed.
func wrapFailure(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", errs.ErrCancelled, ctxErr)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", errs.ErrCancelled, err)
	}
	return fmt.Errorf("%w: %w", errs.ErrTranslationFailed, err)
}

const systemPrompt = `You are a live interpreter for a religious study session.
Translate the user's text from %s to %s.
Reply with the translation only. Keep paragraph breaks exactly as in the input.
Do not add notes, explanations, quotes or transliterations.`

type LLMTranslator struct {
	provider llm.LLMProvider
}

func NewLLMTranslator(provider llm.LLMProvider) *LLMTranslator {
	return &LLMTranslator{provider: provider}
}

func (t *LLMTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	history := []llm.Message{
		{Role: "system", Content: fmt.Sprintf(systemPrompt, sourceLang, targetLang)},
		{Role: "user", Content: text},
	}

	out, err := t.provider.Chat(ctx, history, llm.WithTemperature(0.1))
	if err != nil {
		return "", wrapFailure(ctx, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: empty completion", errs.ErrTranslationFailed)
	}
	return out, nil
}
