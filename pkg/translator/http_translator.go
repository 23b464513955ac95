package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"live-relay-be/internal/errs"
)

// HTTPTranslator calls a LibreTranslate-compatible /translate endpoint.
type HTTPTranslator struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPTranslator(baseURL, apiKey string, client *http.Client) *HTTPTranslator {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTranslator{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error,omitempty"`
}

func (t *HTTPTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	payload, err := json.Marshal(translateRequest{
		Q:      text,
		Source: sourceLang,
		Target: targetLang,
		Format: "text",
		APIKey: t.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %w", errs.ErrTranslationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", errs.ErrTranslationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", wrapFailure(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapFailure(ctx, err)
	}

	var out translateResponse
	if err := json.Unmarshal(body, &out); err != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("%w: decode response: %w", errs.ErrTranslationFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = string(body)
		}
		return "", fmt.Errorf("%w: status %d: %s", errs.ErrTranslationFailed, resp.StatusCode, msg)
	}
	return out.TranslatedText, nil
}
