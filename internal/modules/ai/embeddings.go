package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appcfg "github.com/cuentacuentos/core/internal/config"
)

const defaultEmbeddingModel = "text-embedding-3-small"

// callEmbeddings hits the OpenAI-style /v1/embeddings endpoint. Both openai
// and openai-compatible providers speak this shape; anthropic providers
// cannot serve the embedding task.
func callEmbeddings(ctx context.Context, provider *appcfg.AIProvider, text string) ([]float64, error) {
	if provider == nil {
		return nil, ErrUnconfigured
	}
	if normalizeProviderType(provider.Type) == "anthropic" {
		return nil, errors.New("anthropic providers do not serve embeddings")
	}
	if strings.TrimSpace(provider.APIKey) == "" {
		return nil, errors.New("AI provider api key is empty")
	}

	endpoint := normalizeOpenAICompatibleEndpoint(provider.BaseURL)
	model := strings.TrimSpace(provider.Model)
	if model == "" {
		model = defaultEmbeddingModel
	}

	body, _ := json.Marshal(map[string]interface{}{
		"model": model,
		"input": truncateText(text, 8000),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(provider.APIKey))
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("embeddings error: %s", strings.TrimSpace(string(respBody)))
	}

	var result struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}
	if result.Error != nil && strings.TrimSpace(result.Error.Message) != "" {
		return nil, fmt.Errorf("embeddings error: %s", result.Error.Message)
	}
	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, errors.New("empty embedding from AI")
	}
	return result.Data[0].Embedding, nil
}
