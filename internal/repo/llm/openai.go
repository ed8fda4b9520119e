package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

var openAIFallbacks = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4.1-mini",
	"gpt-3.5-turbo",
}

// codeAssistantSystemPrompt frames every generation request. The response
// format (one fenced code block plus prose) is what the parser expects.
const codeAssistantSystemPrompt = `You are a coding assistant embedded in a developer team chat. ` +
	`Answer the user's request with working code when code is asked for. ` +
	`Put the code in a single fenced code block tagged with its language, ` +
	`and explain your approach in plain prose outside the block.`

type openAIProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOpenAIProvider talks to any OpenAI-compatible chat-completions endpoint.
func NewOpenAIProvider(baseURL, apiKey string) Provider {
	return &openAIProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *openAIProvider) Name() string {
	return "openai"
}

func (p *openAIProvider) FallbackModels() []string {
	return openAIFallbacks
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func (p *openAIProvider) Generate(ctx context.Context, model, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: codeAssistantSystemPrompt},
			{Role: "user", Content: prompt},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", classifyGenerateError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyGenerateError(fmt.Errorf("api returned status %d: %s", resp.StatusCode, string(body)))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("parse api response: %w", err)
	}
	if chatResp.Error != nil {
		return "", classifyGenerateError(fmt.Errorf("api error: %s (%s)", chatResp.Error.Message, chatResp.Error.Code))
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("api returned no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}

func (p *openAIProvider) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, classifyGenerateError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyGenerateError(fmt.Errorf("list models returned status %d", resp.StatusCode))
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}

	names := make([]string, 0, len(payload.Data))
	for _, m := range payload.Data {
		names = append(names, m.ID)
	}
	return names, nil
}
