package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
)

const googleAIModelsURL = "https://generativelanguage.googleapis.com/v1beta/models"

var googleAIFallbacks = []string{
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-1.5-flash",
	"gemini-1.5-pro",
}

type googleAIProvider struct {
	genkit     *genkit.Genkit
	apiKey     string
	httpClient *http.Client
}

// NewGoogleAIProvider initializes genkit with the Google AI plugin.
func NewGoogleAIProvider(apiKey string) Provider {
	ctx := context.Background()
	googleAI := &googlegenai.GoogleAI{
		APIKey: apiKey,
	}
	g := genkit.Init(ctx, genkit.WithPlugins(googleAI))

	return &googleAIProvider{
		genkit:     g,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *googleAIProvider) Name() string {
	return "googleai"
}

func (p *googleAIProvider) FallbackModels() []string {
	return googleAIFallbacks
}

func (p *googleAIProvider) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, p.genkit,
		ai.WithModelName("googleai/"+model),
		ai.WithMessages(
			ai.NewSystemTextMessage(codeAssistantSystemPrompt),
			ai.NewUserTextMessage(prompt),
		),
	)
	if err != nil {
		return "", classifyGenerateError(err)
	}
	return resp.Text(), nil
}

// ListModels queries the Generative Language API directly; genkit does not
// expose the live model list.
func (p *googleAIProvider) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleAIModelsURL+"?key="+p.apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, classifyGenerateError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyGenerateError(fmt.Errorf("list models returned status %d", resp.StatusCode))
	}

	var payload struct {
		Models []struct {
			Name                       string   `json:"name"`
			SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}

	var names []string
	for _, m := range payload.Models {
		supported := false
		for _, method := range m.SupportedGenerationMethods {
			if method == "generateContent" {
				supported = true
				break
			}
		}
		if !supported {
			continue
		}
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	return names, nil
}
