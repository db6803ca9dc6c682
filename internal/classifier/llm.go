package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cleberrangel/epic-forecast-api/internal/config"
	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
	"golang.org/x/time/rate"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultGoogleModel    = "gemini-2.0-flash"

	openAIEndpoint = "https://api.openai.com/v1/chat/completions"
	googleEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s"
)

// LLMProvider classifies via a hosted model. Calls are rate-limited and
// bounded by the configured timeout.
type LLMProvider struct {
	opts       config.ClassifierOptions
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewLLMProvider builds a provider for the configured backend.
func NewLLMProvider(opts config.ClassifierOptions) (*LLMProvider, error) {
	switch opts.Provider {
	case config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderGoogle:
	default:
		return nil, fmt.Errorf("provider %q is not LLM-backed", opts.Provider)
	}

	perMinute := opts.RatePerMinute
	if perMinute <= 0 {
		perMinute = 30
	}

	return &LLMProvider{
		opts:       opts,
		limiter:    rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
		httpClient: &http.Client{Timeout: opts.Timeout},
	}, nil
}

// Name implements Provider.
func (p *LLMProvider) Name() string { return string(p.opts.Provider) }

// Classify implements Provider.
func (p *LLMProvider) Classify(ctx context.Context, summary string) (Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	systemPrompt, userPrompt := buildPrompts(summary)

	var responseText string
	var err error
	switch p.opts.Provider {
	case config.ProviderAnthropic:
		responseText, err = p.callAnthropic(ctx, systemPrompt, userPrompt)
	case config.ProviderOpenAI:
		responseText, err = p.callOpenAI(ctx, systemPrompt, userPrompt)
	case config.ProviderGoogle:
		responseText, err = p.callGoogle(ctx, systemPrompt, userPrompt)
	}
	if err != nil {
		return Result{}, err
	}

	return parseResult(responseText)
}

func buildPrompts(summary string) (string, string) {
	var cats strings.Builder
	for _, cat := range model.Categories() {
		cats.WriteString("- ")
		cats.WriteString(string(cat))
		cats.WriteString("\n")
	}

	systemPrompt := fmt.Sprintf(`You classify software project epics into exactly one of these categories:
%s
Respond with only a JSON object: {"category": "<one of the categories above>", "confidence": <0.0-1.0>}.
The confidence reflects how certain you are; use a low value when the epic could fit several categories.`, cats.String())

	userPrompt := fmt.Sprintf("Epic summary: %s", strings.TrimSpace(summary))
	return systemPrompt, userPrompt
}

// parseResult extracts the category/confidence JSON, tolerating code fences.
func parseResult(text string) (Result, error) {
	text = strings.TrimSpace(text)
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}

	var raw struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Result{}, fmt.Errorf("parsing classifier response: %w", err)
	}

	cat, err := model.ParseCategory(raw.Category)
	if err != nil {
		return Result{}, err
	}

	confidence := raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return Result{Category: cat, Confidence: confidence}, nil
}

func (p *LLMProvider) callAnthropic(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	log := logger.Get(ctx)

	modelName := p.opts.Model
	if modelName == "" {
		modelName = defaultAnthropicModel
	}

	client := anthropic.NewClient(option.WithAPIKey(p.opts.APIKey))
	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(modelName),
		MaxTokens:   int64(p.opts.MaxTokens),
		Temperature: anthropic.Float(p.opts.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Debug().Str("model", modelName).
				Int64("tokens_in", message.Usage.InputTokens).
				Int64("tokens_out", message.Usage.OutputTokens).
				Msg("Anthropic classification response")
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in anthropic response")
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *LLMProvider) callOpenAI(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	modelName := p.opts.Model
	if modelName == "" {
		modelName = defaultOpenAIModel
	}

	body, err := json.Marshal(openAIRequest{
		Model: modelName,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: p.opts.Temperature,
		MaxTokens:   p.opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("serializing openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.opts.APIKey)

	var parsed openAIResponse
	if err := p.doJSON(req, &parsed); err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}
	return parsed.Choices[0].Message.Content, nil
}

type googleRequest struct {
	Contents          []googleContent `json:"contents"`
	SystemInstruction *googleContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
}

func (p *LLMProvider) callGoogle(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	modelName := p.opts.Model
	if modelName == "" {
		modelName = defaultGoogleModel
	}

	reqBody := googleRequest{
		Contents:          []googleContent{{Parts: []googlePart{{Text: userPrompt}}}},
		SystemInstruction: &googleContent{Parts: []googlePart{{Text: systemPrompt}}},
	}
	reqBody.GenerationConfig.Temperature = p.opts.Temperature
	reqBody.GenerationConfig.MaxOutputTokens = p.opts.MaxTokens

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("serializing google request: %w", err)
	}

	url := fmt.Sprintf(googleEndpoint, modelName, p.opts.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building google request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var parsed googleResponse
	if err := p.doJSON(req, &parsed); err != nil {
		return "", fmt.Errorf("google API error: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates in google response")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func (p *LLMProvider) doJSON(req *http.Request, out interface{}) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(data), 300))
	}
	return json.Unmarshal(data, out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
