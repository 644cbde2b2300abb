package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
)

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int64           `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewOpenAIProvider(apiKey, model, baseURL string, httpClient *http.Client) *OpenAIProvider {
	if model == "" {
		model = defaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (Response, error) {
	var messages []openAIMessage
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.User})

	bodyBytes, err := json.Marshal(openAIRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens(req),
	})
	if err != nil {
		return Response{}, fmt.Errorf("openai: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("openai: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("openai: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("openai: reading response: %w", err)
	}
	if !gjson.ValidBytes(respBody) {
		return Response{}, fmt.Errorf("openai: invalid JSON response (status %d)", resp.StatusCode)
	}

	parsed := gjson.ParseBytes(respBody)
	if msg := parsed.Get("error.message"); msg.Exists() {
		return Response{}, fmt.Errorf("openai: api error: %s", msg.String())
	}
	if resp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("openai: unexpected status %d", resp.StatusCode)
	}

	content := parsed.Get("choices.0.message.content")
	if !content.Exists() || strings.TrimSpace(content.String()) == "" {
		return Response{}, fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	usage := Usage{
		InputTokens:  parsed.Get("usage.prompt_tokens").Int(),
		OutputTokens: parsed.Get("usage.completion_tokens").Int(),
	}
	log.Debugf("llm openai response size=%d tokens_in=%d tokens_out=%d", len(content.String()), usage.InputTokens, usage.OutputTokens)
	return Response{Text: content.String(), Provider: p.Name(), Model: p.model, Usage: usage}, nil
}
