package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

var ErrUnsupportedPair = errors.New("translate: language pair not supported by provider")

const (
	defaultGoogleBaseURL   = "https://translation.googleapis.com/language/translate/v2"
	defaultBhashiniURL     = "https://dhruva-api.bhashini.gov.in/services/inference/pipeline"
	defaultMyMemoryBaseURL = "https://api.mymemory.translated.net"
)

// Provider translates text from source to target. source may be empty when
// the provider can detect it.
type Provider interface {
	Name() string
	Translate(ctx context.Context, text, source, target string) (string, error)
}

func doJSON(client *http.Client, req *http.Request, name string) (gjson.Result, error) {
	resp, err := client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: reading response: %w", name, err)
	}
	if resp.StatusCode >= 300 {
		return gjson.Result{}, fmt.Errorf("%s: unexpected status %d: %.200s", name, resp.StatusCode, body)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%s: invalid JSON response", name)
	}
	return gjson.ParseBytes(body), nil
}

// GoogleProvider calls Cloud Translation v2 with an API key.
type GoogleProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGoogleProvider(apiKey, baseURL string, httpClient *http.Client) *GoogleProvider {
	if baseURL == "" {
		baseURL = defaultGoogleBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GoogleProvider{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Translate(ctx context.Context, text, source, target string) (string, error) {
	payload := map[string]any{
		"q":      []string{text},
		"target": target,
		"format": "text",
	}
	if source != "" {
		payload["source"] = source
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("google: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"?key="+url.QueryEscape(p.apiKey), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("google: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	parsed, err := doJSON(p.client, req, p.Name())
	if err != nil {
		return "", err
	}
	out := parsed.Get("data.translations.0.translatedText").String()
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("google: empty translation")
	}
	return out, nil
}

// BhashiniProvider calls the ULCA inference pipeline. It only serves pairs
// where one side is an Indic language.
type BhashiniProvider struct {
	apiKey   string
	userID   string
	endpoint string
	client   *http.Client
}

func NewBhashiniProvider(apiKey, userID, endpoint string, httpClient *http.Client) *BhashiniProvider {
	if endpoint == "" {
		endpoint = defaultBhashiniURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BhashiniProvider{apiKey: apiKey, userID: userID, endpoint: endpoint, client: httpClient}
}

func (p *BhashiniProvider) Name() string { return "bhashini" }

func (p *BhashiniProvider) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == "" {
		source, _ = DetectLanguage(text)
	}
	if !IsIndic(source) && !IsIndic(target) {
		return "", ErrUnsupportedPair
	}

	payload := map[string]any{
		"pipelineTasks": []map[string]any{{
			"taskType": "translation",
			"config": map[string]any{
				"language": map[string]string{
					"sourceLanguage": source,
					"targetLanguage": target,
				},
			},
		}},
		"inputData": map[string]any{
			"input": []map[string]string{{"source": text}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("bhashini: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("bhashini: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", p.apiKey)
	if p.userID != "" {
		req.Header.Set("userID", p.userID)
	}

	parsed, err := doJSON(p.client, req, p.Name())
	if err != nil {
		return "", err
	}
	out := parsed.Get("pipelineResponse.0.output.0.target").String()
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("bhashini: empty translation")
	}
	return out, nil
}

// MyMemoryProvider uses the anonymous free tier; an email raises the quota.
type MyMemoryProvider struct {
	email   string
	baseURL string
	client  *http.Client
}

func NewMyMemoryProvider(email, baseURL string, httpClient *http.Client) *MyMemoryProvider {
	if baseURL == "" {
		baseURL = defaultMyMemoryBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &MyMemoryProvider{email: email, baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

func (p *MyMemoryProvider) Name() string { return "mymemory" }

func (p *MyMemoryProvider) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == "" {
		source, _ = DetectLanguage(text)
	}
	q := url.Values{}
	q.Set("q", text)
	q.Set("langpair", source+"|"+target)
	if p.email != "" {
		q.Set("de", p.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/get?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("mymemory: creating request: %w", err)
	}

	parsed, err := doJSON(p.client, req, p.Name())
	if err != nil {
		return "", err
	}
	if status := parsed.Get("responseStatus").Int(); status != 0 && status != http.StatusOK {
		return "", fmt.Errorf("mymemory: status %d: %s", status, parsed.Get("responseDetails").String())
	}
	out := parsed.Get("responseData.translatedText").String()
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("mymemory: empty translation")
	}
	return out, nil
}
