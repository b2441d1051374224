package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Chat-completions endpoints for the OpenAI-compatible providers.
const (
	OpenAIBaseURL   = "https://api.openai.com/v1/chat/completions"
	DeepSeekBaseURL = "https://api.deepseek.com/v1/chat/completions"
)

// OpenAICompatClient calls any OpenAI-compatible Chat Completions API:
// OpenAI itself, DeepSeek, or an Azure OpenAI deployment with its full
// endpoint URL.
type OpenAICompatClient struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
	label   string
}

// NewOpenAICompatClient creates a client for the given endpoint. label names
// the provider in logs ("OpenAI", "DeepSeek", "AzureOpenAI").
func NewOpenAICompatClient(label, apiKey, model, baseURL string) (*OpenAICompatClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: missing api key", strings.ToLower(label))
	}
	if baseURL == "" {
		baseURL = OpenAIBaseURL
	}
	return &OpenAICompatClient{
		http:    &http.Client{Timeout: 120 * time.Second},
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		label:   label,
	}, nil
}

func (c *OpenAICompatClient) Name() string { return c.label + ":" + c.model }
func (c *OpenAICompatClient) Close() error { return nil }

type chatReq struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float32           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
type chatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *OpenAICompatClient) Generate(ctx context.Context, cachedContext, dynamicPrompt string) (*Response, error) {
	reqBody := chatReq{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: cachedContext},
			{Role: "user", Content: dynamicPrompt},
		},
		Temperature:    0.3,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	raw, usage, err := c.post(ctx, reqBody)
	if err != nil {
		return nil, err
	}
	resp, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}
	resp.Usage = usage
	return resp, nil
}

func (c *OpenAICompatClient) TestConnection(ctx context.Context) (bool, string) {
	_, _, err := c.post(ctx, chatReq{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: "Reply with the single word OK."}},
	})
	if err != nil {
		return false, fmt.Sprintf("%s: %v", strings.ToLower(c.label), err)
	}
	return true, c.Name() + " reachable"
}

func (c *OpenAICompatClient) post(ctx context.Context, body chatReq) (string, TokenUsage, error) {
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(b))
	if err != nil {
		return "", TokenUsage{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	// Azure wants the key in api-key as well; harmless elsewhere.
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", TokenUsage{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		const max = 2048
		if len(payload) > max {
			payload = payload[:max]
		}
		err := fmt.Errorf("%s: unexpected status %s: %s", strings.ToLower(c.label), resp.Status, string(payload))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", TokenUsage{}, NewPermanentError(err)
		}
		if resp.StatusCode == 400 && strings.Contains(string(payload), "context_length_exceeded") {
			return "", TokenUsage{}, NewPermanentError(err)
		}
		return "", TokenUsage{}, err
	}

	var out chatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", TokenUsage{}, err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", TokenUsage{}, ErrInvalidJSON
	}
	usage := TokenUsage{
		Prompt:     out.Usage.PromptTokens,
		Completion: out.Usage.CompletionTokens,
		Total:      out.Usage.TotalTokens,
	}
	return out.Choices[0].Message.Content, usage, nil
}
