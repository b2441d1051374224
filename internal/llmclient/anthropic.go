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

const anthropicBaseURL = "https://api.anthropic.com/v1/messages"

// AnthropicClient calls the Anthropic Messages API. The cached context is
// sent as the system prompt with a cache_control marker so repeated cycles
// hit the provider's prompt cache.
type AnthropicClient struct {
	http   *http.Client
	apiKey string
	model  string
}

func NewAnthropicClient(apiKey, model string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: missing api key")
	}
	return &AnthropicClient{
		http:   &http.Client{Timeout: 120 * time.Second},
		apiKey: apiKey,
		model:  model,
	}, nil
}

func (c *AnthropicClient) Name() string { return "Anthropic:" + c.model }
func (c *AnthropicClient) Close() error { return nil }

type anthropicReq struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    []anthropicPart `json:"system,omitempty"`
	Messages  []anthropicMsg  `json:"messages"`
}
type anthropicPart struct {
	Type         string         `json:"type"`
	Text         string         `json:"text"`
	CacheControl map[string]any `json:"cache_control,omitempty"`
}
type anthropicMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
type anthropicResp struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *AnthropicClient) Generate(ctx context.Context, cachedContext, dynamicPrompt string) (*Response, error) {
	body := anthropicReq{
		Model:     c.model,
		MaxTokens: 4096,
		Messages:  []anthropicMsg{{Role: "user", Content: dynamicPrompt}},
	}
	if cachedContext != "" {
		body.System = []anthropicPart{{
			Type:         "text",
			Text:         cachedContext,
			CacheControl: map[string]any{"type": "ephemeral"},
		}}
	}
	raw, usage, err := c.post(ctx, body)
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

func (c *AnthropicClient) TestConnection(ctx context.Context) (bool, string) {
	_, _, err := c.post(ctx, anthropicReq{
		Model:     c.model,
		MaxTokens: 16,
		Messages:  []anthropicMsg{{Role: "user", Content: "Reply with the single word OK."}},
	})
	if err != nil {
		return false, fmt.Sprintf("anthropic: %v", err)
	}
	return true, c.Name() + " reachable"
}

func (c *AnthropicClient) post(ctx context.Context, body anthropicReq) (string, TokenUsage, error) {
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicBaseURL, bytes.NewReader(b))
	if err != nil {
		return "", TokenUsage{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

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
		err := fmt.Errorf("anthropic: unexpected status %s: %s", resp.Status, string(payload))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", TokenUsage{}, NewPermanentError(err)
		}
		return "", TokenUsage{}, err
	}

	var out anthropicResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", TokenUsage{}, err
	}
	var parts []string
	for _, c := range out.Content {
		parts = append(parts, c.Text)
	}
	text := strings.Join(parts, "")
	if text == "" {
		return "", TokenUsage{}, ErrInvalidJSON
	}
	usage := TokenUsage{
		Prompt:     out.Usage.InputTokens,
		Completion: out.Usage.OutputTokens,
		Total:      out.Usage.InputTokens + out.Usage.OutputTokens,
	}
	return text, usage, nil
}
