package llmclient

import (
	"context"
	"fmt"
	"time"

	genai "google.golang.org/genai"
)

// GeminiClient wraps the official genai client. The cached context is sent
// as the system instruction so Gemini's implicit prefix caching can reuse it
// across cycles while the dynamic prompt changes.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

func (g *GeminiClient) Generate(ctx context.Context, cachedContext, dynamicPrompt string) (*Response, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if cachedContext != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: cachedContext}}}
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := g.cli.Models.GenerateContent(ctx, g.model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: dynamicPrompt}}}},
			cfg,
		)
		if err != nil {
			lastErr = err
		} else if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = ErrInvalidJSON
		} else {
			out, perr := ParseResponse(resp.Candidates[0].Content.Parts[0].Text)
			if perr != nil {
				lastErr = perr
			} else {
				if um := resp.UsageMetadata; um != nil {
					out.Usage = TokenUsage{
						Prompt:     int(um.PromptTokenCount),
						Completion: int(um.CandidatesTokenCount),
						Total:      int(um.TotalTokenCount),
					}
				}
				return out, nil
			}
		}
		if IsPermanent(lastErr) {
			return nil, lastErr
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
		}
	}
	return nil, lastErr
}

func (g *GeminiClient) TestConnection(ctx context.Context) (bool, string) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: "Reply with the single word OK."}}}},
		nil,
	)
	if err != nil {
		return false, fmt.Sprintf("gemini: %v", err)
	}
	if len(resp.Candidates) == 0 {
		return false, "gemini: empty response"
	}
	return true, g.Name() + " reachable"
}
