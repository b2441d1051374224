// Package llmclient provides the language-model adapters the commander uses
// to turn a battlefield prompt into orders. Every adapter speaks the same
// two-part prompt contract: a cached context (mission brief, doctrine, command
// reference) that changes rarely, and a dynamic prompt describing the current
// cycle.
package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var ErrInvalidJSON = errors.New("invalid json from LLM")

// PermanentError indicates an error that will not resolve with retries
// against the same provider, such as an invalid API key or an exhausted
// quota. The provider manager falls straight through to the next provider.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err wraps a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// TokenUsage is the billing-relevant token count for one generation.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Response is the parsed order envelope returned by a model. Orders stays
// untyped because downstream parsing must tolerate malformed entries
// individually rather than rejecting the whole batch.
type Response struct {
	Orders       []any       `json:"orders"`
	Commentary   string      `json:"commentary,omitempty"`
	OrderSummary SummaryList `json:"order_summary,omitempty"`

	Raw   string     `json:"-"`
	Usage TokenUsage `json:"-"`
}

// SummaryList holds the model's own one-line-per-order summaries. Models
// return it as either an array of strings or a single newline-separated
// string; both decode to trimmed non-empty lines.
type SummaryList []string

func (s *SummaryList) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		for _, ln := range strings.Split(t, "\n") {
			if ln = strings.TrimSpace(ln); ln != "" {
				*s = append(*s, ln)
			}
		}
	case []any:
		for _, item := range t {
			if ln := strings.TrimSpace(fmt.Sprint(item)); ln != "" {
				*s = append(*s, ln)
			}
		}
	}
	return nil
}

// Summary condenses the response into a short line for the next cycle's
// prompt: the first maxLines order-summary entries joined with "; ", or the
// commentary when the model sent no summary.
func (r *Response) Summary(maxLines int) string {
	lines := r.OrderSummary
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	if len(lines) > 0 {
		return strings.Join(lines, "; ")
	}
	return strings.TrimSpace(r.Commentary)
}

// Client is implemented by every provider adapter.
type Client interface {
	// Name identifies the provider and model for logs and audit entries.
	Name() string
	// Generate produces an order envelope from the cached context and the
	// per-cycle dynamic prompt.
	Generate(ctx context.Context, cachedContext, dynamicPrompt string) (*Response, error)
	// TestConnection performs a minimal round trip and reports reachability.
	TestConnection(ctx context.Context) (ok bool, detail string)
	Close() error
}

const envelopeSchema = `{
  "type": "object",
  "required": ["orders"],
  "properties": {
    "orders": {"type": "array"},
    "commentary": {"type": "string"},
    "order_summary": {"type": ["array", "string"]}
  }
}`

var envelope = jsonschema.MustCompileString("envelope.json", envelopeSchema)

// ParseResponse validates raw against the order envelope schema and decodes
// it. Only the envelope shape is enforced here; individual order entries are
// validated later so one bad order cannot sink the batch.
func ParseResponse(raw string) (*Response, error) {
	text := stripFences(raw)

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if err := envelope.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	var resp Response
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	resp.Raw = raw
	return &resp, nil
}

// stripFences drops a markdown code fence if the model wrapped its JSON in
// one, which smaller models do despite instructions.
func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	if i := strings.LastIndex(t, "```"); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}
