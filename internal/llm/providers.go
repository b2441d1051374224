// Package llm manages the pool of language-model providers: ordered
// fallback, per-provider failure accounting and API key resolution. It sits
// between the commander and the llmclient adapters.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"tacticom/internal/llmclient"
)

// ProviderKind selects which adapter a provider entry uses.
type ProviderKind string

const (
	KindGemini    ProviderKind = "gemini"
	KindOpenAI    ProviderKind = "openai"
	KindAnthropic ProviderKind = "anthropic"
	KindDeepSeek  ProviderKind = "deepseek"
	KindAzure     ProviderKind = "azure_openai"
	KindFake      ProviderKind = "fake"
)

// envKey names the environment variable holding each kind's API key.
var envKey = map[ProviderKind]string{
	KindGemini:    "GEMINI_API_KEY",
	KindOpenAI:    "OPENAI_API_KEY",
	KindAnthropic: "ANTHROPIC_API_KEY",
	KindDeepSeek:  "DEEPSEEK_API_KEY",
	KindAzure:     "AZURE_OPENAI_API_KEY",
}

// ProviderConfig describes one provider entry in the fallback chain.
type ProviderConfig struct {
	Name     string       `yaml:"name" json:"name"`
	Kind     ProviderKind `yaml:"kind" json:"kind"`
	Model    string       `yaml:"model" json:"model"`
	Enabled  bool         `yaml:"enabled" json:"enabled"`
	Priority int          `yaml:"priority" json:"priority"`
	APIKey   string       `yaml:"api_key,omitempty" json:"-"`
	BaseURL  string       `yaml:"base_url,omitempty" json:"base_url,omitempty"`
}

// ErrNoProvider is returned when every enabled provider has exceeded its
// failure budget or none could be constructed.
var ErrNoProvider = errors.New("llm: no usable provider")

// Factory builds an adapter for a provider entry. Tests swap it for one
// returning a FakeClient.
type Factory func(ctx context.Context, p ProviderConfig, apiKey string) (llmclient.Client, error)

// DefaultFactory maps provider kinds onto the concrete adapters.
func DefaultFactory(ctx context.Context, p ProviderConfig, apiKey string) (llmclient.Client, error) {
	switch p.Kind {
	case KindGemini:
		return llmclient.NewGeminiClient(ctx, apiKey, p.Model)
	case KindOpenAI:
		return llmclient.NewOpenAICompatClient("OpenAI", apiKey, p.Model, p.BaseURL)
	case KindDeepSeek:
		base := p.BaseURL
		if base == "" {
			base = llmclient.DeepSeekBaseURL
		}
		return llmclient.NewOpenAICompatClient("DeepSeek", apiKey, p.Model, base)
	case KindAzure:
		if p.BaseURL == "" {
			return nil, fmt.Errorf("llm: azure provider %q requires base_url", p.Name)
		}
		return llmclient.NewOpenAICompatClient("AzureOpenAI", apiKey, p.Model, p.BaseURL)
	case KindAnthropic:
		return llmclient.NewAnthropicClient(apiKey, p.Model)
	default:
		return nil, fmt.Errorf("llm: unknown provider kind %q", p.Kind)
	}
}

// KeyLookup resolves an API key stored at runtime (e.g. via the admin
// surface) for a provider kind. May be nil.
type KeyLookup func(kind ProviderKind) string

// Manager walks the enabled providers in priority order, skipping any that
// have failed too often, and hands out constructed adapters.
type Manager struct {
	mu        sync.Mutex
	providers []ProviderConfig
	active    int
	failures  map[string]int
	maxFail   int
	factory   Factory
	keys      KeyLookup
	log       *slog.Logger
}

const defaultMaxFailuresPerProvider = 3

// NewManager filters cfg down to enabled entries and sorts them by ascending
// priority. Order among equal priorities is preserved.
func NewManager(cfg []ProviderConfig, keys KeyLookup, factory Factory, log *slog.Logger) *Manager {
	if factory == nil {
		factory = DefaultFactory
	}
	if log == nil {
		log = slog.Default()
	}
	var enabled []ProviderConfig
	for _, p := range cfg {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority < enabled[j].Priority
	})
	return &Manager{
		providers: enabled,
		failures:  map[string]int{},
		maxFail:   defaultMaxFailuresPerProvider,
		factory:   factory,
		keys:      keys,
		log:       log,
	}
}

// Providers returns a copy of the enabled chain in fallback order.
func (m *Manager) Providers() []ProviderConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ProviderConfig, len(m.providers))
	copy(out, m.providers)
	return out
}

// Active returns the name of the provider the chain currently points at,
// or "" when the chain is empty.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.providers) == 0 {
		return ""
	}
	return m.providers[m.active%len(m.providers)].Name
}

// Next constructs an adapter for the first usable provider at or after the
// active index. Providers over their failure budget are skipped; a provider
// whose adapter cannot be constructed is charged a failure and skipped.
func (m *Manager) Next(ctx context.Context) (llmclient.Client, ProviderConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.providers)
	if n == 0 {
		return nil, ProviderConfig{}, ErrNoProvider
	}
	for i := 0; i < n; i++ {
		idx := (m.active + i) % n
		p := m.providers[idx]
		if m.failures[p.Name] >= m.maxFail {
			continue
		}
		key := m.resolveKey(p)
		cli, err := m.factory(ctx, p, key)
		if err != nil {
			m.failures[p.Name]++
			m.log.Warn("provider construction failed",
				"provider", p.Name, "failures", m.failures[p.Name], "err", err)
			continue
		}
		m.active = idx
		return cli, p, nil
	}
	return nil, ProviderConfig{}, ErrNoProvider
}

// RecordSuccess clears a provider's failure count.
func (m *Manager) RecordSuccess(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, name)
}

// RecordFailure charges one failure against a provider.
func (m *Manager) RecordFailure(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[name]++
	m.log.Warn("provider failure recorded", "provider", name, "failures", m.failures[name])
}

// FallbackToNext advances the active index past the current provider so the
// next Next call starts from the following entry.
func (m *Manager) FallbackToNext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.providers) == 0 {
		return
	}
	m.active = (m.active + 1) % len(m.providers)
	m.log.Info("falling back to next provider", "active", m.providers[m.active].Name)
}

// Failures returns a copy of the per-provider failure counts.
func (m *Manager) Failures() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.failures))
	for k, v := range m.failures {
		out[k] = v
	}
	return out
}

// Reset clears failure counts and rewinds the chain to its head.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = map[string]int{}
	m.active = 0
}

// resolveKey finds a provider's API key: explicit config, then runtime key
// store, then environment. Callers hold m.mu.
func (m *Manager) resolveKey(p ProviderConfig) string {
	if k := strings.TrimSpace(p.APIKey); k != "" {
		return k
	}
	if m.keys != nil {
		if k := m.keys(p.Kind); k != "" {
			return k
		}
	}
	if env, ok := envKey[p.Kind]; ok {
		return os.Getenv(env)
	}
	return ""
}
