package llm

import (
	"context"
	"errors"
	"testing"

	"tacticom/internal/llmclient"
	"tacticom/internal/tester"
)

func fakeFactory(t *testing.T, construct map[string]error) (Factory, *[]string) {
	t.Helper()
	var built []string
	f := func(_ context.Context, p ProviderConfig, apiKey string) (llmclient.Client, error) {
		if err := construct[p.Name]; err != nil {
			return nil, err
		}
		built = append(built, p.Name)
		return &llmclient.FakeClient{Label: p.Name}, nil
	}
	return f, &built
}

func chain(names ...string) []ProviderConfig {
	cfg := make([]ProviderConfig, 0, len(names))
	for i, n := range names {
		cfg = append(cfg, ProviderConfig{Name: n, Kind: KindFake, Enabled: true, Priority: i + 1})
	}
	return cfg
}

func TestManagerOrdersByPriority(t *testing.T) {
	factory, _ := fakeFactory(t, nil)
	cfg := []ProviderConfig{
		{Name: "backup", Kind: KindFake, Enabled: true, Priority: 2},
		{Name: "primary", Kind: KindFake, Enabled: true, Priority: 1},
		{Name: "disabled", Kind: KindFake, Enabled: false, Priority: 0},
	}
	m := NewManager(cfg, nil, factory, nil)

	ps := m.Providers()
	tester.Len(t, ps, 2, "disabled entries are filtered out")
	tester.Eq(t, ps[0].Name, "primary")
	tester.Eq(t, ps[1].Name, "backup")

	cli, p, err := m.Next(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, p.Name, "primary")
	tester.Eq(t, cli.Name(), "primary")
}

func TestManagerEmptyChain(t *testing.T) {
	factory, _ := fakeFactory(t, nil)
	m := NewManager(nil, nil, factory, nil)
	_, _, err := m.Next(context.Background())
	tester.True(t, errors.Is(err, ErrNoProvider))
	tester.Eq(t, m.Active(), "")
}

func TestManagerSkipsOverBudgetProvider(t *testing.T) {
	factory, _ := fakeFactory(t, nil)
	m := NewManager(chain("a", "b"), nil, factory, nil)

	for i := 0; i < 3; i++ {
		m.RecordFailure("a")
	}
	_, p, err := m.Next(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, p.Name, "b", "over-budget provider is skipped")
}

func TestManagerSuccessClearsFailures(t *testing.T) {
	factory, _ := fakeFactory(t, nil)
	m := NewManager(chain("a"), nil, factory, nil)

	m.RecordFailure("a")
	m.RecordFailure("a")
	m.RecordSuccess("a")
	tester.Len(t, mapKeys(m.Failures()), 0)

	_, p, err := m.Next(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, p.Name, "a")
}

func TestManagerConstructFailureChargesAndSkips(t *testing.T) {
	factory, built := fakeFactory(t, map[string]error{"a": errors.New("bad key")})
	m := NewManager(chain("a", "b"), nil, factory, nil)

	_, p, err := m.Next(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, p.Name, "b")
	tester.Eq(t, m.Failures()["a"], 1)
	tester.Len(t, *built, 1)
}

func TestManagerExhaustsChain(t *testing.T) {
	factory, _ := fakeFactory(t, map[string]error{
		"a": errors.New("down"),
		"b": errors.New("down"),
	})
	m := NewManager(chain("a", "b"), nil, factory, nil)

	for i := 0; i < 3; i++ {
		_, _, err := m.Next(context.Background())
		tester.True(t, errors.Is(err, ErrNoProvider))
	}
	tester.Eq(t, m.Failures()["a"], 3)
	tester.Eq(t, m.Failures()["b"], 3)
}

func TestManagerFallbackAdvancesAndWraps(t *testing.T) {
	factory, _ := fakeFactory(t, nil)
	m := NewManager(chain("a", "b"), nil, factory, nil)

	_, p, err := m.Next(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, p.Name, "a")

	m.FallbackToNext()
	_, p, err = m.Next(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, p.Name, "b")

	m.FallbackToNext()
	_, p, err = m.Next(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, p.Name, "a", "fallback wraps to the chain head")
}

func TestManagerResetRewindsChain(t *testing.T) {
	factory, _ := fakeFactory(t, nil)
	m := NewManager(chain("a", "b"), nil, factory, nil)

	for i := 0; i < 3; i++ {
		m.RecordFailure("a")
	}
	m.FallbackToNext()
	m.Reset()

	_, p, err := m.Next(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, p.Name, "a", "reset forgives failures and rewinds")
}

func TestResolveKeyPrecedence(t *testing.T) {
	var gotKey string
	factory := func(_ context.Context, p ProviderConfig, apiKey string) (llmclient.Client, error) {
		gotKey = apiKey
		return &llmclient.FakeClient{Label: p.Name}, nil
	}
	lookup := func(kind ProviderKind) string {
		if kind == KindFake {
			return "from-store"
		}
		return ""
	}

	m := NewManager([]ProviderConfig{
		{Name: "a", Kind: KindFake, Enabled: true, APIKey: "from-config"},
	}, lookup, factory, nil)
	_, _, err := m.Next(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, gotKey, "from-config", "explicit config key wins")

	m = NewManager([]ProviderConfig{
		{Name: "a", Kind: KindFake, Enabled: true},
	}, lookup, factory, nil)
	_, _, err = m.Next(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, gotKey, "from-store", "runtime key store is the fallback")
}

func TestRateLimiterMissionTime(t *testing.T) {
	rl := NewRateLimiter(10)
	tester.True(t, rl.Allow(5), "first call always passes")
	tester.False(t, rl.Allow(9))
	tester.False(t, rl.Allow(14.9))
	tester.True(t, rl.Allow(15))
	tester.False(t, rl.Allow(20), "interval restarts from the last allowed call")
}

func TestRateLimiterReset(t *testing.T) {
	rl := NewRateLimiter(10)
	tester.True(t, rl.Allow(100))
	tester.False(t, rl.Allow(101))
	rl.Reset()
	tester.True(t, rl.Allow(101))
}

func TestRateLimiterDefaultInterval(t *testing.T) {
	rl := NewRateLimiter(0)
	tester.True(t, rl.Allow(0))
	tester.False(t, rl.Allow(9.9))
	tester.True(t, rl.Allow(10))
}

func mapKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
