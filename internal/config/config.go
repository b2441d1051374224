// Package config loads the commander configuration from YAML with sane
// defaults for everything left unset.
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"tacticom/internal/llm"
)

// Bounds is the axis-aligned rectangle orders must stay inside.
type Bounds struct {
	MinX float64 `yaml:"min_x" json:"min_x"`
	MaxX float64 `yaml:"max_x" json:"max_x"`
	MinY float64 `yaml:"min_y" json:"min_y"`
	MaxY float64 `yaml:"max_y" json:"max_y"`
}

// Zero reports whether the bounds were never configured.
func (b Bounds) Zero() bool {
	return b.MinX == 0 && b.MaxX == 0 && b.MinY == 0 && b.MaxY == 0
}

// Contains checks a position against the rectangle on x/y only.
func (b Bounds) Contains(pos []float64) bool {
	if len(pos) < 2 {
		return false
	}
	return pos[0] >= b.MinX && pos[0] <= b.MaxX && pos[1] >= b.MinY && pos[1] <= b.MaxY
}

// ResourceTemplate describes one deployable asset type and its use budget.
// Budgets are tracked per (side, name): the same asset name on two sides is
// two independent pools.
type ResourceTemplate struct {
	Side        string   `yaml:"side" json:"side"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	UnitClasses []string `yaml:"unit_classes" json:"unit_classes"`
	MaxUses     int      `yaml:"max_uses" json:"max_uses"`
	DefenseOnly bool     `yaml:"defense_only" json:"defense_only"`
}

// Built-in resource pool presets, scaled by support intensity. A YAML
// resources list overrides these entirely.
// Preset pools are keyed to EAST, the side the commander runs in the
// stock scenarios. Inline pool replacement covers other sides.
var resourceSets = map[string][]ResourceTemplate{
	"minimal": {
		{Side: "EAST", Name: "qrf_squad", Description: "quick reaction infantry squad", MaxUses: 1,
			UnitClasses: []string{"rifleman", "rifleman", "medic", "autorifleman"}, DefenseOnly: true},
	},
	"low": {
		{Side: "EAST", Name: "qrf_squad", Description: "quick reaction infantry squad", MaxUses: 2,
			UnitClasses: []string{"rifleman", "rifleman", "medic", "autorifleman"}, DefenseOnly: true},
		{Side: "EAST", Name: "mortar_team", Description: "81mm mortar section", MaxUses: 2,
			UnitClasses: []string{"mortar_gunner", "mortar_assistant"}},
	},
	"medium": {
		{Side: "EAST", Name: "qrf_squad", Description: "quick reaction infantry squad", MaxUses: 3,
			UnitClasses: []string{"rifleman", "rifleman", "medic", "autorifleman"}},
		{Side: "EAST", Name: "mortar_team", Description: "81mm mortar section", MaxUses: 3,
			UnitClasses: []string{"mortar_gunner", "mortar_assistant"}},
		{Side: "EAST", Name: "mg_nest", Description: "static machine gun emplacement", MaxUses: 2,
			UnitClasses: []string{"mg_gunner", "mg_assistant"}, DefenseOnly: true},
	},
	"high": {
		{Side: "EAST", Name: "qrf_squad", Description: "quick reaction infantry squad", MaxUses: 4,
			UnitClasses: []string{"rifleman", "rifleman", "medic", "autorifleman"}},
		{Side: "EAST", Name: "mortar_team", Description: "81mm mortar section", MaxUses: 4,
			UnitClasses: []string{"mortar_gunner", "mortar_assistant"}},
		{Side: "EAST", Name: "mg_nest", Description: "static machine gun emplacement", MaxUses: 3,
			UnitClasses: []string{"mg_gunner", "mg_assistant"}, DefenseOnly: true},
		{Side: "EAST", Name: "at_team", Description: "anti-tank missile team", MaxUses: 2,
			UnitClasses: []string{"at_gunner", "at_assistant"}},
	},
}

// ResourceSet returns a copy of a named built-in resource pool preset.
func ResourceSet(name string) ([]ResourceTemplate, bool) {
	set, ok := resourceSets[name]
	if !ok {
		return nil, false
	}
	out := make([]ResourceTemplate, len(set))
	copy(out, set)
	return out, true
}

// ResourceSetNames lists the built-in preset names, sorted.
func ResourceSetNames() []string {
	names := make([]string, 0, len(resourceSets))
	for name := range resourceSets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decision tunes the decision cycle and the model call discipline.
type Decision struct {
	MinDecisionInterval  float64 `yaml:"min_decision_interval"`
	MinLLMInterval       float64 `yaml:"min_llm_interval"`
	MaxCommandsPerBatch  int     `yaml:"max_commands_per_batch"`
	MaxUnitsPerSide      int     `yaml:"max_units_per_side"`
	MaxConsecutiveErrors int     `yaml:"max_consecutive_errors"`
	OrderHistorySize     int     `yaml:"order_history_size"`
	OrderSummaryKeep     int     `yaml:"order_summary_keep"`
}

// Sandbox configures order validation.
type Sandbox struct {
	Enabled      bool     `yaml:"enabled"`
	AllowedTypes []string `yaml:"allowed_types"`
	BlockedTypes []string `yaml:"blocked_types"`
	Bounds       Bounds   `yaml:"bounds"`
}

// Bridge configures the engine-facing websocket listener.
type Bridge struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// Admin configures the HTTP admin surface.
type Admin struct {
	Addr string `yaml:"addr"`
}

// Config is the full commander configuration.
type Config struct {
	MissionIntent   string   `yaml:"mission_intent"`
	FriendlySides   []string `yaml:"friendly_sides"`
	ControlledSides []string `yaml:"controlled_sides"`

	Providers []llm.ProviderConfig `yaml:"providers"`
	Decision  Decision             `yaml:"decision"`
	Sandbox   Sandbox              `yaml:"sandbox"`
	Resources []ResourceTemplate   `yaml:"resources"`
	Bridge    Bridge               `yaml:"bridge"`
	Admin     Admin                `yaml:"admin"`

	AuditDSN string `yaml:"audit_dsn"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Decision: Decision{
			MinDecisionInterval:  30,
			MinLLMInterval:       10,
			MaxCommandsPerBatch:  30,
			MaxUnitsPerSide:      100,
			MaxConsecutiveErrors: 3,
			OrderHistorySize:     10,
			OrderSummaryKeep:     5,
		},
		Sandbox: Sandbox{
			Enabled: true,
		},
		Bridge: Bridge{Addr: ":8765", Path: "/bridge"},
		Admin:  Admin{Addr: ":8080"},
	}
}

// Load reads a YAML config file and overlays it on the defaults. An empty
// path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	d := &c.Decision
	if d.MinDecisionInterval <= 0 {
		d.MinDecisionInterval = 30
	}
	if d.MinLLMInterval <= 0 {
		d.MinLLMInterval = 10
	}
	if d.MaxCommandsPerBatch <= 0 {
		d.MaxCommandsPerBatch = 30
	}
	if d.MaxUnitsPerSide <= 0 {
		d.MaxUnitsPerSide = 100
	}
	if d.MaxConsecutiveErrors <= 0 {
		d.MaxConsecutiveErrors = 3
	}
	if d.OrderHistorySize <= 0 {
		d.OrderHistorySize = 10
	}
	if d.OrderSummaryKeep <= 0 {
		d.OrderSummaryKeep = 5
	}
	seen := map[string]bool{}
	for _, r := range c.Resources {
		if r.Name == "" {
			return fmt.Errorf("config: resource template without name")
		}
		if r.Side == "" {
			return fmt.Errorf("config: resource template %q without side", r.Name)
		}
		key := r.Side + "/" + r.Name
		if seen[key] {
			return fmt.Errorf("config: duplicate resource template %q for side %s", r.Name, r.Side)
		}
		seen[key] = true
		if r.MaxUses < 0 {
			return fmt.Errorf("config: resource template %q has negative max_uses", r.Name)
		}
	}
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("config: provider without name")
		}
	}
	return nil
}
