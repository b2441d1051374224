// Package state holds the commander's mutable mission state: objectives,
// deployment status, the deployable resource pool, AO history and runtime
// API keys. Everything here is shared between the decision loop, the
// sandbox and the admin surface, so all access is mutex-guarded.
package state

import (
	"fmt"
	"sort"
	"sync"

	"tacticom/internal/config"
	"tacticom/internal/llm"
	"tacticom/internal/model"
)

// ResourceStatus is the externally visible view of one asset pool entry.
type ResourceStatus struct {
	Side        string `json:"side"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Max         int    `json:"max"`
	Used        int    `json:"used"`
	Remaining   int    `json:"remaining"`
	DefenseOnly bool   `json:"defense_only"`
}

// AOIntel summarizes one finished area-of-operations engagement so the next
// AO's prompt can learn from it.
type AOIntel struct {
	Name    string   `json:"name"`
	Intent  string   `json:"intent"`
	Orders  []string `json:"orders"`
	Outcome string   `json:"outcome,omitempty"`
}

// Manager owns the mission state.
type Manager struct {
	mu sync.Mutex

	missionIntent       string
	deploymentDirective string
	friendlySides       map[string]bool
	controlledSides     map[string]bool

	objectives map[string]*model.Objective

	deployed        bool
	aoBounds        config.Bounds
	aoDefenseActive bool

	templates map[string]map[string]config.ResourceTemplate
	usage     map[string]map[string]int

	currentAO  *AOIntel
	previousAO *AOIntel

	apiKeys map[llm.ProviderKind]string
}

// NewManager seeds the state from configuration.
func NewManager(cfg *config.Config) *Manager {
	m := &Manager{
		missionIntent:   cfg.MissionIntent,
		friendlySides:   map[string]bool{},
		controlledSides: map[string]bool{},
		objectives:      map[string]*model.Objective{},
		aoBounds:        cfg.Sandbox.Bounds,
		templates:       map[string]map[string]config.ResourceTemplate{},
		usage:           map[string]map[string]int{},
		apiKeys:         map[llm.ProviderKind]string{},
	}
	for _, s := range cfg.FriendlySides {
		m.friendlySides[s] = true
	}
	for _, s := range cfg.ControlledSides {
		m.controlledSides[s] = true
	}
	for _, t := range cfg.Resources {
		m.addTemplate(t)
	}
	return m
}

// --- mission identity ---

func (m *Manager) MissionIntent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.missionIntent
}

func (m *Manager) SetMissionIntent(intent string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missionIntent = intent
}

// DeploymentDirective is free-form guidance for initial force placement,
// injected into the first decision prompt.
func (m *Manager) DeploymentDirective() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deploymentDirective
}

func (m *Manager) SetDeploymentDirective(d string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deploymentDirective = d
}

func (m *Manager) IsFriendlySide(side string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.friendlySides[side] || m.controlledSides[side]
}

func (m *Manager) SetSides(friendly, controlled []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.friendlySides = map[string]bool{}
	m.controlledSides = map[string]bool{}
	for _, s := range friendly {
		m.friendlySides[s] = true
	}
	for _, s := range controlled {
		m.controlledSides[s] = true
	}
}

// --- deployment ---

func (m *Manager) Deployed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deployed
}

func (m *Manager) SetDeployed(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deployed = v
}

// --- objectives ---

// SetObjective inserts or replaces an objective.
func (m *Manager) SetObjective(o model.Objective) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := o
	m.objectives[o.ID] = &cp
}

// Objective returns a copy of the objective with the given id.
func (m *Manager) Objective(id string) (model.Objective, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objectives[id]
	if !ok {
		return model.Objective{}, false
	}
	return *o, true
}

// Objectives returns copies of every objective sorted by id.
func (m *Manager) Objectives() []model.Objective {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Objective, 0, len(m.objectives))
	for _, o := range m.objectives {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReplaceObjectives swaps the whole objective set, as after an evaluation
// pass.
func (m *Manager) ReplaceObjectives(objs []model.Objective) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objectives = make(map[string]*model.Objective, len(objs))
	for _, o := range objs {
		cp := o
		m.objectives[o.ID] = &cp
	}
}

// RemoveObjective deletes an objective by id.
func (m *Manager) RemoveObjective(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objectives, id)
}

// --- AO bounds and defense phase ---

func (m *Manager) AOBounds() config.Bounds {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aoBounds
}

func (m *Manager) SetAOBounds(b config.Bounds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aoBounds = b
}

func (m *Manager) AODefenseActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aoDefenseActive
}

func (m *Manager) SetAODefenseActive(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aoDefenseActive = v
}

// --- resource pool ---

// Budgets are tracked per (side, name): the same template name on two
// sides is two independent pools.

func (m *Manager) addTemplate(t config.ResourceTemplate) {
	if m.templates[t.Side] == nil {
		m.templates[t.Side] = map[string]config.ResourceTemplate{}
	}
	m.templates[t.Side][t.Name] = t
}

// ResourceTemplate returns a side's template with the given name.
func (m *Manager) ResourceTemplate(side, name string) (config.ResourceTemplate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[side][name]
	return t, ok
}

// SetResources replaces the whole pool and zeroes all usage counters.
func (m *Manager) SetResources(templates []config.ResourceTemplate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates = map[string]map[string]config.ResourceTemplate{}
	m.usage = map[string]map[string]int{}
	for _, t := range templates {
		m.addTemplate(t)
	}
}

// ReserveAsset atomically checks and consumes n uses of a side's template.
// A failed reservation leaves the pool unchanged.
func (m *Manager) ReserveAsset(side, name string, n int) error {
	if n <= 0 {
		n = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[side][name]
	if !ok {
		return fmt.Errorf("state: unknown resource template %q for side %s", name, side)
	}
	used := m.usage[side][name]
	if used+n > t.MaxUses {
		return fmt.Errorf("state: resource %q exhausted for side %s (%d/%d used)", name, side, used, t.MaxUses)
	}
	if m.usage[side] == nil {
		m.usage[side] = map[string]int{}
	}
	m.usage[side][name] += n
	return nil
}

// ResourceStatuses reports the pool, sorted by side then template name.
func (m *Manager) ResourceStatuses() []ResourceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ResourceStatus
	for side, pool := range m.templates {
		for name, t := range pool {
			used := m.usage[side][name]
			out = append(out, ResourceStatus{
				Side:        side,
				Name:        name,
				Description: t.Description,
				Max:         t.MaxUses,
				Used:        used,
				Remaining:   t.MaxUses - used,
				DefenseOnly: t.DefenseOnly,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Side != out[j].Side {
			return out[i].Side < out[j].Side
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// --- AO tracking ---

// StartAO opens a new area of operations. An unfinished previous AO is
// closed first.
func (m *Manager) StartAO(name, intent string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentAO != nil {
		m.previousAO = m.currentAO
	}
	m.currentAO = &AOIntel{Name: name, Intent: intent}
}

// RecordAOOrder appends an order summary line to the current AO history.
func (m *Manager) RecordAOOrder(summary string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentAO != nil {
		m.currentAO.Orders = append(m.currentAO.Orders, summary)
	}
}

// EndAO closes the current AO with an outcome, making it available as
// previous-AO intel.
func (m *Manager) EndAO(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentAO == nil {
		return
	}
	m.currentAO.Outcome = outcome
	m.previousAO = m.currentAO
	m.currentAO = nil
}

// PreviousAOIntel returns intel from the last finished AO, if any.
func (m *Manager) PreviousAOIntel() (AOIntel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.previousAO == nil {
		return AOIntel{}, false
	}
	return *m.previousAO, true
}

// ClearPreviousAOIntel drops the stored intel once it has been consumed.
func (m *Manager) ClearPreviousAOIntel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.previousAO = nil
}

// --- API keys ---

// SetAPIKey stores a runtime-provided key for a provider kind.
func (m *Manager) SetAPIKey(kind llm.ProviderKind, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiKeys[kind] = key
}

// APIKey implements llm.KeyLookup.
func (m *Manager) APIKey(kind llm.ProviderKind) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apiKeys[kind]
}
