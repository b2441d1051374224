// Package sandbox validates parsed commands against the live battlefield
// before they reach the queue: type allow/block lists, existence and
// ownership checks, force caps, resource budgets and operating-area bounds.
// Every verdict is audited.
package sandbox

import (
	"fmt"
	"log/slog"
	"strings"

	"tacticom/internal/audit"
	"tacticom/internal/config"
	"tacticom/internal/model"
	"tacticom/internal/state"
)

// DefaultAllowedTypes is the allow list used when none is configured.
var DefaultAllowedTypes = []string{
	string(model.CmdMoveTo),
	string(model.CmdDefendArea),
	string(model.CmdPatrolRoute),
	string(model.CmdSeekAndDestroy),
	string(model.CmdSpawnSquad),
	string(model.CmdTransportGroup),
	string(model.CmdEscortGroup),
	string(model.CmdFireSupport),
	string(model.CmdDeployAsset),
}

const maxSpawnClasses = 20

// Sandbox screens command batches.
type Sandbox struct {
	cfg      config.Sandbox
	maxUnits int
	state    *state.Manager
	audit    *audit.Store
	log      *slog.Logger

	allowed map[string]bool
	blocked map[string]bool
}

func New(cfg config.Sandbox, maxUnitsPerSide int, st *state.Manager, aud *audit.Store, log *slog.Logger) *Sandbox {
	if log == nil {
		log = slog.Default()
	}
	types := cfg.AllowedTypes
	if len(types) == 0 {
		types = DefaultAllowedTypes
	}
	allowed := map[string]bool{}
	for _, t := range types {
		allowed[t] = true
	}
	blocked := map[string]bool{}
	for _, t := range cfg.BlockedTypes {
		blocked[t] = true
	}
	if maxUnitsPerSide <= 0 {
		maxUnitsPerSide = 100
	}
	return &Sandbox{
		cfg:      cfg,
		maxUnits: maxUnitsPerSide,
		state:    st,
		audit:    aud,
		log:      log,
		allowed:  allowed,
		blocked:  blocked,
	}
}

// Verdict is the outcome for one command.
type Verdict struct {
	Command model.Command
	Allowed bool
	Reason  string
}

// Screen validates a batch against the current world and returns the
// surviving commands together with per-command verdicts. With validation
// disabled everything passes, loudly.
func (s *Sandbox) Screen(world *model.WorldState, cmds []model.Command, cycle int) ([]model.Command, []Verdict) {
	if !s.cfg.Enabled {
		s.log.Warn("sandbox disabled, passing all commands unvalidated", "count", len(cmds))
		verdicts := make([]Verdict, len(cmds))
		for i, c := range cmds {
			verdicts[i] = Verdict{Command: c, Allowed: true, Reason: "sandbox disabled"}
			s.record(world, cycle, verdicts[i])
		}
		return cmds, verdicts
	}

	// Spawned units accumulate across the batch so a burst of spawn orders
	// cannot slip past the per-side cap one command at a time.
	pendingUnits := map[string]int{}

	var out []model.Command
	verdicts := make([]Verdict, 0, len(cmds))
	for _, c := range cmds {
		reason := s.check(world, c, pendingUnits)
		v := Verdict{Command: c, Allowed: reason == "", Reason: reason}
		if v.Allowed {
			out = append(out, v.Command)
		} else {
			s.log.Warn("command blocked", "type", c.Type, "group", c.GroupID, "reason", reason)
		}
		s.record(world, cycle, v)
		verdicts = append(verdicts, v)
	}
	return out, verdicts
}

func (s *Sandbox) record(world *model.WorldState, cycle int, v Verdict) {
	verdict := audit.VerdictAllowed
	if !v.Allowed {
		verdict = audit.VerdictBlocked
	}
	reason := v.Reason
	if v.Allowed && reason == "" {
		reason = "passed all checks"
	}
	s.audit.Record(audit.Entry{
		Cycle:       cycle,
		MissionTime: world.MissionTime,
		Kind:        "command",
		CommandType: string(v.Command.Type),
		GroupID:     v.Command.GroupID,
		Verdict:     verdict,
		Reason:      reason,
	})
}

// check returns "" when the command passes, otherwise the block reason.
func (s *Sandbox) check(world *model.WorldState, c model.Command, pendingUnits map[string]int) string {
	t := string(c.Type)
	if !s.allowed[t] {
		return fmt.Sprintf("type %s not in allow list", t)
	}
	if s.blocked[t] {
		return fmt.Sprintf("type %s is block-listed", t)
	}
	// Bounds first, so a command rejected for geometry never touches the
	// spawn ledger or the asset pool.
	if reason := s.checkBounds(c); reason != "" {
		return reason
	}
	return s.checkType(world, c, pendingUnits)
}

func (s *Sandbox) checkType(world *model.WorldState, c model.Command, pendingUnits map[string]int) string {
	switch c.Type {
	case model.CmdSpawnSquad:
		return s.checkSpawn(world, c, pendingUnits)
	case model.CmdDeployAsset:
		return s.checkDeploy(world, c, pendingUnits)
	case model.CmdTransportGroup:
		return s.checkTransport(world, c)
	case model.CmdEscortGroup:
		return s.checkEscort(world, c)
	case model.CmdFireSupport:
		return s.checkFireSupport(world, c)
	default:
		return s.checkControlled(world, c.GroupID)
	}
}

// checkControlled verifies the target group exists and is ours. Provisional
// ids refer to groups created earlier in the same batch and pass.
func (s *Sandbox) checkControlled(world *model.WorldState, groupID string) string {
	if model.IsProvisionalGroupID(groupID) {
		return ""
	}
	g, ok := world.GroupByID(groupID)
	if !ok {
		return fmt.Sprintf("group %s does not exist", groupID)
	}
	if !g.IsControlled {
		return fmt.Sprintf("group %s is not under AI control", groupID)
	}
	return ""
}

func (s *Sandbox) checkSpawn(world *model.WorldState, c model.Command, pendingUnits map[string]int) string {
	side, _ := c.Params["side"].(string)
	if !model.ValidSide(side, model.SpawnableSides) {
		return fmt.Sprintf("invalid spawn side %q", side)
	}
	classes := stringSlice(c.Params["unit_classes"])
	if len(classes) == 0 || len(classes) > maxSpawnClasses {
		return fmt.Sprintf("unit_classes count %d outside 1..%d", len(classes), maxSpawnClasses)
	}
	deployed := 0
	if world.AIDeployment != nil {
		deployed = world.AIDeployment[side]
	}
	if deployed+pendingUnits[side]+len(classes) > s.maxUnits {
		return fmt.Sprintf("side %s would exceed unit cap %d", side, s.maxUnits)
	}
	pendingUnits[side] += len(classes)
	return ""
}

func (s *Sandbox) checkDeploy(world *model.WorldState, c model.Command, pendingUnits map[string]int) string {
	side, _ := c.Params["side"].(string)
	if !model.ValidSide(side, model.DeployableSides) {
		return fmt.Sprintf("invalid deploy side %q", side)
	}
	name, _ := c.Params["template"].(string)
	tmpl, ok := s.state.ResourceTemplate(side, name)
	if !ok {
		return fmt.Sprintf("unknown asset template %q for side %s", name, side)
	}
	if tmpl.DefenseOnly && !s.state.AODefenseActive() {
		return fmt.Sprintf("template %q is defense-only and no defense phase is active", name)
	}
	deployed := 0
	if world.AIDeployment != nil {
		deployed = world.AIDeployment[side]
	}
	if deployed+pendingUnits[side]+len(tmpl.UnitClasses) > s.maxUnits {
		return fmt.Sprintf("side %s would exceed unit cap %d", side, s.maxUnits)
	}
	// Reservation is the last check so a rejection never consumes budget.
	if err := s.state.ReserveAsset(side, name, 1); err != nil {
		return err.Error()
	}
	c.Params["unit_classes"] = tmpl.UnitClasses
	pendingUnits[side] += len(tmpl.UnitClasses)
	return ""
}

func (s *Sandbox) checkTransport(world *model.WorldState, c model.Command) string {
	vehicleID := c.GroupID
	passengerID, _ := c.Params["passenger_group_id"].(string)

	if reason := s.checkControlled(world, vehicleID); reason != "" {
		return reason
	}
	if reason := s.checkControlled(world, passengerID); reason != "" {
		return reason
	}
	if model.IsProvisionalGroupID(vehicleID) {
		return ""
	}
	g, _ := world.GroupByID(vehicleID)
	if g.IsPlayerGroup {
		return fmt.Sprintf("group %s is a player group", vehicleID)
	}
	switch g.Category {
	case model.CategoryInfantry, model.CategoryUnknown:
		return fmt.Sprintf("group %s (%s) cannot transport", vehicleID, g.Category)
	}
	return ""
}

func (s *Sandbox) checkEscort(world *model.WorldState, c model.Command) string {
	escortID := c.GroupID
	targetID, _ := c.Params["target_group_id"].(string)

	if reason := s.checkControlled(world, escortID); reason != "" {
		return reason
	}
	if model.IsProvisionalGroupID(targetID) {
		return ""
	}
	target, ok := world.GroupByID(targetID)
	if !ok {
		return fmt.Sprintf("group %s does not exist", targetID)
	}
	if !target.IsControlled && !target.IsFriendly && !s.state.IsFriendlySide(target.Side) {
		return fmt.Sprintf("escort target %s is not friendly", targetID)
	}
	return ""
}

func (s *Sandbox) checkFireSupport(world *model.WorldState, c model.Command) string {
	if reason := s.checkControlled(world, c.GroupID); reason != "" {
		return reason
	}
	if model.IsProvisionalGroupID(c.GroupID) {
		return ""
	}
	g, _ := world.GroupByID(c.GroupID)
	if !g.Category.CanFireSupport() {
		return fmt.Sprintf("group %s (%s) cannot deliver fire support", c.GroupID, g.Category)
	}
	return ""
}

// checkBounds validates every position a command carries against the
// operating area. Unconfigured bounds disable the check.
func (s *Sandbox) checkBounds(c model.Command) string {
	b := s.state.AOBounds()
	if b.Zero() {
		return ""
	}
	for _, pos := range commandPositions(c) {
		if !b.Contains(pos) {
			return fmt.Sprintf("position [%.0f %.0f] outside operating area", pos[0], pos[1])
		}
	}
	return ""
}

// commandPositions extracts every coordinate a command type carries.
func commandPositions(c model.Command) [][]float64 {
	var out [][]float64
	add := func(key string) {
		if pos := floatSlice(c.Params[key]); len(pos) >= 2 {
			out = append(out, pos)
		}
	}
	switch c.Type {
	case model.CmdPatrolRoute:
		if wps, ok := c.Params["waypoints"].([][]float64); ok {
			out = append(out, wps...)
		}
	case model.CmdTransportGroup:
		add("pickup")
		add("dropoff")
	case model.CmdEscortGroup:
		// Escort follows a group, not a position.
	default:
		add("position")
	}
	return out
}

func floatSlice(v any) []float64 {
	switch t := v.(type) {
	case []float64:
		return t
	case []any:
		out := make([]float64, 0, len(t))
		for _, c := range t {
			if f, ok := c.(float64); ok {
				out = append(out, f)
			}
		}
		return out
	}
	return nil
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
