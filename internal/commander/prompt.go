package commander

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"tacticom/internal/model"
	"tacticom/internal/state"
)

// systemPrompt is the static doctrine block at the head of every cached
// context. It changes only with the code, so providers cache it well.
const systemPrompt = `You are an AI battlefield commander directing computer-controlled groups in a
military simulation. Each decision cycle you receive the current battlefield
picture and respond with orders in JSON.

RESPONSE FORMAT
Respond with a single JSON object:
{"orders": [...],
 "commentary": "one short paragraph of tactical reasoning",
 "order_summary": ["one short line per order issued"]}

Each order is an object with a "type" field and type-specific parameters:
- move_to:         group_id, position [x,y,z], speed (SLOW/NORMAL/FAST), behaviour (SAFE/AWARE/COMBAT/STEALTH), combat_mode (BLUE/GREEN/WHITE/YELLOW/RED)
- defend_area:     group_id, position, radius, behaviour
- patrol_route:    group_id, waypoints [[x,y,z],...] (min 2), speed, behaviour
- seek_and_destroy: group_id, position, radius
- spawn_squad:     side (EAST/WEST/RESISTANCE), position, unit_classes [...]
- transport_group: vehicle_group_id, passenger_group_id, pickup [x,y,z], dropoff [x,y,z]
- escort_group:    escort_group_id, target_group_id, radius
- fire_support:    group_id, position, radius
- deploy_asset:    side, template, position

RULES
- Issue at most one order per group per cycle.
- Only order groups you control; enemy and player groups are off limits.
- Keep positions inside the operating area.
- Prefer holding current orders when the situation has not changed; an empty
  orders array is a valid answer.
- Concentrate force: do not scatter groups one objective each when threats
  are concentrated.`

// SystemPrompt exposes the doctrine block, mainly for connectivity tests
// and the admin surface.
func SystemPrompt() string { return systemPrompt }

// BuildCachedContext renders the slow-changing prompt half: doctrine,
// previous-AO lessons when available, the deployable asset pool and the
// current objectives. Keyed by ObjectivesHash for provider-side caching.
func BuildCachedContext(objectives []model.Objective, prevAO *state.AOIntel, resources []state.ResourceStatus) string {
	var b strings.Builder
	b.WriteString(systemPrompt)

	if prevAO != nil {
		b.WriteString("\n\n== INTELLIGENCE FROM PREVIOUS AO ==\n")
		fmt.Fprintf(&b, "AO: %s\nIntent: %s\n", prevAO.Name, prevAO.Intent)
		if prevAO.Outcome != "" {
			fmt.Fprintf(&b, "Outcome: %s\n", prevAO.Outcome)
		}
		if len(prevAO.Orders) > 0 {
			b.WriteString("Orders issued:\n")
			for _, o := range prevAO.Orders {
				fmt.Fprintf(&b, "  - %s\n", o)
			}
		}
	}

	if len(resources) > 0 {
		b.WriteString("\n\n== DEPLOYABLE ASSETS ==\n")
		for _, r := range resources {
			fmt.Fprintf(&b, "- %s (%s): %d of %d uses remaining", r.Name, r.Side, r.Remaining, r.Max)
			if r.DefenseOnly {
				b.WriteString(" (defense phases only)")
			}
			if r.Description != "" {
				b.WriteString(" - " + r.Description)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n\n== CURRENT MISSION OBJECTIVES ==\n")
	if len(objectives) == 0 {
		b.WriteString("No active objectives currently.\n")
	}
	for _, o := range objectives {
		fmt.Fprintf(&b, "\nObjective %s [%s]\n", o.ID, o.Type)
		fmt.Fprintf(&b, "  Description: %s\n", o.Description)
		fmt.Fprintf(&b, "  Priority: %d (%s)\n", o.Priority, priorityTier(o.Priority))
		fmt.Fprintf(&b, "  State: %s\n", o.State)
		if len(o.Position) >= 2 {
			fmt.Fprintf(&b, "  Position: [%.0f, %.0f]\n", o.Position[0], o.Position[1])
		}
		if o.Radius > 0 {
			fmt.Fprintf(&b, "  Radius: %.0fm\n", o.Radius)
		}
		if len(o.Metadata) > 0 {
			meta, _ := json.Marshal(o.Metadata)
			fmt.Fprintf(&b, "  Metadata: %s\n", meta)
		}
	}
	return b.String()
}

func priorityTier(p int) string {
	switch {
	case p >= 90:
		return "CRITICAL - primary focus, allocate 30-40% of available forces"
	case p >= 70:
		return "HIGH - significant force allocation"
	case p >= 40:
		return "MEDIUM - handle with economy of force"
	default:
		return "LOW - as resources permit"
	}
}

// OrderSummary is one line of recent-order context fed into the next
// dynamic prompt so the model remembers what it just did.
type OrderSummary struct {
	Cycle       int     `json:"cycle"`
	MissionTime float64 `json:"mission_time"`
	Summary     string  `json:"summary"`
}

// Threat levels, in escalating order.
const (
	ThreatMinimal  = "MINIMAL"
	ThreatLow      = "LOW"
	ThreatModerate = "MODERATE"
	ThreatHigh     = "HIGH"
	ThreatCritical = "CRITICAL"
)

// Recommended postures attached to each threat level.
const (
	PostureOffensive            = "OFFENSIVE"
	PostureBalanced             = "BALANCED"
	PostureProportionalResponse = "PROPORTIONAL_RESPONSE"
	PostureDefendCritical       = "DEFEND_CRITICAL_OBJECTIVES_MAINTAIN_AO_CONTROL"
	PosturePrioritizeHighValue  = "PRIORITIZE_HIGH_VALUE_OBJECTIVES"
	PostureDefendHighWithdraw   = "DEFEND_HIGH_PRIORITY_WITHDRAW_FROM_LOW"
	PostureDefendByPriority     = "DEFEND_BY_PRIORITY_SACRIFICE_LOWEST"
	PostureDefendThreatened     = "DEFEND_THREATENED_OBJECTIVES"
)

// An objective without a radius still projects a threat ring of this size.
const defaultObjectiveRadius = 300.0

// Situation is a compact force assessment included in every dynamic prompt.
type Situation struct {
	FriendlyGroups        int      `json:"friendly_groups"`
	FriendlyUnits         int      `json:"friendly_units"`
	EnemyGroups           int      `json:"enemy_groups"`
	EnemyUnits            int      `json:"enemy_units"`
	GroupsInCombat        int      `json:"groups_in_combat"`
	ForceRatio            float64  `json:"force_ratio"`
	Assessment            string   `json:"assessment"`
	ThreatLevel           string   `json:"threat_level"`
	RecommendedPosture    string   `json:"recommended_posture"`
	EnemiesNearObjectives int      `json:"enemies_near_objectives"`
	ObjectivesUnderThreat []string `json:"objectives_under_threat,omitempty"`
	IsNight               bool     `json:"is_night"`
}

// AssessSituation summarizes relative combat power from the snapshot and
// grades the threat by how enemy mass sits against the objective set. An
// enemy group threatens an objective when it is within twice the
// objective's radius of its position.
func AssessSituation(world *model.WorldState, objectives []model.Objective) Situation {
	s := Situation{IsNight: world.IsNight}
	for _, g := range world.ControlledGroups() {
		s.FriendlyGroups++
		s.FriendlyUnits += g.UnitCount
		if g.InCombat {
			s.GroupsInCombat++
		}
	}
	enemies := world.EnemyGroups()
	for _, g := range enemies {
		s.EnemyGroups++
		s.EnemyUnits += g.UnitCount
	}
	if s.EnemyUnits > 0 {
		s.ForceRatio = float64(s.FriendlyUnits) / float64(s.EnemyUnits)
	}
	switch {
	case s.EnemyUnits == 0:
		s.Assessment = "no known enemy contacts"
	case s.ForceRatio >= 2:
		s.Assessment = "friendly forces hold a decisive numerical advantage"
	case s.ForceRatio >= 1:
		s.Assessment = "forces roughly matched, friendly slight edge"
	case s.ForceRatio >= 0.5:
		s.Assessment = "enemy holds a numerical advantage, fight defensively"
	default:
		s.Assessment = "friendly forces heavily outnumbered, avoid decisive engagement"
	}

	criticalThreatened := false
	highValueThreatened := false
	for _, o := range objectives {
		if len(o.Position) < 2 {
			continue
		}
		radius := o.Radius
		if radius <= 0 {
			radius = defaultObjectiveRadius
		}
		threatened := false
		for _, g := range enemies {
			if len(g.Position) < 2 {
				continue
			}
			if dist2D(g.Position, o.Position) <= 2*radius {
				s.EnemiesNearObjectives += g.UnitCount
				threatened = true
			}
		}
		if threatened {
			s.ObjectivesUnderThreat = append(s.ObjectivesUnderThreat, o.ID)
			if o.Priority >= 90 {
				criticalThreatened = true
			}
			if o.Priority >= 70 {
				highValueThreatened = true
			}
		}
	}

	near := s.EnemiesNearObjectives > 0
	switch {
	case s.EnemyUnits == 0:
		s.ThreatLevel, s.RecommendedPosture = ThreatMinimal, PostureOffensive
	case criticalThreatened:
		s.ThreatLevel, s.RecommendedPosture = ThreatCritical, PostureDefendCritical
	case s.EnemyUnits > 2*s.FriendlyUnits && near:
		s.ThreatLevel, s.RecommendedPosture = ThreatCritical, PosturePrioritizeHighValue
	case highValueThreatened && s.EnemyUnits > s.FriendlyUnits:
		s.ThreatLevel, s.RecommendedPosture = ThreatHigh, PostureDefendHighWithdraw
	case s.EnemyUnits > s.FriendlyUnits && near:
		s.ThreatLevel, s.RecommendedPosture = ThreatHigh, PostureDefendByPriority
	case near && len(s.ObjectivesUnderThreat) > len(objectives)/2:
		s.ThreatLevel, s.RecommendedPosture = ThreatModerate, PostureDefendThreatened
	case s.EnemyUnits < s.FriendlyUnits/2 || !near:
		s.ThreatLevel, s.RecommendedPosture = ThreatLow, PostureProportionalResponse
	default:
		s.ThreatLevel, s.RecommendedPosture = ThreatModerate, PostureBalanced
	}
	return s
}

func dist2D(a, b []float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Hypot(dx, dy)
}

// ComputeDeployDirective turns an unfavorable assessment into a standing
// order to spend the asset pool. Empty when no enemies are known, the pool
// is dry, or the force picture does not warrant it.
func ComputeDeployDirective(sit Situation, resources []state.ResourceStatus) string {
	if sit.EnemyUnits == 0 {
		return ""
	}
	remaining := 0
	for _, r := range resources {
		remaining += r.Remaining
	}
	if remaining == 0 {
		return ""
	}
	var trigger string
	switch {
	case sit.ForceRatio < 1.5:
		trigger = fmt.Sprintf("force ratio %.2f is below 1.5", sit.ForceRatio)
	case sit.ThreatLevel == ThreatModerate || sit.ThreatLevel == ThreatHigh || sit.ThreatLevel == ThreatCritical:
		trigger = "threat level is " + sit.ThreatLevel
	default:
		return ""
	}
	return fmt.Sprintf(
		"Enemy forces are active and %s. %d asset deployment(s) remain unused. Deploy assets this cycle with deploy_asset orders.",
		trigger, remaining)
}

// BuildDynamicPrompt renders the per-cycle prompt half: mission intent,
// deployment guidance, situation assessment, the live order of battle,
// current assignments and recent order summaries.
func BuildDynamicPrompt(world *model.WorldState, missionIntent, deployDirective string,
	sit Situation, assignments []model.GroupAssignment, summaries []OrderSummary) string {

	var b strings.Builder
	fmt.Fprintf(&b, "MISSION TIME: %.0fs", world.MissionTime)
	if world.IsNight {
		b.WriteString(" (night)")
	}
	b.WriteString("\n")

	if missionIntent != "" {
		b.WriteString("\nMISSION INTENT:\n" + missionIntent + "\n")
	}
	if deployDirective != "" {
		b.WriteString("\nDEPLOYMENT DIRECTIVE:\n" + deployDirective + "\n")
	}

	sitJSON, _ := json.Marshal(sit)
	b.WriteString("\nSITUATION ASSESSMENT:\n" + string(sitJSON) + "\n")

	b.WriteString("\nCONTROLLED GROUPS:\n")
	for _, g := range world.ControlledGroups() {
		writeGroup(&b, g, assignments)
	}

	enemies := world.EnemyGroups()
	if len(enemies) > 0 {
		b.WriteString("\nKNOWN ENEMY GROUPS:\n")
		for _, g := range enemies {
			fmt.Fprintf(&b, "- %s side=%s type=%s units=%d", g.ID, g.Side, g.Category, g.UnitCount)
			if len(g.Position) >= 2 {
				fmt.Fprintf(&b, " pos=[%.0f,%.0f]", g.Position[0], g.Position[1])
			}
			b.WriteString("\n")
		}
	}

	if len(world.Players) > 0 {
		b.WriteString("\nPLAYERS:\n")
		for _, p := range world.Players {
			fmt.Fprintf(&b, "- %s side=%s", p.Name, p.Side)
			if p.IsHVT {
				fmt.Fprintf(&b, " HVT(%s)", p.HVTReason)
			}
			if len(p.Position) >= 2 {
				fmt.Fprintf(&b, " pos=[%.0f,%.0f]", p.Position[0], p.Position[1])
			}
			b.WriteString("\n")
		}
	}

	if len(summaries) > 0 {
		b.WriteString("\nRECENT ORDERS (most recent last):\n")
		for _, s := range summaries {
			fmt.Fprintf(&b, "- cycle %d @ %.0fs: %s\n", s.Cycle, s.MissionTime, s.Summary)
		}
	}

	b.WriteString("\nIssue your orders now as the JSON object described in your instructions.\n")
	return b.String()
}

func writeGroup(b *strings.Builder, g model.Group, assignments []model.GroupAssignment) {
	fmt.Fprintf(b, "- %s side=%s type=%s units=%d", g.ID, g.Side, g.Category, g.UnitCount)
	if len(g.Position) >= 2 {
		fmt.Fprintf(b, " pos=[%.0f,%.0f]", g.Position[0], g.Position[1])
	}
	if g.InCombat {
		b.WriteString(" IN-COMBAT")
	}
	if g.Behaviour != "" {
		fmt.Fprintf(b, " behaviour=%s", g.Behaviour)
	}
	for _, a := range assignments {
		if a.GroupID == g.ID {
			fmt.Fprintf(b, " assigned=%s role=%s", a.ObjectiveID, a.Role)
			break
		}
	}
	if n := len(g.KnownEnemies); n > 0 {
		fmt.Fprintf(b, " contacts=%d", n)
	}
	b.WriteString("\n")
}
