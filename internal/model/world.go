// Package model holds the battlefield data types shared by every subsystem:
// world snapshots pushed by the game engine, mission objectives, group
// assignments and the commands issued back to the engine.
package model

import "math"

// GroupCategory classifies a group's dominant unit composition.
type GroupCategory string

const (
	CategoryInfantry   GroupCategory = "infantry"
	CategoryMotorized  GroupCategory = "motorized"
	CategoryMechanized GroupCategory = "mechanized"
	CategoryArmor      GroupCategory = "armor"
	CategoryAirRotary  GroupCategory = "air_rotary"
	CategoryAirFixed   GroupCategory = "air_fixed"
	CategoryNaval      GroupCategory = "naval"
	CategoryUnknown    GroupCategory = "unknown"
)

// IsVehicle reports whether the category represents a vehicle-based group.
func (c GroupCategory) IsVehicle() bool {
	switch c {
	case CategoryMotorized, CategoryMechanized, CategoryArmor, CategoryAirRotary, CategoryAirFixed, CategoryNaval:
		return true
	}
	return false
}

// IsAir reports whether the category is an aviation group.
func (c GroupCategory) IsAir() bool {
	return c == CategoryAirRotary || c == CategoryAirFixed
}

// CanFireSupport reports whether the category may execute fire_support orders.
func (c GroupCategory) CanFireSupport() bool {
	switch c {
	case CategoryAirRotary, CategoryAirFixed, CategoryArmor, CategoryMechanized, CategoryMotorized:
		return true
	}
	return false
}

// KnownEnemy is one group's subjective intel about an enemy contact.
type KnownEnemy struct {
	ID        string        `json:"id"`
	Side      string        `json:"side"`
	Category  GroupCategory `json:"type"`
	Position  []float64     `json:"position"`
	UnitCount int           `json:"unit_count"`
	Knowledge float64       `json:"knowledge"`
	LastSeen  float64       `json:"last_seen"`
}

// Group is a single AI-steered group as reported by the engine. Groups are
// never mutated in place; a fresh snapshot replaces them wholesale.
type Group struct {
	ID         string        `json:"id"`
	Side       string        `json:"side"`
	Category   GroupCategory `json:"type"`
	Position   []float64     `json:"position"`
	UnitCount  int           `json:"unit_count"`
	Casualties int           `json:"casualties"`

	Behaviour  string `json:"behaviour"`
	CombatMode string `json:"combat_mode"`
	SpeedMode  string `json:"speed_mode"`
	Formation  string `json:"formation"`

	IsControlled  bool `json:"is_controlled"`
	IsPlayerGroup bool `json:"is_player_group"`
	IsFriendly    bool `json:"is_friendly"`
	InCombat      bool `json:"in_combat"`

	CurrentWaypointType string    `json:"current_waypoint_type,omitempty"`
	CurrentWaypointPos  []float64 `json:"current_waypoint_pos,omitempty"`

	KnownEnemies       []KnownEnemy `json:"known_enemies,omitempty"`
	Knowledge          float64      `json:"knowledge,omitempty"`
	AvgNightCapability float64      `json:"avg_night_capability,omitempty"`
}

// Player is a human participant on the server.
type Player struct {
	Name        string    `json:"name"`
	UID         string    `json:"uid"`
	Side        string    `json:"side"`
	GroupID     string    `json:"group_id"`
	Position    []float64 `json:"position"`
	IsInVehicle bool      `json:"is_in_vehicle"`
	VehicleType string    `json:"vehicle_type,omitempty"`
	Damage      float64   `json:"damage"`
	IsHVT       bool      `json:"is_hvt"`
	HVTReason   string    `json:"hvt_reason,omitempty"`
}

// ObjectiveMarker is an objective area marker as drawn by the mission.
type ObjectiveMarker struct {
	ID       string    `json:"id"`
	Position []float64 `json:"position"`
	Radius   float64   `json:"radius"`
	Shape    string    `json:"shape"`
	Type     string    `json:"type"`
	Text     string    `json:"text"`
	Color    string    `json:"color"`
}

// WorldState is an immutable-per-cycle snapshot of the battlefield. The
// engine pushes a complete snapshot each tick; the decision core never
// mutates one.
type WorldState struct {
	Timestamp   float64 `json:"timestamp"`
	MissionTime float64 `json:"mission_time"`
	IsNight     bool    `json:"is_night"`

	Groups     []Group           `json:"groups"`
	Players    []Player          `json:"players"`
	Objectives []ObjectiveMarker `json:"objectives"`

	WorldName        string         `json:"world_name"`
	MissionName      string         `json:"mission_name"`
	MissionVariables map[string]any `json:"mission_variables,omitempty"`
	MissionIntent    string         `json:"mission_intent,omitempty"`
	FriendlySides    []string       `json:"friendly_sides,omitempty"`
	ControlledSides  []string       `json:"controlled_sides,omitempty"`
	AIDeployment     map[string]int `json:"ai_deployment,omitempty"`
}

// ControlledGroups returns the groups under the commander's direct control.
func (w *WorldState) ControlledGroups() []Group {
	var out []Group
	for _, g := range w.Groups {
		if g.IsControlled {
			out = append(out, g)
		}
	}
	return out
}

// EnemyGroups returns every group not under the commander's control.
func (w *WorldState) EnemyGroups() []Group {
	var out []Group
	for _, g := range w.Groups {
		if !g.IsControlled {
			out = append(out, g)
		}
	}
	return out
}

// GroupByID looks a group up by its id.
func (w *WorldState) GroupByID(id string) (Group, bool) {
	for _, g := range w.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// Distance2D is the planar distance between two positions. Positions shorter
// than two coordinates yield +Inf so callers treat them as unreachable.
func Distance2D(a, b []float64) float64 {
	if len(a) < 2 || len(b) < 2 {
		return math.Inf(1)
	}
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Sqrt(dx*dx + dy*dy)
}
