package model

import (
	"strings"

	"github.com/google/uuid"
)

// CommandType names an engine-executable order.
type CommandType string

const (
	CmdMoveTo         CommandType = "move_to"
	CmdDefendArea     CommandType = "defend_area"
	CmdPatrolRoute    CommandType = "patrol_route"
	CmdSeekAndDestroy CommandType = "seek_and_destroy"
	CmdSpawnSquad     CommandType = "spawn_squad"
	CmdTransportGroup CommandType = "transport_group"
	CmdEscortGroup    CommandType = "escort_group"
	CmdFireSupport    CommandType = "fire_support"
	CmdDeployAsset    CommandType = "deploy_asset"
)

// Movement parameter vocabulary accepted by the engine.
const (
	SpeedSlow   = "SLOW"
	SpeedNormal = "NORMAL"
	SpeedFast   = "FAST"

	BehaviourSafe    = "SAFE"
	BehaviourAware   = "AWARE"
	BehaviourCombat  = "COMBAT"
	BehaviourStealth = "STEALTH"

	CombatBlue   = "BLUE"
	CombatGreen  = "GREEN"
	CombatWhite  = "WHITE"
	CombatYellow = "YELLOW"
	CombatRed    = "RED"
)

// Sides a spawn or deployment may target.
var SpawnableSides = []string{"EAST", "WEST", "RESISTANCE"}

// DeployableSides additionally allows INDEPENDENT.
var DeployableSides = []string{"EAST", "WEST", "RESISTANCE", "INDEPENDENT"}

// ValidSide reports whether side is in the allowed list, case sensitively.
func ValidSide(side string, allowed []string) bool {
	for _, s := range allowed {
		if s == side {
			return true
		}
	}
	return false
}

// SpawnGroupPrefix and DeployGroupPrefix mark ids synthesized for groups
// that will only exist after the engine executes the batch. The sandbox
// lets such ids through existence checks.
const (
	SpawnGroupPrefix  = "SPAWN_"
	DeployGroupPrefix = "DEPLOY_"
)

// NewSpawnGroupID mints a provisional id for a spawn_squad command.
func NewSpawnGroupID(side string) string {
	return SpawnGroupPrefix + side + "_" + shortID()
}

// NewDeployGroupID mints a provisional id for a deploy_asset command.
func NewDeployGroupID(side string) string {
	return DeployGroupPrefix + side + "_" + shortID()
}

// IsProvisionalGroupID reports whether id refers to a not-yet-spawned group.
func IsProvisionalGroupID(id string) bool {
	return strings.HasPrefix(id, SpawnGroupPrefix) || strings.HasPrefix(id, DeployGroupPrefix)
}

func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Command is one validated, engine-ready order. Params carries the
// type-specific payload exactly as it will be serialized.
type Command struct {
	Type    CommandType    `json:"type"`
	GroupID string         `json:"group_id,omitempty"`
	Params  map[string]any `json:"params"`
}

func newCommand(t CommandType, groupID string, params map[string]any) Command {
	if params == nil {
		params = map[string]any{}
	}
	return Command{Type: t, GroupID: groupID, Params: params}
}

// MoveTo orders a group to a position.
func MoveTo(groupID string, pos []float64, speed, behaviour, combatMode string) Command {
	return newCommand(CmdMoveTo, groupID, map[string]any{
		"position":    pos,
		"speed":       speed,
		"behaviour":   behaviour,
		"combat_mode": combatMode,
	})
}

// DefendArea orders a group to hold a position.
func DefendArea(groupID string, pos []float64, radius float64, behaviour string) Command {
	return newCommand(CmdDefendArea, groupID, map[string]any{
		"position":  pos,
		"radius":    radius,
		"behaviour": behaviour,
	})
}

// PatrolRoute orders a group along waypoints.
func PatrolRoute(groupID string, waypoints [][]float64, speed, behaviour string) Command {
	return newCommand(CmdPatrolRoute, groupID, map[string]any{
		"waypoints": waypoints,
		"speed":     speed,
		"behaviour": behaviour,
	})
}

// SeekAndDestroy orders an aggressive sweep around a position.
func SeekAndDestroy(groupID string, pos []float64, radius float64) Command {
	return newCommand(CmdSeekAndDestroy, groupID, map[string]any{
		"position": pos,
		"radius":   radius,
	})
}

// SpawnSquad requests a new squad at a position.
func SpawnSquad(groupID, side string, pos []float64, unitClasses []string) Command {
	return newCommand(CmdSpawnSquad, groupID, map[string]any{
		"side":         side,
		"position":     pos,
		"unit_classes": unitClasses,
	})
}

// TransportGroup tasks a vehicle group with moving passengers.
func TransportGroup(vehicleGroupID, passengerGroupID string, pickup, dropoff []float64) Command {
	return newCommand(CmdTransportGroup, vehicleGroupID, map[string]any{
		"passenger_group_id": passengerGroupID,
		"pickup":             pickup,
		"dropoff":            dropoff,
	})
}

// EscortGroup tasks a group with shadowing another.
func EscortGroup(escortGroupID, targetGroupID string, radius float64) Command {
	return newCommand(CmdEscortGroup, escortGroupID, map[string]any{
		"target_group_id": targetGroupID,
		"radius":          radius,
	})
}

// FireSupport directs area fire onto a position.
func FireSupport(groupID string, pos []float64, radius float64) Command {
	return newCommand(CmdFireSupport, groupID, map[string]any{
		"position": pos,
		"radius":   radius,
	})
}

// DeployAsset requests a templated reinforcement deployment.
func DeployAsset(groupID, side, template string, pos []float64, unitClasses []string) Command {
	return newCommand(CmdDeployAsset, groupID, map[string]any{
		"side":         side,
		"template":     template,
		"position":     pos,
		"unit_classes": unitClasses,
	})
}
