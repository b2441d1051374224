package orders

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"tacticom/internal/model"
)

func decodeOrders(t *testing.T, raw string) []any {
	t.Helper()
	var out []any
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestParseMoveToDefaults(t *testing.T) {
	p := NewParser(nil)
	res := p.Parse(decodeOrders(t, `[
		{"type": "move_to", "group_id": "alpha", "position": [100, 200]}
	]`))
	require.Empty(t, res.Warnings)
	require.Len(t, res.Commands, 1)

	cmd := res.Commands[0]
	require.Equal(t, model.CmdMoveTo, cmd.Type)
	require.Equal(t, "alpha", cmd.GroupID)
	require.Equal(t, []float64{100, 200, 0}, cmd.Params["position"])
	require.Equal(t, model.SpeedNormal, cmd.Params["speed"])
	require.Equal(t, model.BehaviourAware, cmd.Params["behaviour"])
	require.Equal(t, model.CombatYellow, cmd.Params["combat_mode"])
}

func TestParseOneBadOrderDoesNotSinkBatch(t *testing.T) {
	p := NewParser(nil)
	res := p.Parse(decodeOrders(t, `[
		{"type": "move_to", "group_id": "alpha", "position": [100, 200]},
		"not an object",
		{"type": "defend_area", "group": "bravo", "location": [50, 60]},
		{"type": "move_to", "position": [1, 2]}
	]`))
	require.Len(t, res.Commands, 2)
	require.Len(t, res.Warnings, 2)
}

func TestParseSynonymsAndStringCoordinates(t *testing.T) {
	p := NewParser(nil)
	res := p.Parse(decodeOrders(t, `[
		{"type": "defend_area", "group": "bravo", "location": ["1500", "2500.5"]}
	]`))
	require.Len(t, res.Commands, 1)
	cmd := res.Commands[0]
	require.Equal(t, "bravo", cmd.GroupID)
	require.Equal(t, []float64{1500, 2500.5, 0}, cmd.Params["position"])
	require.Equal(t, DefaultDefendRadius, cmd.Params["radius"])
	require.Equal(t, model.BehaviourCombat, cmd.Params["behaviour"])
}

func TestParseLongPositionTruncated(t *testing.T) {
	p := NewParser(nil)
	res := p.Parse(decodeOrders(t, `[
		{"type": "move_to", "group_id": "alpha", "position": [1, 2, 3, 4, 5]}
	]`))
	require.Len(t, res.Commands, 1)
	require.Equal(t, []float64{1, 2, 3}, res.Commands[0].Params["position"])
}

func TestParsePatrolRejectsShortRoute(t *testing.T) {
	p := NewParser(nil)
	res := p.Parse(decodeOrders(t, `[
		{"type": "patrol_route", "group_id": "alpha", "waypoints": [[1, 2]]},
		{"type": "patrol_route", "group_id": "bravo", "waypoints": [[1, 2], ["bad", 4]]}
	]`))
	require.Empty(t, res.Commands)
	require.Len(t, res.Warnings, 2)
}

func TestParsePatrolValid(t *testing.T) {
	p := NewParser(nil)
	res := p.Parse(decodeOrders(t, `[
		{"type": "patrol_route", "group_id": "alpha", "waypoints": [[1, 2], [3, 4], [5, 6]]}
	]`))
	require.Len(t, res.Commands, 1)
	wps := res.Commands[0].Params["waypoints"].([][]float64)
	require.Len(t, wps, 3)
	require.Equal(t, []float64{3, 4, 0}, wps[1])
	require.Equal(t, model.BehaviourSafe, res.Commands[0].Params["behaviour"])
}

func TestParseRejectsNonPositiveRadius(t *testing.T) {
	p := NewParser(nil)
	res := p.Parse(decodeOrders(t, `[
		{"type": "seek_and_destroy", "group_id": "alpha", "position": [1, 2], "radius": 0},
		{"type": "seek_and_destroy", "group_id": "bravo", "position": [1, 2]}
	]`))
	require.Len(t, res.Commands, 1)
	require.Equal(t, "bravo", res.Commands[0].GroupID)
	require.Equal(t, DefaultSeekRadius, res.Commands[0].Params["radius"])
}

func TestParseSpawnSquad(t *testing.T) {
	p := NewParser(nil)
	res := p.Parse(decodeOrders(t, `[
		{"type": "spawn_squad", "side": "east", "position": [10, 20], "unit_classes": ["rifleman", "mg"]},
		{"type": "spawn_squad", "side": "CIVILIAN", "position": [10, 20], "unit_classes": ["rifleman"]},
		{"type": "spawn_squad", "side": "WEST", "position": [10, 20], "unit_classes": []}
	]`))
	require.Len(t, res.Commands, 1)
	require.Len(t, res.Warnings, 2)

	cmd := res.Commands[0]
	require.Equal(t, model.CmdSpawnSquad, cmd.Type)
	require.Equal(t, "EAST", cmd.Params["side"])
	require.True(t, model.IsProvisionalGroupID(cmd.GroupID))
}

func TestParseSpawnThenReference(t *testing.T) {
	p := NewParser(nil)
	res := p.Parse(decodeOrders(t, `[
		{"type": "move_to", "group_id": "new_squad_1", "position": [300, 400]},
		{"type": "spawn_squad", "group_id": "new_squad_1", "side": "EAST", "position": [10, 20], "unit_classes": ["rifleman"]}
	]`))
	require.Len(t, res.Commands, 2)

	spawn := res.Commands[0]
	move := res.Commands[1]
	require.Equal(t, model.CmdSpawnSquad, spawn.Type)
	require.Equal(t, model.CmdMoveTo, move.Type)
	require.Equal(t, spawn.GroupID, move.GroupID, "move order must follow the minted spawn id")
}

func TestParseTransportAndEscort(t *testing.T) {
	p := NewParser(nil)
	res := p.Parse(decodeOrders(t, `[
		{"type": "transport_group", "vehicle_group_id": "truck", "passenger_group_id": "inf", "pickup": [1, 2], "dropoff": [3, 4]},
		{"type": "escort_group", "escort_group_id": "apc", "target_group_id": "convoy"},
		{"type": "escort_group", "escort_group_id": "apc2"}
	]`))
	require.Len(t, res.Commands, 2)
	require.Len(t, res.Warnings, 1)

	tr := res.Commands[0]
	require.Equal(t, "truck", tr.GroupID)
	require.Equal(t, "inf", tr.Params["passenger_group_id"])

	esc := res.Commands[1]
	require.Equal(t, DefaultEscortRadius, esc.Params["radius"])
}

func TestParseFireSupportDefaults(t *testing.T) {
	p := NewParser(nil)
	res := p.Parse(decodeOrders(t, `[
		{"type": "fire_support", "group_id": "arty", "position": [900, 900]}
	]`))
	require.Len(t, res.Commands, 1)
	require.Equal(t, DefaultFireSupportRadius, res.Commands[0].Params["radius"])
}

func TestDedupKeepsFirstOrderPerGroup(t *testing.T) {
	cmds := []model.Command{
		model.MoveTo("alpha", []float64{1, 2, 0}, model.SpeedNormal, model.BehaviourAware, model.CombatYellow),
		model.DefendArea("alpha", []float64{3, 4, 0}, 100, model.BehaviourCombat),
		model.MoveTo("bravo", []float64{5, 6, 0}, model.SpeedNormal, model.BehaviourAware, model.CombatYellow),
	}
	out, warnings := Dedup(cmds)
	require.Len(t, out, 2)
	require.Len(t, warnings, 1)
	require.Equal(t, model.CmdMoveTo, out[0].Type)
	require.Equal(t, "alpha", out[0].GroupID)
	require.Equal(t, "bravo", out[1].GroupID)
}
