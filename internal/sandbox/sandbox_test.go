package sandbox

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tacticom/internal/audit"
	"tacticom/internal/config"
	"tacticom/internal/model"
	"tacticom/internal/state"
)

func testWorld() *model.WorldState {
	return &model.WorldState{
		MissionTime: 600,
		Groups: []model.Group{
			{ID: "alpha", Side: "EAST", Category: model.CategoryInfantry, Position: []float64{1000, 1000}, UnitCount: 8, IsControlled: true},
			{ID: "truck", Side: "EAST", Category: model.CategoryMotorized, Position: []float64{1100, 1000}, UnitCount: 2, IsControlled: true},
			{ID: "heli", Side: "EAST", Category: model.CategoryAirRotary, Position: []float64{1200, 1000}, UnitCount: 1, IsControlled: true},
			{ID: "friendly", Side: "EAST", Category: model.CategoryInfantry, Position: []float64{1300, 1000}, UnitCount: 4, IsFriendly: true},
			{ID: "enemy", Side: "WEST", Category: model.CategoryInfantry, Position: []float64{5000, 5000}, UnitCount: 10},
			{ID: "crew", Side: "EAST", Category: model.CategoryMotorized, Position: []float64{1000, 1100}, UnitCount: 2, IsControlled: true, IsPlayerGroup: true},
		},
		AIDeployment: map[string]int{"EAST": 95},
	}
}

func newTestSandbox(t *testing.T, cfg config.Sandbox, resources ...config.ResourceTemplate) (*Sandbox, *state.Manager) {
	t.Helper()
	full := config.Default()
	full.Sandbox = cfg
	full.Resources = resources
	st := state.NewManager(full)
	return New(cfg, 100, st, audit.New(), nil), st
}

func moveCmd(group string) model.Command {
	return model.MoveTo(group, []float64{1500, 1500, 0}, model.SpeedNormal, model.BehaviourAware, model.CombatYellow)
}

func TestScreenAllowsControlledGroupMove(t *testing.T) {
	sb, _ := newTestSandbox(t, config.Sandbox{Enabled: true})
	out, verdicts := sb.Screen(testWorld(), []model.Command{moveCmd("alpha")}, 1)
	require.Len(t, out, 1)
	require.True(t, verdicts[0].Allowed)
}

func TestScreenBlocksUnknownAndUncontrolledGroups(t *testing.T) {
	sb, _ := newTestSandbox(t, config.Sandbox{Enabled: true})
	out, verdicts := sb.Screen(testWorld(), []model.Command{
		moveCmd("ghost"),
		moveCmd("enemy"),
	}, 1)
	require.Empty(t, out)
	require.Contains(t, verdicts[0].Reason, "does not exist")
	require.Contains(t, verdicts[1].Reason, "not under AI control")
}

func TestScreenAllowListBlocksUnlistedTypes(t *testing.T) {
	sb, _ := newTestSandbox(t, config.Sandbox{
		Enabled:      true,
		AllowedTypes: []string{string(model.CmdMoveTo)},
	})
	out, verdicts := sb.Screen(testWorld(), []model.Command{
		moveCmd("alpha"),
		model.SeekAndDestroy("alpha", []float64{1, 2, 0}, 200),
	}, 1)
	require.Len(t, out, 1)
	require.False(t, verdicts[1].Allowed)
	require.Contains(t, verdicts[1].Reason, "not in allow list")
}

func TestScreenBlockListOverridesAllowList(t *testing.T) {
	sb, _ := newTestSandbox(t, config.Sandbox{
		Enabled:      true,
		BlockedTypes: []string{string(model.CmdFireSupport)},
	})
	_, verdicts := sb.Screen(testWorld(), []model.Command{
		model.FireSupport("heli", []float64{2000, 2000, 0}, 250),
	}, 1)
	require.False(t, verdicts[0].Allowed)
	require.Contains(t, verdicts[0].Reason, "block-listed")
}

func TestScreenSpawnRespectsUnitCap(t *testing.T) {
	sb, _ := newTestSandbox(t, config.Sandbox{Enabled: true})
	world := testWorld() // EAST already has 95 of 100 units deployed
	out, verdicts := sb.Screen(world, []model.Command{
		model.SpawnSquad(model.NewSpawnGroupID("EAST"), "EAST", []float64{1000, 1000, 0}, []string{"a", "b", "c"}),
		model.SpawnSquad(model.NewSpawnGroupID("EAST"), "EAST", []float64{1000, 1000, 0}, []string{"d", "e", "f"}),
	}, 1)
	// First spawn takes 3 of the 5 free slots, second would need 3 more.
	require.Len(t, out, 1)
	require.True(t, verdicts[0].Allowed)
	require.False(t, verdicts[1].Allowed)
	require.Contains(t, verdicts[1].Reason, "unit cap")
}

func TestScreenTransportRejectsNonVehicleAndPlayerCrews(t *testing.T) {
	sb, _ := newTestSandbox(t, config.Sandbox{Enabled: true})
	out, verdicts := sb.Screen(testWorld(), []model.Command{
		model.TransportGroup("truck", "alpha", []float64{1, 2, 0}, []float64{3, 4, 0}),
		model.TransportGroup("alpha", "truck", []float64{1, 2, 0}, []float64{3, 4, 0}),
		model.TransportGroup("crew", "alpha", []float64{1, 2, 0}, []float64{3, 4, 0}),
	}, 1)
	require.Len(t, out, 1)
	require.Equal(t, "truck", out[0].GroupID)
	require.Contains(t, verdicts[1].Reason, "cannot transport")
	require.Contains(t, verdicts[2].Reason, "player group")
}

func TestScreenEscortNeedsFriendlyTarget(t *testing.T) {
	sb, _ := newTestSandbox(t, config.Sandbox{Enabled: true})
	out, verdicts := sb.Screen(testWorld(), []model.Command{
		model.EscortGroup("truck", "friendly", 75),
		model.EscortGroup("truck", "enemy", 75),
	}, 1)
	require.Len(t, out, 1)
	require.Contains(t, verdicts[1].Reason, "not friendly")
}

func TestScreenFireSupportNeedsCapableGroup(t *testing.T) {
	sb, _ := newTestSandbox(t, config.Sandbox{Enabled: true})
	out, verdicts := sb.Screen(testWorld(), []model.Command{
		model.FireSupport("heli", []float64{2000, 2000, 0}, 250),
		model.FireSupport("alpha", []float64{2000, 2000, 0}, 250),
	}, 1)
	require.Len(t, out, 1)
	require.Equal(t, "heli", out[0].GroupID)
	require.Contains(t, verdicts[1].Reason, "cannot deliver fire support")
}

func TestScreenDeployAssetBudgetAndDefenseGate(t *testing.T) {
	tmpl := config.ResourceTemplate{
		Side:        "EAST",
		Name:        "qrf_squad",
		UnitClasses: []string{"a", "b"},
		MaxUses:     1,
	}
	defOnly := config.ResourceTemplate{
		Side:        "EAST",
		Name:        "static_defense",
		UnitClasses: []string{"c"},
		MaxUses:     3,
		DefenseOnly: true,
	}
	sb, st := newTestSandbox(t, config.Sandbox{Enabled: true}, tmpl, defOnly)
	world := testWorld()
	world.AIDeployment = map[string]int{"EAST": 10}

	deploy := func(template string) model.Command {
		return model.DeployAsset(model.NewDeployGroupID("EAST"), "EAST", template, []float64{1000, 1000, 0}, nil)
	}

	// Budget: one use allowed, second rejected, pool unchanged by rejection.
	out, _ := sb.Screen(world, []model.Command{deploy("qrf_squad"), deploy("qrf_squad")}, 1)
	require.Len(t, out, 1)
	require.Equal(t, []string{"a", "b"}, out[0].Params["unit_classes"], "template classes must be injected")

	statuses := st.ResourceStatuses()
	for _, s := range statuses {
		if s.Name == "qrf_squad" {
			require.Equal(t, 1, s.Used)
			require.Equal(t, 0, s.Remaining)
		}
	}

	// Defense-only template rejected outside a defense phase.
	out, verdicts := sb.Screen(world, []model.Command{deploy("static_defense")}, 2)
	require.Empty(t, out)
	require.Contains(t, verdicts[0].Reason, "defense-only")

	st.SetAODefenseActive(true)
	out, _ = sb.Screen(world, []model.Command{deploy("static_defense")}, 3)
	require.Len(t, out, 1)

	// Unknown template.
	_, verdicts = sb.Screen(world, []model.Command{deploy("nope")}, 4)
	require.Contains(t, verdicts[0].Reason, "unknown asset template")
}

func TestScreenDeployAssetBudgetsPerSide(t *testing.T) {
	east := config.ResourceTemplate{Side: "EAST", Name: "qrf_squad", UnitClasses: []string{"a"}, MaxUses: 1}
	west := config.ResourceTemplate{Side: "WEST", Name: "qrf_squad", UnitClasses: []string{"a"}, MaxUses: 1}
	sb, _ := newTestSandbox(t, config.Sandbox{Enabled: true}, east, west)
	world := testWorld()
	world.AIDeployment = map[string]int{}

	deploy := func(side string) model.Command {
		return model.DeployAsset(model.NewDeployGroupID(side), side, "qrf_squad", []float64{1000, 1000, 0}, nil)
	}

	// Exhausting EAST's pool must not touch WEST's.
	out, _ := sb.Screen(world, []model.Command{deploy("EAST")}, 1)
	require.Len(t, out, 1)
	_, verdicts := sb.Screen(world, []model.Command{deploy("EAST"), deploy("WEST")}, 2)
	require.Contains(t, verdicts[0].Reason, "exhausted")
	require.True(t, verdicts[1].Allowed, "WEST draws on its own budget")
}

func TestScreenDeployRejectedByBoundsKeepsBudget(t *testing.T) {
	tmpl := config.ResourceTemplate{Side: "EAST", Name: "qrf_squad", UnitClasses: []string{"a"}, MaxUses: 1}
	bounds := config.Bounds{MinX: 0, MaxX: 2000, MinY: 0, MaxY: 2000}
	sb, st := newTestSandbox(t, config.Sandbox{Enabled: true, Bounds: bounds}, tmpl)
	st.SetAOBounds(bounds)
	world := testWorld()
	world.AIDeployment = map[string]int{}

	deploy := func(pos []float64) model.Command {
		return model.DeployAsset(model.NewDeployGroupID("EAST"), "EAST", "qrf_squad", pos, nil)
	}

	_, verdicts := sb.Screen(world, []model.Command{deploy([]float64{9000, 9000, 0})}, 1)
	require.Contains(t, verdicts[0].Reason, "outside operating area")

	// The bounds rejection must not have consumed the single use.
	out, _ := sb.Screen(world, []model.Command{deploy([]float64{1000, 1000, 0})}, 2)
	require.Len(t, out, 1)
}

func TestScreenBoundsCoverEveryPositionCarryingType(t *testing.T) {
	bounds := config.Bounds{MinX: 0, MaxX: 2000, MinY: 0, MaxY: 2000}
	sb, st := newTestSandbox(t, config.Sandbox{Enabled: true, Bounds: bounds})
	st.SetAOBounds(bounds)
	world := testWorld()

	inside := []float64{500, 500, 0}
	outside := []float64{9000, 9000, 0}

	cases := []struct {
		name string
		cmd  model.Command
		ok   bool
	}{
		{"move inside", model.MoveTo("alpha", inside, model.SpeedNormal, model.BehaviourAware, model.CombatYellow), true},
		{"move outside", model.MoveTo("alpha", outside, model.SpeedNormal, model.BehaviourAware, model.CombatYellow), false},
		{"patrol waypoint outside", model.PatrolRoute("alpha", [][]float64{inside, outside}, model.SpeedNormal, model.BehaviourSafe), false},
		{"transport dropoff outside", model.TransportGroup("truck", "alpha", inside, outside), false},
		{"fire support outside", model.FireSupport("heli", outside, 250), false},
		{"escort has no position", model.EscortGroup("truck", "friendly", 75), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, verdicts := sb.Screen(world, []model.Command{tc.cmd}, 1)
			require.Equal(t, tc.ok, verdicts[0].Allowed, "reason: %s", verdicts[0].Reason)
		})
	}
}

func TestScreenDisabledPassesEverything(t *testing.T) {
	sb, _ := newTestSandbox(t, config.Sandbox{Enabled: false})
	out, verdicts := sb.Screen(testWorld(), []model.Command{
		moveCmd("ghost"),
		moveCmd("enemy"),
	}, 1)
	require.Len(t, out, 2)
	for _, v := range verdicts {
		require.True(t, v.Allowed)
	}
}

func TestScreenProvisionalIDsPassExistenceChecks(t *testing.T) {
	sb, _ := newTestSandbox(t, config.Sandbox{Enabled: true})
	id := model.NewSpawnGroupID("EAST")
	out, _ := sb.Screen(testWorld(), []model.Command{
		model.MoveTo(id, []float64{1500, 1500, 0}, model.SpeedNormal, model.BehaviourAware, model.CombatYellow),
	}, 1)
	require.Len(t, out, 1)
}

func TestScreenAuditsEveryVerdict(t *testing.T) {
	aud := audit.New()
	full := config.Default()
	full.Sandbox = config.Sandbox{Enabled: true}
	st := state.NewManager(full)
	sb := New(full.Sandbox, 100, st, aud, nil)

	sb.Screen(testWorld(), []model.Command{moveCmd("alpha"), moveCmd("ghost")}, 7)

	entries := aud.Recent(10)
	require.Len(t, entries, 2)
	seen := map[string]bool{}
	for _, e := range entries {
		require.Equal(t, 7, e.Cycle)
		require.Equal(t, "command", e.Kind)
		seen[e.Verdict] = true
	}
	require.True(t, seen[audit.VerdictAllowed])
	require.True(t, seen[audit.VerdictBlocked])
}
