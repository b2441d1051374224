package decision

import (
	"testing"

	"tacticom/internal/model"
	"tacticom/internal/tester"
)

func newAssigner() *Assigner {
	return NewAssigner(NewCalculator(), nil)
}

func TestAssignNoActiveObjectivesClears(t *testing.T) {
	a := newAssigner()
	world := worldWith(friendly("f1", []float64{0, 0}, 6))
	out := a.Assign([]model.Objective{
		{ID: "done", Type: model.ObjectiveDefendArea, State: model.ObjectiveCompleted},
	}, world, []model.GroupAssignment{{GroupID: "f1", ObjectiveID: "done"}})
	tester.Len(t, out, 0)
}

func TestAssignContinuityKeepsSurvivingAssignments(t *testing.T) {
	a := newAssigner()
	world := worldWith(
		friendly("f1", []float64{0, 0}, 6),
		friendly("f2", []float64{100, 0}, 6),
	)
	objs := []model.Objective{
		{ID: "hold", Type: model.ObjectiveDefendArea, State: model.ObjectiveActive, Position: []float64{0, 0}},
	}
	existing := []model.GroupAssignment{
		{GroupID: "f1", ObjectiveID: "hold", Role: "defender", Priority: 5},
	}
	out := a.Assign(objs, world, existing)

	got, ok := AssignmentFor("f1", out)
	tester.True(t, ok)
	tester.Eq(t, got.Role, "defender", "carried assignment keeps its role")
	tester.Eq(t, got.ObjectiveID, "hold")
}

func TestAssignReleasesWhenObjectiveGoneOrGroupDead(t *testing.T) {
	a := newAssigner()
	world := worldWith(friendly("f1", []float64{0, 0}, 6))
	objs := []model.Objective{
		{ID: "patrol", Type: model.ObjectivePatrolArea, State: model.ObjectiveActive, Position: []float64{0, 0}},
	}
	existing := []model.GroupAssignment{
		{GroupID: "f1", ObjectiveID: "vanished"},
		{GroupID: "ghost", ObjectiveID: "patrol"},
	}
	out := a.Assign(objs, world, existing)

	// Both stale assignments drop; f1 is re-assigned fresh to the patrol.
	tester.Len(t, out, 1)
	tester.Eq(t, out[0].GroupID, "f1")
	tester.Eq(t, out[0].ObjectiveID, "patrol")
	tester.Eq(t, out[0].Role, "patrol")
}

func TestAssignHighPriorityCustomTakesAllGroups(t *testing.T) {
	a := newAssigner()
	world := worldWith(
		friendly("f1", []float64{0, 0}, 6),
		friendly("f2", []float64{100, 0}, 6),
		friendly("f3", []float64{200, 0}, 6),
	)
	objs := []model.Objective{
		{ID: "vip", Type: model.ObjectiveCustom, State: model.ObjectiveActive, Priority: 9,
			Description: "Protect the downed pilot until extraction"},
	}
	out := a.Assign(objs, world, nil)
	tester.Len(t, out, 3)

	roles := map[string]bool{}
	for _, as := range out {
		tester.Eq(t, as.ObjectiveID, "vip")
		roles[as.Role] = true
	}
	// Protection keyword in the description selects layered defense roles.
	tester.True(t, roles["primary_defender"])
	tester.True(t, roles["support_defender"])
	tester.True(t, roles["patrol"])
}

func TestAssignAttackScalesWithEnemyCount(t *testing.T) {
	a := newAssigner()
	world := worldWith(
		friendly("f1", []float64{0, 0}, 6),
		friendly("f2", []float64{100, 0}, 6),
		friendly("f3", []float64{200, 0}, 6),
		friendly("f4", []float64{300, 0}, 6),
		friendly("f5", []float64{400, 0}, 6),
	)
	objs := []model.Objective{
		{ID: "take", Type: model.ObjectiveAttackArea, State: model.ObjectiveActive, Position: []float64{0, 0},
			Metadata: map[string]any{"enemy_count": 12}},
	}
	out := a.Assign(objs, world, nil)
	tester.Len(t, out, 3, "enemy_count 12 wants three groups")
}

func TestAssignAttackRolesByComposition(t *testing.T) {
	a := newAssigner()
	world := worldWith(
		model.Group{ID: "tank", Category: model.CategoryArmor, Position: []float64{0, 0}, UnitCount: 4, IsControlled: true},
		model.Group{ID: "inf", Category: model.CategoryInfantry, Position: []float64{50, 0}, UnitCount: 8, IsControlled: true},
	)
	objs := []model.Objective{
		{ID: "take", Type: model.ObjectiveAttackArea, State: model.ObjectiveActive, Position: []float64{0, 0},
			Metadata: map[string]any{"enemy_count": 6}},
	}
	out := a.Assign(objs, world, nil)
	tester.Len(t, out, 2)

	byGroup := map[string]string{}
	for _, as := range out {
		byGroup[as.GroupID] = as.Role
	}
	tester.Eq(t, byGroup["tank"], "attacker")
	tester.Eq(t, byGroup["inf"], "support")
}

func TestAssignProtectHVTLayeredRoles(t *testing.T) {
	a := newAssigner()
	world := worldWith(
		friendly("f1", []float64{0, 0}, 6),
		friendly("f2", []float64{10, 0}, 6),
		friendly("f3", []float64{20, 0}, 6),
		friendly("f4", []float64{30, 0}, 6),
	)
	objs := []model.Objective{
		{ID: "hvt", Type: model.ObjectiveProtectHVT, State: model.ObjectiveActive, Position: []float64{0, 0},
			Metadata: map[string]any{"hvt_alive": true}},
	}
	out := a.Assign(objs, world, nil)
	tester.Len(t, out, 3, "HVT protection caps at three groups")
	tester.Eq(t, out[0].Role, "close_protector")
	tester.Eq(t, out[1].Role, "perimeter_defender")
	tester.Eq(t, out[2].Role, "reserve")
}
