package decision

import (
	"testing"

	"tacticom/internal/model"
	"tacticom/internal/tester"
)

func worldWith(groups ...model.Group) *model.WorldState {
	return &model.WorldState{MissionTime: 100, Groups: groups}
}

func friendly(id string, pos []float64, units int) model.Group {
	return model.Group{ID: id, Category: model.CategoryInfantry, Position: pos, UnitCount: units, IsControlled: true}
}

func hostile(id string, pos []float64, units int) model.Group {
	return model.Group{ID: id, Category: model.CategoryInfantry, Position: pos, UnitCount: units}
}

func TestEvaluatePendingBecomesActive(t *testing.T) {
	ev := NewEvaluator(nil)
	out := ev.Evaluate([]model.Objective{
		{ID: "obj1", Type: model.ObjectiveCustom, State: model.ObjectivePending},
	}, worldWith())
	tester.Eq(t, out[0].State, model.ObjectiveActive)
}

func TestEvaluateTerminalStatesImmutable(t *testing.T) {
	ev := NewEvaluator(nil)
	world := worldWith(hostile("e1", []float64{0, 0}, 50))
	out := ev.Evaluate([]model.Objective{
		{ID: "done", Type: model.ObjectiveDefendArea, State: model.ObjectiveCompleted, Position: []float64{0, 0}},
		{ID: "lost", Type: model.ObjectiveAttackArea, State: model.ObjectiveFailed, Position: []float64{0, 0}},
	}, world)
	tester.Eq(t, out[0].State, model.ObjectiveCompleted)
	tester.Eq(t, out[1].State, model.ObjectiveFailed)
}

func TestEvaluateDefendAreaFailsWhenOverrun(t *testing.T) {
	ev := NewEvaluator(nil)
	world := worldWith(
		friendly("f1", []float64{100, 100}, 10),
		hostile("e1", []float64{120, 100}, 21),
	)
	out := ev.Evaluate([]model.Objective{
		{ID: "hold", Type: model.ObjectiveDefendArea, State: model.ObjectiveActive, Position: []float64{100, 100}, Radius: 200},
	}, world)

	o := out[0]
	tester.Eq(t, o.State, model.ObjectiveFailed)
	tester.Eq(t, o.Metadata["friendly_count"].(int), 10)
	tester.Eq(t, o.Metadata["enemy_count"].(int), 21)
	tester.Eq(t, o.Metadata["area_secure"].(bool), false)
}

func TestEvaluateDefendAreaHoldsAtExactDouble(t *testing.T) {
	ev := NewEvaluator(nil)
	world := worldWith(
		friendly("f1", []float64{100, 100}, 10),
		hostile("e1", []float64{120, 100}, 20),
	)
	out := ev.Evaluate([]model.Objective{
		{ID: "hold", Type: model.ObjectiveDefendArea, State: model.ObjectiveActive, Position: []float64{100, 100}},
	}, world)
	tester.Eq(t, out[0].State, model.ObjectiveActive, "20 vs 10 is exactly double, not over")
}

func TestEvaluateAttackAreaCompletes(t *testing.T) {
	ev := NewEvaluator(nil)
	world := worldWith(friendly("f1", []float64{500, 500}, 6))
	out := ev.Evaluate([]model.Objective{
		{ID: "take", Type: model.ObjectiveAttackArea, State: model.ObjectiveActive, Position: []float64{500, 500}},
	}, world)
	tester.Eq(t, out[0].State, model.ObjectiveCompleted)
}

func TestEvaluateAttackAreaNotCompleteWithoutFriendlies(t *testing.T) {
	ev := NewEvaluator(nil)
	out := ev.Evaluate([]model.Objective{
		{ID: "take", Type: model.ObjectiveAttackArea, State: model.ObjectiveActive, Position: []float64{500, 500}},
	}, worldWith())
	tester.Eq(t, out[0].State, model.ObjectiveActive, "empty area with no friendlies is not captured")
}

func TestEvaluatePatrolRecordsThreatLevel(t *testing.T) {
	ev := NewEvaluator(nil)
	world := worldWith(hostile("e1", []float64{300, 0}, 7))
	out := ev.Evaluate([]model.Objective{
		{ID: "sweep", Type: model.ObjectivePatrolArea, State: model.ObjectiveActive, Position: []float64{0, 0}},
	}, world)
	tester.Eq(t, out[0].Metadata["threat_level"].(int), 7)
	tester.Eq(t, out[0].State, model.ObjectiveActive)
}

func TestEvaluateRadiusLimitsCount(t *testing.T) {
	ev := NewEvaluator(nil)
	world := worldWith(
		hostile("near", []float64{50, 0}, 5),
		hostile("far", []float64{5000, 0}, 50),
	)
	out := ev.Evaluate([]model.Objective{
		{ID: "hold", Type: model.ObjectiveDefendArea, State: model.ObjectiveActive, Position: []float64{0, 0}, Radius: 100},
	}, world)
	tester.Eq(t, out[0].Metadata["enemy_count"].(int), 5)
}

func TestNeedingAttention(t *testing.T) {
	objs := []model.Objective{
		{ID: "quiet", Type: model.ObjectivePatrolArea, State: model.ObjectiveActive,
			Metadata: map[string]any{"threat_level": 2}},
		{ID: "hot", Type: model.ObjectivePatrolArea, State: model.ObjectiveActive,
			Metadata: map[string]any{"threat_level": 6}},
		{ID: "contested", Type: model.ObjectiveDefendArea, State: model.ObjectiveActive,
			Metadata: map[string]any{"enemy_count": 3}},
		{ID: "finished", Type: model.ObjectiveDefendArea, State: model.ObjectiveCompleted,
			Metadata: map[string]any{"enemy_count": 3}},
	}
	hot := NeedingAttention(objs)
	tester.Len(t, hot, 2)
	tester.Eq(t, hot[0].ID, "hot")
	tester.Eq(t, hot[1].ID, "contested")
}
