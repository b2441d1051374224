package decision

import (
	"fmt"
	"log/slog"

	"tacticom/internal/model"
)

// Planner turns group assignments into concrete tasks. It is the rule-based
// counterpart to the model-driven order path: mechanical, predictable, and
// kept ready for missions run without a language model.
type Planner struct {
	counter int
	log     *slog.Logger
}

func NewPlanner(log *slog.Logger) *Planner {
	if log == nil {
		log = slog.Default()
	}
	return &Planner{log: log}
}

// PlanTasks produces one task per assignment whose objective and group both
// still exist. Assignments that cannot be planned are skipped with a warning.
func (p *Planner) PlanTasks(assignments []model.GroupAssignment, objectives []model.Objective, world *model.WorldState) []model.Task {
	var tasks []model.Task
	for _, as := range assignments {
		obj := findObjective(as.ObjectiveID, objectives)
		if obj == nil {
			p.log.Warn("objective not found for assignment", "objective", as.ObjectiveID)
			continue
		}
		g, ok := world.GroupByID(as.GroupID)
		if !ok {
			p.log.Warn("assigned group not found", "group", as.GroupID)
			continue
		}
		if t, ok := p.planTask(as, *obj, g); ok {
			tasks = append(tasks, t)
		}
	}
	p.log.Info("tasks planned", "tasks", len(tasks), "assignments", len(assignments))
	return tasks
}

func (p *Planner) planTask(as model.GroupAssignment, obj model.Objective, g model.Group) (model.Task, bool) {
	t := model.Task{
		ID:          p.nextID(),
		GroupID:     g.ID,
		ObjectiveID: obj.ID,
		Priority:    as.Priority,
		Role:        as.Role,
	}

	switch obj.Type {
	case model.ObjectiveProtectHVT:
		pos := obj.Position
		if len(pos) < 2 {
			p.log.Warn("protect_hvt objective has no position", "objective", obj.ID)
			pos = []float64{0, 0, 0}
		}
		t.Type = model.TaskDefendArea
		t.Position = pos
		t.Radius = 100
		t.Behaviour = model.BehaviourCombat
		t.CombatMode = model.CombatYellow
		t.Speed = model.SpeedSlow

	case model.ObjectiveDefendArea:
		if len(obj.Position) < 2 {
			p.log.Warn("defend_area objective has no position", "objective", obj.ID)
			return model.Task{}, false
		}
		// Only the lead defender holds the full area; reserves hold nearby.
		if as.Role == "defender" {
			t.Type = model.TaskDefendArea
		} else {
			t.Type = model.TaskHoldPosition
		}
		t.Position = obj.Position
		t.Radius = defaultRadius(obj.Radius, 150)
		t.Behaviour = model.BehaviourCombat
		t.CombatMode = model.CombatYellow

	case model.ObjectiveAttackArea:
		if len(obj.Position) < 2 {
			p.log.Warn("attack_area objective has no position", "objective", obj.ID)
			return model.Task{}, false
		}
		if metaInt(obj, "enemy_count") > 0 {
			t.Type = model.TaskHuntEnemy
			t.Radius = defaultRadius(obj.Radius, 200)
			t.Behaviour = model.BehaviourCombat
			t.CombatMode = model.CombatRed
			t.Speed = model.SpeedFast
		} else {
			t.Type = model.TaskMoveTo
			t.Behaviour = model.BehaviourAware
			t.CombatMode = model.CombatYellow
			t.Speed = model.SpeedNormal
		}
		t.Position = obj.Position

	case model.ObjectivePatrolArea:
		if len(obj.Position) < 2 {
			p.log.Warn("patrol_area objective has no position", "objective", obj.ID)
			return model.Task{}, false
		}
		t.Type = model.TaskPatrolRoute
		t.Position = obj.Position
		t.Radius = defaultRadius(obj.Radius, 300)
		t.Behaviour = model.BehaviourSafe
		t.CombatMode = model.CombatYellow
		t.Speed = model.SpeedSlow

	case model.ObjectiveEliminateUnits:
		pos := obj.Position
		if len(pos) < 2 {
			pos = g.Position
		}
		t.Type = model.TaskHuntEnemy
		t.Position = pos
		t.Radius = 500
		t.Behaviour = model.BehaviourCombat
		t.CombatMode = model.CombatRed
		t.Speed = model.SpeedFast

	case model.ObjectiveCustom:
		pos := obj.Position
		if len(pos) < 2 {
			pos = g.Position
		}
		t.Type = model.TaskMoveTo
		t.Position = pos
		t.Behaviour = model.BehaviourAware
		t.CombatMode = model.CombatYellow

	default:
		p.log.Warn("unknown objective type", "type", obj.Type)
		return model.Task{}, false
	}

	return t, true
}

func defaultRadius(r, def float64) float64 {
	if r > 0 {
		return r
	}
	return def
}

func (p *Planner) nextID() string {
	p.counter++
	return fmt.Sprintf("TASK_%04d", p.counter)
}
