package commands

import (
	"log/slog"
	"math"

	"tacticom/internal/model"
)

// Generator converts planned tasks into engine commands. Together with the
// task planner it forms the rule-based order path that needs no language
// model.
type Generator struct {
	log *slog.Logger
}

func NewGenerator(log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{log: log}
}

// Generate converts each task to a command, dropping tasks of unknown type.
func (g *Generator) Generate(tasks []model.Task) []model.Command {
	var cmds []model.Command
	for _, t := range tasks {
		if c, ok := g.taskToCommand(t); ok {
			cmds = append(cmds, c)
		}
	}
	g.log.Info("commands generated", "commands", len(cmds), "tasks", len(tasks))
	return cmds
}

func (g *Generator) taskToCommand(t model.Task) (model.Command, bool) {
	switch t.Type {
	case model.TaskMoveTo:
		return model.MoveTo(t.GroupID, t.Position,
			orDefault(t.Speed, model.SpeedNormal),
			orDefault(t.Behaviour, model.BehaviourAware),
			orDefault(t.CombatMode, model.CombatYellow)), true

	case model.TaskDefendArea:
		radius := t.Radius
		if radius <= 0 {
			radius = 150
		}
		return model.DefendArea(t.GroupID, t.Position, radius,
			orDefault(t.Behaviour, model.BehaviourCombat)), true

	case model.TaskPatrolRoute:
		radius := t.Radius
		if radius <= 0 {
			radius = 300
		}
		return model.PatrolRoute(t.GroupID, patrolWaypoints(t.Position, radius),
			orDefault(t.Speed, model.SpeedSlow),
			orDefault(t.Behaviour, model.BehaviourSafe)), true

	case model.TaskHuntEnemy:
		radius := t.Radius
		if radius <= 0 {
			radius = 500
		}
		return model.SeekAndDestroy(t.GroupID, t.Position, radius), true

	case model.TaskHoldPosition:
		// Hold is a defend with a tight radius.
		return model.DefendArea(t.GroupID, t.Position, 50,
			orDefault(t.Behaviour, model.BehaviourAware)), true

	case model.TaskRetreat:
		return model.MoveTo(t.GroupID, t.Position,
			model.SpeedFast, model.BehaviourAware, model.CombatGreen), true
	}

	g.log.Warn("unknown task type", "type", t.Type)
	return model.Command{}, false
}

// patrolWaypoints lays a square loop of four waypoints around the center.
func patrolWaypoints(center []float64, radius float64) [][]float64 {
	cx, cy := 0.0, 0.0
	if len(center) >= 2 {
		cx, cy = center[0], center[1]
	}
	wps := make([][]float64, 0, 4)
	for i := 0; i < 4; i++ {
		angle := float64(i) / 4 * 2 * math.Pi
		wps = append(wps, []float64{
			cx + radius*math.Cos(angle),
			cy + radius*math.Sin(angle),
			0,
		})
	}
	return wps
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
