// Package decision contains the deterministic half of the commander: local
// objective evaluation, priority scoring and group-to-objective assignment.
// Nothing in here touches a language model.
package decision

import (
	"log/slog"

	"tacticom/internal/model"
)

// Default evaluation radii per objective type.
const (
	defaultDefendRadius = 200.0
	defaultAttackRadius = 200.0
	defaultPatrolRadius = 500.0
)

// Evaluator updates objective states from a world snapshot. Terminal states
// are never touched.
type Evaluator struct {
	log *slog.Logger
}

func NewEvaluator(log *slog.Logger) *Evaluator {
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{log: log}
}

// Evaluate runs every objective through its type-specific assessment and
// returns the updated set in input order.
func (e *Evaluator) Evaluate(objectives []model.Objective, world *model.WorldState) []model.Objective {
	out := make([]model.Objective, 0, len(objectives))
	for _, o := range objectives {
		out = append(out, e.evaluate(o, world))
	}
	return out
}

func (e *Evaluator) evaluate(o model.Objective, world *model.WorldState) model.Objective {
	if o.State.Terminal() {
		return o
	}
	if o.State == model.ObjectivePending {
		o.State = model.ObjectiveActive
		e.log.Info("objective activated", "objective", o.ID, "description", o.Description)
	}

	switch o.Type {
	case model.ObjectiveDefendArea:
		return e.evaluateDefend(o, world)
	case model.ObjectiveAttackArea:
		return e.evaluateAttack(o, world)
	case model.ObjectivePatrolArea:
		return e.evaluatePatrol(o, world)
	case model.ObjectiveProtectHVT, model.ObjectiveEliminateUnits:
		// Needs per-unit data the group snapshots do not carry yet.
		e.log.Warn("objective type lacks automated evaluation", "objective", o.ID, "type", o.Type)
		return o
	default:
		// Custom objectives stay active until updated externally.
		return o
	}
}

func (e *Evaluator) evaluateDefend(o model.Objective, world *model.WorldState) model.Objective {
	if len(o.Position) < 2 {
		return o
	}
	radius := o.Radius
	if radius <= 0 {
		radius = defaultDefendRadius
	}
	friendly := unitsInArea(o.Position, radius, world.ControlledGroups())
	enemy := unitsInArea(o.Position, radius, world.EnemyGroups())

	o.SetMeta("friendly_count", friendly)
	o.SetMeta("enemy_count", enemy)
	o.SetMeta("area_secure", enemy == 0)

	if enemy > friendly*2 {
		o.State = model.ObjectiveFailed
		e.log.Info("defend objective failed, area overrun", "objective", o.ID,
			"friendly", friendly, "enemy", enemy)
	}
	return o
}

func (e *Evaluator) evaluateAttack(o model.Objective, world *model.WorldState) model.Objective {
	if len(o.Position) < 2 {
		return o
	}
	radius := o.Radius
	if radius <= 0 {
		radius = defaultAttackRadius
	}
	enemy := unitsInArea(o.Position, radius, world.EnemyGroups())
	friendly := unitsInArea(o.Position, radius, world.ControlledGroups())

	o.SetMeta("enemy_count", enemy)
	o.SetMeta("friendly_count", friendly)

	if enemy == 0 && friendly > 0 {
		o.State = model.ObjectiveCompleted
		e.log.Info("attack objective completed, area secured", "objective", o.ID)
	}
	return o
}

func (e *Evaluator) evaluatePatrol(o model.Objective, world *model.WorldState) model.Objective {
	if len(o.Position) < 2 {
		return o
	}
	radius := o.Radius
	if radius <= 0 {
		radius = defaultPatrolRadius
	}
	o.SetMeta("threat_level", unitsInArea(o.Position, radius, world.EnemyGroups()))
	return o
}

// Active filters to objectives in the active state.
func Active(objectives []model.Objective) []model.Objective {
	var out []model.Objective
	for _, o := range objectives {
		if o.State == model.ObjectiveActive {
			out = append(out, o)
		}
	}
	return out
}

// NeedingAttention returns active objectives under threat: a high patrol
// threat level or a contested defend/attack area.
func NeedingAttention(objectives []model.Objective) []model.Objective {
	var out []model.Objective
	for _, o := range objectives {
		if o.State != model.ObjectiveActive {
			continue
		}
		if metaInt(o, "threat_level") > 5 {
			out = append(out, o)
			continue
		}
		if o.Type == model.ObjectiveDefendArea || o.Type == model.ObjectiveAttackArea {
			if metaInt(o, "enemy_count") > 0 {
				out = append(out, o)
			}
		}
	}
	return out
}

func unitsInArea(pos []float64, radius float64, groups []model.Group) int {
	count := 0
	for _, g := range groups {
		if len(g.Position) < 2 {
			continue
		}
		if model.Distance2D(g.Position, pos) <= radius {
			count += g.UnitCount
		}
	}
	return count
}

func metaInt(o model.Objective, key string) int {
	switch v := o.Metadata[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
