package decision

import (
	"sort"

	"tacticom/internal/model"
)

// Weights for the priority score components.
type Weights struct {
	BasePriority  float64
	ThreatLevel   float64
	Distance      float64
	ForceRatio    float64
	ObjectiveType float64
}

// DefaultWeights balances base priority against live threat signals.
func DefaultWeights() Weights {
	return Weights{
		BasePriority:  1.0,
		ThreatLevel:   2.0,
		Distance:      0.3,
		ForceRatio:    1.5,
		ObjectiveType: 1.0,
	}
}

// Calculator scores objectives and group-objective pairings.
type Calculator struct {
	weights Weights
}

func NewCalculator() *Calculator {
	return &Calculator{weights: DefaultWeights()}
}

// ObjectivePriority computes the urgency score for an objective. Higher is
// more urgent. A protect-HVT objective whose HVT is dead scores zero.
func (c *Calculator) ObjectivePriority(o model.Objective) float64 {
	score := float64(o.Priority) * c.weights.BasePriority

	if threat := metaInt(o, "threat_level"); threat > 0 {
		score += float64(threat) * c.weights.ThreatLevel
	}

	score += typeModifier(o.Type) * c.weights.ObjectiveType

	enemy := metaInt(o, "enemy_count")
	friendly := metaInt(o, "friendly_count")
	if enemy > 0 {
		if friendly == 0 {
			score += 10.0 * c.weights.ForceRatio
		} else if ratio := float64(enemy) / float64(friendly); ratio > 1.0 {
			score += ratio * c.weights.ForceRatio
		}
	}

	if o.Type == model.ObjectiveProtectHVT {
		if alive, _ := o.Metadata["hvt_alive"].(bool); !alive {
			score = 0
		}
	}
	return score
}

// AssignmentPriority scores how urgently a particular group should take a
// particular objective: the objective's own urgency plus proximity and
// capability fit.
func (c *Calculator) AssignmentPriority(o model.Objective, g model.Group) float64 {
	score := c.ObjectivePriority(o)

	if len(o.Position) >= 2 && len(g.Position) >= 2 {
		d := model.Distance2D(g.Position, o.Position)
		factor := 1.0 - d/1000.0
		if factor < 0 {
			factor = 0
		}
		score += factor * c.weights.Distance * 10.0
	}

	score += capabilityMatch(g, o)
	return score
}

// Ranked pairs an objective with its computed priority.
type Ranked struct {
	Objective model.Objective
	Priority  float64
}

// RankObjectives sorts objectives by descending priority. The sort is
// stable so equal scores keep input order.
func (c *Calculator) RankObjectives(objectives []model.Objective) []Ranked {
	out := make([]Ranked, 0, len(objectives))
	for _, o := range objectives {
		out = append(out, Ranked{Objective: o, Priority: c.ObjectivePriority(o)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// RankedGroup pairs a group with its assignment priority for one objective.
type RankedGroup struct {
	Group    model.Group
	Priority float64
}

// RankGroups sorts candidate groups by descending fit for an objective.
func (c *Calculator) RankGroups(o model.Objective, groups []model.Group) []RankedGroup {
	out := make([]RankedGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, RankedGroup{Group: g, Priority: c.AssignmentPriority(o, g)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

func typeModifier(t model.ObjectiveType) float64 {
	switch t {
	case model.ObjectiveProtectHVT:
		return 3.0
	case model.ObjectiveDefendArea, model.ObjectiveEliminateUnits:
		return 2.0
	case model.ObjectiveAttackArea:
		return 1.5
	default:
		return 1.0
	}
}

// capabilityMatch scores how well a group's composition suits an objective.
func capabilityMatch(g model.Group, o model.Objective) float64 {
	score := 0.0
	switch o.Type {
	case model.ObjectiveDefendArea:
		if g.Category == model.CategoryInfantry || g.Category == model.CategoryMechanized {
			score += 3.0
		}
	case model.ObjectiveAttackArea:
		switch g.Category {
		case model.CategoryArmor, model.CategoryMechanized:
			score += 4.0
		case model.CategoryInfantry:
			score += 2.0
		}
	case model.ObjectivePatrolArea:
		switch g.Category {
		case model.CategoryMotorized, model.CategoryMechanized, model.CategoryArmor:
			score += 3.0
		}
	case model.ObjectiveProtectHVT:
		if g.Category == model.CategoryInfantry {
			score += 4.0
		}
	case model.ObjectiveEliminateUnits:
		switch g.Category {
		case model.CategoryArmor, model.CategoryMechanized, model.CategoryAirFixed, model.CategoryAirRotary:
			score += 3.0
		}
	}

	if g.UnitCount >= 8 {
		score += 1.0
	} else if g.UnitCount <= 3 {
		score -= 1.0
	}
	return score
}
