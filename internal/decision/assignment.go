package decision

import (
	"log/slog"
	"strings"

	"tacticom/internal/model"
)

// Assigner distributes controlled groups across active objectives, keeping
// prior assignments wherever the objective and group both survive.
type Assigner struct {
	calc *Calculator
	log  *slog.Logger
}

func NewAssigner(calc *Calculator, log *slog.Logger) *Assigner {
	if log == nil {
		log = slog.Default()
	}
	return &Assigner{calc: calc, log: log}
}

// Assign produces the new assignment set. Existing assignments whose
// objective is still active and whose group still exists are carried over
// unchanged; remaining groups are handed out greedily to objectives in
// priority order.
func (a *Assigner) Assign(objectives []model.Objective, world *model.WorldState, existing []model.GroupAssignment) []model.GroupAssignment {
	active := Active(objectives)
	if len(active) == 0 {
		a.log.Debug("no active objectives, clearing assignments")
		return nil
	}
	controlled := world.ControlledGroups()
	if len(controlled) == 0 {
		a.log.Debug("no controlled groups available")
		return nil
	}

	ranked := a.calc.RankObjectives(active)

	assignedIDs := map[string]bool{}
	var assignments []model.GroupAssignment

	for _, prev := range existing {
		if findObjective(prev.ObjectiveID, active) == nil {
			a.log.Debug("objective gone, releasing group",
				"objective", prev.ObjectiveID, "group", prev.GroupID)
			continue
		}
		if _, ok := world.GroupByID(prev.GroupID); !ok {
			a.log.Debug("assigned group no longer exists", "group", prev.GroupID)
			continue
		}
		assignedIDs[prev.GroupID] = true
		assignments = append(assignments, prev)
	}

	var unassigned []model.Group
	for _, g := range controlled {
		if !assignedIDs[g.ID] {
			unassigned = append(unassigned, g)
		}
	}

	for _, r := range ranked {
		if len(unassigned) == 0 {
			break
		}
		needed := a.groupsNeeded(r.Objective, world, assignments)
		if needed <= 0 {
			continue
		}
		candidates := a.calc.RankGroups(r.Objective, unassigned)
		taken := 0
		for _, cand := range candidates {
			if taken >= needed {
				break
			}
			role := determineRole(r.Objective, cand.Group, assignments)
			assignments = append(assignments, model.GroupAssignment{
				GroupID:     cand.Group.ID,
				ObjectiveID: r.Objective.ID,
				Role:        role,
				Priority:    int(r.Priority),
			})
			assignedIDs[cand.Group.ID] = true
			unassigned = removeGroup(unassigned, cand.Group.ID)
			taken++
			a.log.Info("group assigned", "group", cand.Group.ID,
				"category", cand.Group.Category, "objective", r.Objective.ID, "role", role)
		}
	}
	return assignments
}

// groupsNeeded sizes an objective's force requirement, net of groups it
// already holds.
func (a *Assigner) groupsNeeded(o model.Objective, world *model.WorldState, assignments []model.GroupAssignment) int {
	assigned := 0
	for _, as := range assignments {
		if as.ObjectiveID == o.ID {
			assigned++
		}
	}

	base := 1
	switch o.Type {
	case model.ObjectiveCustom:
		switch {
		case o.Priority >= 8:
			base = len(world.ControlledGroups())
			a.log.Info("high-priority custom objective takes every group",
				"objective", o.ID, "groups", base)
		case o.Priority >= 5:
			base = 2
		}
	case model.ObjectiveProtectHVT:
		base = min(3, len(world.ControlledGroups()))
	case model.ObjectiveDefendArea:
		switch threat := metaInt(o, "threat_level"); {
		case threat > 5:
			base = 3
		case threat > 2:
			base = 2
		}
	case model.ObjectiveAttackArea:
		switch enemy := metaInt(o, "enemy_count"); {
		case enemy > 20:
			base = 4
		case enemy > 10:
			base = 3
		case enemy > 5:
			base = 2
		}
	case model.ObjectiveEliminateUnits:
		if metaInt(o, "remaining_targets") > 10 {
			base = 2
		}
	}

	if need := base - assigned; need > 0 {
		return need
	}
	return 0
}

// determineRole picks a role from the group's position in the objective's
// assignment order and, for attacks, its composition.
func determineRole(o model.Objective, g model.Group, assignments []model.GroupAssignment) string {
	idx := 0
	for _, a := range assignments {
		if a.ObjectiveID == o.ID {
			idx++
		}
	}

	switch o.Type {
	case model.ObjectiveCustom:
		desc := strings.ToLower(o.Description)
		protection := false
		for _, kw := range []string{"protect", "defend", "hvt", "guard", "secure"} {
			if strings.Contains(desc, kw) {
				protection = true
				break
			}
		}
		if protection {
			switch idx {
			case 0:
				return "primary_defender"
			case 1:
				return "support_defender"
			case 2:
				return "patrol"
			default:
				return "reserve"
			}
		}
		switch idx {
		case 0:
			return "primary"
		case 1:
			return "support"
		default:
			return "reserve"
		}

	case model.ObjectiveProtectHVT:
		switch idx {
		case 0:
			return "close_protector"
		case 1:
			return "perimeter_defender"
		default:
			return "reserve"
		}

	case model.ObjectiveDefendArea:
		if idx == 0 {
			return "defender"
		}
		return "reserve"

	case model.ObjectiveAttackArea:
		if g.Category == model.CategoryArmor || g.Category == model.CategoryMechanized {
			return "attacker"
		}
		return "support"

	case model.ObjectivePatrolArea:
		return "patrol"

	case model.ObjectiveEliminateUnits:
		return "hunter"
	}
	return "default"
}

// AssignmentFor returns the assignment holding a group, if any.
func AssignmentFor(groupID string, assignments []model.GroupAssignment) (model.GroupAssignment, bool) {
	for _, a := range assignments {
		if a.GroupID == groupID {
			return a, true
		}
	}
	return model.GroupAssignment{}, false
}

func findObjective(id string, objectives []model.Objective) *model.Objective {
	for i := range objectives {
		if objectives[i].ID == id {
			return &objectives[i]
		}
	}
	return nil
}

func removeGroup(groups []model.Group, id string) []model.Group {
	for i, g := range groups {
		if g.ID == id {
			return append(groups[:i], groups[i+1:]...)
		}
	}
	return groups
}
