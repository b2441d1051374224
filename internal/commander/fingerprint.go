package commander

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"tacticom/internal/model"
)

// WorldFingerprint hashes the decision-relevant slice of the world: the
// controlled order of battle and the objective states. Positions are rounded
// to 10m so jitter from units shuffling in place does not read as change.
func WorldFingerprint(world *model.WorldState, objectives []model.Objective) string {
	var parts []string

	controlled := world.ControlledGroups()
	sort.Slice(controlled, func(i, j int) bool { return controlled[i].ID < controlled[j].ID })
	for _, g := range controlled {
		x, y := 0, 0
		if len(g.Position) >= 2 {
			x = int(g.Position[0]/10) * 10
			y = int(g.Position[1]/10) * 10
		}
		parts = append(parts, fmt.Sprintf("%s:%d,%d:%d", g.ID, x, y, g.UnitCount))
	}

	objs := append([]model.Objective(nil), objectives...)
	sort.Slice(objs, func(i, j int) bool { return objs[i].ID < objs[j].ID })
	for _, o := range objs {
		parts = append(parts, fmt.Sprintf("%s:%s:%d", o.ID, o.State, o.Priority))
	}

	return hashString(strings.Join(parts, "|"))
}

// ObjectivesHash keys the cached prompt context. It includes descriptions
// so edited objective text invalidates the cache even when state and
// priority hold steady.
func ObjectivesHash(objectives []model.Objective) string {
	objs := append([]model.Objective(nil), objectives...)
	sort.Slice(objs, func(i, j int) bool { return objs[i].ID < objs[j].ID })
	var parts []string
	for _, o := range objs {
		parts = append(parts, fmt.Sprintf("%s:%s:%d:%s", o.ID, o.State, o.Priority, o.Description))
	}
	return hashString(strings.Join(parts, "|"))
}

func hashString(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())
}
