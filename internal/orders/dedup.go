package orders

import (
	"fmt"

	"tacticom/internal/model"
)

// Dedup enforces at most one command per group per batch, keeping the first
// occurrence. Commands without a group id pass through untouched. Dropped
// duplicates are reported as warnings.
func Dedup(cmds []model.Command) ([]model.Command, []string) {
	seen := map[string]bool{}
	out := make([]model.Command, 0, len(cmds))
	var warnings []string
	for _, c := range cmds {
		if c.GroupID == "" {
			out = append(out, c)
			continue
		}
		if seen[c.GroupID] {
			warnings = append(warnings, fmt.Sprintf("duplicate order for group %s dropped (%s)", c.GroupID, c.Type))
			continue
		}
		seen[c.GroupID] = true
		out = append(out, c)
	}
	return out, warnings
}
