package commands

import "tacticom/internal/model"

// Serialize flattens a command into the wire shape the engine executes.
func Serialize(c model.Command) map[string]any {
	params := c.Params
	if params == nil {
		params = map[string]any{}
	}
	return map[string]any{
		"type":     string(c.Type),
		"group_id": c.GroupID,
		"params":   params,
	}
}

// ValidateSerialized checks a serialized command carries the required
// fields with the right shapes.
func ValidateSerialized(cmd map[string]any) bool {
	if _, ok := cmd["type"].(string); !ok {
		return false
	}
	if _, ok := cmd["group_id"].(string); !ok {
		return false
	}
	_, ok := cmd["params"].(map[string]any)
	return ok
}
