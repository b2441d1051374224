package model

// TaskType classifies the tactical intent behind a planned task.
type TaskType string

const (
	TaskMoveTo       TaskType = "move_to"
	TaskDefendArea   TaskType = "defend_area"
	TaskPatrolRoute  TaskType = "patrol_route"
	TaskHuntEnemy    TaskType = "hunt_enemy"
	TaskHoldPosition TaskType = "hold_position"
	TaskRetreat      TaskType = "retreat"
)

// Task is one planned action for a group, sitting between an objective
// assignment and the engine command generated from it.
type Task struct {
	ID          string   `json:"id"`
	GroupID     string   `json:"group_id"`
	Type        TaskType `json:"type"`
	ObjectiveID string   `json:"objective_id"`
	Priority    int      `json:"priority"`
	Role        string   `json:"role,omitempty"`

	Position   []float64 `json:"position,omitempty"`
	Radius     float64   `json:"radius,omitempty"`
	Speed      string    `json:"speed,omitempty"`
	Behaviour  string    `json:"behaviour,omitempty"`
	CombatMode string    `json:"combat_mode,omitempty"`
}
