package model

// ObjectiveType is the strategic category of an objective.
type ObjectiveType string

const (
	ObjectiveDefendArea     ObjectiveType = "defend_area"
	ObjectiveAttackArea     ObjectiveType = "attack_area"
	ObjectivePatrolArea     ObjectiveType = "patrol_area"
	ObjectiveProtectHVT     ObjectiveType = "protect_hvt"
	ObjectiveEliminateUnits ObjectiveType = "eliminate_units"
	ObjectiveCustom         ObjectiveType = "custom"
)

// ObjectiveState is the lifecycle state of an objective. Completed and
// failed are terminal.
type ObjectiveState string

const (
	ObjectivePending   ObjectiveState = "pending"
	ObjectiveActive    ObjectiveState = "active"
	ObjectiveCompleted ObjectiveState = "completed"
	ObjectiveFailed    ObjectiveState = "failed"
)

// Terminal reports whether the state can never change again.
func (s ObjectiveState) Terminal() bool {
	return s == ObjectiveCompleted || s == ObjectiveFailed
}

// Objective is a mission goal tracked across decision cycles.
type Objective struct {
	ID          string         `json:"id"`
	Type        ObjectiveType  `json:"type"`
	State       ObjectiveState `json:"state"`
	Description string         `json:"description"`
	Priority    int            `json:"priority"`

	Position []float64 `json:"position,omitempty"`
	Radius   float64   `json:"radius,omitempty"`

	TargetGroupIDs []string `json:"target_group_ids,omitempty"`
	HVTUID         string   `json:"hvt_uid,omitempty"`

	AssignedGroupIDs []string       `json:"assigned_group_ids,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Assign records a group against the objective, ignoring duplicates.
func (o *Objective) Assign(groupID string) {
	for _, id := range o.AssignedGroupIDs {
		if id == groupID {
			return
		}
	}
	o.AssignedGroupIDs = append(o.AssignedGroupIDs, groupID)
}

// Unassign removes a group from the objective.
func (o *Objective) Unassign(groupID string) {
	for i, id := range o.AssignedGroupIDs {
		if id == groupID {
			o.AssignedGroupIDs = append(o.AssignedGroupIDs[:i], o.AssignedGroupIDs[i+1:]...)
			return
		}
	}
}

// SetMeta writes a metadata key, allocating the map on first use.
func (o *Objective) SetMeta(key string, val any) {
	if o.Metadata == nil {
		o.Metadata = map[string]any{}
	}
	o.Metadata[key] = val
}

// GroupAssignment binds one group to an objective with a tactical role.
type GroupAssignment struct {
	GroupID     string `json:"group_id"`
	ObjectiveID string `json:"objective_id"`
	Role        string `json:"role"`
	Priority    int    `json:"priority"`
}
