package enums

import "fmt"

// AssignmentStatus tracks a delivery assignment's progress. Delivered is
// terminal; nothing transitions out of it.
type AssignmentStatus string

const (
	AssignmentStatusAssigned   AssignmentStatus = "assigned"
	AssignmentStatusDelivering AssignmentStatus = "delivering"
	AssignmentStatusDelivered  AssignmentStatus = "delivered"
)

var validAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusAssigned,
	AssignmentStatusDelivering,
	AssignmentStatusDelivered,
}

var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentStatusAssigned:   {AssignmentStatusDelivering, AssignmentStatusDelivered},
	AssignmentStatusDelivering: {AssignmentStatusDelivered},
	AssignmentStatusDelivered:  {},
}

func (a AssignmentStatus) String() string {
	return string(a)
}

func (a AssignmentStatus) IsValid() bool {
	for _, candidate := range validAssignmentStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

func (a AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	for _, candidate := range assignmentTransitions[a] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (a AssignmentStatus) IsTerminal() bool {
	return a == AssignmentStatusDelivered
}

func ParseAssignmentStatus(value string) (AssignmentStatus, error) {
	for _, candidate := range validAssignmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment status %q", value)
}
