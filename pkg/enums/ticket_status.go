package enums

import "fmt"

// TicketStatus tracks a kitchen ticket through preparation.
type TicketStatus string

const (
	TicketStatusPreparing TicketStatus = "preparing"
	TicketStatusReady     TicketStatus = "ready"
)

var validTicketStatuses = []TicketStatus{
	TicketStatusPreparing,
	TicketStatusReady,
}

func (t TicketStatus) String() string {
	return string(t)
}

func (t TicketStatus) IsValid() bool {
	for _, candidate := range validTicketStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

func ParseTicketStatus(value string) (TicketStatus, error) {
	for _, candidate := range validTicketStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ticket status %q", value)
}
