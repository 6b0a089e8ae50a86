package enums

import "fmt"

// DriverStatus tracks a delivery driver's availability.
type DriverStatus string

const (
	DriverStatusAvailable  DriverStatus = "available"
	DriverStatusAssigned   DriverStatus = "assigned"
	DriverStatusDelivering DriverStatus = "delivering"
	DriverStatusOffline    DriverStatus = "offline"
)

var validDriverStatuses = []DriverStatus{
	DriverStatusAvailable,
	DriverStatusAssigned,
	DriverStatusDelivering,
	DriverStatusOffline,
}

func (d DriverStatus) String() string {
	return string(d)
}

func (d DriverStatus) IsValid() bool {
	for _, candidate := range validDriverStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// CarriesOrder reports whether a driver in this status is working an order.
func (d DriverStatus) CarriesOrder() bool {
	return d == DriverStatusAssigned || d == DriverStatusDelivering
}

func ParseDriverStatus(value string) (DriverStatus, error) {
	for _, candidate := range validDriverStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid driver status %q", value)
}
