package enums

import "fmt"

// HandlerType identifies a specialist conversation handler.
type HandlerType string

const (
	HandlerOrchestrator HandlerType = "orchestrator"
	HandlerOrder        HandlerType = "order_agent"
	HandlerInventory    HandlerType = "inventory_agent"
	HandlerKitchen      HandlerType = "kitchen_agent"
	HandlerDelivery     HandlerType = "delivery_agent"
	HandlerSupport      HandlerType = "support_agent"
)

var validHandlerTypes = []HandlerType{
	HandlerOrchestrator,
	HandlerOrder,
	HandlerInventory,
	HandlerKitchen,
	HandlerDelivery,
	HandlerSupport,
}

// String implements fmt.Stringer.
func (h HandlerType) String() string {
	return string(h)
}

// IsValid reports whether the value is a known HandlerType.
func (h HandlerType) IsValid() bool {
	for _, candidate := range validHandlerTypes {
		if candidate == h {
			return true
		}
	}
	return false
}

// ParseHandlerType converts raw input into a HandlerType.
func ParseHandlerType(value string) (HandlerType, error) {
	for _, candidate := range validHandlerTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid handler type %q", value)
}
