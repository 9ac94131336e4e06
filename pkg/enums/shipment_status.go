package enums

import "fmt"

// ShipmentStatus tracks a shipment from packing through delivery.
type ShipmentStatus string

const (
	ShipmentStatusPending   ShipmentStatus = "pending"
	ShipmentStatusReady     ShipmentStatus = "ready"
	ShipmentStatusInTransit ShipmentStatus = "in_transit"
	ShipmentStatusDelivered ShipmentStatus = "delivered"
	ShipmentStatusReturned  ShipmentStatus = "returned"
)

var validShipmentStatuses = []ShipmentStatus{
	ShipmentStatusPending,
	ShipmentStatusReady,
	ShipmentStatusInTransit,
	ShipmentStatusDelivered,
	ShipmentStatusReturned,
}

var shipmentTransitions = map[ShipmentStatus][]ShipmentStatus{
	ShipmentStatusPending:   {ShipmentStatusReady},
	ShipmentStatusReady:     {ShipmentStatusInTransit},
	ShipmentStatusInTransit: {ShipmentStatusDelivered, ShipmentStatusReturned},
	ShipmentStatusDelivered: {ShipmentStatusReturned},
}

// String implements fmt.Stringer.
func (s ShipmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShipmentStatus.
func (s ShipmentStatus) IsValid() bool {
	for _, candidate := range validShipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the shipment machine allows moving to next.
func (s ShipmentStatus) CanTransitionTo(next ShipmentStatus) bool {
	for _, candidate := range shipmentTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseShipmentStatus converts raw input into a ShipmentStatus.
func ParseShipmentStatus(value string) (ShipmentStatus, error) {
	for _, candidate := range validShipmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipment status %q", value)
}
