package enums

import "fmt"

// MovementType classifies an inventory ledger entry.
type MovementType string

const (
	MovementTypeReservation MovementType = "reservation"
	MovementTypeRelease     MovementType = "release"
	MovementTypeDeduction   MovementType = "deduction"
	MovementTypeRestock     MovementType = "restock"
	MovementTypeAdjustment  MovementType = "adjustment"
)

var validMovementTypes = []MovementType{
	MovementTypeReservation,
	MovementTypeRelease,
	MovementTypeDeduction,
	MovementTypeRestock,
	MovementTypeAdjustment,
}

// String implements fmt.Stringer.
func (m MovementType) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MovementType.
func (m MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementType converts raw input into a MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}

// MovementStatus tracks the approval state of an inventory ledger entry.
// Only approved movements have applied to the inventory counters.
type MovementStatus string

const (
	MovementStatusPending   MovementStatus = "pending"
	MovementStatusApproved  MovementStatus = "approved"
	MovementStatusRejected  MovementStatus = "rejected"
	MovementStatusCancelled MovementStatus = "cancelled"
)

var validMovementStatuses = []MovementStatus{
	MovementStatusPending,
	MovementStatusApproved,
	MovementStatusRejected,
	MovementStatusCancelled,
}

// String implements fmt.Stringer.
func (m MovementStatus) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MovementStatus.
func (m MovementStatus) IsValid() bool {
	for _, candidate := range validMovementStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementStatus converts raw input into a MovementStatus.
func ParseMovementStatus(value string) (MovementStatus, error) {
	for _, candidate := range validMovementStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement status %q", value)
}
