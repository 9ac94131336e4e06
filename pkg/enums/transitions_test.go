package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	allowed := []struct {
		from, to OrderStatus
	}{
		{OrderStatusPending, OrderStatusConfirmed},
		{OrderStatusPending, OrderStatusCancelled},
		{OrderStatusConfirmed, OrderStatusProcessing},
		{OrderStatusConfirmed, OrderStatusShipped},
		{OrderStatusProcessing, OrderStatusShipped},
		{OrderStatusShipped, OrderStatusDelivered},
		{OrderStatusDelivered, OrderStatusRefunded},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct {
		from, to OrderStatus
	}{
		{OrderStatusPending, OrderStatusShipped},
		{OrderStatusShipped, OrderStatusCancelled},
		{OrderStatusDelivered, OrderStatusCancelled},
		{OrderStatusCancelled, OrderStatusConfirmed},
		{OrderStatusRefunded, OrderStatusPending},
	}
	for _, tc := range denied {
		if tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("expected %s -> %s to be denied", tc.from, tc.to)
		}
	}
}

func TestOrderStatusCancellable(t *testing.T) {
	if !OrderStatusPending.IsCancellable() || !OrderStatusConfirmed.IsCancellable() {
		t.Fatal("pending and confirmed orders must be cancellable")
	}
	for _, status := range []OrderStatus{OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded} {
		if status.IsCancellable() {
			t.Fatalf("%s must not be cancellable", status)
		}
	}
}

func TestPaymentStatusTransitions(t *testing.T) {
	if !PaymentStatusPending.CanTransitionTo(PaymentStatusPartial) {
		t.Fatal("pending -> partial must be allowed")
	}
	if !PaymentStatusPartial.CanTransitionTo(PaymentStatusPaid) {
		t.Fatal("partial -> paid must be allowed")
	}
	if !PaymentStatusPaid.CanTransitionTo(PaymentStatusRefunded) {
		t.Fatal("paid -> refunded must be allowed")
	}
	if PaymentStatusPaid.CanTransitionTo(PaymentStatusFailed) {
		t.Fatal("paid -> failed must be denied")
	}
	if PaymentStatusFailed.CanTransitionTo(PaymentStatusPaid) {
		t.Fatal("failed is terminal")
	}
}

func TestShipmentStatusTransitions(t *testing.T) {
	if !ShipmentStatusPending.CanTransitionTo(ShipmentStatusReady) {
		t.Fatal("pending -> ready must be allowed")
	}
	if ShipmentStatusPending.CanTransitionTo(ShipmentStatusDelivered) {
		t.Fatal("pending -> delivered must be denied")
	}
	if !ShipmentStatusInTransit.CanTransitionTo(ShipmentStatusReturned) {
		t.Fatal("in_transit -> returned must be allowed")
	}
}
