package order

import "fmt"

// Status is the order lifecycle state. The server owns progression; the
// local mirror only ever applies transitions the lifecycle allows.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}

// CanTransition reports whether moving from s to next is a legal step.
// pending → confirmed → shipped → delivered is the forward chain; any
// non-terminal state may cancel. delivered and cancelled are terminal.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusShipped || next == StatusCancelled
	case StatusShipped:
		return next == StatusDelivered || next == StatusCancelled
	default:
		return false
	}
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}
