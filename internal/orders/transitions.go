package orders

import "github.com/cardhaus/cardhaus-backend/pkg/enums"

// allowedTransitions is the full order lifecycle. Anything absent here is a
// state conflict; there are no backward edges.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {enums.OrderStatusPaid},
	enums.OrderStatusPaid:    {enums.OrderStatusStored, enums.OrderStatusShipped},
	enums.OrderStatusStored:  {enums.OrderStatusShipped},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
