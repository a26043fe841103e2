package policy

import (
	"strings"

	"github.com/mr-daebak/api/internal/enum"
)

// allowedTransitions is the single source of truth for the order
// lifecycle. Forward motion is strictly monotonic; cancellation is a
// terminal transition from any non-delivered state.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:        {enum.OrderStatusCooking, enum.OrderStatusCancelled},
	enum.OrderStatusCooking:        {enum.OrderStatusReady, enum.OrderStatusCancelled},
	enum.OrderStatusReady:          {enum.OrderStatusOutForDelivery, enum.OrderStatusCancelled},
	enum.OrderStatusOutForDelivery: {enum.OrderStatusDelivered, enum.OrderStatusCancelled},
	enum.OrderStatusDelivered:      {},
	enum.OrderStatusCancelled:      {},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to string) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TasksAuthorizedFor returns the work-assignment task types that may
// drive an order into the target status. Delivered accepts either task,
// reflecting real-world handoff between kitchen and courier.
func TasksAuthorizedFor(target string) []string {
	switch target {
	case enum.OrderStatusCooking, enum.OrderStatusReady:
		return []string{enum.TaskTypeCooking}
	case enum.OrderStatusOutForDelivery:
		return []string{enum.TaskTypeDelivery}
	case enum.OrderStatusDelivered:
		return []string{enum.TaskTypeCooking, enum.TaskTypeDelivery}
	}
	return nil
}

// IsApproved compares an admin approval status case-insensitively, as the
// admin surfaces upper-case the stored value before comparing.
func IsApproved(adminApprovalStatus string) bool {
	return strings.EqualFold(adminApprovalStatus, enum.ApprovalStatusApproved)
}

// ConsumesInventory reports whether entering the target status debits
// reserved stock. Only the start of cooking does.
func ConsumesInventory(target string) bool {
	return target == enum.OrderStatusCooking
}

// statusProgress orders lifecycle states for display sorting on the
// employee board.
var statusProgress = map[string]int{
	enum.OrderStatusPending:        0,
	enum.OrderStatusCooking:        1,
	enum.OrderStatusReady:          2,
	enum.OrderStatusOutForDelivery: 3,
	enum.OrderStatusDelivered:      4,
	enum.OrderStatusCancelled:      5,
}

// StatusProgress returns the display rank of a lifecycle state.
func StatusProgress(status string) int {
	if p, ok := statusProgress[status]; ok {
		return p
	}
	return len(statusProgress)
}
