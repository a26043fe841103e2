package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending        = "pending"
	OrderStatusCooking        = "cooking"
	OrderStatusReady          = "ready"
	OrderStatusOutForDelivery = "out_for_delivery"
	OrderStatusDelivered      = "delivered"
	OrderStatusCancelled      = "cancelled"
)

const (
	ApprovalStatusPending   = "PENDING"
	ApprovalStatusApproved  = "APPROVED"
	ApprovalStatusRejected  = "REJECTED"
	ApprovalStatusCancelled = "CANCELLED"
)

const (
	ChangeRequestStatusRequested     = "REQUESTED"
	ChangeRequestStatusApproved      = "APPROVED"
	ChangeRequestStatusRejected      = "REJECTED"
	ChangeRequestStatusPaymentFailed = "PAYMENT_FAILED"
	ChangeRequestStatusRefundFailed  = "REFUND_FAILED"
)

const (
	ScheduleStatusScheduled  = "SCHEDULED"
	ScheduleStatusInProgress = "IN_PROGRESS"
	ScheduleStatusCompleted  = "COMPLETED"
	ScheduleStatusCancelled  = "CANCELLED"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
	PaymentStatusFailed   = "failed"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleCustomer = "customer"
	UserRoleEmployee = "employee"
	UserRoleAdmin    = "admin"
)

const (
	AccountStatusPending  = "pending"
	AccountStatusApproved = "approved"
	AccountStatusRejected = "rejected"
)

const (
	TaskTypeCooking  = "COOKING"
	TaskTypeDelivery = "DELIVERY"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	ServingStyleSimple = "simple"
	ServingStyleGrand  = "grand"
	ServingStyleDeluxe = "deluxe"
)

// ActiveChangeRequestStatuses are the statuses in which a change request
// still blocks creation of another one on the same order.
var ActiveChangeRequestStatuses = []string{
	ChangeRequestStatusRequested,
	ChangeRequestStatusPaymentFailed,
	ChangeRequestStatusRefundFailed,
}

// IsActiveChangeRequestStatus reports whether the status counts as active.
func IsActiveChangeRequestStatus(status string) bool {
	for _, s := range ActiveChangeRequestStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsValidServingStyle reports whether the style is one of the known styles.
func IsValidServingStyle(style string) bool {
	switch style {
	case ServingStyleSimple, ServingStyleGrand, ServingStyleDeluxe:
		return true
	}
	return false
}

// IsValidOrderStatus reports whether the status is a known lifecycle state.
func IsValidOrderStatus(status string) bool {
	switch status {
	case OrderStatusPending, OrderStatusCooking, OrderStatusReady,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}
