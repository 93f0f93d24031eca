package models

// OrderStatus is the order lifecycle axis. Inventory is reserved exactly once
// when an order enters Open and released exactly once when it leaves Open.
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "Draft"
	OrderStatusOpen      OrderStatus = "Open"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusCancelled OrderStatus = "Cancelled"
	OrderStatusArchived  OrderStatus = "Archived"
)

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "Pending"
	PaymentStatusPaid              PaymentStatus = "Paid"
	PaymentStatusPartiallyRefunded PaymentStatus = "PartiallyRefunded"
	PaymentStatusRefunded          PaymentStatus = "Refunded"
	PaymentStatusFailed            PaymentStatus = "Failed"
	PaymentStatusVoid              PaymentStatus = "Void"
)

// FulfillmentStatus is the order-level (master) fulfillment axis.
// It is derived from the order's Fulfillment rows and written back only by
// RecomputeFulfillmentStatus.
type FulfillmentStatus string

const (
	FulfillmentStatusUnfulfilled FulfillmentStatus = "Unfulfilled"
	FulfillmentStatusPartial     FulfillmentStatus = "Partial"
	FulfillmentStatusFulfilled   FulfillmentStatus = "Fulfilled"
	FulfillmentStatusCancelled   FulfillmentStatus = "Cancelled"
	FulfillmentStatusOnHold      FulfillmentStatus = "OnHold"
)

// VendorFulfillmentStatus is one vendor's shipping progress on their portion
// of a (possibly multi-vendor) order.
type VendorFulfillmentStatus string

const (
	VendorFulfillmentStatusUnfulfilled VendorFulfillmentStatus = "Unfulfilled"
	VendorFulfillmentStatusPartial     VendorFulfillmentStatus = "Partial"
	VendorFulfillmentStatusFulfilled   VendorFulfillmentStatus = "Fulfilled"
	VendorFulfillmentStatusCancelled   VendorFulfillmentStatus = "Cancelled"
)

// InventoryDirection selects the counter movement applied by AdjustInventory.
//
//	reserve: available -= qty; committed += qty
//	release: committed -= qty; available += qty
//	fulfill: committed -= qty; on_hand -= qty; shipped += qty (available untouched)
type InventoryDirection string

const (
	InventoryDirectionReserve InventoryDirection = "reserve"
	InventoryDirectionRelease InventoryDirection = "release"
	InventoryDirectionFulfill InventoryDirection = "fulfill"
)

// InventoryReferenceType tags adjustment log rows with their originating document.
type InventoryReferenceType string

const (
	InventoryReferenceTypeOrder       InventoryReferenceType = "OD"
	InventoryReferenceTypeFulfillment InventoryReferenceType = "FF"
	InventoryReferenceTypeManual      InventoryReferenceType = "MN"
)

// BalanceTransactionType classifies seller ledger rows.
// order_payment is the only credit; adjustment is signed by the caller;
// everything else is a debit.
type BalanceTransactionType string

const (
	BalanceTransactionTypeOrderPayment  BalanceTransactionType = "order_payment"
	BalanceTransactionTypePlatformFee   BalanceTransactionType = "platform_fee"
	BalanceTransactionTypeStripeFee     BalanceTransactionType = "stripe_fee"
	BalanceTransactionTypeShippingLabel BalanceTransactionType = "shipping_label"
	BalanceTransactionTypeRefund        BalanceTransactionType = "refund"
	BalanceTransactionTypeDispute       BalanceTransactionType = "dispute"
	BalanceTransactionTypePayout        BalanceTransactionType = "payout"
	BalanceTransactionTypeAdjustment    BalanceTransactionType = "adjustment"
)

type BalanceTransactionStatus string

const (
	BalanceTransactionStatusPending   BalanceTransactionStatus = "pending"
	BalanceTransactionStatusAvailable BalanceTransactionStatus = "available"
	BalanceTransactionStatusPaid      BalanceTransactionStatus = "paid"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// Notification templates consumed by the external email sender.
const (
	NotificationTemplateOrderConfirmation    = "order_confirmation"
	NotificationTemplateShipmentConfirmation = "shipment_confirmation"
)
