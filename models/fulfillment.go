package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/marketplace_backend/config"
	"github.com/mmdatafocus/marketplace_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Fulfillment is one vendor shipment against an order. Label fields are only
// set for platform-purchased labels.
type Fulfillment struct {
	ID             int                     `gorm:"primary_key" json:"id"`
	OrderId        int                     `gorm:"index;not null" json:"order_id"`
	StoreId        int                     `gorm:"index;not null" json:"store_id"`
	CurrentStatus  VendorFulfillmentStatus `gorm:"type:enum('Unfulfilled','Partial','Fulfilled','Cancelled');not null" json:"current_status"`
	Carrier        string                  `gorm:"size:100" json:"carrier"`
	TrackingNumber string                  `gorm:"size:100" json:"tracking_number"`
	LabelReference string                  `gorm:"size:255" json:"label_reference"`
	LabelCost      decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"label_cost"`
	FulfilledAt    *time.Time              `json:"fulfilled_at"`
	CreatedAt      time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time               `gorm:"autoUpdateTime" json:"updated_at"`

	Items []FulfillmentItem `gorm:"foreignKey:FulfillmentId" json:"items"`
}

type FulfillmentItem struct {
	ID            int `gorm:"primary_key" json:"id"`
	FulfillmentId int `gorm:"index;not null" json:"fulfillment_id"`
	OrderItemId   int `gorm:"index;not null" json:"order_item_id"`
	Qty           int `gorm:"not null" json:"qty"`
}

type NewFulfillment struct {
	OrderId        int                  `json:"order_id" binding:"required"`
	Carrier        string               `json:"carrier"`
	TrackingNumber string               `json:"tracking_number"`
	Items          []NewFulfillmentItem `json:"items" binding:"required,min=1,dive"`
}

type NewFulfillmentItem struct {
	OrderItemId int `json:"order_item_id" binding:"required"`
	Qty         int `json:"qty" binding:"required,gt=0"`
}

func (f Fulfillment) GetId() int {
	return f.ID
}

func (f Fulfillment) GetCursor() string {
	return f.CreatedAt.Format(time.RFC3339Nano)
}

// deriveFulfillmentStatus folds vendor statuses into the order-level axis.
// Any cancelled vendor portion taints the whole order; everything fulfilled
// completes it; any progress at all shows as partial.
func deriveFulfillmentStatus(vendorStatuses []VendorFulfillmentStatus) FulfillmentStatus {
	if len(vendorStatuses) == 0 {
		return FulfillmentStatusUnfulfilled
	}

	allFulfilled := true
	anyProgress := false
	for _, status := range vendorStatuses {
		switch status {
		case VendorFulfillmentStatusCancelled:
			return FulfillmentStatusCancelled
		case VendorFulfillmentStatusFulfilled:
			anyProgress = true
		case VendorFulfillmentStatusPartial:
			allFulfilled = false
			anyProgress = true
		default:
			allFulfilled = false
		}
	}

	if allFulfilled {
		return FulfillmentStatusFulfilled
	}
	if anyProgress {
		return FulfillmentStatusPartial
	}
	return FulfillmentStatusUnfulfilled
}

// vendorStatusFromItems reduces one vendor's order lines to their status.
func vendorStatusFromItems(items []OrderItem) VendorFulfillmentStatus {
	allFulfilled := true
	anyFulfilled := false
	for _, item := range items {
		if item.FulfilledQty >= item.Qty {
			anyFulfilled = true
		} else {
			allFulfilled = false
			if item.FulfilledQty > 0 {
				anyFulfilled = true
			}
		}
	}
	if allFulfilled {
		return VendorFulfillmentStatusFulfilled
	}
	if anyFulfilled {
		return VendorFulfillmentStatusPartial
	}
	return VendorFulfillmentStatusUnfulfilled
}

// RecomputeFulfillmentStatus is the only writer of Order.FulfillmentStatus on
// the fulfillment path. It reloads items, derives vendor statuses per store,
// folds them, and may auto-complete the order.
func RecomputeFulfillmentStatus(tx *gorm.DB, orderId int) error {
	var order Order
	if err := tx.Preload("Items").First(&order, orderId).Error; err != nil {
		tx.Rollback()
		return err
	}
	if order.FulfillmentStatus == FulfillmentStatusOnHold {
		return nil
	}

	itemsByStore := make(map[int][]OrderItem)
	for _, item := range order.Items {
		itemsByStore[item.StoreId] = append(itemsByStore[item.StoreId], item)
	}

	var cancelledStores []int
	if err := tx.Model(&Fulfillment{}).
		Where("order_id = ?", orderId).
		Where("current_status = ?", VendorFulfillmentStatusCancelled).
		Distinct("store_id").
		Pluck("store_id", &cancelledStores).Error; err != nil {
		tx.Rollback()
		return err
	}
	cancelled := make(map[int]bool, len(cancelledStores))
	for _, storeId := range cancelledStores {
		cancelled[storeId] = true
	}

	vendorStatuses := make([]VendorFulfillmentStatus, 0, len(itemsByStore))
	for storeId, items := range itemsByStore {
		status := vendorStatusFromItems(items)
		if cancelled[storeId] && status != VendorFulfillmentStatusFulfilled {
			status = VendorFulfillmentStatusCancelled
		}
		vendorStatuses = append(vendorStatuses, status)
	}

	derived := deriveFulfillmentStatus(vendorStatuses)
	if derived != order.FulfillmentStatus {
		if err := tx.Model(&order).Update("FulfillmentStatus", derived).Error; err != nil {
			tx.Rollback()
			return err
		}
		order.FulfillmentStatus = derived
	}

	return maybeCompleteOrder(tx, &order)
}

func (input NewFulfillment) validate(order *Order, storeId int, isAdmin bool) (map[int]*OrderItem, error) {
	if order.PaymentStatus != PaymentStatusPaid {
		return nil, errors.New("order must be paid before fulfillment")
	}
	if order.OnHold != nil && *order.OnHold {
		return nil, errors.New("order is on hold")
	}
	if order.CurrentStatus != OrderStatusOpen {
		return nil, errors.New("only open orders can be fulfilled")
	}

	itemById := make(map[int]*OrderItem, len(order.Items))
	for i := range order.Items {
		itemById[order.Items[i].ID] = &order.Items[i]
	}

	for _, line := range input.Items {
		item, ok := itemById[line.OrderItemId]
		if !ok {
			return nil, errors.New("order item not found on order")
		}
		if !isAdmin && item.StoreId != storeId {
			return nil, utils.ErrorUnauthorized
		}
		if item.FulfilledQty+line.Qty > item.Qty {
			return nil, fmt.Errorf("cannot fulfill %d of %s: %d of %d already fulfilled",
				line.Qty, item.Name, item.FulfilledQty, item.Qty)
		}
	}

	return itemById, nil
}

// CreateFulfillment records one vendor shipment: bump FulfilledQty per line,
// move committed stock to shipped, mint the order's tracking token on the
// first shipment, enqueue the shipment email, recompute the master status.
func CreateFulfillment(ctx context.Context, input *NewFulfillment) (*Fulfillment, error) {
	db := config.GetDB()
	tx := db.Begin()

	fulfillment, err := createFulfillment(tx, ctx, input)
	if err != nil {
		return nil, err
	}

	// Commit the transaction
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return fulfillment, nil
}

func createFulfillment(tx *gorm.DB, ctx context.Context, input *NewFulfillment) (*Fulfillment, error) {
	order, err := utils.FetchModel[Order](ctx, input.OrderId, "Items")
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	isAdmin, _ := utils.GetIsAdminFromContext(ctx)
	storeId, _ := utils.GetStoreIdFromContext(ctx)
	userId, _ := utils.GetUserIdFromContext(ctx)

	itemById, err := input.validate(order, storeId, isAdmin)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	fulfillmentStoreId := storeId
	if isAdmin {
		fulfillmentStoreId = itemById[input.Items[0].OrderItemId].StoreId
	}

	now := time.Now()
	fulfillment := Fulfillment{
		OrderId:        order.ID,
		StoreId:        fulfillmentStoreId,
		CurrentStatus:  VendorFulfillmentStatusFulfilled,
		Carrier:        input.Carrier,
		TrackingNumber: input.TrackingNumber,
		FulfilledAt:    &now,
	}
	for _, line := range input.Items {
		fulfillment.Items = append(fulfillment.Items, FulfillmentItem{
			OrderItemId: line.OrderItemId,
			Qty:         line.Qty,
		})
	}

	if err := tx.WithContext(ctx).Create(&fulfillment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	for _, line := range input.Items {
		item := itemById[line.OrderItemId]

		// guarded relative update keeps FulfilledQty monotone and bounded
		result := tx.Exec(
			"UPDATE order_items SET fulfilled_qty = fulfilled_qty + ? WHERE id = ? AND fulfilled_qty + ? <= qty",
			line.Qty, item.ID, line.Qty)
		if result.Error != nil {
			tx.Rollback()
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			tx.Rollback()
			return nil, fmt.Errorf("fulfillment exceeds ordered quantity for %s", item.Name)
		}
		item.FulfilledQty += line.Qty

		if err := AdjustInventory(tx, item.InventoryItemId, item.LocationId, InventoryDirectionFulfill,
			line.Qty, "order fulfillment", InventoryReferenceTypeFulfillment, fulfillment.ID, userId); err != nil {
			return nil, err
		}
	}

	if order.TrackingToken == "" {
		token := utils.GenerateTrackingToken()
		if err := tx.WithContext(ctx).Model(order).Update("TrackingToken", token).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		order.TrackingToken = token
	}

	// fire-and-forget relative to the buyer: a dead outbox row never blocks shipping
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	if err := EnqueueNotification(tx, NotificationTemplateShipmentConfirmation, order.ID, fulfillmentStoreId,
		order.CustomerEmail, correlationId, map[string]interface{}{
			"order_number":    order.OrderNumber,
			"tracking_token":  order.TrackingToken,
			"tracking_number": input.TrackingNumber,
			"carrier":         input.Carrier,
		}); err != nil {
		config.LogError(config.GetLogger(), "models", "CreateFulfillment", "enqueue notification", order.ID, err)
	}

	if err := RecomputeFulfillmentStatus(tx, order.ID); err != nil {
		return nil, err
	}

	return &fulfillment, nil
}

/*
	shipping provider boundary
*/

type ShippingRate struct {
	Carrier  string          `json:"carrier"`
	Service  string          `json:"service"`
	Cost     decimal.Decimal `json:"cost"`
	Currency string          `json:"currency"`
}

type ShippingLabel struct {
	TrackingNumber string          `json:"tracking_number"`
	Carrier        string          `json:"carrier"`
	Cost           decimal.Decimal `json:"cost"`
	LabelUrl       string          `json:"label_url"`
}

// ShippingProviderError distinguishes transient carrier failures, which the
// caller may retry, from unsupported routes, which it must not.
type ShippingProviderError struct {
	Retryable bool
	Message   string
}

func (e *ShippingProviderError) Error() string {
	return e.Message
}

type ShippingProvider interface {
	GetRates(ctx context.Context, orderId int) ([]ShippingRate, error)
	PurchaseLabel(ctx context.Context, orderId int, carrier string, service string) (*ShippingLabel, error)
}

type PurchaseLabelInput struct {
	OrderId int                  `json:"order_id" binding:"required"`
	Carrier string               `json:"carrier" binding:"required"`
	Service string               `json:"service"`
	Items   []NewFulfillmentItem `json:"items" binding:"required,min=1,dive"`
}

// PurchaseLabelAndFulfill buys a label from the provider, then records the
// fulfillment and the vendor's shipping_label debit in one transaction. The
// provider call happens before the transaction opens; a provider failure
// leaves nothing written.
func PurchaseLabelAndFulfill(ctx context.Context, provider ShippingProvider, input *PurchaseLabelInput) (*Fulfillment, error) {
	label, err := provider.PurchaseLabel(ctx, input.OrderId, input.Carrier, input.Service)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()

	fulfillment, err := createFulfillment(tx, ctx, &NewFulfillment{
		OrderId:        input.OrderId,
		Carrier:        label.Carrier,
		TrackingNumber: label.TrackingNumber,
		Items:          input.Items,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.WithContext(ctx).Model(fulfillment).Updates(map[string]interface{}{
		"LabelReference": label.LabelUrl,
		"LabelCost":      label.Cost,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	fulfillment.LabelReference = label.LabelUrl
	fulfillment.LabelCost = label.Cost

	if _, err := RecordBalanceTransaction(tx, fulfillment.StoreId, BalanceTransactionTypeShippingLabel,
		label.Cost, "", "FF", fulfillment.ID,
		fmt.Sprintf("shipping label %s %s", label.Carrier, label.TrackingNumber)); err != nil {
		return nil, err
	}

	// Commit the transaction
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return fulfillment, nil
}

func GetFulfillments(ctx context.Context, orderId int) ([]*Fulfillment, error) {
	var fulfillments []*Fulfillment

	db := config.GetDB()
	if err := db.WithContext(ctx).
		Preload("Items").
		Where("order_id = ?", orderId).
		Order("id").
		Find(&fulfillments).Error; err != nil {
		return nil, err
	}
	return fulfillments, nil
}
