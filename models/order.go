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

type Order struct {
	ID                int               `gorm:"primary_key" json:"id"`
	OrderNumber       string            `gorm:"size:50;index" json:"order_number"`
	CustomerId        int               `gorm:"index;not null" json:"customer_id"`
	CustomerName      string            `gorm:"size:255" json:"customer_name"`
	CustomerEmail     string            `gorm:"size:255" json:"customer_email"`
	StoreId           int               `gorm:"index" json:"store_id"`
	Currency          string            `gorm:"size:3;default:USD" json:"currency"`
	Subtotal          decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	DiscountAmount    decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	ShippingAmount    decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"shipping_amount"`
	TaxAmount         decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	TotalAmount       decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	CurrentStatus     OrderStatus       `gorm:"type:enum('Draft','Open','Completed','Cancelled','Archived');not null" json:"current_status"`
	PaymentStatus     PaymentStatus     `gorm:"type:enum('Pending','Paid','PartiallyRefunded','Refunded','Failed','Void');default:Pending" json:"payment_status"`
	FulfillmentStatus FulfillmentStatus `gorm:"type:enum('Unfulfilled','Partial','Fulfilled','Cancelled','OnHold');default:Unfulfilled" json:"fulfillment_status"`
	OnHold            *bool             `gorm:"default:false" json:"on_hold"`
	TrackingToken     string            `gorm:"size:64;index" json:"tracking_token"`
	Notes             string            `gorm:"type:text" json:"notes"`
	ReservedAt        *time.Time        `json:"reserved_at"`
	PaidAt            *time.Time        `json:"paid_at"`
	CanceledAt        *time.Time        `json:"canceled_at"`
	CompletedAt       *time.Time        `json:"completed_at"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderId" json:"items"`
}

type OrderItem struct {
	ID               int             `gorm:"primary_key" json:"id"`
	OrderId          int             `gorm:"index;not null" json:"order_id"`
	ListingVariantId int             `gorm:"index;not null" json:"listing_variant_id"`
	InventoryItemId  int             `gorm:"index;not null" json:"inventory_item_id"`
	StoreId          int             `gorm:"index;not null" json:"store_id"`
	LocationId       int             `gorm:"index" json:"location_id"`
	Name             string          `gorm:"size:255;not null" json:"name"`
	Sku              string          `gorm:"size:100" json:"sku"`
	Qty              int             `gorm:"not null" json:"qty"`
	FulfilledQty     int             `gorm:"default:0" json:"fulfilled_qty"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
}

type NewOrder struct {
	Customer       CustomerInput   `json:"customer" binding:"required"`
	Currency       string          `json:"currency"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	CurrentStatus  OrderStatus     `json:"current_status" binding:"required"`
	Notes          string          `json:"notes"`
	Items          []NewOrderItem  `json:"items" binding:"required,min=1,dive"`
}

type NewOrderItem struct {
	ListingVariantId int `json:"listing_variant_id" binding:"required"`
	Qty              int `json:"qty" binding:"required,gt=0"`
	LocationId       int `json:"location_id"`
}

type OrdersConnection struct {
	Edges    []*OrdersEdge `json:"edges"`
	PageInfo *PageInfo     `json:"pageInfo"`
}

type OrdersEdge Edge[Order]

func (o Order) GetCursor() string {
	return o.CreatedAt.Format(time.RFC3339Nano)
}

func (o Order) GetId() int {
	return o.ID
}

func (input NewOrder) validate(ctx context.Context) error {
	if input.CurrentStatus != OrderStatusDraft && input.CurrentStatus != OrderStatusOpen {
		return errors.New("new orders must be draft or open")
	}

	variantIds := make([]int, 0, len(input.Items))
	for _, item := range input.Items {
		variantIds = append(variantIds, item.ListingVariantId)
	}
	if err := utils.ValidateResourcesId[ListingVariant](ctx, variantIds); err != nil {
		return errors.New("listing variant not found")
	}
	return nil
}

// buildOrderItems snapshots variant name, SKU and price into order lines and
// resolves the location each line reserves against.
func buildOrderItems(tx *gorm.DB, input *NewOrder) ([]OrderItem, error) {
	variantIds := make([]int, 0, len(input.Items))
	for _, item := range input.Items {
		variantIds = append(variantIds, item.ListingVariantId)
	}

	var variants []ListingVariant
	if err := tx.Where("id IN ?", variantIds).Find(&variants).Error; err != nil {
		return nil, err
	}
	variantById := make(map[int]*ListingVariant, len(variants))
	listingIds := make([]int, 0, len(variants))
	for i := range variants {
		variantById[variants[i].ID] = &variants[i]
		listingIds = append(listingIds, variants[i].ListingId)
	}

	var listings []Listing
	if err := tx.Where("id IN ?", listingIds).Find(&listings).Error; err != nil {
		return nil, err
	}
	storeByListing := make(map[int]int, len(listings))
	for _, listing := range listings {
		storeByListing[listing.ID] = listing.StoreId
	}

	defaultLocationByStore := make(map[int]int)
	orderItems := make([]OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		variant := variantById[item.ListingVariantId]
		if variant == nil {
			return nil, errors.New("listing variant not found")
		}
		storeId := storeByListing[variant.ListingId]

		locationId := item.LocationId
		if locationId <= 0 {
			cached, ok := defaultLocationByStore[storeId]
			if !ok {
				location, err := ResolveDefaultLocation(tx, storeId)
				if err != nil {
					return nil, err
				}
				cached = location.ID
				defaultLocationByStore[storeId] = cached
			}
			locationId = cached
		}

		orderItems = append(orderItems, OrderItem{
			ListingVariantId: variant.ID,
			InventoryItemId:  variant.InventoryItemId,
			StoreId:          storeId,
			LocationId:       locationId,
			Name:             variant.Name,
			Sku:              variant.Sku,
			Qty:              item.Qty,
			UnitPrice:        variant.Price,
			TotalAmount:      variant.Price.Mul(decimal.NewFromInt(int64(item.Qty))),
		})
	}

	return orderItems, nil
}

// preflightOrderStock reports every short line before any counter moves.
func preflightOrderStock(tx *gorm.DB, items []OrderItem) error {
	byLocation := make(map[int][]StockRequirement)
	for _, item := range items {
		byLocation[item.LocationId] = append(byLocation[item.LocationId], StockRequirement{
			InventoryItemId: item.InventoryItemId,
			Qty:             item.Qty,
		})
	}

	allShortfalls := make([]StockShortfall, 0)
	for locationId, requirements := range byLocation {
		shortfalls, err := CheckStockAvailability(tx, locationId, requirements)
		if err != nil {
			return err
		}
		allShortfalls = append(allShortfalls, shortfalls...)
	}
	if len(allShortfalls) > 0 {
		return &InsufficientStockError{Shortfalls: allShortfalls}
	}
	return nil
}

// applyReservation reserves every line exactly once, guarded by ReservedAt.
func applyReservation(tx *gorm.DB, order *Order, actorId int) error {
	if order.ReservedAt != nil {
		return nil
	}

	if err := preflightOrderStock(tx, order.Items); err != nil {
		tx.Rollback()
		return err
	}

	for _, item := range order.Items {
		if err := AdjustInventory(tx, item.InventoryItemId, item.LocationId, InventoryDirectionReserve,
			item.Qty, "order reservation", InventoryReferenceTypeOrder, order.ID, actorId); err != nil {
			return err
		}
	}

	now := time.Now()
	if err := tx.Model(order).Update("ReservedAt", now).Error; err != nil {
		tx.Rollback()
		return err
	}
	order.ReservedAt = &now
	return nil
}

// releaseReservation returns the unfulfilled remainder of every line to
// available stock. Fulfilled quantities were already consumed and must not
// come back.
func releaseReservation(tx *gorm.DB, order *Order, reason string, actorId int) error {
	if order.ReservedAt == nil {
		return nil
	}

	for _, item := range order.Items {
		remainder := item.Qty - item.FulfilledQty
		if remainder <= 0 {
			continue
		}
		if err := AdjustInventory(tx, item.InventoryItemId, item.LocationId, InventoryDirectionRelease,
			remainder, reason, InventoryReferenceTypeOrder, order.ID, actorId); err != nil {
			return err
		}
	}

	if err := tx.Model(order).Update("ReservedAt", nil).Error; err != nil {
		tx.Rollback()
		return err
	}
	order.ReservedAt = nil
	return nil
}

func CreateOrder(ctx context.Context, input *NewOrder) (*Order, error) {
	db := config.GetDB()

	// IMPORTANT (correctness): if callers request "Open" on create, we still create as Draft
	// and then transition Draft -> Open inside the same DB transaction.
	requestedStatus := input.CurrentStatus

	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	tx := db.Begin()

	customer, err := ResolveCustomer(ctx, tx, &input.Customer)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	orderItems, err := buildOrderItems(tx, input)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// drafts get the same stock pre-check as open orders; nothing is
	// reserved yet, but short lines surface before the insert
	if err := preflightOrderStock(tx, orderItems); err != nil {
		tx.Rollback()
		return nil, err
	}

	var subtotal decimal.Decimal
	for _, item := range orderItems {
		subtotal = subtotal.Add(item.TotalAmount)
	}
	totalAmount := subtotal.Sub(input.DiscountAmount).Add(input.ShippingAmount).Add(input.TaxAmount)

	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	storeId := orderItems[0].StoreId
	for _, item := range orderItems {
		if item.StoreId != storeId {
			// multi-vendor order; StoreId stays 0, authorization walks the items
			storeId = 0
			break
		}
	}

	order := Order{
		CustomerId:        customer.ID,
		CustomerName:      customer.Name,
		CustomerEmail:     customer.Email,
		StoreId:           storeId,
		Currency:          currency,
		Subtotal:          subtotal,
		DiscountAmount:    input.DiscountAmount,
		ShippingAmount:    input.ShippingAmount,
		TaxAmount:         input.TaxAmount,
		TotalAmount:       totalAmount,
		CurrentStatus:     OrderStatusDraft,
		PaymentStatus:     PaymentStatusPending,
		FulfillmentStatus: FulfillmentStatusUnfulfilled,
		Notes:             input.Notes,
		Items:             orderItems,
	}

	if err := tx.WithContext(ctx).Create(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	order.OrderNumber = fmt.Sprintf("OD-%06d", order.ID)
	if err := tx.WithContext(ctx).Model(&order).Update("OrderNumber", order.OrderNumber).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if requestedStatus == OrderStatusOpen {
		if err := tx.WithContext(ctx).Model(&order).Update("CurrentStatus", OrderStatusOpen).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		order.CurrentStatus = OrderStatusOpen

		if err := applyReservation(tx, &order, userId); err != nil {
			return nil, err
		}
	}

	// Commit the transaction
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &order, nil
}

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusDraft:     {OrderStatusOpen, OrderStatusCancelled},
	OrderStatusOpen:      {OrderStatusDraft, OrderStatusCompleted, OrderStatusCancelled, OrderStatusArchived},
	OrderStatusCompleted: {OrderStatusArchived},
	OrderStatusCancelled: {OrderStatusArchived},
}

func validOrderTransition(from OrderStatus, to OrderStatus) bool {
	for _, allowed := range orderStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// UpdateOrderStatus moves the lifecycle axis. Crossing into Open reserves
// stock (and can fail on availability); crossing out of Open releases the
// unfulfilled remainder. ReservedAt keeps both moves exactly-once.
func UpdateOrderStatus(ctx context.Context, id int, status OrderStatus) (*Order, error) {
	order, err := utils.FetchModel[Order](ctx, id, "Items")
	if err != nil {
		return nil, err
	}

	if order.CurrentStatus == status {
		return order, nil
	}
	if !validOrderTransition(order.CurrentStatus, status) {
		return nil, fmt.Errorf("cannot move order from %s to %s", order.CurrentStatus, status)
	}
	if status == OrderStatusCancelled {
		return CancelOrder(ctx, id)
	}

	if order.StoreId > 0 {
		if err := utils.StoreLock(ctx, order.StoreId, "lock:order-write", "order.go", "UpdateOrderStatus"); err != nil {
			return nil, err
		}
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	oldStatus := order.CurrentStatus

	db := config.GetDB()
	tx := db.Begin()

	if err := tx.WithContext(ctx).Model(order).Update("CurrentStatus", status).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	order.CurrentStatus = status

	if status == OrderStatusOpen && oldStatus != OrderStatusOpen {
		if err := applyReservation(tx, order, userId); err != nil {
			return nil, err
		}
	}
	if oldStatus == OrderStatusOpen && status != OrderStatusOpen {
		if err := releaseReservation(tx, order, "order left open state", userId); err != nil {
			return nil, err
		}
	}

	if status == OrderStatusCompleted {
		now := time.Now()
		if err := tx.WithContext(ctx).Model(order).Update("CompletedAt", now).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		order.CompletedAt = &now
	}

	// Commit the transaction
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return order, nil
}

// CancelOrder is allowed while nothing or only part of the order has shipped.
// It releases the remaining reservation and cancels every open fulfillment.
func CancelOrder(ctx context.Context, id int) (*Order, error) {
	order, err := utils.FetchModel[Order](ctx, id, "Items")
	if err != nil {
		return nil, err
	}

	if order.CurrentStatus == OrderStatusCancelled {
		return nil, errors.New("order is already cancelled")
	}
	if order.FulfillmentStatus == FulfillmentStatusFulfilled {
		return nil, errors.New("cannot cancel a fully fulfilled order")
	}

	if order.StoreId > 0 {
		if err := utils.StoreLock(ctx, order.StoreId, "lock:order-write", "order.go", "CancelOrder"); err != nil {
			return nil, err
		}
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	db := config.GetDB()
	tx := db.Begin()

	if err := releaseReservation(tx, order, "order cancelled", userId); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := tx.WithContext(ctx).Model(order).Updates(map[string]interface{}{
		"CurrentStatus":     OrderStatusCancelled,
		"FulfillmentStatus": FulfillmentStatusCancelled,
		"CanceledAt":        now,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	order.CurrentStatus = OrderStatusCancelled
	order.FulfillmentStatus = FulfillmentStatusCancelled
	order.CanceledAt = &now

	if err := tx.WithContext(ctx).Model(&Fulfillment{}).
		Where("order_id = ?", order.ID).
		Where("current_status NOT IN ?", []VendorFulfillmentStatus{VendorFulfillmentStatusFulfilled, VendorFulfillmentStatusCancelled}).
		Update("current_status", VendorFulfillmentStatusCancelled).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// Commit the transaction
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return order, nil
}

// MarkOrderPaid is the payment-event entry point; the payment workflow calls
// it inside its own transaction and posting lock.
func MarkOrderPaid(tx *gorm.DB, orderId int) (*Order, error) {
	var order Order
	if err := tx.Preload("Items").First(&order, orderId).Error; err != nil {
		tx.Rollback()
		return nil, utils.ErrorRecordNotFound
	}

	if order.PaymentStatus == PaymentStatusPaid {
		return &order, nil
	}
	if order.CurrentStatus == OrderStatusCancelled {
		tx.Rollback()
		return nil, errors.New("cannot mark a cancelled order as paid")
	}

	now := time.Now()
	if err := tx.Model(&order).Updates(map[string]interface{}{
		"PaymentStatus": PaymentStatusPaid,
		"PaidAt":        now,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	order.PaymentStatus = PaymentStatusPaid
	order.PaidAt = &now

	if err := maybeCompleteOrder(tx, &order); err != nil {
		return nil, err
	}

	return &order, nil
}

// maybeCompleteOrder auto-advances open orders that are fully fulfilled and
// settled. Refunded/failed payments never auto-complete.
func maybeCompleteOrder(tx *gorm.DB, order *Order) error {
	if order.CurrentStatus != OrderStatusOpen {
		return nil
	}
	if order.FulfillmentStatus != FulfillmentStatusFulfilled {
		return nil
	}
	if order.PaymentStatus != PaymentStatusPaid && order.PaymentStatus != PaymentStatusPartiallyRefunded {
		return nil
	}

	now := time.Now()
	if err := tx.Model(order).Updates(map[string]interface{}{
		"CurrentStatus": OrderStatusCompleted,
		"CompletedAt":   now,
	}).Error; err != nil {
		tx.Rollback()
		return err
	}
	order.CurrentStatus = OrderStatusCompleted
	order.CompletedAt = &now
	return nil
}

// vendorOwnsWholeOrder walks item -> variant -> listing -> store. The
// denormalized Order.StoreId is a hint only; multi-vendor orders carry 0.
func vendorOwnsWholeOrder(ctx context.Context, orderId int, storeId int) (bool, error) {
	db := config.GetDB()

	var foreignItems int64
	err := db.WithContext(ctx).Model(&OrderItem{}).
		Joins("JOIN listing_variants ON listing_variants.id = order_items.listing_variant_id").
		Joins("JOIN listings ON listings.id = listing_variants.listing_id").
		Where("order_items.order_id = ?", orderId).
		Where("listings.store_id != ?", storeId).
		Count(&foreignItems).Error
	if err != nil {
		return false, err
	}
	return foreignItems == 0, nil
}

func DeleteOrder(ctx context.Context, id int) (*Order, error) {
	order, err := utils.FetchModel[Order](ctx, id, "Items")
	if err != nil {
		return nil, err
	}

	isAdmin, _ := utils.GetIsAdminFromContext(ctx)
	if !isAdmin {
		storeId, ok := utils.GetStoreIdFromContext(ctx)
		if !ok || storeId <= 0 {
			return nil, utils.ErrorUnauthorized
		}
		ownsAll, err := vendorOwnsWholeOrder(ctx, order.ID, storeId)
		if err != nil {
			return nil, err
		}
		if !ownsAll {
			return nil, utils.ErrorUnauthorized
		}
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	db := config.GetDB()
	tx := db.Begin()

	if err := releaseReservation(tx, order, "order deleted", userId); err != nil {
		return nil, err
	}

	if err := tx.WithContext(ctx).Where("order_id = ?", order.ID).Delete(&OrderItem{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// Commit the transaction
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return order, nil
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	return utils.FetchModel[Order](ctx, id, "Items")
}

func PaginateOrders(ctx context.Context, limit *int, after *string,
	status *OrderStatus,
	paymentStatus *PaymentStatus,
	storeId *int,
	startDate *time.Time,
	endDate *time.Time) (*OrdersConnection, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Order{}).Preload("Items")

	isAdmin, _ := utils.GetIsAdminFromContext(ctx)
	if !isAdmin {
		callerStoreId, ok := utils.GetStoreIdFromContext(ctx)
		if !ok || callerStoreId <= 0 {
			return nil, utils.ErrorUnauthorized
		}
		dbCtx.Where("EXISTS (SELECT 1 FROM order_items WHERE order_items.order_id = orders.id AND order_items.store_id = ?)", callerStoreId)
	} else if storeId != nil && *storeId > 0 {
		dbCtx.Where("EXISTS (SELECT 1 FROM order_items WHERE order_items.order_id = orders.id AND order_items.store_id = ?)", *storeId)
	}

	if status != nil {
		dbCtx.Where("current_status = ?", *status)
	}
	if paymentStatus != nil {
		dbCtx.Where("payment_status = ?", *paymentStatus)
	}
	if startDate != nil && endDate != nil {
		dbCtx.Where("orders.created_at BETWEEN ? AND ?", startDate, endDate)
	}

	pageSize := config.SearchLimit
	if limit != nil && *limit > 0 {
		pageSize = *limit
	}

	edges, pageInfo, err := FetchPageCompositeCursor[Order](dbCtx, pageSize, after, "orders.created_at", "<")
	if err != nil {
		return nil, err
	}

	var ordersConnection OrdersConnection
	ordersConnection.PageInfo = pageInfo
	for _, edge := range edges {
		ordersEdge := OrdersEdge(edge)
		ordersConnection.Edges = append(ordersConnection.Edges, &ordersEdge)
	}

	return &ordersConnection, nil
}
