package workflow

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mmdatafocus/marketplace_backend/config"
	"github.com/mmdatafocus/marketplace_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const paymentHandlerName = "payment_event"

// PaymentEvent is the trusted input from the payment processor boundary.
// Signature verification happens upstream; EventId carries the dedup key.
type PaymentEvent struct {
	EventId      string          `json:"event_id" binding:"required"`
	OrderId      int             `json:"order_id" binding:"required"`
	AmountPaid   decimal.Decimal `json:"amount_paid" binding:"required"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	ProcessorFee decimal.Decimal `json:"processor_fee"`
	Currency     string          `json:"currency"`
}

// storeShare is one vendor's slice of a multi-vendor payment.
type storeShare struct {
	StoreId      int
	Payment      decimal.Decimal
	PlatformFee  decimal.Decimal
	ProcessorFee decimal.Decimal
}

// splitPaymentByStore apportions the payment and fees across vendors in
// proportion to each vendor's item subtotal. The last store absorbs rounding
// so the shares always sum exactly to the event amounts.
func splitPaymentByStore(items []models.OrderItem, event *PaymentEvent) []storeShare {
	subtotalByStore := make(map[int]decimal.Decimal)
	var orderSubtotal decimal.Decimal
	for _, item := range items {
		subtotalByStore[item.StoreId] = subtotalByStore[item.StoreId].Add(item.TotalAmount)
		orderSubtotal = orderSubtotal.Add(item.TotalAmount)
	}

	storeIds := make([]int, 0, len(subtotalByStore))
	for storeId := range subtotalByStore {
		storeIds = append(storeIds, storeId)
	}
	sort.Ints(storeIds)

	shares := make([]storeShare, 0, len(storeIds))
	var paymentUsed, platformUsed, processorUsed decimal.Decimal
	for i, storeId := range storeIds {
		share := storeShare{StoreId: storeId}
		if i == len(storeIds)-1 {
			share.Payment = event.AmountPaid.Sub(paymentUsed)
			share.PlatformFee = event.PlatformFee.Sub(platformUsed)
			share.ProcessorFee = event.ProcessorFee.Sub(processorUsed)
		} else {
			var ratio decimal.Decimal
			if orderSubtotal.IsZero() {
				// zero-subtotal order (free items); nothing to weight by, split evenly
				ratio = decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(len(storeIds))))
			} else {
				ratio = subtotalByStore[storeId].Div(orderSubtotal)
			}
			share.Payment = event.AmountPaid.Mul(ratio).Round(4)
			share.PlatformFee = event.PlatformFee.Mul(ratio).Round(4)
			share.ProcessorFee = event.ProcessorFee.Mul(ratio).Round(4)
			paymentUsed = paymentUsed.Add(share.Payment)
			platformUsed = platformUsed.Add(share.PlatformFee)
			processorUsed = processorUsed.Add(share.ProcessorFee)
		}
		shares = append(shares, share)
	}

	return shares
}

// ProcessPaymentEventWorkflow marks the order paid and posts every vendor's
// ledger rows in one transaction under the store posting locks. Replays of
// the same EventId are no-ops.
func ProcessPaymentEventWorkflow(db *gorm.DB, logger *logrus.Logger, event *PaymentEvent) error {
	if event.AmountPaid.IsNegative() || event.AmountPaid.IsZero() {
		return errors.New("payment amount must be positive")
	}

	// best-effort fast path; the DB idempotency key below is the guarantee
	dedupKey := "payment:event:" + event.EventId
	if seen, _, err := config.GetRedisValue(dedupKey); err == nil && seen == "1" {
		return nil
	}

	tx := db.Begin()

	skip, err := BeginIdempotency(tx, paymentHandlerName, event.EventId)
	if err != nil {
		tx.Rollback()
		return err
	}
	if skip {
		tx.Rollback()
		return nil
	}

	order, err := models.MarkOrderPaid(tx, event.OrderId)
	if err != nil {
		markFailed(db, event.EventId, err)
		return err
	}

	shares := splitPaymentByStore(order.Items, event)

	// lock stores in id order; every payer takes them the same way
	for _, share := range shares {
		if err := AcquireStorePostingLock(tx, share.StoreId); err != nil {
			tx.Rollback()
			markFailed(db, event.EventId, err)
			return err
		}
		defer ReleaseStorePostingLock(tx, share.StoreId)
	}

	for _, share := range shares {
		orderRef := fmt.Sprintf("payment for order %s", order.OrderNumber)
		if _, err := models.RecordBalanceTransaction(tx, share.StoreId, models.BalanceTransactionTypeOrderPayment,
			share.Payment, event.Currency, "OD", order.ID, orderRef); err != nil {
			markFailed(db, event.EventId, err)
			return err
		}
		if share.PlatformFee.IsPositive() {
			if _, err := models.RecordBalanceTransaction(tx, share.StoreId, models.BalanceTransactionTypePlatformFee,
				share.PlatformFee, event.Currency, "OD", order.ID, orderRef); err != nil {
				markFailed(db, event.EventId, err)
				return err
			}
		}
		if share.ProcessorFee.IsPositive() {
			if _, err := models.RecordBalanceTransaction(tx, share.StoreId, models.BalanceTransactionTypeStripeFee,
				share.ProcessorFee, event.Currency, "OD", order.ID, orderRef); err != nil {
				markFailed(db, event.EventId, err)
				return err
			}
		}
	}

	if config.ReconcileBalancesOnWrite() {
		for _, share := range shares {
			drift, err := models.ReconcileSellerBalanceTx(tx, share.StoreId)
			if err != nil {
				tx.Rollback()
				markFailed(db, event.EventId, err)
				return err
			}
			if drift.HasDrift() {
				err := fmt.Errorf("balance drift on store %d after posting", share.StoreId)
				tx.Rollback()
				markFailed(db, event.EventId, err)
				return err
			}
		}
	}

	if err := models.EnqueueNotification(tx, models.NotificationTemplateOrderConfirmation, order.ID, order.StoreId,
		order.CustomerEmail, event.EventId, map[string]interface{}{
			"order_number": order.OrderNumber,
			"amount_paid":  event.AmountPaid,
		}); err != nil {
		config.LogError(logger, "workflow", "ProcessPaymentEventWorkflow", "enqueue notification", order.ID, err)
	}

	if err := MarkIdempotencySucceeded(tx, paymentHandlerName, event.EventId); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}

	config.SetRedisValue(dedupKey, "1", 24*time.Hour)

	logger.WithFields(logrus.Fields{
		"event_id": event.EventId,
		"order_id": order.ID,
		"amount":   event.AmountPaid.String(),
		"stores":   len(shares),
	}).Info("payment event posted")

	return nil
}

// markFailed records the failure on a fresh transaction; the caller's
// transaction has already rolled back.
func markFailed(db *gorm.DB, eventId string, cause error) {
	_ = db.Transaction(func(tx *gorm.DB) error {
		return MarkIdempotencyFailed(tx, paymentHandlerName, eventId, cause)
	})
}
