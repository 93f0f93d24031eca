package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/marketplace_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SellerBalance is the per-store snapshot. It is only ever moved by atomic
// relative updates inside RecordBalanceTransaction and
// ReleaseDuePendingTransactions; the ledger proves it, never derives it.
type SellerBalance struct {
	ID        int             `gorm:"primary_key" json:"id"`
	StoreId   int             `gorm:"uniqueIndex;not null" json:"store_id"`
	Available decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"available"`
	Pending   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"pending"`
	Currency  string          `gorm:"size:3;default:USD" json:"currency"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// SellerBalanceTransaction is the append-only ledger. Status is the one
// column that legally changes after insert (pending -> available at
// maturity); that flip goes through raw SQL so the hooks below still catch
// every model-level mutation.
type SellerBalanceTransaction struct {
	ID            int                      `gorm:"primary_key" json:"id"`
	StoreId       int                      `gorm:"index;not null" json:"store_id"`
	Type          BalanceTransactionType   `gorm:"type:enum('order_payment','platform_fee','stripe_fee','shipping_label','refund','dispute','payout','adjustment');not null" json:"type"`
	Amount        decimal.Decimal          `gorm:"type:decimal(20,4);not null" json:"amount"`
	SignedAmount  decimal.Decimal          `gorm:"type:decimal(20,4);not null" json:"signed_amount"`
	Currency      string                   `gorm:"size:3;default:USD" json:"currency"`
	Status        BalanceTransactionStatus `gorm:"type:enum('pending','available','paid');not null" json:"status"`
	AvailableAt   *time.Time               `json:"available_at"`
	BalanceBefore decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"balance_before"`
	BalanceAfter  decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"balance_after"`
	ReferenceType string                   `gorm:"size:10" json:"reference_type"`
	ReferenceId   int                      `gorm:"index" json:"reference_id"`
	Description   string                   `gorm:"size:255" json:"description"`
	CreatedAt     time.Time                `gorm:"autoCreateTime" json:"created_at"`
}

func (SellerBalanceTransaction) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("balance transactions are append-only")
}

func (SellerBalanceTransaction) BeforeDelete(tx *gorm.DB) error {
	return errors.New("balance transactions are append-only")
}

func (t SellerBalanceTransaction) GetId() int {
	return t.ID
}

func (t SellerBalanceTransaction) GetCursor() string {
	return t.CreatedAt.Format(time.RFC3339Nano)
}

// isCreditType classifies the ledger row types that add to the seller's
// balance. adjustment is excluded here; its sign comes from the caller.
func isCreditType(txnType BalanceTransactionType) bool {
	return txnType == BalanceTransactionTypeOrderPayment
}

// signedBalanceAmount turns the stored positive amount into the delta the
// snapshot moves by. adjustment passes the caller's sign through.
func signedBalanceAmount(txnType BalanceTransactionType, amount decimal.Decimal) decimal.Decimal {
	if txnType == BalanceTransactionTypeAdjustment {
		return amount
	}
	if isCreditType(txnType) {
		return amount
	}
	return amount.Neg()
}

// validateBalanceAmount rejects rows that would not move any bucket.
// adjustment may carry either sign but never zero; every other type stores a
// positive amount and derives its sign from the type.
func validateBalanceAmount(txnType BalanceTransactionType, amount decimal.Decimal) error {
	if txnType == BalanceTransactionTypeAdjustment {
		if amount.IsZero() {
			return errors.New("adjustment amount must be non-zero")
		}
		return nil
	}
	if !amount.IsPositive() {
		return errors.New("balance transaction amount must be positive")
	}
	return nil
}

// initialTransactionStatus places a new row in its bucket. Only order
// payments sit out the hold period; payouts are terminal the moment they
// post.
func initialTransactionStatus(txnType BalanceTransactionType) BalanceTransactionStatus {
	switch txnType {
	case BalanceTransactionTypeOrderPayment:
		return BalanceTransactionStatusPending
	case BalanceTransactionTypePayout:
		return BalanceTransactionStatusPaid
	}
	return BalanceTransactionStatusAvailable
}

func FirstOrCreateSellerBalance(tx *gorm.DB, storeId int, currency string) (*SellerBalance, error) {
	balance := SellerBalance{
		StoreId:  storeId,
		Currency: currency,
	}
	// FirstOrCreate will try to find a record matching the conditions, and if it doesn't find one, it will create a new record
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ?", storeId).
		FirstOrCreate(&balance)
	if result.Error != nil {
		tx.Rollback()
		return nil, result.Error
	}
	return &balance, nil
}

// RecordBalanceTransaction appends one ledger row and moves exactly one
// snapshot bucket by its signed amount. The hold period is read from the
// store at creation time and frozen into AvailableAt; later changes to the
// store's setting never touch existing rows.
func RecordBalanceTransaction(tx *gorm.DB, storeId int, txnType BalanceTransactionType,
	amount decimal.Decimal, currency string, referenceType string, referenceId int,
	description string) (*SellerBalanceTransaction, error) {

	if err := validateBalanceAmount(txnType, amount); err != nil {
		tx.Rollback()
		return nil, err
	}

	if currency == "" {
		var store Store
		if err := tx.Select("currency").First(&store, storeId).Error; err != nil {
			tx.Rollback()
			return nil, errors.New("store not found")
		}
		currency = store.Currency
	}

	balance, err := FirstOrCreateSellerBalance(tx, storeId, currency)
	if err != nil {
		return nil, err
	}

	signed := signedBalanceAmount(txnType, amount)
	status := initialTransactionStatus(txnType)
	balanceBefore := balance.Available.Add(balance.Pending)

	var availableAt *time.Time
	if status == BalanceTransactionStatusPending {
		holdDays, err := GetStoreHoldPeriodDays(tx, storeId)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		matured := time.Now().AddDate(0, 0, holdDays)
		availableAt = &matured
	}

	transaction := SellerBalanceTransaction{
		StoreId:       storeId,
		Type:          txnType,
		Amount:        amount.Abs(),
		SignedAmount:  signed,
		Currency:      currency,
		Status:        status,
		AvailableAt:   availableAt,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceBefore.Add(signed),
		ReferenceType: referenceType,
		ReferenceId:   referenceId,
		Description:   description,
	}
	if err := tx.Create(&transaction).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	bucket := "available"
	if status == BalanceTransactionStatusPending {
		bucket = "pending"
	}
	if err := tx.Exec(
		"UPDATE seller_balances SET "+bucket+" = "+bucket+" + ? WHERE id = ?",
		signed, balance.ID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	return &transaction, nil
}

// ReleaseDuePendingTransactions flips matured order_payment credits from
// pending to available and moves the snapshot buckets by the same total, all
// in the caller's transaction.
func ReleaseDuePendingTransactions(tx *gorm.DB, storeId int, now time.Time) (int, error) {
	var due []SellerBalanceTransaction
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ?", storeId).
		Where("status = ?", BalanceTransactionStatusPending).
		Where("available_at <= ?", now).
		Find(&due).Error; err != nil {
		tx.Rollback()
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	var total decimal.Decimal
	ids := make([]int, 0, len(due))
	for _, transaction := range due {
		total = total.Add(transaction.SignedAmount)
		ids = append(ids, transaction.ID)
	}

	// raw update: the append-only hooks stay armed for everything else
	if err := tx.Exec(
		"UPDATE seller_balance_transactions SET status = ? WHERE id IN ?",
		BalanceTransactionStatusAvailable, ids).Error; err != nil {
		tx.Rollback()
		return 0, err
	}

	if err := tx.Exec(
		"UPDATE seller_balances SET pending = pending - ?, available = available + ? WHERE store_id = ?",
		total, total, storeId).Error; err != nil {
		tx.Rollback()
		return 0, err
	}

	return len(due), nil
}

type BalanceDrift struct {
	StoreId           int             `json:"store_id"`
	SnapshotAvailable decimal.Decimal `json:"snapshot_available"`
	SnapshotPending   decimal.Decimal `json:"snapshot_pending"`
	LedgerAvailable   decimal.Decimal `json:"ledger_available"`
	LedgerPending     decimal.Decimal `json:"ledger_pending"`
	AvailableDrift    decimal.Decimal `json:"available_drift"`
	PendingDrift      decimal.Decimal `json:"pending_drift"`
}

func (d BalanceDrift) HasDrift() bool {
	return !d.AvailableDrift.IsZero() || !d.PendingDrift.IsZero()
}

// ledgerBalances replays the ledger in creation order.
func ledgerBalances(transactions []SellerBalanceTransaction) (decimal.Decimal, decimal.Decimal) {
	var available, pending decimal.Decimal
	for _, transaction := range transactions {
		if transaction.Status == BalanceTransactionStatusPending {
			pending = pending.Add(transaction.SignedAmount)
		} else {
			available = available.Add(transaction.SignedAmount)
		}
	}
	return available, pending
}

// ReconcileSellerBalance compares the snapshot against a full ledger replay.
// Read-only; repair is cmd/balance-rebuild's job.
func ReconcileSellerBalance(ctx context.Context, storeId int) (*BalanceDrift, error) {
	return ReconcileSellerBalanceTx(config.GetDB().WithContext(ctx), storeId)
}

// ReconcileSellerBalanceTx runs the same check on the caller's handle, so a
// posting transaction can verify its own writes before commit
// (RECONCILE_BALANCES_ON_WRITE).
func ReconcileSellerBalanceTx(tx *gorm.DB, storeId int) (*BalanceDrift, error) {
	var balance SellerBalance
	if err := tx.Where("store_id = ?", storeId).First(&balance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			balance = SellerBalance{StoreId: storeId}
		} else {
			return nil, err
		}
	}

	var transactions []SellerBalanceTransaction
	if err := tx.
		Where("store_id = ?", storeId).
		Order("id").
		Find(&transactions).Error; err != nil {
		return nil, err
	}

	ledgerAvailable, ledgerPending := ledgerBalances(transactions)

	return &BalanceDrift{
		StoreId:           storeId,
		SnapshotAvailable: balance.Available,
		SnapshotPending:   balance.Pending,
		LedgerAvailable:   ledgerAvailable,
		LedgerPending:     ledgerPending,
		AvailableDrift:    balance.Available.Sub(ledgerAvailable),
		PendingDrift:      balance.Pending.Sub(ledgerPending),
	}, nil
}

// RebuildSellerBalance overwrites the snapshot with the ledger replay.
func RebuildSellerBalance(tx *gorm.DB, storeId int) (*SellerBalance, error) {
	var transactions []SellerBalanceTransaction
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ?", storeId).
		Order("id").
		Find(&transactions).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	available, pending := ledgerBalances(transactions)

	balance, err := FirstOrCreateSellerBalance(tx, storeId, "")
	if err != nil {
		return nil, err
	}

	if err := tx.Exec(
		"UPDATE seller_balances SET available = ?, pending = ? WHERE id = ?",
		available, pending, balance.ID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	balance.Available = available
	balance.Pending = pending

	return balance, nil
}

func GetSellerBalance(ctx context.Context, storeId int) (*SellerBalance, error) {
	db := config.GetDB()

	var balance SellerBalance
	if err := db.WithContext(ctx).Where("store_id = ?", storeId).First(&balance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &SellerBalance{StoreId: storeId}, nil
		}
		return nil, err
	}
	return &balance, nil
}
