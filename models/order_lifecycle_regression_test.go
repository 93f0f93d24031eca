package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/marketplace_backend/config"
	"github.com/mmdatafocus/marketplace_backend/models"
	"github.com/mmdatafocus/marketplace_backend/utils"
	"github.com/mmdatafocus/marketplace_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type testStorefront struct {
	store    *models.Store
	location *models.InventoryLocation
	item     *models.InventoryItem
	level    *models.InventoryLevel
	variant  *models.ListingVariant
}

// seedStorefront creates one store with a single tracked variant holding the
// given opening stock.
func seedStorefront(t *testing.T, ctx context.Context, db *gorm.DB, name string, opening int, price int64) *testStorefront {
	t.Helper()

	store, err := models.CreateStore(ctx, &models.Store{Name: name, Email: strings.ToLower(name) + "@test.local"})
	if err != nil {
		t.Fatalf("CreateStore(%s): %v", name, err)
	}
	location, err := models.CreateInventoryLocation(ctx, &models.InventoryLocation{
		StoreId: store.ID,
		Name:    name + " Warehouse",
	})
	if err != nil {
		t.Fatalf("CreateInventoryLocation(%s): %v", name, err)
	}

	item := &models.InventoryItem{StoreId: store.ID, Name: name + " Widget", Sku: name + "-W1"}
	if err := db.WithContext(ctx).Create(item).Error; err != nil {
		t.Fatalf("create inventory item: %v", err)
	}
	// Opening stock is seeded directly into the snapshot; the adjustment log
	// only records order movement.
	level := &models.InventoryLevel{
		InventoryItemId: item.ID,
		LocationId:      location.ID,
		Available:       opening,
		OnHand:          opening,
	}
	if err := db.WithContext(ctx).Create(level).Error; err != nil {
		t.Fatalf("create inventory level: %v", err)
	}

	listing := &models.Listing{StoreId: store.ID, Title: name + " Widgets"}
	if err := db.WithContext(ctx).Create(listing).Error; err != nil {
		t.Fatalf("create listing: %v", err)
	}
	variant := &models.ListingVariant{
		ListingId:       listing.ID,
		InventoryItemId: item.ID,
		Name:            name + " Widget",
		Sku:             name + "-W1",
		Price:           decimal.NewFromInt(price),
	}
	if err := db.WithContext(ctx).Create(variant).Error; err != nil {
		t.Fatalf("create listing variant: %v", err)
	}

	return &testStorefront{store: store, location: location, item: item, level: level, variant: variant}
}

func reloadLevel(t *testing.T, db *gorm.DB, levelId int) *models.InventoryLevel {
	t.Helper()
	var level models.InventoryLevel
	if err := db.First(&level, levelId).Error; err != nil {
		t.Fatalf("reload inventory level: %v", err)
	}
	return &level
}

func TestOrderLifecycle_ReserveAndCancelRestoreAvailability(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "marketplace_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetIsAdminInContext(ctx, true)

	db := config.GetDB()
	front := seedStorefront(t, ctx, db, "Acme", 10, 50)

	// Open order for 4 units must reserve immediately.
	order, err := models.CreateOrder(ctx, &models.NewOrder{
		Customer:      models.CustomerInput{Name: "Jo Buyer", Email: "jo@buyer.test"},
		CurrentStatus: models.OrderStatusOpen,
		Items: []models.NewOrderItem{
			{ListingVariantId: front.variant.ID, Qty: 4},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.CurrentStatus != models.OrderStatusOpen {
		t.Fatalf("expected order status Open, got %s", order.CurrentStatus)
	}
	if order.ReservedAt == nil {
		t.Fatal("open order must carry a reservation timestamp")
	}
	if order.StoreId != front.store.ID {
		t.Fatalf("single-vendor order must carry the vendor's store id, got %d", order.StoreId)
	}

	level := reloadLevel(t, db, front.level.ID)
	if level.Available != 6 || level.Committed != 4 || level.OnHand != 10 {
		t.Fatalf("after reserve: available=%d committed=%d on_hand=%d, want 6/4/10",
			level.Available, level.Committed, level.OnHand)
	}

	// A second order that overshoots remaining availability must fail with
	// the full shortfall report and move nothing.
	_, err = models.CreateOrder(ctx, &models.NewOrder{
		Customer:      models.CustomerInput{Name: "Jo Buyer", Email: "jo@buyer.test"},
		CurrentStatus: models.OrderStatusOpen,
		Items: []models.NewOrderItem{
			{ListingVariantId: front.variant.ID, Qty: 20},
		},
	})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	var stockErr *models.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %T: %v", err, err)
	}
	if len(stockErr.Shortfalls) != 1 || stockErr.Shortfalls[0].Available != 6 || stockErr.Shortfalls[0].Requested != 20 {
		t.Fatalf("shortfall report wrong: %+v", stockErr.Shortfalls)
	}
	level = reloadLevel(t, db, front.level.ID)
	if level.Available != 6 || level.Committed != 4 {
		t.Fatalf("failed order must not move counters: available=%d committed=%d", level.Available, level.Committed)
	}

	// Drafts run the same stock pre-check even though nothing is reserved.
	_, err = models.CreateOrder(ctx, &models.NewOrder{
		Customer:      models.CustomerInput{Name: "Jo Buyer", Email: "jo@buyer.test"},
		CurrentStatus: models.OrderStatusDraft,
		Items: []models.NewOrderItem{
			{ListingVariantId: front.variant.ID, Qty: 20},
		},
	})
	if !errors.As(err, &stockErr) {
		t.Fatalf("draft overshoot must fail the stock pre-check, got %v", err)
	}

	// Moving back to draft releases the reservation; re-opening takes it again.
	drafted, err := models.UpdateOrderStatus(ctx, order.ID, models.OrderStatusDraft)
	if err != nil {
		t.Fatalf("UpdateOrderStatus to draft: %v", err)
	}
	if drafted.ReservedAt != nil {
		t.Fatal("drafted order must not hold a reservation")
	}
	level = reloadLevel(t, db, front.level.ID)
	if level.Available != 10 || level.Committed != 0 {
		t.Fatalf("after draft: available=%d committed=%d, want 10/0", level.Available, level.Committed)
	}

	reopened, err := models.UpdateOrderStatus(ctx, order.ID, models.OrderStatusOpen)
	if err != nil {
		t.Fatalf("UpdateOrderStatus back to open: %v", err)
	}
	if reopened.ReservedAt == nil {
		t.Fatal("re-opened order must re-reserve")
	}
	level = reloadLevel(t, db, front.level.ID)
	if level.Available != 6 || level.Committed != 4 {
		t.Fatalf("after re-open: available=%d committed=%d, want 6/4", level.Available, level.Committed)
	}

	// Cancel returns the full reservation.
	cancelled, err := models.CancelOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if cancelled.CurrentStatus != models.OrderStatusCancelled || cancelled.CanceledAt == nil {
		t.Fatalf("expected cancelled order with timestamp, got %s", cancelled.CurrentStatus)
	}
	if cancelled.ReservedAt != nil {
		t.Fatal("cancelled order must not hold a reservation")
	}
	level = reloadLevel(t, db, front.level.ID)
	if level.Available != 10 || level.Committed != 0 || level.OnHand != 10 {
		t.Fatalf("after cancel: available=%d committed=%d on_hand=%d, want 10/0/10",
			level.Available, level.Committed, level.OnHand)
	}

	// The adjustment log must show the symmetric reserve/release pair.
	adjustments, err := models.GetInventoryAdjustments(ctx, front.item.ID, front.location.ID)
	if err != nil {
		t.Fatalf("GetInventoryAdjustments: %v", err)
	}
	var sum int
	for _, adj := range adjustments {
		if adj.Counter == "available" {
			sum += adj.Delta
		}
	}
	if sum != 0 {
		t.Fatalf("available adjustments must net to zero after cancel, got %d (rows=%d)", sum, len(adjustments))
	}

	// Guest customers stay scoped per storefront: the same email at two
	// stores resolves to two customer records, and a repeat checkout at the
	// same store reuses the first.
	second := seedStorefront(t, ctx, db, "Globex", 10, 50)
	guestA, err := models.CreateOrder(ctx, &models.NewOrder{
		Customer:      models.CustomerInput{Name: "Sam Guest", Email: "sam@guest.test", StoreId: front.store.ID},
		CurrentStatus: models.OrderStatusDraft,
		Items: []models.NewOrderItem{
			{ListingVariantId: front.variant.ID, Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("guest order at first store: %v", err)
	}
	guestB, err := models.CreateOrder(ctx, &models.NewOrder{
		Customer:      models.CustomerInput{Name: "Sam Guest", Email: "sam@guest.test", StoreId: second.store.ID},
		CurrentStatus: models.OrderStatusDraft,
		Items: []models.NewOrderItem{
			{ListingVariantId: second.variant.ID, Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("guest order at second store: %v", err)
	}
	if guestA.CustomerId == guestB.CustomerId {
		t.Fatal("same guest email at two stores must not share a customer record")
	}
	guestRepeat, err := models.CreateOrder(ctx, &models.NewOrder{
		Customer:      models.CustomerInput{Name: "Sam Guest", Email: "sam@guest.test", StoreId: front.store.ID},
		CurrentStatus: models.OrderStatusDraft,
		Items: []models.NewOrderItem{
			{ListingVariantId: front.variant.ID, Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("repeat guest order: %v", err)
	}
	if guestRepeat.CustomerId != guestA.CustomerId {
		t.Fatalf("repeat checkout at the same store must reuse customer %d, got %d", guestA.CustomerId, guestRepeat.CustomerId)
	}
}

func TestPaymentEvent_IdempotentPostingAndFulfillmentCompletesOrder(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "marketplace_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetIsAdminInContext(ctx, true)

	db := config.GetDB()
	logger := logrus.New()
	front := seedStorefront(t, ctx, db, "Vega", 10, 50)

	order, err := models.CreateOrder(ctx, &models.NewOrder{
		Customer:      models.CustomerInput{Name: "Kim Buyer", Email: "kim@buyer.test"},
		CurrentStatus: models.OrderStatusOpen,
		Items: []models.NewOrderItem{
			{ListingVariantId: front.variant.ID, Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	event := &workflow.PaymentEvent{
		EventId:     "evt_test_001",
		OrderId:     order.ID,
		AmountPaid:  decimal.NewFromInt(100),
		PlatformFee: decimal.NewFromInt(10),
		Currency:    "USD",
	}

	// Deliver the same event twice; posting must happen exactly once.
	if err := workflow.ProcessPaymentEventWorkflow(db, logger, event); err != nil {
		t.Fatalf("ProcessPaymentEventWorkflow(first): %v", err)
	}
	if err := workflow.ProcessPaymentEventWorkflow(db, logger, event); err != nil {
		t.Fatalf("ProcessPaymentEventWorkflow(replay): %v", err)
	}

	var paid models.Order
	if err := db.First(&paid, order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if paid.PaymentStatus != models.PaymentStatusPaid || paid.PaidAt == nil {
		t.Fatalf("expected paid order, got %s", paid.PaymentStatus)
	}

	var ledgerCount int64
	if err := db.Model(&models.SellerBalanceTransaction{}).
		Where("store_id = ?", front.store.ID).
		Count(&ledgerCount).Error; err != nil {
		t.Fatalf("count ledger rows: %v", err)
	}
	if ledgerCount != 2 {
		t.Fatalf("expected exactly 2 ledger rows (payment + platform fee), got %d", ledgerCount)
	}

	balance, err := models.GetSellerBalance(ctx, front.store.ID)
	if err != nil {
		t.Fatalf("GetSellerBalance: %v", err)
	}
	// Payment sits in pending through the hold window; the fee debits
	// available immediately.
	if !balance.Pending.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("pending = %s, want 100", balance.Pending)
	}
	if !balance.Available.Equal(decimal.NewFromInt(-10)) {
		t.Fatalf("available = %s, want -10", balance.Available)
	}

	// Confirmation email is staged in the outbox, not sent inline.
	var confirmations int64
	if err := db.Model(&models.NotificationOutbox{}).
		Where("order_id = ? AND template = ?", order.ID, models.NotificationTemplateOrderConfirmation).
		Count(&confirmations).Error; err != nil {
		t.Fatalf("count outbox rows: %v", err)
	}
	if confirmations != 1 {
		t.Fatalf("expected 1 order confirmation outbox row, got %d", confirmations)
	}

	// Fulfill both units as the vendor; the paid+fulfilled order completes.
	vendorCtx := utils.SetUserIdInContext(context.Background(), 2)
	vendorCtx = utils.SetStoreIdInContext(vendorCtx, front.store.ID)

	var reloaded models.Order
	if err := db.Preload("Items").First(&reloaded, order.ID).Error; err != nil {
		t.Fatalf("reload order with items: %v", err)
	}
	fulfillment, err := models.CreateFulfillment(vendorCtx, &models.NewFulfillment{
		OrderId: order.ID,
		Carrier: "UPS",
		Items: []models.NewFulfillmentItem{
			{OrderItemId: reloaded.Items[0].ID, Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("CreateFulfillment: %v", err)
	}
	if fulfillment.CurrentStatus != models.VendorFulfillmentStatusFulfilled {
		t.Fatalf("expected fulfilled shipment, got %s", fulfillment.CurrentStatus)
	}

	level := reloadLevel(t, db, front.level.ID)
	if level.Available != 8 || level.Committed != 0 || level.OnHand != 8 || level.Shipped != 2 {
		t.Fatalf("after fulfill: available=%d committed=%d on_hand=%d shipped=%d, want 8/0/8/2",
			level.Available, level.Committed, level.OnHand, level.Shipped)
	}

	var completed models.Order
	if err := db.First(&completed, order.ID).Error; err != nil {
		t.Fatalf("reload completed order: %v", err)
	}
	if completed.FulfillmentStatus != models.FulfillmentStatusFulfilled {
		t.Fatalf("expected fulfilled order, got %s", completed.FulfillmentStatus)
	}
	if completed.CurrentStatus != models.OrderStatusCompleted || completed.CompletedAt == nil {
		t.Fatalf("paid and fulfilled order must auto-complete, got %s", completed.CurrentStatus)
	}
	if completed.TrackingToken == "" {
		t.Fatal("first shipment must mint the order tracking token")
	}

	// The hold window matures the payment into available.
	matureAt := time.Now().Add(time.Duration(models.DefaultHoldPeriodDays+1) * 24 * time.Hour)
	tx := db.Begin()
	released, err := models.ReleaseDuePendingTransactions(tx, front.store.ID, matureAt)
	if err != nil {
		t.Fatalf("ReleaseDuePendingTransactions: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("commit release: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected 1 released transaction, got %d", released)
	}

	balance, err = models.GetSellerBalance(ctx, front.store.ID)
	if err != nil {
		t.Fatalf("GetSellerBalance(after release): %v", err)
	}
	if !balance.Pending.IsZero() || !balance.Available.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("after release: pending=%s available=%s, want 0/90", balance.Pending, balance.Available)
	}

	// Ledger replay must agree with the snapshot.
	drift, err := models.ReconcileSellerBalance(ctx, front.store.ID)
	if err != nil {
		t.Fatalf("ReconcileSellerBalance: %v", err)
	}
	if drift.HasDrift() {
		t.Fatalf("snapshot drifted from ledger: %+v", drift)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("marketplace-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("marketplace-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=marketplace_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
