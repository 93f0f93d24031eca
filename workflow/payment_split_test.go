package workflow

import (
	"testing"

	"github.com/mmdatafocus/marketplace_backend/models"
	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. They pin the multi-vendor
// split: shares are proportional to each vendor's item subtotal and always
// sum exactly to the event amounts.

func TestSplitPaymentByStore_SingleStoreGetsEverything(t *testing.T) {
	items := []models.OrderItem{
		{StoreId: 3, TotalAmount: decimal.NewFromInt(40)},
		{StoreId: 3, TotalAmount: decimal.NewFromInt(60)},
	}
	event := &PaymentEvent{
		AmountPaid:   decimal.NewFromInt(100),
		PlatformFee:  decimal.NewFromInt(10),
		ProcessorFee: decimal.NewFromFloat(3.2),
	}

	shares := splitPaymentByStore(items, event)
	if len(shares) != 1 {
		t.Fatalf("expected 1 share, got %d", len(shares))
	}
	s := shares[0]
	if s.StoreId != 3 || !s.Payment.Equal(event.AmountPaid) ||
		!s.PlatformFee.Equal(event.PlatformFee) || !s.ProcessorFee.Equal(event.ProcessorFee) {
		t.Fatalf("single-store share must carry the whole event: %+v", s)
	}
}

func TestSplitPaymentByStore_ProportionalSplit(t *testing.T) {
	// store 1 has 75% of the subtotal, store 2 has 25%
	items := []models.OrderItem{
		{StoreId: 1, TotalAmount: decimal.NewFromInt(75)},
		{StoreId: 2, TotalAmount: decimal.NewFromInt(25)},
	}
	event := &PaymentEvent{
		AmountPaid:  decimal.NewFromInt(100),
		PlatformFee: decimal.NewFromInt(8),
	}

	shares := splitPaymentByStore(items, event)
	if len(shares) != 2 {
		t.Fatalf("expected 2 shares, got %d", len(shares))
	}
	if shares[0].StoreId != 1 || shares[1].StoreId != 2 {
		t.Fatalf("shares must come back in store id order: %+v", shares)
	}
	if !shares[0].Payment.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("store 1 payment = %s, want 75", shares[0].Payment)
	}
	if !shares[1].Payment.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("store 2 payment = %s, want 25", shares[1].Payment)
	}
	if !shares[0].PlatformFee.Equal(decimal.NewFromInt(6)) || !shares[1].PlatformFee.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("platform fee split wrong: %s / %s", shares[0].PlatformFee, shares[1].PlatformFee)
	}
}

func TestSplitPaymentByStore_RoundingAlwaysSumsExactly(t *testing.T) {
	// 3 in 1/3 each forces repeating decimals
	items := []models.OrderItem{
		{StoreId: 1, TotalAmount: decimal.NewFromInt(1)},
		{StoreId: 2, TotalAmount: decimal.NewFromInt(1)},
		{StoreId: 7, TotalAmount: decimal.NewFromInt(1)},
	}
	event := &PaymentEvent{
		AmountPaid:   decimal.NewFromInt(100),
		PlatformFee:  decimal.NewFromFloat(9.99),
		ProcessorFee: decimal.NewFromFloat(0.01),
	}

	shares := splitPaymentByStore(items, event)
	if len(shares) != 3 {
		t.Fatalf("expected 3 shares, got %d", len(shares))
	}

	var payment, platform, processor decimal.Decimal
	for _, s := range shares {
		payment = payment.Add(s.Payment)
		platform = platform.Add(s.PlatformFee)
		processor = processor.Add(s.ProcessorFee)
	}
	if !payment.Equal(event.AmountPaid) {
		t.Fatalf("payment shares sum to %s, want %s", payment, event.AmountPaid)
	}
	if !platform.Equal(event.PlatformFee) {
		t.Fatalf("platform fee shares sum to %s, want %s", platform, event.PlatformFee)
	}
	if !processor.Equal(event.ProcessorFee) {
		t.Fatalf("processor fee shares sum to %s, want %s", processor, event.ProcessorFee)
	}
}

func TestSplitPaymentByStore_ZeroSubtotalSplitsEvenly(t *testing.T) {
	// free items with a shipping-only total; there is no subtotal to weight by
	items := []models.OrderItem{
		{StoreId: 1, TotalAmount: decimal.Zero},
		{StoreId: 2, TotalAmount: decimal.Zero},
	}
	event := &PaymentEvent{
		AmountPaid:  decimal.NewFromInt(12),
		PlatformFee: decimal.NewFromInt(2),
	}

	shares := splitPaymentByStore(items, event)
	if len(shares) != 2 {
		t.Fatalf("expected 2 shares, got %d", len(shares))
	}
	if !shares[0].Payment.Equal(decimal.NewFromInt(6)) || !shares[1].Payment.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("zero subtotal must split evenly: %s / %s", shares[0].Payment, shares[1].Payment)
	}
	if !shares[0].PlatformFee.Add(shares[1].PlatformFee).Equal(event.PlatformFee) {
		t.Fatalf("platform fee shares must sum to the event fee")
	}
}

func TestSplitPaymentByStore_MultiItemSameStoreAggregates(t *testing.T) {
	items := []models.OrderItem{
		{StoreId: 5, TotalAmount: decimal.NewFromInt(30)},
		{StoreId: 5, TotalAmount: decimal.NewFromInt(20)},
		{StoreId: 9, TotalAmount: decimal.NewFromInt(50)},
	}
	event := &PaymentEvent{AmountPaid: decimal.NewFromInt(200)}

	shares := splitPaymentByStore(items, event)
	if len(shares) != 2 {
		t.Fatalf("expected 2 shares, got %d", len(shares))
	}
	if !shares[0].Payment.Equal(decimal.NewFromInt(100)) || !shares[1].Payment.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("50/50 subtotal must split the payment evenly: %s / %s", shares[0].Payment, shares[1].Payment)
	}
}
