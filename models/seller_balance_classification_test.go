package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSignedBalanceAmount(t *testing.T) {
	hundred := decimal.NewFromInt(100)

	cases := []struct {
		txnType BalanceTransactionType
		amount  decimal.Decimal
		want    decimal.Decimal
	}{
		{BalanceTransactionTypeOrderPayment, hundred, hundred},
		{BalanceTransactionTypePlatformFee, hundred, hundred.Neg()},
		{BalanceTransactionTypeStripeFee, hundred, hundred.Neg()},
		{BalanceTransactionTypeShippingLabel, hundred, hundred.Neg()},
		{BalanceTransactionTypeRefund, hundred, hundred.Neg()},
		{BalanceTransactionTypeDispute, hundred, hundred.Neg()},
		{BalanceTransactionTypePayout, hundred, hundred.Neg()},
		// adjustment keeps the caller's sign, both ways
		{BalanceTransactionTypeAdjustment, hundred, hundred},
		{BalanceTransactionTypeAdjustment, hundred.Neg(), hundred.Neg()},
	}

	for _, tc := range cases {
		if got := signedBalanceAmount(tc.txnType, tc.amount); !got.Equal(tc.want) {
			t.Fatalf("signedBalanceAmount(%s, %s) = %s, want %s", tc.txnType, tc.amount, got, tc.want)
		}
	}
}

func TestValidateBalanceAmount(t *testing.T) {
	ten := decimal.NewFromInt(10)

	valid := []struct {
		txnType BalanceTransactionType
		amount  decimal.Decimal
	}{
		{BalanceTransactionTypeOrderPayment, ten},
		{BalanceTransactionTypePayout, ten},
		{BalanceTransactionTypeAdjustment, ten},
		{BalanceTransactionTypeAdjustment, ten.Neg()},
	}
	for _, tc := range valid {
		if err := validateBalanceAmount(tc.txnType, tc.amount); err != nil {
			t.Fatalf("validateBalanceAmount(%s, %s): %v", tc.txnType, tc.amount, err)
		}
	}

	invalid := []struct {
		txnType BalanceTransactionType
		amount  decimal.Decimal
	}{
		{BalanceTransactionTypeOrderPayment, decimal.Zero},
		{BalanceTransactionTypeOrderPayment, ten.Neg()},
		{BalanceTransactionTypePlatformFee, decimal.Zero},
		// a zero adjustment is a no-op ledger row; reject it too
		{BalanceTransactionTypeAdjustment, decimal.Zero},
	}
	for _, tc := range invalid {
		if err := validateBalanceAmount(tc.txnType, tc.amount); err == nil {
			t.Fatalf("validateBalanceAmount(%s, %s) must be rejected", tc.txnType, tc.amount)
		}
	}
}

func TestInitialTransactionStatus(t *testing.T) {
	cases := []struct {
		txnType BalanceTransactionType
		want    BalanceTransactionStatus
	}{
		{BalanceTransactionTypeOrderPayment, BalanceTransactionStatusPending},
		{BalanceTransactionTypePayout, BalanceTransactionStatusPaid},
		{BalanceTransactionTypePlatformFee, BalanceTransactionStatusAvailable},
		{BalanceTransactionTypeRefund, BalanceTransactionStatusAvailable},
		{BalanceTransactionTypeAdjustment, BalanceTransactionStatusAvailable},
	}
	for _, tc := range cases {
		if got := initialTransactionStatus(tc.txnType); got != tc.want {
			t.Fatalf("initialTransactionStatus(%s) = %s, want %s", tc.txnType, got, tc.want)
		}
	}
}

func TestLedgerBalances_ReplaySplitsBuckets(t *testing.T) {
	transactions := []SellerBalanceTransaction{
		// matured payment
		{Status: BalanceTransactionStatusAvailable, SignedAmount: decimal.NewFromInt(500)},
		// fees come out of available immediately
		{Status: BalanceTransactionStatusAvailable, SignedAmount: decimal.NewFromInt(-50)},
		// fresh payment still in its hold window
		{Status: BalanceTransactionStatusPending, SignedAmount: decimal.NewFromInt(200)},
		// payout already paid out; counts against available
		{Status: BalanceTransactionStatusPaid, SignedAmount: decimal.NewFromInt(-100)},
	}

	available, pending := ledgerBalances(transactions)
	if !available.Equal(decimal.NewFromInt(350)) {
		t.Fatalf("available = %s, want 350", available)
	}
	if !pending.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("pending = %s, want 200", pending)
	}
}

func TestBalanceDrift_HasDrift(t *testing.T) {
	clean := BalanceDrift{}
	if clean.HasDrift() {
		t.Fatal("zero drift must report clean")
	}
	off := BalanceDrift{PendingDrift: decimal.NewFromInt(1)}
	if !off.HasDrift() {
		t.Fatal("nonzero pending drift must report drift")
	}
}
