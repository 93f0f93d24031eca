package models

import "testing"

// NOTE: These tests are intentionally DB-free. They pin the fold from vendor
// shipping progress to the order-level fulfillment axis; RecomputeFulfillmentStatus
// is just this fold plus persistence.

func TestDeriveFulfillmentStatus(t *testing.T) {
	cases := []struct {
		name     string
		statuses []VendorFulfillmentStatus
		want     FulfillmentStatus
	}{
		{"no vendors", nil, FulfillmentStatusUnfulfilled},
		{"single unfulfilled", []VendorFulfillmentStatus{VendorFulfillmentStatusUnfulfilled}, FulfillmentStatusUnfulfilled},
		{"single fulfilled", []VendorFulfillmentStatus{VendorFulfillmentStatusFulfilled}, FulfillmentStatusFulfilled},
		{"single partial", []VendorFulfillmentStatus{VendorFulfillmentStatusPartial}, FulfillmentStatusPartial},
		{
			"all vendors fulfilled",
			[]VendorFulfillmentStatus{VendorFulfillmentStatusFulfilled, VendorFulfillmentStatusFulfilled},
			FulfillmentStatusFulfilled,
		},
		{
			"one vendor done one waiting",
			[]VendorFulfillmentStatus{VendorFulfillmentStatusFulfilled, VendorFulfillmentStatusUnfulfilled},
			FulfillmentStatusPartial,
		},
		{
			"one vendor partway",
			[]VendorFulfillmentStatus{VendorFulfillmentStatusPartial, VendorFulfillmentStatusUnfulfilled},
			FulfillmentStatusPartial,
		},
		{
			"cancelled vendor taints the order",
			[]VendorFulfillmentStatus{VendorFulfillmentStatusFulfilled, VendorFulfillmentStatusCancelled},
			FulfillmentStatusCancelled,
		},
		{
			"cancelled wins over partial",
			[]VendorFulfillmentStatus{VendorFulfillmentStatusCancelled, VendorFulfillmentStatusPartial},
			FulfillmentStatusCancelled,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := deriveFulfillmentStatus(tc.statuses); got != tc.want {
				t.Fatalf("deriveFulfillmentStatus(%v) = %s, want %s", tc.statuses, got, tc.want)
			}
		})
	}
}

func TestVendorStatusFromItems(t *testing.T) {
	cases := []struct {
		name  string
		items []OrderItem
		want  VendorFulfillmentStatus
	}{
		{"nothing shipped", []OrderItem{{Qty: 3}, {Qty: 1}}, VendorFulfillmentStatusUnfulfilled},
		{"everything shipped", []OrderItem{{Qty: 3, FulfilledQty: 3}, {Qty: 1, FulfilledQty: 1}}, VendorFulfillmentStatusFulfilled},
		{"one line shipped", []OrderItem{{Qty: 3, FulfilledQty: 3}, {Qty: 1}}, VendorFulfillmentStatusPartial},
		{"line partway shipped", []OrderItem{{Qty: 3, FulfilledQty: 1}}, VendorFulfillmentStatusPartial},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := vendorStatusFromItems(tc.items); got != tc.want {
				t.Fatalf("vendorStatusFromItems = %s, want %s", got, tc.want)
			}
		})
	}
}
