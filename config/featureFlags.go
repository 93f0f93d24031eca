package config

import (
	"os"
	"strings"
)

// DisableNotificationDispatch turns off the outbox->PubSub dispatcher.
// Outbox rows are still written inside the mutating transactions, so nothing is lost;
// useful for local development and the integration test harness.
//
// Set via env:
// - DISABLE_NOTIFICATION_DISPATCH=true
func DisableNotificationDispatch() bool {
	return boolFromEnv("DISABLE_NOTIFICATION_DISPATCH")
}

// ReconcileBalancesOnWrite re-runs the ledger/snapshot reconciliation check after every
// balance transaction and fails the transaction on drift. Expensive; intended for
// staging and the test harness, not production traffic.
//
// Set via env:
// - RECONCILE_BALANCES_ON_WRITE=true
func ReconcileBalancesOnWrite() bool {
	return boolFromEnv("RECONCILE_BALANCES_ON_WRITE")
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
