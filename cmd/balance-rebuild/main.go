package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mmdatafocus/marketplace_backend/config"
	"github.com/mmdatafocus/marketplace_backend/models"
	"github.com/mmdatafocus/marketplace_backend/workflow"
	"gorm.io/gorm"
)

// Rebuilds seller balance snapshots from the transaction ledger. The ledger
// is the source of truth; this tool is the manual repair step after a drift
// report from the reconciliation loop.
func main() {
	storeID := flag.Int("store-id", 0, "Optional: rebuild a single store")
	dryRun := flag.Bool("dry-run", false, "Report drift without rewriting snapshots")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing stores and continue")
	flag.Parse()

	_ = godotenv.Load()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := context.Background()

	var storeIds []int
	if *storeID > 0 {
		storeIds = []int{*storeID}
	} else {
		if err := db.Model(&models.Store{}).Order("id").Pluck("id", &storeIds).Error; err != nil {
			fmt.Fprintf(os.Stderr, "discover stores: %v\n", err)
			os.Exit(1)
		}
	}

	now := time.Now()
	rebuilt := 0
	for _, storeId := range storeIds {
		drift, err := models.ReconcileSellerBalance(ctx, storeId)
		if err != nil {
			if *continueOnError {
				fmt.Fprintf(os.Stderr, "reconcile store %d failed (skipping): %v\n", storeId, err)
				continue
			}
			fmt.Fprintf(os.Stderr, "reconcile store %d failed: %v\n", storeId, err)
			os.Exit(1)
		}
		if !drift.HasDrift() {
			continue
		}

		fmt.Printf("store=%d drift: available snapshot=%s ledger=%s, pending snapshot=%s ledger=%s\n",
			storeId,
			drift.SnapshotAvailable.String(), drift.LedgerAvailable.String(),
			drift.SnapshotPending.String(), drift.LedgerPending.String())

		if *dryRun {
			continue
		}

		if err := db.Transaction(func(tx *gorm.DB) error {
			if err := workflow.AcquireStorePostingLock(tx, storeId); err != nil {
				return err
			}
			defer workflow.ReleaseStorePostingLock(tx, storeId)

			// Mature due pending rows first so the rebuilt snapshot
			// reflects them in the right bucket.
			if _, err := workflow.ReleasePendingForStore(tx, storeId, now); err != nil {
				return err
			}
			_, err := models.RebuildSellerBalance(tx, storeId)
			return err
		}); err != nil {
			if *continueOnError {
				fmt.Fprintf(os.Stderr, "rebuild store %d failed (skipping): %v\n", storeId, err)
				continue
			}
			fmt.Fprintf(os.Stderr, "rebuild store %d failed: %v\n", storeId, err)
			os.Exit(1)
		}
		rebuilt++
		fmt.Printf("store=%d snapshot rebuilt from ledger\n", storeId)
	}

	fmt.Printf("balance rebuild complete (%d stores rewritten)\n", rebuilt)
}
