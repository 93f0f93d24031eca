package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mmdatafocus/marketplace_backend/config"
	"github.com/mmdatafocus/marketplace_backend/models"
	"github.com/mmdatafocus/marketplace_backend/utils"
)

type levelKey struct {
	ItemId     int
	LocationId int
}

// Audits inventory level snapshots against the adjustment log. Read-only.
//
// committed and shipped start at zero and move only through adjustments, so
// the log sum must equal the counter exactly. available and on_hand also
// carry opening stock seeded outside the log; for those the implied opening
// (counter minus log sum) must simply be non-negative.
func main() {
	verbose := flag.Bool("verbose", false, "Print every audited counter, not just drift")
	flag.Parse()

	_ = godotenv.Load()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := context.Background()

	sums, err := models.SumAdjustmentsByCounter(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sum adjustments: %v\n", err)
		os.Exit(1)
	}
	sumByKey := make(map[levelKey]map[string]int)
	for _, s := range sums {
		key := levelKey{ItemId: s.InventoryItemId, LocationId: s.LocationId}
		if sumByKey[key] == nil {
			sumByKey[key] = make(map[string]int)
		}
		sumByKey[key][s.Counter] = s.Total
	}

	levels, err := utils.FetchAllModels[models.InventoryLevel](ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load inventory levels: %v\n", err)
		os.Exit(1)
	}

	drifted := 0
	for _, level := range levels {
		key := levelKey{ItemId: level.InventoryItemId, LocationId: level.LocationId}
		logSums := sumByKey[key]

		exact := map[string]int{
			"committed": level.Committed,
			"shipped":   level.Shipped,
		}
		for counter, snapshot := range exact {
			ledger := logSums[counter]
			if snapshot != ledger {
				drifted++
				fmt.Printf("DRIFT item=%d location=%d counter=%s snapshot=%d ledger=%d\n",
					level.InventoryItemId, level.LocationId, counter, snapshot, ledger)
			} else if *verbose {
				fmt.Printf("ok item=%d location=%d counter=%s value=%d\n",
					level.InventoryItemId, level.LocationId, counter, snapshot)
			}
		}

		withOpening := map[string]int{
			"available": level.Available,
			"on_hand":   level.OnHand,
		}
		for counter, snapshot := range withOpening {
			opening := snapshot - logSums[counter]
			if opening < 0 {
				drifted++
				fmt.Printf("DRIFT item=%d location=%d counter=%s snapshot=%d ledger=%d implied_opening=%d\n",
					level.InventoryItemId, level.LocationId, counter, snapshot, logSums[counter], opening)
			} else if *verbose {
				fmt.Printf("ok item=%d location=%d counter=%s value=%d opening=%d\n",
					level.InventoryItemId, level.LocationId, counter, snapshot, opening)
			}
		}

		delete(sumByKey, key)
	}

	// Adjustment rows with no snapshot row at all.
	for key, logSums := range sumByKey {
		drifted++
		fmt.Printf("DRIFT item=%d location=%d has adjustments but no inventory level row (%v)\n",
			key.ItemId, key.LocationId, logSums)
	}

	if drifted > 0 {
		fmt.Printf("ledger audit found %d drifted counters\n", drifted)
		os.Exit(2)
	}
	fmt.Println("ledger audit clean")
}
