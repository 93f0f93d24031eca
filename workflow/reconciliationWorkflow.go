package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/marketplace_backend/config"
	"github.com/mmdatafocus/marketplace_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RunReconciliationLoop periodically matures pending balances and reports
// snapshot/ledger drift. Drift is logged, never auto-repaired; repair is
// cmd/balance-rebuild run by a human.
func RunReconciliationLoop(ctx context.Context, db *gorm.DB, logger *logrus.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			RunReconciliationOnce(ctx, db, logger)
		}
	}
}

func RunReconciliationOnce(ctx context.Context, db *gorm.DB, logger *logrus.Logger) {
	var storeIds []int
	if err := db.WithContext(ctx).Model(&models.Store{}).Pluck("id", &storeIds).Error; err != nil {
		config.LogError(logger, "workflow", "RunReconciliationOnce", "list stores", nil, err)
		return
	}

	now := time.Now()
	for _, storeId := range storeIds {
		if err := releaseStorePending(db, storeId, now); err != nil {
			config.LogError(logger, "workflow", "RunReconciliationOnce", "release pending", storeId, err)
			continue
		}

		drift, err := models.ReconcileSellerBalance(ctx, storeId)
		if err != nil {
			config.LogError(logger, "workflow", "RunReconciliationOnce", "reconcile", storeId, err)
			continue
		}
		if drift.HasDrift() {
			logger.WithFields(logrus.Fields{
				"store_id":           storeId,
				"snapshot_available": drift.SnapshotAvailable.String(),
				"ledger_available":   drift.LedgerAvailable.String(),
				"snapshot_pending":   drift.SnapshotPending.String(),
				"ledger_pending":     drift.LedgerPending.String(),
			}).Error("seller balance drift detected")
		}
	}
}

func releaseStorePending(db *gorm.DB, storeId int, now time.Time) error {
	tx := db.Begin()

	if err := AcquireStorePostingLock(tx, storeId); err != nil {
		tx.Rollback()
		return err
	}
	defer ReleaseStorePostingLock(tx, storeId)

	released, err := ReleasePendingForStore(tx, storeId, now)
	if err != nil {
		return err
	}
	if released == 0 {
		tx.Rollback()
		return nil
	}

	return tx.Commit().Error
}

// ReleasePendingForStore wraps the model-level release so callers outside the
// loop (tests, cmd tools) share one entry point.
func ReleasePendingForStore(tx *gorm.DB, storeId int, now time.Time) (int, error) {
	return models.ReleaseDuePendingTransactions(tx, storeId, now)
}
