package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/marketplace_backend/config"
	"gorm.io/gorm"
)

// InventoryAdjustment is the append-only movement log. One row per counter
// touched by a movement; the snapshot is never derived from this log, the log
// only proves the snapshot.
type InventoryAdjustment struct {
	ID              int                    `gorm:"primary_key" json:"id"`
	InventoryItemId int                    `gorm:"index;not null" json:"inventory_item_id"`
	LocationId      int                    `gorm:"index;not null" json:"location_id"`
	Counter         string                 `gorm:"size:20;not null" json:"counter"`
	Delta           int                    `gorm:"not null" json:"delta"`
	Direction       InventoryDirection     `gorm:"type:enum('reserve','release','fulfill');not null" json:"direction"`
	Reason          string                 `gorm:"size:255" json:"reason"`
	ReferenceType   InventoryReferenceType `gorm:"type:enum('OD','FF','MN')" json:"reference_type"`
	ReferenceId     int                    `gorm:"index" json:"reference_id"`
	CreatedBy       int                    `json:"created_by"`
	CreatedAt       time.Time              `gorm:"autoCreateTime" json:"created_at"`
}

func (InventoryAdjustment) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("inventory adjustments are append-only")
}

func (InventoryAdjustment) BeforeDelete(tx *gorm.DB) error {
	return errors.New("inventory adjustments are append-only")
}

type AdjustmentCounterSum struct {
	InventoryItemId int    `json:"inventory_item_id"`
	LocationId      int    `json:"location_id"`
	Counter         string `json:"counter"`
	Total           int    `json:"total"`
}

// SumAdjustmentsByCounter aggregates the log per (item, location, counter)
// for audit against the InventoryLevel snapshot.
func SumAdjustmentsByCounter(ctx context.Context) ([]AdjustmentCounterSum, error) {
	var sums []AdjustmentCounterSum

	db := config.GetDB()
	if err := db.WithContext(ctx).
		Model(&InventoryAdjustment{}).
		Select("inventory_item_id, location_id, counter, COALESCE(SUM(delta), 0) AS total").
		Group("inventory_item_id, location_id, counter").
		Scan(&sums).Error; err != nil {
		return nil, err
	}
	return sums, nil
}

func GetInventoryAdjustments(ctx context.Context, inventoryItemId int, locationId int) ([]*InventoryAdjustment, error) {
	var adjustments []*InventoryAdjustment

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("inventory_item_id = ?", inventoryItemId)
	if locationId > 0 {
		dbCtx = dbCtx.Where("location_id = ?", locationId)
	}
	if err := dbCtx.Order("id").Find(&adjustments).Error; err != nil {
		return nil, err
	}
	return adjustments, nil
}
