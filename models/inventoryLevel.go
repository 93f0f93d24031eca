package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryLevel is the per (item, location) counter snapshot. Rows are
// created lazily and never deleted; counters only move through atomic
// relative updates in AdjustInventory.
type InventoryLevel struct {
	ID              int       `gorm:"primary_key" json:"id"`
	InventoryItemId int       `gorm:"index;not null;uniqueIndex:idx_item_location" json:"inventory_item_id"`
	LocationId      int       `gorm:"index;not null;uniqueIndex:idx_item_location" json:"location_id"`
	Available       int       `gorm:"default:0" json:"available"`
	Committed       int       `gorm:"default:0" json:"committed"`
	OnHand          int       `gorm:"default:0" json:"on_hand"`
	Incoming        int       `gorm:"default:0" json:"incoming"`
	Shipped         int       `gorm:"default:0" json:"shipped"`
	Damaged         int       `gorm:"default:0" json:"damaged"`
	Returned        int       `gorm:"default:0" json:"returned"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func FirstOrCreateInventoryLevel(tx *gorm.DB, inventoryItemId int, locationId int) (*InventoryLevel, error) {
	level := InventoryLevel{
		InventoryItemId: inventoryItemId,
		LocationId:      locationId,
	}
	// FirstOrCreate will try to find a record matching the conditions, and if it doesn't find one, it will create a new record
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("inventory_item_id = ? AND location_id = ?", inventoryItemId, locationId).
		FirstOrCreate(&level)
	if result.Error != nil {
		tx.Rollback()
		return nil, result.Error
	}
	return &level, nil
}

type counterDelta struct {
	Counter string
	Delta   int
}

// directionDeltas maps a movement direction onto counter deltas.
//
//	reserve: available -qty, committed +qty
//	release: committed -qty, available +qty
//	fulfill: committed -qty, on_hand -qty, shipped +qty
func directionDeltas(direction InventoryDirection, qty int) ([]counterDelta, error) {
	switch direction {
	case InventoryDirectionReserve:
		return []counterDelta{
			{Counter: "available", Delta: -qty},
			{Counter: "committed", Delta: qty},
		}, nil
	case InventoryDirectionRelease:
		return []counterDelta{
			{Counter: "committed", Delta: -qty},
			{Counter: "available", Delta: qty},
		}, nil
	case InventoryDirectionFulfill:
		return []counterDelta{
			{Counter: "committed", Delta: -qty},
			{Counter: "on_hand", Delta: -qty},
			{Counter: "shipped", Delta: qty},
		}, nil
	}
	return nil, errors.New("unknown inventory direction")
}

// AdjustInventory moves the (item, location) counters for one order line and
// appends the matching adjustment rows. reserve is a conditional update: when
// concurrent orders have already consumed the stock, zero rows match and the
// caller gets InsufficientStockError with nothing written.
func AdjustInventory(tx *gorm.DB, inventoryItemId int, locationId int, direction InventoryDirection, qty int,
	reason string, referenceType InventoryReferenceType, referenceId int, createdBy int) error {

	if qty <= 0 {
		return errors.New("adjustment quantity must be positive")
	}

	level, err := FirstOrCreateInventoryLevel(tx, inventoryItemId, locationId)
	if err != nil {
		return err
	}

	deltas, err := directionDeltas(direction, qty)
	if err != nil {
		tx.Rollback()
		return err
	}

	if direction == InventoryDirectionReserve {
		result := tx.Exec(
			"UPDATE inventory_levels SET available = available - ?, committed = committed + ? WHERE id = ? AND available >= ?",
			qty, qty, level.ID, qty)
		if result.Error != nil {
			tx.Rollback()
			return result.Error
		}
		if result.RowsAffected == 0 {
			var item InventoryItem
			tx.First(&item, inventoryItemId)
			tx.Rollback()
			return &InsufficientStockError{Shortfalls: []StockShortfall{{
				InventoryItemId: inventoryItemId,
				Name:            item.Name,
				Available:       level.Available,
				Requested:       qty,
			}}}
		}
	} else {
		for _, delta := range deltas {
			if err := tx.Exec(
				"UPDATE inventory_levels SET "+delta.Counter+" = "+delta.Counter+" + ? WHERE id = ?",
				delta.Delta, level.ID).Error; err != nil {
				tx.Rollback()
				return err
			}
		}
	}

	for _, delta := range deltas {
		adjustment := InventoryAdjustment{
			InventoryItemId: inventoryItemId,
			LocationId:      locationId,
			Counter:         delta.Counter,
			Delta:           delta.Delta,
			Direction:       direction,
			Reason:          reason,
			ReferenceType:   referenceType,
			ReferenceId:     referenceId,
			CreatedBy:       createdBy,
		}
		if err := tx.Create(&adjustment).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	return nil
}
