package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// InventoryItem is the stock-keeping identity behind a listing variant.
// Catalog sync owns these rows; order/fulfillment flows only read them.
type InventoryItem struct {
	ID        int       `gorm:"primary_key" json:"id"`
	StoreId   int       `gorm:"index;not null" json:"store_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Sku       string    `gorm:"size:100;index" json:"sku"`
	Tracked   *bool     `gorm:"default:true" json:"tracked"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type StockRequirement struct {
	InventoryItemId int
	Qty             int
}

type StockShortfall struct {
	InventoryItemId int    `json:"inventory_item_id"`
	Name            string `json:"name"`
	Available       int    `json:"available"`
	Requested       int    `json:"requested"`
}

// InsufficientStockError reports every short line of an order at once so the
// buyer can fix the whole cart in one pass.
type InsufficientStockError struct {
	Shortfalls []StockShortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s: requested %d, available %d", s.Name, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

// CheckStockAvailability compares requirements against live available
// quantities at the location. Untracked items never report short. The caller
// aborts the whole operation on any shortfall.
func CheckStockAvailability(tx *gorm.DB, locationId int, requirements []StockRequirement) ([]StockShortfall, error) {
	merged := make(map[int]int, len(requirements))
	for _, req := range requirements {
		merged[req.InventoryItemId] += req.Qty
	}

	itemIds := make([]int, 0, len(merged))
	for id := range merged {
		itemIds = append(itemIds, id)
	}

	var items []InventoryItem
	if err := tx.Where("id IN ?", itemIds).Find(&items).Error; err != nil {
		return nil, err
	}

	type availableRow struct {
		InventoryItemId int
		Available       int
	}
	var rows []availableRow
	if err := tx.Model(&InventoryLevel{}).
		Select("inventory_item_id, COALESCE(SUM(available), 0) AS available").
		Where("inventory_item_id IN ?", itemIds).
		Where("location_id = ?", locationId).
		Group("inventory_item_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	availableByItem := make(map[int]int, len(rows))
	for _, row := range rows {
		availableByItem[row.InventoryItemId] = row.Available
	}

	shortfalls := make([]StockShortfall, 0)
	for _, item := range items {
		if item.Tracked != nil && !*item.Tracked {
			continue
		}
		requested := merged[item.ID]
		available := availableByItem[item.ID]
		if available < requested {
			shortfalls = append(shortfalls, StockShortfall{
				InventoryItemId: item.ID,
				Name:            item.Name,
				Available:       available,
				Requested:       requested,
			})
		}
	}

	return shortfalls, nil
}

func (i InventoryItem) GetId() int {
	return i.ID
}
