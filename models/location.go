package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/marketplace_backend/config"
	"github.com/mmdatafocus/marketplace_backend/utils"
	"gorm.io/gorm"
)

type InventoryLocation struct {
	ID        int       `gorm:"primary_key" json:"id"`
	StoreId   int       `gorm:"index;not null" json:"store_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Address   string    `gorm:"size:255" json:"address"`
	IsActive  *bool     `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ResolveDefaultLocation picks the location order lines reserve against when
// the caller does not name one. Preference order: a location already holding
// stock for the store, then the first active location.
func ResolveDefaultLocation(tx *gorm.DB, storeId int) (*InventoryLocation, error) {
	var location InventoryLocation

	err := tx.
		Joins("JOIN inventory_levels ON inventory_levels.location_id = inventory_locations.id").
		Where("inventory_locations.store_id = ?", storeId).
		Where("inventory_locations.is_active = ?", true).
		Where("inventory_levels.on_hand > 0").
		Order("inventory_locations.id").
		First(&location).Error
	if err == nil {
		return &location, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = tx.
		Where("store_id = ?", storeId).
		Where("is_active = ?", true).
		Order("id").
		First(&location).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("no inventory location configured for store")
		}
		return nil, err
	}

	return &location, nil
}

func GetInventoryLocations(ctx context.Context, storeId int) ([]*InventoryLocation, error) {
	var locations []*InventoryLocation

	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("store_id = ?", storeId).
		Order("id").
		Find(&locations).Error; err != nil {
		return nil, err
	}
	return locations, nil
}

func CreateInventoryLocation(ctx context.Context, input *InventoryLocation) (*InventoryLocation, error) {
	if err := utils.ValidateResourceId[Store](ctx, input.StoreId); err != nil {
		return nil, errors.New("store not found")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(input).Error; err != nil {
		return nil, err
	}
	return input, nil
}
