package models

import (
	"log"

	"github.com/mmdatafocus/marketplace_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Store{}, &InventoryLocation{},
		&Listing{}, &ListingVariant{}, &InventoryItem{},
		&InventoryLevel{}, &InventoryAdjustment{},
		&Customer{},
		&Order{}, &OrderItem{},
		&Fulfillment{}, &FulfillmentItem{},
		&SellerBalance{}, &SellerBalanceTransaction{},
		&NotificationOutbox{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
