package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/marketplace_backend/config"
	"github.com/mmdatafocus/marketplace_backend/utils"
	"github.com/shopspring/decimal"
)

// Listing and ListingVariant are the seller-facing catalog. Catalog sync owns
// them; the order path only reads prices and inventory item links.
type Listing struct {
	ID        int       `gorm:"primary_key" json:"id"`
	StoreId   int       `gorm:"index;not null" json:"store_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	IsActive  *bool     `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Variants []ListingVariant `gorm:"foreignKey:ListingId" json:"variants,omitempty"`
}

type ListingVariant struct {
	ID              int             `gorm:"primary_key" json:"id"`
	ListingId       int             `gorm:"index;not null" json:"listing_id"`
	InventoryItemId int             `gorm:"index;not null" json:"inventory_item_id"`
	Name            string          `gorm:"size:255;not null" json:"name"`
	Sku             string          `gorm:"size:100;index" json:"sku"`
	Price           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	IsActive        *bool           `gorm:"default:true" json:"is_active"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// filled by SearchOrderVariants, not stored
	AvailableQty int `gorm:"-" json:"available_qty"`
}

func (v ListingVariant) GetId() int {
	return v.ID
}

func (v ListingVariant) GetCursor() string {
	return v.CreatedAt.Format(time.RFC3339Nano)
}

type VariantsEdge Edge[ListingVariant]

type VariantsConnection struct {
	Edges    []*VariantsEdge `json:"edges"`
	PageInfo *PageInfo       `json:"pageInfo"`
}

// SearchOrderVariants is the order-entry picker: LIKE search over variant
// name/SKU and exact id match, scoped to the caller's store unless admin.
// Each hit carries the live available quantity summed across locations.
func SearchOrderVariants(ctx context.Context, keyword *string, limit *int, after *string) (*VariantsConnection, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&ListingVariant{}).
		Where("listing_variants.is_active = ?", true)

	isAdmin, _ := utils.GetIsAdminFromContext(ctx)
	if !isAdmin {
		storeId, ok := utils.GetStoreIdFromContext(ctx)
		if !ok || storeId <= 0 {
			return nil, utils.ErrorUnauthorized
		}
		dbCtx.Joins("JOIN listings ON listings.id = listing_variants.listing_id").
			Where("listings.store_id = ?", storeId)
	}

	if keyword != nil && *keyword != "" {
		dbCtx.Where("listing_variants.name LIKE ? OR listing_variants.sku LIKE ? OR listing_variants.id = ?",
			"%"+*keyword+"%", "%"+*keyword+"%", *keyword)
	}

	pageSize := config.SearchLimit
	if limit != nil && *limit > 0 {
		pageSize = *limit
	}

	edges, pageInfo, err := FetchPageCompositeCursor[ListingVariant](dbCtx, pageSize, after, "listing_variants.created_at", "<")
	if err != nil {
		return nil, err
	}

	itemIds := make([]int, 0, len(edges))
	for _, edge := range edges {
		itemIds = append(itemIds, edge.Node.InventoryItemId)
	}
	if len(itemIds) > 0 {
		type availableRow struct {
			InventoryItemId int
			Available       int
		}
		var rows []availableRow
		if err := db.WithContext(ctx).Model(&InventoryLevel{}).
			Select("inventory_item_id, COALESCE(SUM(available), 0) AS available").
			Where("inventory_item_id IN ?", itemIds).
			Group("inventory_item_id").
			Scan(&rows).Error; err != nil {
			return nil, err
		}
		availableByItem := make(map[int]int, len(rows))
		for _, row := range rows {
			availableByItem[row.InventoryItemId] = row.Available
		}
		for _, edge := range edges {
			edge.Node.AvailableQty = availableByItem[edge.Node.InventoryItemId]
		}
	}

	var connection VariantsConnection
	connection.PageInfo = pageInfo
	for _, edge := range edges {
		variantsEdge := VariantsEdge(edge)
		connection.Edges = append(connection.Edges, &variantsEdge)
	}

	return &connection, nil
}
