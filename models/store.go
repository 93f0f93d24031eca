package models

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/marketplace_backend/config"
	"github.com/mmdatafocus/marketplace_backend/utils"
	"gorm.io/gorm"
)

const DefaultHoldPeriodDays = 7

// Store is one vendor on the marketplace. HoldPeriodDays governs how long
// order_payment credits sit pending before becoming available for payout.
type Store struct {
	ID             int       `gorm:"primary_key" json:"id"`
	PublicId       string    `gorm:"size:36;uniqueIndex;not null" json:"public_id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Email          string    `gorm:"size:255" json:"email"`
	Phone          string    `gorm:"size:30" json:"phone"`
	OwnerUserId    int       `gorm:"index" json:"owner_user_id"`
	Currency       string    `gorm:"size:3;default:USD" json:"currency"`
	HoldPeriodDays int       `gorm:"default:7" json:"hold_period_days"`
	IsActive       *bool     `gorm:"default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Store) BeforeCreate(tx *gorm.DB) error {
	if s.PublicId == "" {
		s.PublicId = uuid.NewString()
	}
	if s.HoldPeriodDays <= 0 {
		s.HoldPeriodDays = DefaultHoldPeriodDays
	}
	return nil
}

func (s Store) GetId() int {
	return s.ID
}

func CreateStore(ctx context.Context, input *Store) (*Store, error) {
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone); err != nil {
			return nil, err
		}
	}
	if err := utils.ValidateUnique[Store](ctx, "name", input.Name, 0); err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(input).Error; err != nil {
		return nil, err
	}
	return input, nil
}

// GetStoreHoldPeriodDays reads the store's hold period with a short Redis
// cache in front. The value is only a template for new ledger rows; rows
// freeze their availableAt at creation time, so a slightly stale read is
// harmless.
func GetStoreHoldPeriodDays(tx *gorm.DB, storeId int) (int, error) {
	cacheKey := "store:hold_period:" + strconv.Itoa(storeId)

	var cached int
	if found, err := config.GetRedisObject(cacheKey, &cached); err == nil && found && cached > 0 {
		return cached, nil
	}

	var store Store
	if err := tx.Select("hold_period_days").First(&store, storeId).Error; err != nil {
		return 0, err
	}
	days := store.HoldPeriodDays
	if days <= 0 {
		days = DefaultHoldPeriodDays
	}

	config.SetRedisObject(cacheKey, days, 5*time.Minute)
	return days, nil
}
