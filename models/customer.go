package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/marketplace_backend/utils"
	"gorm.io/gorm"
)

type Customer struct {
	ID        int       `gorm:"primary_key" json:"id"`
	UserId    int       `gorm:"index" json:"user_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;index" json:"email"`
	Phone     string    `gorm:"size:30" json:"phone"`
	StoreId   int       `gorm:"index" json:"store_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c Customer) GetId() int {
	return c.ID
}

type CustomerInput struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Phone   string `json:"phone"`
	StoreId int    `json:"store_id"`
}

// callerOwnsEmail reports whether the authenticated caller's email matches the
// order's customer email, and returns the caller's user id when it does. The
// body never carries identity; only the token does.
func callerOwnsEmail(ctx context.Context, email string) (int, bool) {
	callerEmail, ok := utils.GetEmailFromContext(ctx)
	if !ok || callerEmail == "" || email == "" {
		return 0, false
	}
	if !strings.EqualFold(callerEmail, email) {
		return 0, false
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	return userId, true
}

// ResolveCustomer finds the customer an order belongs to, creating one when
// nothing matches. When the caller's token email matches the order email the
// lookup goes by user id, then claims a guest record with that email.
// Otherwise it is a guest checkout and records stay scoped to one storefront:
// the match is (email, store).
func ResolveCustomer(ctx context.Context, tx *gorm.DB, input *CustomerInput) (*Customer, error) {
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid customer email")
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone); err != nil {
			return nil, err
		}
	}

	var customer Customer

	if userId, owns := callerOwnsEmail(ctx, input.Email); owns {
		if userId > 0 {
			err := tx.Where("user_id = ?", userId).First(&customer).Error
			if err == nil {
				return &customer, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}

			// claim the guest record created before the buyer registered
			err = tx.Where("email = ? AND user_id = 0", input.Email).First(&customer).Error
			if err == nil {
				if err := tx.Model(&customer).Update("UserId", userId).Error; err != nil {
					return nil, err
				}
				customer.UserId = userId
				return &customer, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
		}

		customer = Customer{
			UserId:  userId,
			Name:    input.Name,
			Email:   input.Email,
			Phone:   input.Phone,
			StoreId: input.StoreId,
		}
		if err := tx.Create(&customer).Error; err != nil {
			return nil, err
		}
		return &customer, nil
	}

	if input.Email != "" && input.StoreId > 0 {
		err := tx.Where("email = ? AND store_id = ?", input.Email, input.StoreId).First(&customer).Error
		if err == nil {
			return &customer, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	customer = Customer{
		Name:    input.Name,
		Email:   input.Email,
		Phone:   input.Phone,
		StoreId: input.StoreId,
	}
	if err := tx.Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}
