package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mmdatafocus/marketplace_backend/config"
	"github.com/ttacon/libphonenumber"

	"github.com/bsm/redislock"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePhoneNumber accepts E.164 input; numbers without a country prefix
// parse against DEFAULT_PHONE_REGION (US when unset).
func ValidatePhoneNumber(phoneNumber string) error {
	region := os.Getenv("DEFAULT_PHONE_REGION")
	if region == "" {
		region = "US"
	}
	num, err := libphonenumber.Parse(phoneNumber, region)
	if err != nil {
		return fmt.Errorf("invalid phone number: %v", err)
	}
	if !libphonenumber.IsValidNumber(num) {
		return errors.New("invalid phone number")
	}
	return nil // Phone number is valid for the specified country code
}

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewFalse() *bool {
	b := false
	return &b
}

// GenerateTrackingToken returns an opaque, unguessable token for public order
// tracking pages. Stored once per order, reused thereafter.
func GenerateTrackingToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]struct{}, len(slice))
	result := make([]T, 0, len(slice))
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// StoreLock obtains a short redis lock scoped to one store.
// Best-effort only: posting correctness is guaranteed by the MySQL advisory
// lock in workflow, never by Redis.
func StoreLock(ctx context.Context, storeId int, lockType string, moduleName string, functionName string) error {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when Redis lock isn't initialized yet.
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", storeId, errors.New("redis lock is nil"))
		return errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("%s:%d", lockType, storeId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for store", storeId, err)
		return errors.New("could not obtain lock for store")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for store", storeId, err)
		return err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	return nil
}
