// Package store holds the gorm repositories for users, restaurants and reviews.
// Each repository can be rebound to a transaction with WithTx.
package store

import (
	"errors"
	"fmt"
	"strings"

	"restaurant-review-api/apperr"

	"gorm.io/gorm"
)

// IsDuplicate reports whether err is a unique constraint violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func lookupErr(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity + " not found")
	}
	return fmt.Errorf("find %s: %w", strings.ToLower(entity), err)
}
