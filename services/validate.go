package services

import (
	"math"
	"strings"
	"unicode/utf8"

	"restaurant-review-api/apperr"

	"github.com/go-playground/validator/v10"
)

const (
	MinRating        = 0.0
	MaxRating        = 5.0
	MaxCommentLength = 1000
)

var validate = validator.New()

// ValidRating accepts 0 through 5 in half-point steps.
func ValidRating(r float64) bool {
	if math.IsNaN(r) || r < MinRating || r > MaxRating {
		return false
	}
	return r*2 == math.Trunc(r*2)
}

func validateReview(rating float64, comment string) (string, error) {
	if !ValidRating(rating) {
		return "", apperr.Validation("Rating must be between 0 and 5 in steps of 0.5")
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return "", apperr.Validation("Comment is required")
	}
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return "", apperr.Validation("Comment must be at most 1000 characters")
	}
	return comment, nil
}

func validEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}
