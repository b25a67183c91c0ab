package store

import (
	"context"
	"fmt"

	"restaurant-review-api/apperr"
	"restaurant-review-api/models"

	"gorm.io/gorm"
)

type Reviews struct {
	db *gorm.DB
}

func NewReviews(db *gorm.DB) *Reviews {
	return &Reviews{db: db}
}

func (s *Reviews) WithTx(tx *gorm.DB) *Reviews {
	return &Reviews{db: tx}
}

// ReviewFilter narrows List. Zero fields are ignored.
type ReviewFilter struct {
	UserID       uint
	RestaurantID uint
}

const DuplicateReviewMessage = "You have already reviewed this restaurant"

func (s *Reviews) Create(ctx context.Context, r *models.Review) error {
	if err := s.db.WithContext(ctx).Omit("User", "Restaurant").Create(r).Error; err != nil {
		if IsDuplicate(err) {
			return apperr.Wrap(apperr.ErrConflict, DuplicateReviewMessage, err)
		}
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// FindByID loads a review with its author and restaurant.
func (s *Reviews) FindByID(ctx context.Context, id uint) (*models.Review, error) {
	var r models.Review
	err := s.db.WithContext(ctx).Preload("User").Preload("Restaurant").First(&r, id).Error
	if err != nil {
		return nil, lookupErr(err, "Review")
	}
	return &r, nil
}

func (s *Reviews) Exists(ctx context.Context, userID, restaurantID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Review{}).
		Where("user_id = ? AND restaurant_id = ?", userID, restaurantID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count reviews: %w", err)
	}
	return count > 0, nil
}

// UpdateContent changes rating and comment and refreshes updated_at.
func (s *Reviews) UpdateContent(ctx context.Context, id uint, rating float64, comment string) error {
	res := s.db.WithContext(ctx).Model(&models.Review{ID: id}).
		Updates(map[string]any{"rating": rating, "comment": comment})
	if res.Error != nil {
		return fmt.Errorf("update review %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Review not found")
	}
	return nil
}

func (s *Reviews) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Review{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete review %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Review not found")
	}
	return nil
}

func (s *Reviews) DeleteByRestaurant(ctx context.Context, restaurantID uint) (int64, error) {
	res := s.db.WithContext(ctx).Where("restaurant_id = ?", restaurantID).Delete(&models.Review{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete reviews of restaurant %d: %w", restaurantID, res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteByUser removes the user's reviews and returns the restaurants they touched.
func (s *Reviews) DeleteByUser(ctx context.Context, userID uint) ([]uint, error) {
	var restaurantIDs []uint
	err := s.db.WithContext(ctx).Model(&models.Review{}).
		Where("user_id = ?", userID).
		Distinct().
		Order("restaurant_id").
		Pluck("restaurant_id", &restaurantIDs).Error
	if err != nil {
		return nil, fmt.Errorf("find reviews of user %d: %w", userID, err)
	}
	if len(restaurantIDs) == 0 {
		return nil, nil
	}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Review{}).Error; err != nil {
		return nil, fmt.Errorf("delete reviews of user %d: %w", userID, err)
	}
	return restaurantIDs, nil
}

// List returns reviews newest first with author and restaurant preloaded.
func (s *Reviews) List(ctx context.Context, f ReviewFilter) ([]models.Review, error) {
	q := s.db.WithContext(ctx).Preload("User").Preload("Restaurant").Order("created_at DESC, id DESC")
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.RestaurantID != 0 {
		q = q.Where("restaurant_id = ?", f.RestaurantID)
	}
	var out []models.Review
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return out, nil
}

// Ratings returns the current ratings of a restaurant's reviews.
func (s *Reviews) Ratings(ctx context.Context, restaurantID uint) ([]float64, error) {
	var ratings []float64
	err := s.db.WithContext(ctx).Model(&models.Review{}).
		Where("restaurant_id = ?", restaurantID).
		Pluck("rating", &ratings).Error
	if err != nil {
		return nil, fmt.Errorf("load ratings of %d: %w", restaurantID, err)
	}
	return ratings, nil
}
