package services

import (
	"context"

	"restaurant-review-api/apperr"
	"restaurant-review-api/metrics"
	"restaurant-review-api/models"
	"restaurant-review-api/store"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReviewService owns review writes. Every mutation recomputes the
// restaurant's rating in the same transaction.
type ReviewService struct {
	db          *gorm.DB
	reviews     *store.Reviews
	restaurants *store.Restaurants
	ratings     *RatingAggregator
	log         logrus.FieldLogger
	metrics     *metrics.Metrics
}

func NewReviewService(db *gorm.DB, ratings *RatingAggregator, log logrus.FieldLogger, m *metrics.Metrics) *ReviewService {
	return &ReviewService{
		db:          db,
		reviews:     store.NewReviews(db),
		restaurants: store.NewRestaurants(db),
		ratings:     ratings,
		log:         log,
		metrics:     m,
	}
}

func (s *ReviewService) ListAll(ctx context.Context) ([]models.ReviewView, error) {
	return s.list(ctx, store.ReviewFilter{})
}

func (s *ReviewService) ListByRestaurant(ctx context.Context, restaurantID uint) ([]models.ReviewView, error) {
	return s.list(ctx, store.ReviewFilter{RestaurantID: restaurantID})
}

func (s *ReviewService) ListByUser(ctx context.Context, userID uint) ([]models.ReviewView, error) {
	return s.list(ctx, store.ReviewFilter{UserID: userID})
}

func (s *ReviewService) list(ctx context.Context, f store.ReviewFilter) ([]models.ReviewView, error) {
	reviews, err := s.reviews.List(ctx, f)
	if err != nil {
		return nil, err
	}
	views := make([]models.ReviewView, len(reviews))
	for i := range reviews {
		views[i] = reviews[i].View()
	}
	return views, nil
}

func (s *ReviewService) Get(ctx context.Context, id uint) (*models.ReviewView, error) {
	r, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v := r.View()
	return &v, nil
}

// Create adds the user's review of a restaurant. A second review of the
// same restaurant by the same user is a conflict.
func (s *ReviewService) Create(ctx context.Context, userID, restaurantID uint, rating float64, comment string) (*models.ReviewView, error) {
	comment, err := validateReview(rating, comment)
	if err != nil {
		return nil, err
	}

	review := models.Review{UserID: userID, RestaurantID: restaurantID, Rating: rating, Comment: comment}
	var mean float64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.restaurants.WithTx(tx).LockForUpdate(ctx, restaurantID); err != nil {
			return err
		}
		reviews := s.reviews.WithTx(tx)
		exists, err := reviews.Exists(ctx, userID, restaurantID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict(store.DuplicateReviewMessage)
		}
		if err := reviews.Create(ctx, &review); err != nil {
			return err
		}
		mean, err = s.ratings.Recompute(ctx, tx, restaurantID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ReviewMutated("create")
	s.log.WithFields(logrus.Fields{
		"review_id":     review.ID,
		"restaurant_id": restaurantID,
		"user_id":       userID,
		"rating":        mean,
	}).Info("review created")
	return s.Get(ctx, review.ID)
}

// Update changes rating and comment. Only the author may edit a review.
func (s *ReviewService) Update(ctx context.Context, reviewID, userID uint, rating float64, comment string) (*models.ReviewView, error) {
	comment, err := validateReview(rating, comment)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reviews := s.reviews.WithTx(tx)
		existing, err := reviews.FindByID(ctx, reviewID)
		if err != nil {
			return err
		}
		if existing.UserID != userID {
			return apperr.Forbidden("You can only edit your own reviews")
		}
		if _, err := s.restaurants.WithTx(tx).LockForUpdate(ctx, existing.RestaurantID); err != nil {
			return err
		}
		if err := reviews.UpdateContent(ctx, reviewID, rating, comment); err != nil {
			return err
		}
		_, err = s.ratings.Recompute(ctx, tx, existing.RestaurantID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ReviewMutated("update")
	s.log.WithFields(logrus.Fields{"review_id": reviewID, "user_id": userID}).Info("review updated")
	return s.Get(ctx, reviewID)
}

// Delete removes a review. The author or any admin may delete it.
func (s *ReviewService) Delete(ctx context.Context, reviewID, requesterID uint, requesterIsAdmin bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reviews := s.reviews.WithTx(tx)
		existing, err := reviews.FindByID(ctx, reviewID)
		if err != nil {
			return err
		}
		if existing.UserID != requesterID && !requesterIsAdmin {
			return apperr.Forbidden("You can only delete your own reviews")
		}
		if _, err := s.restaurants.WithTx(tx).LockForUpdate(ctx, existing.RestaurantID); err != nil {
			return err
		}
		if err := reviews.Delete(ctx, reviewID); err != nil {
			return err
		}
		_, err = s.ratings.Recompute(ctx, tx, existing.RestaurantID)
		return err
	})
	if err != nil {
		return err
	}

	s.metrics.ReviewMutated("delete")
	s.log.WithFields(logrus.Fields{"review_id": reviewID, "requester_id": requesterID}).Info("review deleted")
	return nil
}
