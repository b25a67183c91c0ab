package services

import (
	"context"
	"errors"
	"fmt"

	"restaurant-review-api/metrics"
	"restaurant-review-api/store"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RatingAggregator keeps Restaurant.Rating and ReviewCount equal to the
// mean and count of the restaurant's current reviews.
type RatingAggregator struct {
	db          *gorm.DB
	restaurants *store.Restaurants
	reviews     *store.Reviews
	log         logrus.FieldLogger
	metrics     *metrics.Metrics
}

func NewRatingAggregator(db *gorm.DB, log logrus.FieldLogger, m *metrics.Metrics) *RatingAggregator {
	return &RatingAggregator{
		db:          db,
		restaurants: store.NewRestaurants(db),
		reviews:     store.NewReviews(db),
		log:         log,
		metrics:     m,
	}
}

// Mean is the arithmetic mean of ratings, 0 when there are none.
func Mean(ratings []float64) float64 {
	if len(ratings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range ratings {
		sum += r
	}
	return sum / float64(len(ratings))
}

// Recompute must run inside the transaction that changed the reviews.
// The restaurant row stays locked until that transaction ends.
func (a *RatingAggregator) Recompute(ctx context.Context, tx *gorm.DB, restaurantID uint) (float64, error) {
	restaurants := a.restaurants.WithTx(tx)
	if _, err := restaurants.LockForUpdate(ctx, restaurantID); err != nil {
		return 0, err
	}
	ratings, err := a.reviews.WithTx(tx).Ratings(ctx, restaurantID)
	if err != nil {
		return 0, err
	}
	mean := Mean(ratings)
	if err := restaurants.UpdateAggregate(ctx, restaurantID, mean, len(ratings)); err != nil {
		return 0, err
	}
	a.metrics.RatingRecomputed()
	return mean, nil
}

// RecomputeAll reconciles every restaurant, one transaction each. It keeps
// going past failures and returns them joined.
func (a *RatingAggregator) RecomputeAll(ctx context.Context) (int, error) {
	ids, err := a.restaurants.IDs(ctx)
	if err != nil {
		return 0, err
	}

	var errs []error
	done := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, err := a.Recompute(ctx, tx, id)
			return err
		})
		if err != nil {
			a.log.WithError(err).WithField("restaurant_id", id).Error("rating recompute failed")
			errs = append(errs, fmt.Errorf("restaurant %d: %w", id, err))
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}
