package services

import (
	"context"
	"mime/multipart"
	"strings"

	"restaurant-review-api/apperr"
	"restaurant-review-api/models"
	"restaurant-review-api/storage"
	"restaurant-review-api/store"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RestaurantInput is the full set of attributes for a new restaurant.
type RestaurantInput struct {
	Name         string
	Description  string
	Cuisine      string
	Price        models.PriceTier
	Address      string
	Phone        string
	Email        *string
	OpeningHours *string
	Latitude     *float64
	Longitude    *float64
	IsFeatured   bool
}

// RestaurantPatch holds a partial update; nil fields are left alone.
// An empty Email or OpeningHours clears the value.
type RestaurantPatch struct {
	Name         *string
	Description  *string
	Cuisine      *string
	Price        *models.PriceTier
	Address      *string
	Phone        *string
	Email        *string
	OpeningHours *string
	Latitude     *float64
	Longitude    *float64
	IsFeatured   *bool
}

type RestaurantService struct {
	db                 *gorm.DB
	restaurants        *store.Restaurants
	reviews            *store.Reviews
	images             storage.ImageStore
	requireCoordinates bool
	log                logrus.FieldLogger
}

func NewRestaurantService(db *gorm.DB, images storage.ImageStore, requireCoordinates bool, log logrus.FieldLogger) *RestaurantService {
	return &RestaurantService{
		db:                 db,
		restaurants:        store.NewRestaurants(db),
		reviews:            store.NewReviews(db),
		images:             images,
		requireCoordinates: requireCoordinates,
		log:                log,
	}
}

func (s *RestaurantService) List(ctx context.Context, featuredOnly bool) ([]models.Restaurant, error) {
	return s.restaurants.List(ctx, featuredOnly)
}

func (s *RestaurantService) Get(ctx context.Context, id uint) (*models.Restaurant, error) {
	return s.restaurants.FindByID(ctx, id)
}

func (s *RestaurantService) Create(ctx context.Context, in RestaurantInput, image *multipart.FileHeader) (*models.Restaurant, error) {
	r := models.Restaurant{
		Name:         strings.TrimSpace(in.Name),
		Description:  strings.TrimSpace(in.Description),
		Cuisine:      strings.TrimSpace(in.Cuisine),
		Price:        in.Price,
		Address:      strings.TrimSpace(in.Address),
		Phone:        strings.TrimSpace(in.Phone),
		Email:        optionalText(in.Email),
		OpeningHours: optionalText(in.OpeningHours),
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		IsFeatured:   in.IsFeatured,
	}
	if err := s.validate(&r); err != nil {
		return nil, err
	}
	if s.requireCoordinates && !r.HasCoordinates() {
		return nil, apperr.Validation("Latitude and longitude are required")
	}

	if image != nil {
		ref, err := s.images.Save(ctx, storage.FolderRestaurants, image)
		if err != nil {
			return nil, err
		}
		r.ImageURL = ref
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		restaurants := s.restaurants.WithTx(tx)
		if err := restaurants.Create(ctx, &r); err != nil {
			return err
		}
		if r.IsFeatured {
			return restaurants.ClearFeaturedExcept(ctx, r.ID)
		}
		return nil
	})
	if err != nil {
		s.discardImage(ctx, r.ImageURL)
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"restaurant_id": r.ID, "name": r.Name}).Info("restaurant created")
	return &r, nil
}

// Update applies patch and an optional replacement image. The previous
// image is removed once the new one is committed.
func (s *RestaurantService) Update(ctx context.Context, id uint, patch RestaurantPatch, image *multipart.FileHeader) (*models.Restaurant, error) {
	current, err := s.restaurants.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *current
	changes := map[string]any{}
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
		changes["name"] = next.Name
	}
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
		changes["description"] = next.Description
	}
	if patch.Cuisine != nil {
		next.Cuisine = strings.TrimSpace(*patch.Cuisine)
		changes["cuisine"] = next.Cuisine
	}
	if patch.Price != nil {
		next.Price = *patch.Price
		changes["price"] = next.Price
	}
	if patch.Address != nil {
		next.Address = strings.TrimSpace(*patch.Address)
		changes["address"] = next.Address
	}
	if patch.Phone != nil {
		next.Phone = strings.TrimSpace(*patch.Phone)
		changes["phone"] = next.Phone
	}
	if patch.Email != nil {
		next.Email = optionalText(patch.Email)
		changes["email"] = next.Email
	}
	if patch.OpeningHours != nil {
		next.OpeningHours = optionalText(patch.OpeningHours)
		changes["opening_hours"] = next.OpeningHours
	}
	if patch.Latitude != nil {
		next.Latitude = patch.Latitude
		changes["latitude"] = *patch.Latitude
	}
	if patch.Longitude != nil {
		next.Longitude = patch.Longitude
		changes["longitude"] = *patch.Longitude
	}
	if err := s.validate(&next); err != nil {
		return nil, err
	}

	var newImage string
	if image != nil {
		newImage, err = s.images.Save(ctx, storage.FolderRestaurants, image)
		if err != nil {
			return nil, err
		}
		changes["image_url"] = newImage
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		restaurants := s.restaurants.WithTx(tx)
		if err := restaurants.Updates(ctx, id, changes); err != nil {
			return err
		}
		if patch.IsFeatured != nil {
			return setFeatured(ctx, restaurants, id, *patch.IsFeatured)
		}
		return nil
	})
	if err != nil {
		s.discardImage(ctx, newImage)
		return nil, err
	}
	if newImage != "" && current.ImageURL != "" && current.ImageURL != newImage {
		s.discardImage(ctx, current.ImageURL)
	}

	s.log.WithField("restaurant_id", id).Info("restaurant updated")
	return s.restaurants.FindByID(ctx, id)
}

// Delete removes the restaurant and every review of it in one transaction.
func (s *RestaurantService) Delete(ctx context.Context, id uint) error {
	var imageURL string
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		restaurants := s.restaurants.WithTx(tx)
		r, err := restaurants.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		imageURL = r.ImageURL
		removed, err = s.reviews.WithTx(tx).DeleteByRestaurant(ctx, id)
		if err != nil {
			return err
		}
		return restaurants.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.discardImage(ctx, imageURL)
	s.log.WithFields(logrus.Fields{"restaurant_id": id, "reviews_removed": removed}).Info("restaurant deleted")
	return nil
}

// SetFeatured turns the featured flag on or off. Turning it on clears it
// everywhere else first, so at most one restaurant is ever featured.
func (s *RestaurantService) SetFeatured(ctx context.Context, id uint, on bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		restaurants := s.restaurants.WithTx(tx)
		if _, err := restaurants.LockForUpdate(ctx, id); err != nil {
			return err
		}
		return setFeatured(ctx, restaurants, id, on)
	})
}

// ToggleFeatured flips the flag and returns the new value.
func (s *RestaurantService) ToggleFeatured(ctx context.Context, id uint) (bool, error) {
	var on bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		restaurants := s.restaurants.WithTx(tx)
		r, err := restaurants.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		on = !r.IsFeatured
		return setFeatured(ctx, restaurants, id, on)
	})
	if err != nil {
		return false, err
	}
	s.log.WithFields(logrus.Fields{"restaurant_id": id, "featured": on}).Info("featured flag changed")
	return on, nil
}

func (s *RestaurantService) CountMissingCoordinates(ctx context.Context) (int64, error) {
	return s.restaurants.CountMissingCoordinates(ctx)
}

// ImageRefs lists the stored image of every restaurant.
func (s *RestaurantService) ImageRefs(ctx context.Context) ([]string, error) {
	return s.restaurants.ImageURLs(ctx)
}

func setFeatured(ctx context.Context, restaurants *store.Restaurants, id uint, on bool) error {
	if on {
		if err := restaurants.ClearFeaturedExcept(ctx, id); err != nil {
			return err
		}
	}
	return restaurants.SetFeatured(ctx, id, on)
}

func (s *RestaurantService) validate(r *models.Restaurant) error {
	switch {
	case r.Name == "":
		return apperr.Validation("Name is required")
	case r.Cuisine == "":
		return apperr.Validation("Cuisine is required")
	case !r.Price.Valid():
		return apperr.Validation("Price must be one of $, $$, $$$, $$$$")
	case r.Address == "":
		return apperr.Validation("Address is required")
	case r.Phone == "":
		return apperr.Validation("Phone is required")
	}
	if r.Email != nil && !validEmail(*r.Email) {
		return apperr.Validation("Email must be a valid email address")
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		return apperr.Validation("Latitude and longitude must be provided together")
	}
	if r.Latitude != nil && (*r.Latitude < -90 || *r.Latitude > 90) {
		return apperr.Validation("Latitude must be between -90 and 90")
	}
	if r.Longitude != nil && (*r.Longitude < -180 || *r.Longitude > 180) {
		return apperr.Validation("Longitude must be between -180 and 180")
	}
	return nil
}

func (s *RestaurantService) discardImage(ctx context.Context, ref string) {
	discardImage(ctx, s.images, s.log, ref)
}

func discardImage(ctx context.Context, images storage.ImageStore, log logrus.FieldLogger, ref string) {
	if ref == "" {
		return
	}
	if err := images.Remove(ctx, ref); err != nil {
		log.WithError(err).WithField("image", ref).Warn("failed to remove stored image")
	}
}

// optionalText trims s and maps empty to nil.
func optionalText(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
