package store

import (
	"context"
	"fmt"

	"restaurant-review-api/apperr"
	"restaurant-review-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Restaurants struct {
	db *gorm.DB
}

func NewRestaurants(db *gorm.DB) *Restaurants {
	return &Restaurants{db: db}
}

func (s *Restaurants) WithTx(tx *gorm.DB) *Restaurants {
	return &Restaurants{db: tx}
}

// List returns restaurants newest first, optionally only the featured one.
func (s *Restaurants) List(ctx context.Context, featuredOnly bool) ([]models.Restaurant, error) {
	var out []models.Restaurant
	q := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if featuredOnly {
		q = q.Where("is_featured = ?", true)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	return out, nil
}

func (s *Restaurants) FindByID(ctx context.Context, id uint) (*models.Restaurant, error) {
	var r models.Restaurant
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, lookupErr(err, "Restaurant")
	}
	return &r, nil
}

// LockForUpdate loads the row with SELECT ... FOR UPDATE. Dialects without
// row locks (SQLite) drop the clause and rely on their single writer.
func (s *Restaurants) LockForUpdate(ctx context.Context, id uint) (*models.Restaurant, error) {
	var r models.Restaurant
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&r, id).Error
	if err != nil {
		return nil, lookupErr(err, "Restaurant")
	}
	return &r, nil
}

func (s *Restaurants) Create(ctx context.Context, r *models.Restaurant) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("create restaurant: %w", err)
	}
	return nil
}

// Updates applies column -> value changes. Nil pointers clear the column.
func (s *Restaurants) Updates(ctx context.Context, id uint, changes map[string]any) error {
	if len(changes) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Restaurant{ID: id}).Updates(changes)
	if res.Error != nil {
		return fmt.Errorf("update restaurant %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Restaurant not found")
	}
	return nil
}

// ClearFeaturedExcept unsets the featured flag on every restaurant but id.
func (s *Restaurants) ClearFeaturedExcept(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Model(&models.Restaurant{}).
		Where("id <> ? AND is_featured = ?", id, true).
		UpdateColumn("is_featured", false).Error
	if err != nil {
		return fmt.Errorf("clear featured: %w", err)
	}
	return nil
}

func (s *Restaurants) SetFeatured(ctx context.Context, id uint, on bool) error {
	res := s.db.WithContext(ctx).Model(&models.Restaurant{ID: id}).Update("is_featured", on)
	if res.Error != nil {
		return fmt.Errorf("set featured on %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Restaurant not found")
	}
	return nil
}

// UpdateAggregate stores the derived rating fields without touching updated_at.
func (s *Restaurants) UpdateAggregate(ctx context.Context, id uint, rating float64, count int) error {
	err := s.db.WithContext(ctx).Model(&models.Restaurant{ID: id}).
		UpdateColumns(map[string]any{"rating": rating, "review_count": count}).Error
	if err != nil {
		return fmt.Errorf("update rating of %d: %w", id, err)
	}
	return nil
}

func (s *Restaurants) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Restaurant{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete restaurant %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Restaurant not found")
	}
	return nil
}

func (s *Restaurants) IDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Restaurant{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list restaurant ids: %w", err)
	}
	return ids, nil
}

func (s *Restaurants) ImageURLs(ctx context.Context) ([]string, error) {
	var refs []string
	err := s.db.WithContext(ctx).Model(&models.Restaurant{}).
		Where("image_url <> ''").
		Pluck("image_url", &refs).Error
	if err != nil {
		return nil, fmt.Errorf("list restaurant images: %w", err)
	}
	return refs, nil
}

// CountMissingCoordinates counts rows created before coordinates were required.
func (s *Restaurants) CountMissingCoordinates(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Restaurant{}).
		Where("latitude IS NULL OR longitude IS NULL").
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count restaurants without coordinates: %w", err)
	}
	return n, nil
}
