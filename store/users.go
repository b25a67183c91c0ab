package store

import (
	"context"
	"fmt"
	"strings"

	"restaurant-review-api/apperr"
	"restaurant-review-api/models"

	"gorm.io/gorm"
)

type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (s *Users) WithTx(tx *gorm.DB) *Users {
	return &Users{db: tx}
}

func (s *Users) Create(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(u.Email)
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if IsDuplicate(err) {
			return apperr.Wrap(apperr.ErrConflict, "Username or email is already taken", err)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindByID loads a user along with the ids of their reviews.
func (s *Users) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, lookupErr(err, "User")
	}
	if err := s.fillReviewIDs(ctx, []*models.User{&u}); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByIdentifier matches identifier against the username or the email.
func (s *Users) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, strings.ToLower(identifier)).
		First(&u).Error
	if err != nil {
		return nil, lookupErr(err, "User")
	}
	if err := s.fillReviewIDs(ctx, []*models.User{&u}); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Users) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&u).Error; err != nil {
		return nil, lookupErr(err, "User")
	}
	return &u, nil
}

// ExistsByUsername checks whether username belongs to a user other than excludeID.
func (s *Users) ExistsByUsername(ctx context.Context, username string, excludeID uint) (bool, error) {
	return s.exists(ctx, "username = ?", username, excludeID)
}

func (s *Users) ExistsByEmail(ctx context.Context, email string, excludeID uint) (bool, error) {
	return s.exists(ctx, "email = ?", strings.ToLower(email), excludeID)
}

func (s *Users) exists(ctx context.Context, cond string, value string, excludeID uint) (bool, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(&models.User{}).Where(cond, value)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return count > 0, nil
}

func (s *Users) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	ptrs := make([]*models.User, len(users))
	for i := range users {
		ptrs[i] = &users[i]
	}
	if err := s.fillReviewIDs(ctx, ptrs); err != nil {
		return nil, err
	}
	return users, nil
}

// Save writes every column of u.
func (s *Users) Save(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(u.Email)
	if err := s.db.WithContext(ctx).Save(u).Error; err != nil {
		if IsDuplicate(err) {
			return apperr.Wrap(apperr.ErrConflict, "Username or email is already taken", err)
		}
		return fmt.Errorf("save user %d: %w", u.ID, err)
	}
	return nil
}

func (s *Users) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete user %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("User not found")
	}
	return nil
}

// ProfilePictures returns every non-empty stored profile picture reference.
func (s *Users) ProfilePictures(ctx context.Context) ([]string, error) {
	var refs []string
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("profile_picture <> ''").
		Pluck("profile_picture", &refs).Error
	if err != nil {
		return nil, fmt.Errorf("list profile pictures: %w", err)
	}
	return refs, nil
}

func (s *Users) fillReviewIDs(ctx context.Context, users []*models.User) error {
	if len(users) == 0 {
		return nil
	}
	byID := make(map[uint]*models.User, len(users))
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		u.ReviewIDs = []uint{}
		byID[u.ID] = u
		ids = append(ids, u.ID)
	}

	var rows []struct {
		ID     uint
		UserID uint
	}
	err := s.db.WithContext(ctx).Model(&models.Review{}).
		Select("id", "user_id").
		Where("user_id IN ?", ids).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("load review ids: %w", err)
	}
	for _, r := range rows {
		if u := byID[r.UserID]; u != nil {
			u.ReviewIDs = append(u.ReviewIDs, r.ID)
		}
	}
	return nil
}
