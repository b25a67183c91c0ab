package models

import "time"

// Review is unique per (user, restaurant); the composite index enforces it.
type Review struct {
	ID           uint        `gorm:"primaryKey"`
	UserID       uint        `gorm:"not null;uniqueIndex:idx_reviews_user_restaurant"`
	User         *User       `gorm:"foreignKey:UserID"`
	RestaurantID uint        `gorm:"not null;uniqueIndex:idx_reviews_user_restaurant;index"`
	Restaurant   *Restaurant `gorm:"foreignKey:RestaurantID"`
	Rating       float64     `gorm:"not null"`
	Comment      string      `gorm:"size:1000;not null"`
	CreatedAt    time.Time   `gorm:"index"`
	UpdatedAt    time.Time
}

type ReviewAuthor struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
}

type ReviewedRestaurant struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Cuisine  string `json:"cuisine"`
	ImageURL string `json:"imageUrl"`
}

// ReviewView is the API shape of a review with its user and restaurant resolved.
type ReviewView struct {
	ID         uint               `json:"id"`
	Rating     float64            `json:"rating"`
	Comment    string             `json:"comment"`
	User       ReviewAuthor       `json:"user"`
	Restaurant ReviewedRestaurant `json:"restaurant"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

func (r *Review) View() ReviewView {
	v := ReviewView{
		ID:         r.ID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		User:       ReviewAuthor{ID: r.UserID},
		Restaurant: ReviewedRestaurant{ID: r.RestaurantID},
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.User != nil {
		v.User.Username = r.User.Username
		v.User.ProfilePicture = r.User.ProfilePicture
	}
	if r.Restaurant != nil {
		v.Restaurant.Name = r.Restaurant.Name
		v.Restaurant.Cuisine = r.Restaurant.Cuisine
		v.Restaurant.ImageURL = r.Restaurant.ImageURL
	}
	return v
}
