package models

import (
	"time"
)

type User struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Username       string    `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email          string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash   string    `json:"-" gorm:"not null"`
	IsAdmin        bool      `json:"isAdmin" gorm:"not null;default:false"`
	ProfilePicture string    `json:"profilePicture"`
	ReviewIDs      []uint    `json:"reviews" gorm:"-"` // filled by the store, oldest first
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
