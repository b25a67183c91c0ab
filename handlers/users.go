package handlers

import (
	"net/http"

	"restaurant-review-api/apperr"
	"restaurant-review-api/middleware"
	"restaurant-review-api/services"

	"github.com/gin-gonic/gin"
)

// CreateUserRequest is the admin-create payload; it may grant admin directly.
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	IsAdmin  bool   `json:"isAdmin"`
}

// UpdateUserRequest arrives as multipart form with an optional
// "profilePicture" file, or as JSON.
type UpdateUserRequest struct {
	Username        *string `form:"username" json:"username"`
	Email           *string `form:"email" json:"email"`
	CurrentPassword string  `form:"currentPassword" json:"currentPassword"`
	NewPassword     string  `form:"newPassword" json:"newPassword" binding:"omitempty,min=6"`
	ConfirmPassword string  `form:"confirmPassword" json:"confirmPassword"`
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.Users.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	user, err := h.Users.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	user, err := h.Users.CreateUser(c.Request.Context(), req.Username, req.Email, req.Password, req.IsAdmin)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// UpdateUser edits a profile. Callers may edit themselves; admins may edit anyone.
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := h.selfOrAdmin(c)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBind(&req); err != nil {
		h.bindError(c, err)
		return
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.NewPassword {
		h.respondError(c, apperr.Validation("Passwords do not match"))
		return
	}
	picture, err := optionalFile(c, "profilePicture")
	if err != nil {
		h.bindError(c, err)
		return
	}

	// Forms send every field; an empty username means "unchanged".
	if req.Username != nil && *req.Username == "" {
		req.Username = nil
	}

	result, err := h.Users.UpdateProfile(c.Request.Context(), id, services.ProfilePatch{
		Username:        req.Username,
		Email:           req.Email,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ProfilePicture:  picture,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	if result.EmailChangePending {
		c.JSON(http.StatusOK, gin.H{
			"message": "Confirmation email sent. Please check your new email to confirm the change.",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully.",
		"user":    result.User,
	})
}

func (h *Handler) UpdateProfilePicture(c *gin.Context) {
	id, ok := h.selfOrAdmin(c)
	if !ok {
		return
	}
	picture, err := optionalFile(c, "profilePicture")
	if err != nil {
		h.bindError(c, err)
		return
	}
	user, err := h.Users.UpdateProfilePicture(c.Request.Context(), id, picture)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        "Profile picture updated successfully",
		"profilePicture": user.ProfilePicture,
	})
}

// ConfirmEmail redeems the link mailed by UpdateUser.
func (h *Handler) ConfirmEmail(c *gin.Context) {
	if _, err := h.Users.ConfirmEmail(c.Request.Context(), c.Param("token")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email updated successfully."})
}

// DeleteUser removes the account and all of its reviews.
func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Users.DeleteUser(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func (h *Handler) PromoteUser(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	user, err := h.Users.Promote(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "User promoted to admin successfully",
		"user":    user,
	})
}

func (h *Handler) selfOrAdmin(c *gin.Context) (uint, bool) {
	id, err := parseID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return 0, false
	}
	if id != middleware.CurrentUserID(c) && !middleware.IsAdmin(c) {
		h.respondError(c, apperr.Forbidden("Not authorized to update this profile."))
		return 0, false
	}
	return id, true
}
