package handlers

import (
	"net/http"

	"restaurant-review-api/middleware"
	"restaurant-review-api/models"

	"github.com/gin-gonic/gin"
)

type CreateReviewRequest struct {
	RestaurantID uint     `json:"restaurantId" binding:"required"`
	Rating       *float64 `json:"rating" binding:"required,min=0,max=5,halfstep"`
	Comment      string   `json:"comment" binding:"required,max=1000"`
}

type UpdateReviewRequest struct {
	Rating  *float64 `json:"rating" binding:"required,min=0,max=5,halfstep"`
	Comment string   `json:"comment" binding:"required,max=1000"`
}

func (h *Handler) ListReviews(c *gin.Context) {
	reviews, err := h.Reviews.ListAll(c.Request.Context())
	h.respondReviews(c, reviews, err)
}

func (h *Handler) ListRestaurantReviews(c *gin.Context) {
	id, err := parseID(c, "restaurantId")
	if err != nil {
		h.respondError(c, err)
		return
	}
	reviews, err := h.Reviews.ListByRestaurant(c.Request.Context(), id)
	h.respondReviews(c, reviews, err)
}

func (h *Handler) ListUserReviews(c *gin.Context) {
	id, err := parseID(c, "userId")
	if err != nil {
		h.respondError(c, err)
		return
	}
	reviews, err := h.Reviews.ListByUser(c.Request.Context(), id)
	h.respondReviews(c, reviews, err)
}

func (h *Handler) respondReviews(c *gin.Context, reviews []models.ReviewView, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

// CreateReview posts the caller's single review of a restaurant.
func (h *Handler) CreateReview(c *gin.Context) {
	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	review, err := h.Reviews.Create(c.Request.Context(), middleware.CurrentUserID(c), req.RestaurantID, *req.Rating, req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

// UpdateReview is allowed for the review's author only.
func (h *Handler) UpdateReview(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req UpdateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	review, err := h.Reviews.Update(c.Request.Context(), id, middleware.CurrentUserID(c), *req.Rating, req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

// DeleteReview is allowed for the author and for admins.
func (h *Handler) DeleteReview(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Reviews.Delete(c.Request.Context(), id, middleware.CurrentUserID(c), middleware.IsAdmin(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Review deleted successfully"})
}
