package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"restaurant-review-api/models"
	"restaurant-review-api/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// RestaurantRequest is accepted as multipart form (with an optional "image"
// file) or as JSON. Every field is optional on update.
type RestaurantRequest struct {
	Name         *string  `form:"name" json:"name"`
	Description  *string  `form:"description" json:"description"`
	Cuisine      *string  `form:"cuisine" json:"cuisine"`
	Price        *string  `form:"price" json:"price" binding:"omitempty,oneof=$ $$ $$$ $$$$"`
	Address      *string  `form:"address" json:"address"`
	Phone        *string  `form:"phone" json:"phone"`
	Email        *string  `form:"email" json:"email"`
	OpeningHours *string  `form:"openingHours" json:"openingHours"`
	Latitude     *float64 `form:"latitude" json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude    *float64 `form:"longitude" json:"longitude" binding:"omitempty,min=-180,max=180"`
	IsFeatured   *bool    `form:"isFeatured" json:"isFeatured"`
}

// bindRestaurant binds the request and drops form fields that were sent
// blank. Form binding would otherwise store them as 0 or false.
func bindRestaurant(c *gin.Context, req *RestaurantRequest) error {
	if err := c.ShouldBind(req); err != nil {
		return err
	}
	if c.ContentType() == binding.MIMEJSON {
		return nil
	}
	blank := func(key string) bool {
		v, ok := c.GetPostForm(key)
		return ok && strings.TrimSpace(v) == ""
	}
	if blank("latitude") {
		req.Latitude = nil
	}
	if blank("longitude") {
		req.Longitude = nil
	}
	if blank("isFeatured") {
		req.IsFeatured = nil
	}
	return nil
}

func (r RestaurantRequest) input() services.RestaurantInput {
	return services.RestaurantInput{
		Name:         deref(r.Name),
		Description:  deref(r.Description),
		Cuisine:      deref(r.Cuisine),
		Price:        models.PriceTier(deref(r.Price)),
		Address:      deref(r.Address),
		Phone:        deref(r.Phone),
		Email:        r.Email,
		OpeningHours: r.OpeningHours,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		IsFeatured:   r.IsFeatured != nil && *r.IsFeatured,
	}
}

func (r RestaurantRequest) patch() services.RestaurantPatch {
	p := services.RestaurantPatch{
		Name:         r.Name,
		Description:  r.Description,
		Cuisine:      r.Cuisine,
		Address:      r.Address,
		Phone:        r.Phone,
		Email:        r.Email,
		OpeningHours: r.OpeningHours,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		IsFeatured:   r.IsFeatured,
	}
	if r.Price != nil {
		price := models.PriceTier(*r.Price)
		p.Price = &price
	}
	return p
}

// ListRestaurants returns all restaurants, or only the featured one with ?featured=true.
func (h *Handler) ListRestaurants(c *gin.Context) {
	restaurants, err := h.Restaurants.List(c.Request.Context(), c.Query("featured") == "true")
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, restaurants)
}

func (h *Handler) GetRestaurant(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	restaurant, err := h.Restaurants.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, restaurant)
}

// CreateRestaurant is admin only.
func (h *Handler) CreateRestaurant(c *gin.Context) {
	var req RestaurantRequest
	if err := bindRestaurant(c, &req); err != nil {
		h.bindError(c, err)
		return
	}
	image, err := optionalFile(c, "image")
	if err != nil {
		h.bindError(c, err)
		return
	}

	restaurant, err := h.Restaurants.Create(c.Request.Context(), req.input(), image)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, restaurant)
}

func (h *Handler) UpdateRestaurant(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req RestaurantRequest
	if err := bindRestaurant(c, &req); err != nil {
		h.bindError(c, err)
		return
	}
	image, err := optionalFile(c, "image")
	if err != nil {
		h.bindError(c, err)
		return
	}

	restaurant, err := h.Restaurants.Update(c.Request.Context(), id, req.patch(), image)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, restaurant)
}

// DeleteRestaurant also removes every review of the restaurant.
func (h *Handler) DeleteRestaurant(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Restaurants.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Restaurant deleted successfully"})
}

// ToggleFeatured flips the featured flag; featuring one restaurant unfeatures the rest.
func (h *Handler) ToggleFeatured(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	on, err := h.Restaurants.ToggleFeatured(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	state := "unfeatured"
	if on {
		state = "featured"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Restaurant " + state + " successfully",
		"isFeatured": on,
	})
}

// optionalFile returns nil when the request carries no file under field.
func optionalFile(c *gin.Context, field string) (*multipart.FileHeader, error) {
	file, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	return file, err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
