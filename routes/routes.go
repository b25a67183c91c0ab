package routes

import (
	"context"
	"net/http"
	"time"

	"restaurant-review-api/handlers"
	"restaurant-review-api/metrics"
	"restaurant-review-api/middleware"
	"restaurant-review-api/tokens"

	"github.com/gin-gonic/gin"
)

type Deps struct {
	Handler     *handlers.Handler
	Tokens      *tokens.Manager
	Users       middleware.UserLookup
	Metrics     *metrics.Metrics
	AuthLimiter *middleware.RateLimiter
	// UploadDir is served under PublicUploadPath when set.
	UploadDir        string
	PublicUploadPath string
	// Ping checks the database for /health.
	Ping func(ctx context.Context) error
}

func SetupRoutes(r *gin.Engine, d Deps) {
	h := d.Handler
	authRequired := middleware.AuthRequired(d.Tokens, d.Users)
	adminRequired := middleware.AdminRequired()

	r.GET("/health", health(d.Ping))
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	if d.UploadDir != "" {
		uploads := r.Group(d.PublicUploadPath, func(c *gin.Context) {
			c.Header("Cross-Origin-Resource-Policy", "cross-origin")
			c.Next()
		})
		uploads.Static("/", d.UploadDir)
	}

	api := r.Group("/api")

	// ── Auth ───────────────────────────────────────────────────────
	auth := api.Group("/auth")
	if d.AuthLimiter != nil {
		auth.Use(d.AuthLimiter.Handler())
	}
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
	}

	// ── Restaurants ────────────────────────────────────────────────
	restaurants := api.Group("/restaurants")
	{
		restaurants.GET("", h.ListRestaurants)
		restaurants.GET("/:id", h.GetRestaurant)
		restaurants.POST("", authRequired, adminRequired, h.CreateRestaurant)
		restaurants.PUT("/:id", authRequired, adminRequired, h.UpdateRestaurant)
		restaurants.DELETE("/:id", authRequired, adminRequired, h.DeleteRestaurant)
		restaurants.PUT("/:id/feature", authRequired, adminRequired, h.ToggleFeatured)
	}

	// ── Users ──────────────────────────────────────────────────────
	users := api.Group("/users")
	{
		users.GET("/confirm-email/:token", h.ConfirmEmail)
		users.GET("", authRequired, adminRequired, h.ListUsers)
		users.POST("", authRequired, adminRequired, h.CreateUser)
		users.GET("/:id", authRequired, h.GetUser)
		users.PUT("/:id", authRequired, h.UpdateUser)
		users.PUT("/:id/profile-picture", authRequired, h.UpdateProfilePicture)
		users.PUT("/:id/promote", authRequired, adminRequired, h.PromoteUser)
		users.DELETE("/:id", authRequired, adminRequired, h.DeleteUser)
	}

	// ── Reviews ────────────────────────────────────────────────────
	reviews := api.Group("/reviews")
	{
		reviews.GET("", h.ListReviews)
		reviews.GET("/restaurant/:restaurantId", h.ListRestaurantReviews)
		reviews.GET("/user/:userId", h.ListUserReviews)
		reviews.POST("", authRequired, h.CreateReview)
		reviews.PUT("/:id", authRequired, h.UpdateReview)
		reviews.DELETE("/:id", authRequired, h.DeleteReview)
	}
}

func health(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "Restaurant Review API",
		})
	}
}
