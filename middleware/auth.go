package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"restaurant-review-api/apperr"
	"restaurant-review-api/models"
	"restaurant-review-api/tokens"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID  = "userID"
	ctxIsAdmin = "isAdmin"
)

// UserLookup resolves the user a token was issued to.
type UserLookup interface {
	Get(ctx context.Context, id uint) (*models.User, error)
}

// AuthRequired validates the bearer token and loads the caller. The admin
// flag is taken from the stored user, not from the token.
func AuthRequired(tm *tokens.Manager, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Access denied. No token provided."})
			return
		}
		claims, err := tm.ParseAccess(strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}

		user, err := users.Get(c.Request.Context(), claims.UserID)
		if errors.Is(err, apperr.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "User no longer exists"})
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": apperr.Message(err)})
			return
		}

		c.Set(ctxUserID, user.ID)
		c.Set(ctxIsAdmin, user.IsAdmin)
		c.Next()
	}
}

// AdminRequired must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Access denied. Admin only."})
			return
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated caller, or 0.
func CurrentUserID(c *gin.Context) uint {
	return c.GetUint(ctxUserID)
}

func IsAdmin(c *gin.Context) bool {
	return c.GetBool(ctxIsAdmin)
}
