// Package handlers binds HTTP requests to the services and renders their results.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"restaurant-review-api/apperr"
	"restaurant-review-api/middleware"
	"restaurant-review-api/services"
	"restaurant-review-api/tokens"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	Users       *services.UserService
	Restaurants *services.RestaurantService
	Reviews     *services.ReviewService
	Tokens      *tokens.Manager
	Log         logrus.FieldLogger
}

// respondError writes {"message": ...} with the status for err's kind.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		h.Log.WithError(err).WithFields(logrus.Fields{
			"request_id": middleware.RequestID(c),
			"path":       c.FullPath(),
		}).Error("request failed")
	}
	c.JSON(status, gin.H{"message": apperr.Message(err)})
}

// bindError reports the first failed field of a binding error.
func (h *Handler) bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		h.respondError(c, apperr.Validation(fieldMessage(verrs[0])))
		return
	}
	h.respondError(c, apperr.Wrap(apperr.ErrValidation, "Invalid request body", err))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "Please enter a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "halfstep":
		return field + " must be in steps of 0.5"
	default:
		return field + " is invalid"
	}
}

// parseID reads a positive integer path parameter.
func parseID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid " + name)
	}
	return uint(id), nil
}
