package handlers

import (
	"net/http"

	"restaurant-review-api/models"

	"github.com/gin-gonic/gin"
)

type SignupRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// Signup registers a regular (non-admin) account and logs it in.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	user, err := h.Users.CreateUser(c.Request.Context(), req.Username, req.Email, req.Password, false)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondWithToken(c, http.StatusCreated, user)
}

// Login accepts a username or an email as identifier.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	user, err := h.Users.VerifyCredentials(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondWithToken(c, http.StatusOK, user)
}

func (h *Handler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, err := h.Tokens.IssueAccess(user)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(status, gin.H{
		"token": token,
		"user":  user,
	})
}
