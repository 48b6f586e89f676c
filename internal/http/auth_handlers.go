package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badJSON(c, err)
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	logEntry(c, h.logger).WithField("user_id", user.ID).Info("user registered")
	c.JSON(http.StatusCreated, gin.H{"message": "User created"})
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badJSON(c, err)
		return
	}

	session, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		AccessToken: session.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(session.ExpiresIn.Seconds()),
	})
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, UserResponse{ID: user.ID, Username: user.Username})
}

func (h *Handler) updatePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badJSON(c, err)
		return
	}

	user, err := h.users.UpdatePassword(c.Request.Context(), userID(c), req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	logEntry(c, h.logger).Info("password updated")
	c.JSON(http.StatusOK, UserResponse{ID: user.ID, Username: user.Username})
}
