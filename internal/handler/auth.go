package handler

import (
	"log/slog"
	"net/http"
	"user_service/internal/auth"
	"user_service/internal/models"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string          `json:"token"`
	User  models.UserView `json:"user"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.log.With(slog.String("op", op))

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("failed to unmarshal login request", slog.Any("error", err))

		c.AbortWithStatus(http.StatusBadRequest)

		return
	}

	token, user, err := h.authLayer.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, log, err)

		return
	}

	log.Info("user logged in", slog.String("user_id", user.ID.String()))

	c.JSON(http.StatusOK, loginResponse{Token: token, User: user})
}

// POST /auth/change-password
func (h *Handler) ChangePassword(c *gin.Context) {
	const op = "handler.ChangePassword"

	log := h.log.With(slog.String("op", op))

	identity, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		log.Error("no identity in request context")

		c.AbortWithStatus(http.StatusUnauthorized)

		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("failed to unmarshal change password request", slog.Any("error", err))

		c.AbortWithStatus(http.StatusBadRequest)

		return
	}

	err := h.authLayer.ChangePassword(c.Request.Context(), identity.SubjectID, req.OldPassword, req.NewPassword)
	if err != nil {
		h.respondError(c, log, err)

		return
	}

	c.Status(http.StatusNoContent)
}
