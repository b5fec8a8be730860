package handler

import (
	"log/slog"
	"net/http"
	"user_service/internal/models"

	"github.com/gin-gonic/gin"
)

type userResponse struct {
	User models.UserView `json:"user"`
}

type createUserResponse struct {
	Message string          `json:"message"`
	User    models.UserView `json:"user"`
	Token   string          `json:"token"`
}

// GET /user
func (h *Handler) ListUsers(c *gin.Context) {
	const op = "handler.ListUsers"

	log := h.log.With(slog.String("op", op))

	users, err := h.usersLayer.List(c.Request.Context())
	if err != nil {
		h.respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, users)
}

// GET /user/:email
func (h *Handler) GetUser(c *gin.Context) {
	const op = "handler.GetUser"

	log := h.log.With(slog.String("op", op))

	user, err := h.usersLayer.GetByEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		h.respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, userResponse{User: user})
}

// POST /user
func (h *Handler) CreateUser(c *gin.Context) {
	const op = "handler.CreateUser"

	log := h.log.With(slog.String("op", op))

	var req models.NewUser
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("failed to read request body", slog.Any("error", err))

		c.AbortWithStatus(http.StatusBadRequest)

		return
	}

	user, token, err := h.usersLayer.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, log, err)

		return
	}

	c.JSON(http.StatusCreated, createUserResponse{Message: "User created", User: user, Token: token})
}

// PATCH /user/:email
func (h *Handler) EditUser(c *gin.Context) {
	const op = "handler.EditUser"

	log := h.log.With(slog.String("op", op))

	var req models.UserPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("failed to read request body", slog.Any("error", err))

		c.AbortWithStatus(http.StatusBadRequest)

		return
	}

	if err := h.usersLayer.Edit(c.Request.Context(), c.Param("email"), req); err != nil {
		h.respondError(c, log, err)

		return
	}

	c.Status(http.StatusNoContent)
}

// DELETE /user/:email
func (h *Handler) DeleteUser(c *gin.Context) {
	const op = "handler.DeleteUser"

	log := h.log.With(slog.String("op", op))

	if err := h.usersLayer.Delete(c.Request.Context(), c.Param("email")); err != nil {
		h.respondError(c, log, err)

		return
	}

	c.Status(http.StatusNoContent)
}
