package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"user_service/internal/access"
	"user_service/internal/common"
	"user_service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type AuthProvider interface {
	Login(ctx context.Context, email, password string) (string, models.UserView, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error
}

type UserManager interface {
	List(ctx context.Context) ([]models.UserView, error)
	GetByEmail(ctx context.Context, email string) (models.UserView, error)
	Create(ctx context.Context, in models.NewUser) (models.UserView, string, error)
	Edit(ctx context.Context, email string, patch models.UserPatch) error
	Delete(ctx context.Context, email string) error
}

type Handler struct {
	authLayer  AuthProvider
	usersLayer UserManager
	tokens     access.TokenVerifier
	accounts   access.AccountFinder
	web        WebOptions
	log        *slog.Logger
}

type errorResponse struct {
	Message string `json:"message"`
}

type validationResponse struct {
	Errors []common.FieldError `json:"errors"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{Message: errMessage})
}

func NewHandler(authSrvc AuthProvider, userSrvc UserManager, tokens access.TokenVerifier, accounts access.AccountFinder, web WebOptions, lgr *slog.Logger) *Handler {
	return &Handler{
		authLayer:  authSrvc,
		usersLayer: userSrvc,
		tokens:     tokens,
		accounts:   accounts,
		web:        web,
		log:        lgr,
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), h.requestLogger())
	router.Use(securityHeaders(h.web), corsMiddleware(h.web.AllowedOrigins))

	authenticated := access.NewPipeline(h.log, access.Authenticate(h.tokens))
	admins := authenticated.Then(access.Authorize(h.accounts, access.MustRoleSet(models.RoleAdmin)))

	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/change-password", authenticated.Handler(), h.ChangePassword)
	}

	user := router.Group("/user")
	user.Use(admins.Handler())
	{
		user.GET("", h.ListUsers)
		user.GET("/:email", h.GetUser)
		user.POST("", h.CreateUser)
		user.PATCH("/:email", h.EditUser)
		user.DELETE("/:email", h.DeleteUser)
	}

	return router
}

// respondError maps service errors onto HTTP responses. Authentication
// failures get an empty body so callers learn nothing about which check
// failed.
func (h *Handler) respondError(c *gin.Context, log *slog.Logger, err error) {
	var verr *common.ValidationError

	switch {
	case errors.As(err, &verr):
		log.Debug("validation failed", slog.Any("fields", verr.Fields))
		c.AbortWithStatusJSON(http.StatusBadRequest, validationResponse{Errors: verr.Fields})
	case errors.Is(err, common.ErrBadRequest):
		c.AbortWithStatus(http.StatusBadRequest)
	case errors.Is(err, common.ErrUnauthorized):
		log.Debug("unauthorized", slog.Any("error", err))
		c.AbortWithStatus(http.StatusUnauthorized)
	case errors.Is(err, common.ErrNotFound):
		newErrorResponse(c, http.StatusNotFound, "user not found")
	case errors.Is(err, common.ErrConflict):
		newErrorResponse(c, http.StatusConflict, "email already in use")
	default:
		log.Error("request failed", slog.Any("error", err))
		newErrorResponse(c, http.StatusInternalServerError, "internal error")
	}
}
