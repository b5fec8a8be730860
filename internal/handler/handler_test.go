package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"user_service/internal/access"
	"user_service/internal/auth"
	"user_service/internal/common"
	"user_service/internal/models"
	"user_service/internal/service"
	"user_service/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const testOrigin = "https://app.example.com"

var testWebOptions = WebOptions{
	AllowedOrigins:        []string{testOrigin},
	ContentSecurityPolicy: "default-src 'none'",
	HSTSMaxAge:            time.Hour,
}

// countingStorage records how many repository calls reach the backing store.
type countingStorage struct {
	*storage.MemoryStorage
	calls atomic.Int64
}

func (s *countingStorage) FindByIdentifier(ctx context.Context, email string) (models.User, error) {
	s.calls.Add(1)
	return s.MemoryStorage.FindByIdentifier(ctx, email)
}

func (s *countingStorage) FindByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	s.calls.Add(1)
	return s.MemoryStorage.FindByID(ctx, id)
}

func (s *countingStorage) List(ctx context.Context) ([]models.User, error) {
	s.calls.Add(1)
	return s.MemoryStorage.List(ctx)
}

type testServer struct {
	router  *gin.Engine
	storage *countingStorage
	hasher  *auth.PasswordHasher
	tokens  *auth.TokenService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	tokens, err := auth.NewTokenService([]byte("handler-test-secret"), time.Hour)
	require.NoError(t, err)

	st := &countingStorage{MemoryStorage: storage.NewMemoryStorage()}
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)

	authSrvc := service.NewAuthService(st, hasher, tokens, discardLogger)
	userSrvc := service.NewUserService(st, hasher, tokens, discardLogger)

	return &testServer{
		router:  NewHandler(authSrvc, userSrvc, tokens, st, testWebOptions, discardLogger).InitRoutes(),
		storage: st,
		hasher:  hasher,
		tokens:  tokens,
	}
}

func (s *testServer) seed(t *testing.T, email, password string, role models.Role) models.User {
	t.Helper()

	hash, err := s.hasher.Hash(password)
	require.NoError(t, err)

	u, err := s.storage.Save(context.Background(), models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Phone:        "210-273-1278",
		Address:      "6119 Higbee",
		Birth:        "08/22/1994",
		PhotoURL:     "url.url",
	})
	require.NoError(t, err)

	return u
}

func (s *testServer) tokenFor(t *testing.T, u models.User) string {
	t.Helper()

	token, _, err := s.tokens.Issue(u.ID, u.Email)
	require.NoError(t, err)

	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(access.TokenHeader, token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	return w
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.seed(t, "a@b.com", "PassWord", models.RoleAdmin)

	t.Run("success", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "a@b.com", Password: "PassWord"})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Token string         `json:"token"`
			User  map[string]any `json:"user"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "a@b.com", resp.User["email"])
		assert.Equal(t, "ADMIN", resp.User["role"])
		assert.NotContains(t, resp.User, "password")
		assert.NotContains(t, resp.User, "passwordHash")
		assert.NotContains(t, w.Body.String(), "$2a$")

		claims, err := srv.tokens.Verify(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, admin.ID, claims.SubjectID)
	})

	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{name: "wrong password", body: loginRequest{Email: "a@b.com", Password: "nope"}, wantCode: http.StatusUnauthorized},
		{name: "unknown email", body: loginRequest{Email: "ghost@b.com", Password: "PassWord"}, wantCode: http.StatusUnauthorized},
		{name: "missing password", body: loginRequest{Email: "a@b.com"}, wantCode: http.StatusBadRequest},
		{name: "malformed json", body: "{not json", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(t, http.MethodPost, "/auth/login", "", tt.body)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Empty(t, w.Body.String())
		})
	}
}

func TestChangePassword(t *testing.T) {
	srv := newTestServer(t)
	user := srv.seed(t, "u@b.com", "PassWord", models.RoleUser)
	token := srv.tokenFor(t, user)

	t.Run("requires a token", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/auth/change-password", "", changePasswordRequest{OldPassword: "PassWord", NewPassword: "n3w-secret"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("short new password", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/auth/change-password", token, changePasswordRequest{OldPassword: "PassWord", NewPassword: "abc"})
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp validationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, common.FieldError{
			Field:   "newPassword",
			Rule:    "min",
			Message: "must be at least 4 characters long",
		}, resp.Errors[0])
	})

	t.Run("new password over 72 bytes", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/auth/change-password", token, changePasswordRequest{OldPassword: "PassWord", NewPassword: strings.Repeat("é", 40)})
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp validationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "newPassword", resp.Errors[0].Field)
		assert.Equal(t, "bcrypt_max", resp.Errors[0].Rule)
	})

	t.Run("wrong old password", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/auth/change-password", token, changePasswordRequest{OldPassword: "nope", NewPassword: "n3w-secret"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("success", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/auth/change-password", token, changePasswordRequest{OldPassword: "PassWord", NewPassword: "n3w-secret"})
		require.Equal(t, http.StatusNoContent, w.Code)
		assert.NotEmpty(t, w.Header().Get(access.RenewedTokenHeader))

		w = srv.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "u@b.com", Password: "n3w-secret"})
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestUserRoutes_RequireAdmin(t *testing.T) {
	srv := newTestServer(t)
	user := srv.seed(t, "u@b.com", "PassWord", models.RoleUser)

	expiredTokens, err := auth.NewTokenService([]byte("handler-test-secret"), time.Nanosecond)
	require.NoError(t, err)
	expired, _, err := expiredTokens.Issue(user.ID, user.Email)
	require.NoError(t, err)

	t.Run("expired token never reaches storage", func(t *testing.T) {
		before := srv.storage.calls.Load()

		w := srv.do(t, http.MethodGet, "/user", expired, nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Body.String())
		assert.Equal(t, before, srv.storage.calls.Load())
	})

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/user"},
		{http.MethodGet, "/user/u@b.com"},
		{http.MethodPost, "/user"},
		{http.MethodPatch, "/user/u@b.com"},
		{http.MethodDelete, "/user/u@b.com"},
	}

	for _, r := range routes {
		t.Run("non admin "+r.method+" "+r.path, func(t *testing.T) {
			w := srv.do(t, r.method, r.path, srv.tokenFor(t, user), nil)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Empty(t, w.Body.String())
		})

		t.Run("anonymous "+r.method+" "+r.path, func(t *testing.T) {
			w := srv.do(t, r.method, r.path, "", nil)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	_, err = srv.storage.FindByIdentifier(context.Background(), "u@b.com")
	require.NoError(t, err, "denied requests must not change state")
}

func TestUserRoutes_AdminCRUD(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.seed(t, "a@b.com", "PassWord", models.RoleAdmin)
	token := srv.tokenFor(t, admin)

	newUser := models.NewUser{
		Email:    "new@b.com",
		Password: "PassWord",
		Role:     "USER",
		Phone:    "210-273-1278",
		Address:  "6119 Higbee",
		Birth:    "08/22/1994",
		PhotoURL: "url.url",
	}

	w := srv.do(t, http.MethodPost, "/user", token, newUser)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get(access.RenewedTokenHeader))

	var created createUserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "User created", created.Message)
	assert.Equal(t, "new@b.com", created.User.Email)
	assert.NotEmpty(t, created.Token)
	assert.NotContains(t, w.Body.String(), "$2a$")

	w = srv.do(t, http.MethodPost, "/user", token, newUser)
	assert.Equal(t, http.StatusConflict, w.Code)

	invalid := newUser
	invalid.Email = "other@b.com"
	invalid.Role = "ROOT"
	w = srv.do(t, http.MethodPost, "/user", token, invalid)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var verrs validationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verrs))
	require.Len(t, verrs.Errors, 1)
	assert.Equal(t, "role", verrs.Errors[0].Field)

	w = srv.do(t, http.MethodGet, "/user", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.UserView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	w = srv.do(t, http.MethodGet, "/user/new@b.com", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got userResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created.User.ID, got.User.ID)

	w = srv.do(t, http.MethodPatch, "/user/new@b.com", token, map[string]string{"phone": "555-0100"})
	require.Equal(t, http.StatusNoContent, w.Code)

	stored, err := srv.storage.FindByIdentifier(context.Background(), "new@b.com")
	require.NoError(t, err)
	assert.Equal(t, "555-0100", stored.Phone)
	assert.Equal(t, "6119 Higbee", stored.Address)

	w = srv.do(t, http.MethodPatch, "/user/ghost@b.com", token, map[string]string{"phone": "1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.do(t, http.MethodDelete, "/user/new@b.com", token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = srv.do(t, http.MethodGet, "/user/new@b.com", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.do(t, http.MethodDelete, "/user/new@b.com", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserRoutes_DeletedAdminLosesAccess(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.seed(t, "a@b.com", "PassWord", models.RoleAdmin)
	token := srv.tokenFor(t, admin)

	require.NoError(t, srv.storage.Delete(context.Background(), admin.ID))

	w := srv.do(t, http.MethodGet, "/user", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthAndRequestID(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	w = srv.do(t, http.MethodGet, "/healthz", "", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.seed(t, "a@b.com", "PassWord", models.RoleAdmin)

	t.Run("preflight skips the access pipeline", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/user", nil)
		req.Header.Set("Origin", testOrigin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		req.Header.Set("Access-Control-Request-Headers", access.TokenHeader)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, strings.ToLower(w.Header().Get("Access-Control-Allow-Headers")), access.TokenHeader)
	})

	t.Run("renewed token header is exposed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/user", nil)
		req.Header.Set("Origin", testOrigin)
		req.Header.Set(access.TokenHeader, srv.tokenFor(t, admin))
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, strings.ToLower(w.Header().Get("Access-Control-Expose-Headers")), access.RenewedTokenHeader)
		assert.NotEmpty(t, w.Header().Get(access.RenewedTokenHeader))
	})

	t.Run("unknown origin is refused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", "https://evil.example.net")
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/user"} {
		t.Run(path, func(t *testing.T) {
			w := srv.do(t, http.MethodGet, path, "", nil)

			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
			assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
			assert.Equal(t, testWebOptions.ContentSecurityPolicy, w.Header().Get("Content-Security-Policy"))
		})
	}
}
