package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartparking/internal/users/service"
	apperrors "smartparking/pkg/errors"
	"smartparking/pkg/logger"
	"smartparking/pkg/model"
	"smartparking/pkg/session"
)

// Mock service for testing
type mockUserService struct {
	signupFunc func(ctx context.Context, c *model.Credentials) (*model.User, error)
	loginFunc  func(ctx context.Context, c *model.Credentials) (*service.LoginResult, error)
	deleteFunc func(ctx context.Context, id string) (int64, error)
}

func (m *mockUserService) Signup(ctx context.Context, c *model.Credentials) (*model.User, error) {
	if m.signupFunc != nil {
		return m.signupFunc(ctx, c)
	}
	return &model.User{ID: c.ID, Email: c.Email, Role: c.Role}, nil
}

func (m *mockUserService) Login(ctx context.Context, c *model.Credentials) (*service.LoginResult, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, c)
	}
	return nil, apperrors.InvalidCredentials()
}

func (m *mockUserService) List(ctx context.Context) ([]*model.User, error) {
	return []*model.User{{ID: "ann01", Email: "ann@example.com", Password: "$2a$hash", Role: "user"}}, nil
}

func (m *mockUserService) Delete(ctx context.Context, id string) (int64, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return 0, nil
}

func newTestRouter(svc service.UserService) *httprouter.Router {
	router := httprouter.New()
	NewUserHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, path, body string, claims *session.Claims) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if claims != nil {
		req = req.WithContext(session.WithClaims(req.Context(), claims))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSignup(t *testing.T) {
	const body = `{"id":"ann01","email":"ann@example.com","password":"secret","role":"user"}`

	t.Run("created", func(t *testing.T) {
		rec := do(newTestRouter(&mockUserService{}), http.MethodPost, "/api/signup", body, nil)
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp SignupResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "Signup successful", resp.Message)
	})

	t.Run("already exists", func(t *testing.T) {
		svc := &mockUserService{signupFunc: func(ctx context.Context, c *model.Credentials) (*model.User, error) {
			return nil, apperrors.Conflict("User already exists")
		}}
		rec := do(newTestRouter(svc), http.MethodPost, "/api/signup", body, nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), `"success":false`)
	})
}

func TestLogin(t *testing.T) {
	const body = `{"id":"ann01","email":"ann@example.com","password":"secret","role":"user"}`

	t.Run("invalid credentials", func(t *testing.T) {
		rec := do(newTestRouter(&mockUserService{}), http.MethodPost, "/api/login", body, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("success returns user and token", func(t *testing.T) {
		svc := &mockUserService{loginFunc: func(ctx context.Context, c *model.Credentials) (*service.LoginResult, error) {
			return &service.LoginResult{
				User:      &model.User{ID: c.ID, Email: c.Email, Password: "$2a$hash", Role: c.Role},
				Token:     "signed.jwt.token",
				ExpiresAt: time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC),
			}, nil
		}}
		rec := do(newTestRouter(svc), http.MethodPost, "/api/login", body, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "signed.jwt.token", resp.Token)
		assert.Equal(t, "ann01", resp.User.ID)
		assert.NotContains(t, rec.Body.String(), "$2a$hash")
	})
}

func TestAdminRoutes(t *testing.T) {
	router := newTestRouter(&mockUserService{deleteFunc: func(ctx context.Context, id string) (int64, error) {
		assert.Equal(t, "ann01", id)
		return 2, nil
	}})
	user := &session.Claims{UserID: "ann01", Email: "ann@example.com", Role: session.RoleUser}
	admin := &session.Claims{UserID: "root", Email: "root@example.com", Role: session.RoleAdmin}

	assert.Equal(t, http.StatusUnauthorized, do(router, http.MethodGet, "/api/users", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(router, http.MethodGet, "/api/users", "", user).Code)

	rec := do(router, http.MethodGet, "/api/users", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "$2a$hash", "password hashes are never serialised")

	rec = do(router, http.MethodDelete, "/api/users/ann01", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"User deleted","bookingsCancelled":2}`, rec.Body.String())
}
