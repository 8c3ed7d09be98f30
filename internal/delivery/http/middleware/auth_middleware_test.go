package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lifeline-plus/config"
	"lifeline-plus/internal/domain/entity"
	"lifeline-plus/internal/testutil"
	"lifeline-plus/pkg/jwt"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthMiddleware(t *testing.T) (*AuthMiddleware, *jwt.JWTService, func(uuid.UUID, string) string) {
	t.Helper()
	rdb, _ := testutil.NewRedis(t)
	jwtService := jwt.NewJWTService(config.JWTConfig{Secret: "test-secret", AccessExpiry: time.Hour})

	issue := func(userID uuid.UUID, role string) string {
		token, tokenID, err := jwtService.GenerateAccessToken(userID, "user@example.com", role)
		require.NoError(t, err)
		require.NoError(t, rdb.Set(context.Background(), AccessTokenKey(userID, tokenID), "valid", time.Hour).Err())
		return token
	}
	return NewAuthMiddleware(jwtService, rdb), jwtService, issue
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	if id, ok := GetUserIDFromContext(r.Context()); ok {
		w.Write([]byte(id.String()))
		return
	}
	w.Write([]byte("anonymous"))
}

func TestAuthenticate(t *testing.T) {
	auth, jwtService, issue := newAuthMiddleware(t)
	userID := uuid.New()
	handler := auth.Authenticate(http.HandlerFunc(echoUser))

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+issue(userID, entity.RolePatient))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, userID.String(), rec.Body.String())
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("revoked token", func(t *testing.T) {
		token, _, err := jwtService.GenerateAccessToken(userID, "user@example.com", entity.RolePatient)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("query token only on websocket upgrade", func(t *testing.T) {
		token := issue(userID, entity.RoleDoctor)

		plain := httptest.NewRequest(http.MethodGet, "/stream?access_token="+token, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, plain)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		upgrade := httptest.NewRequest(http.MethodGet, "/stream?access_token="+token, nil)
		upgrade.Header.Set("Upgrade", "websocket")
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, upgrade)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestOptionalAuthenticate(t *testing.T) {
	auth, _, issue := newAuthMiddleware(t)
	userID := uuid.New()
	handler := auth.OptionalAuthenticate(http.HandlerFunc(echoUser))

	req := httptest.NewRequest(http.MethodPost, "/alerts", nil)
	req.Header.Set("Authorization", "Bearer "+issue(userID, entity.RolePatient))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, userID.String(), rec.Body.String())

	for _, header := range []string{"", "Bearer garbage", "Basic abc"} {
		req := httptest.NewRequest(http.MethodPost, "/alerts", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, header)
		assert.Equal(t, "anonymous", rec.Body.String(), header)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireDoctor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{"no user", context.Background(), http.StatusUnauthorized},
		{"patient", WithUser(context.Background(), uuid.New(), "p@example.com", entity.RolePatient, "t"), http.StatusForbidden},
		{"doctor", WithUser(context.Background(), uuid.New(), "d@example.com", entity.RoleDoctor, "t"), http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(tc.ctx))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
