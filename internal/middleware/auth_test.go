package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddharthrai7i/NAJARIA/internal/auth"
)

func setupAuthRouter(tokens *auth.TokenManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", Auth(tokens), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":    c.GetString(UserIDKey),
			"village_id": c.GetString(VillageIDKey),
		})
	})
	return r
}

func TestAuthMissingToken(t *testing.T) {
	r := setupAuthRouter(auth.NewTokenManager("s"))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthInvalidToken(t *testing.T) {
	r := setupAuthRouter(auth.NewTokenManager("s"))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthInactiveUser(t *testing.T) {
	tokens := auth.NewTokenManager("s")
	raw, err := tokens.Issue(auth.Identity{UserID: "alice", VillageID: "v1", Active: false}, time.Hour)
	require.NoError(t, err)

	r := setupAuthRouter(tokens)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthBearerHeader(t *testing.T) {
	tokens := auth.NewTokenManager("s")
	raw, err := tokens.Issue(auth.Identity{UserID: "alice", VillageID: "v1", Active: true}, time.Hour)
	require.NoError(t, err)

	r := setupAuthRouter(tokens)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":"alice"`)
	assert.Contains(t, rec.Body.String(), `"village_id":"v1"`)
}

func TestAuthSessionCookie(t *testing.T) {
	tokens := auth.NewTokenManager("s")
	raw, err := tokens.Issue(auth.Identity{UserID: "bob", VillageID: "v1", Active: true}, time.Hour)
	require.NoError(t, err)

	r := setupAuthRouter(tokens)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: raw})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":"bob"`)
}
