package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func protected(key string) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return Auth(key)(ok)
}

func TestAuth_BearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec := httptest.NewRecorder()

	protected("sekrit").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_APIKeyHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	req.Header.Set("X-API-Key", "sekrit")
	rec := httptest.NewRecorder()

	protected("sekrit").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_WrongKeyRejected(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	req.Header.Set("X-API-Key", "nope")
	rec := httptest.NewRecorder()

	protected("sekrit").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
}

func TestAuth_MissingKeyRejected(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	rec := httptest.NewRecorder()

	protected("sekrit").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_EmptyKeyDisablesCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	rec := httptest.NewRecorder()

	protected("").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
