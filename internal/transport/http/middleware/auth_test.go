package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrecorder/internal/httputil"
	"bookrecorder/internal/model"
)

const testSecret = "middleware-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(userID int64) jwt.MapClaims {
	return jwt.MapClaims{"user_id": userID, "exp": time.Now().Add(time.Hour).Unix()}
}

// echoUserID responds with the user ID found in the context, or 0.
var echoUserID = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"user_id": userID})
})

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		prepare    func(r *http.Request)
		wantStatus int
		wantCode   string
		wantUserID int64
	}{
		{
			name: "bearer header",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims(7)))
			},
			wantStatus: http.StatusOK,
			wantUserID: 7,
		},
		{
			name: "cookie",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: model.AccessTokenCookie, Value: signToken(t, testSecret, validClaims(9))})
			},
			wantStatus: http.StatusOK,
			wantUserID: 9,
		},
		{
			name:       "missing token",
			prepare:    func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
			wantCode:   httputil.ErrCodeUnauthorized,
		},
		{
			name: "expired token",
			prepare: func(r *http.Request) {
				claims := jwt.MapClaims{"user_id": 7, "exp": time.Now().Add(-time.Minute).Unix()}
				r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, claims))
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   model.CodeTokenExpired,
		},
		{
			name: "wrong secret",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, "other", validClaims(7)))
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   model.CodeTokenInvalid,
		},
		{
			name: "missing user_id claim",
			prepare: func(r *http.Request) {
				claims := jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}
				r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, claims))
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   model.CodeTokenInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()

			AuthMiddleware(testSecret)(echoUserID).ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				var body map[string]int64
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.wantUserID, body["user_id"])
				return
			}
			var body httputil.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestOptionalAuthMiddleware_AnonymousPassesThrough(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()

	OptionalAuthMiddleware(testSecret)(echoUserID).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]int64
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(0), body["user_id"])
}

func TestOptionalAuthMiddleware_AttachesUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims(3)))

	var got *int64
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetOptionalUserID(r.Context())
	})
	OptionalAuthMiddleware(testSecret)(h).ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	assert.Equal(t, int64(3), *got)
}
