package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(sub string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func TestExtractTokenFromRequest(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"Bearer", "", false},
		{"Bearer a b", "", false},
	}

	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		token, err := ExtractTokenFromRequest(r)
		if tc.ok {
			require.NoError(t, err, tc.header)
			assert.Equal(t, tc.token, token)
		} else {
			assert.Error(t, err, tc.header)
		}
	}
}

func TestHMACVerifier(t *testing.T) {
	v := NewHMACVerifier(testSecret)
	ctx := context.Background()

	identity, err := v.Verify(ctx, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("user-1")))
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.Subject)
	assert.False(t, identity.ExpiresAt.IsZero())

	_, err = v.Verify(ctx, signToken(t, jwt.SigningMethodHS256, []byte("other-secret"), validClaims("user-1")))
	assert.Error(t, err, "wrong secret")

	_, err = v.Verify(ctx, signToken(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims("user-1")))
	assert.Error(t, err, "unexpected algorithm")

	expired := validClaims("user-1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = v.Verify(ctx, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired))
	assert.Error(t, err, "expired")

	_, err = v.Verify(ctx, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{Subject: "user-1"}))
	assert.Error(t, err, "missing exp")

	_, err = v.Verify(ctx, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("")))
	assert.Error(t, err, "missing sub")
}

func TestMiddleware(t *testing.T) {
	var seen string
	protected := Middleware(NewHMACVerifier(testSecret), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/venues", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("user-42")))
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-42", seen)

	for _, header := range []string{"", "Bearer not-a-jwt", "Token abc"} {
		rec = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/api/venues", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "unauthorized", body["error"].(map[string]any)["kind"])
	}
}

func TestUserIDOutsideMiddleware(t *testing.T) {
	assert.Equal(t, "", UserID(context.Background()))
}

type countingVerifier struct {
	calls    int
	identity Identity
	err      error
}

func (v *countingVerifier) Verify(context.Context, string) (Identity, error) {
	v.calls++
	return v.identity, v.err
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestCachingVerifierRemembersSuccess(t *testing.T) {
	client, mr := setupTestRedis(t)
	next := &countingVerifier{identity: Identity{Subject: "user-1", ExpiresAt: time.Now().Add(time.Hour)}}
	v := NewCachingVerifier(next, client, 5*time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		identity, err := v.Verify(ctx, "token-a")
		require.NoError(t, err)
		assert.Equal(t, "user-1", identity.Subject)
	}
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, 5*time.Minute, mr.TTL(tokenKey("token-a")))

	_, err := v.Verify(ctx, "token-b")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls, "different tokens are cached separately")
}

func TestCachingVerifierTTLFollowsTokenExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	next := &countingVerifier{identity: Identity{Subject: "user-1", ExpiresAt: time.Now().Add(2 * time.Minute)}}
	v := NewCachingVerifier(next, client, time.Hour, nil)

	_, err := v.Verify(context.Background(), "token-a")
	require.NoError(t, err)

	ttl := mr.TTL(tokenKey("token-a"))
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 2*time.Minute-TokenExpiryBuffer)
}

func TestCachingVerifierNeverCachesFailure(t *testing.T) {
	client, mr := setupTestRedis(t)
	next := &countingVerifier{err: errors.New("bad signature")}
	v := NewCachingVerifier(next, client, time.Hour, nil)

	for i := 0; i < 2; i++ {
		_, err := v.Verify(context.Background(), "token-a")
		assert.Error(t, err)
	}
	assert.Equal(t, 2, next.calls)
	assert.False(t, mr.Exists(tokenKey("token-a")))
}
