package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWTVerifierAcceptsValidToken(t *testing.T) {
	v := NewJWTVerifier("secret", "bingo")
	token := sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.RegisteredClaims{
		Subject:   "user-a",
		Issuer:    "bingo",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	uid, err := v.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-a", uid)
}

func TestJWTVerifierRejects(t *testing.T) {
	v := NewJWTVerifier("secret", "bingo")
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	cases := map[string]string{
		"wrong secret": sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.RegisteredClaims{
			Subject: "u", Issuer: "bingo", ExpiresAt: future,
		}),
		"expired": sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.RegisteredClaims{
			Subject: "u", Issuer: "bingo", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}),
		"no expiry": sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.RegisteredClaims{
			Subject: "u", Issuer: "bingo",
		}),
		"wrong issuer": sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.RegisteredClaims{
			Subject: "u", Issuer: "elsewhere", ExpiresAt: future,
		}),
		"no subject": sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.RegisteredClaims{
			Issuer: "bingo", ExpiresAt: future,
		}),
		"wrong alg": sign(t, jwt.SigningMethodHS512, []byte("secret"), jwt.RegisteredClaims{
			Subject: "u", Issuer: "bingo", ExpiresAt: future,
		}),
		"garbage": "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Authenticate(context.Background(), token)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestRemoteClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"user-b","email":"b@example.com"}`))
	}))
	defer srv.Close()

	c := NewRemoteClient(srv.URL+"/", "anon-key")

	uid, err := c.Authenticate(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "user-b", uid)

	_, err = c.Authenticate(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
