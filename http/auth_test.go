package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func TestGetTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		target string
		token  string
	}{
		{
			name:   "bearer token",
			header: "Bearer secret",
			target: "/",
			token:  "secret",
		},
		{
			name:   "non bearer authorization",
			header: "Basic c2VjcmV0",
			target: "/?token=secret",
			token:  "",
		},
		{
			name:   "query parameter",
			target: "/?token=secret",
			token:  "secret",
		},
		{
			name:   "no token",
			target: "/",
			token:  "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, test.target, nil)
			if test.header != "" {
				r.Header.Set("Authorization", test.header)
			}
			require.Equal(t, test.token, GetTokenFromRequest(r))
		})
	}
}

func TestVerifyAuthToken(t *testing.T) {
	t.Run("empty token accepts everything", func(t *testing.T) {
		handshake := VerifyAuthToken("")
		err := handshake(&websocket.Config{}, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
	})

	t.Run("valid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/?token=secret", nil)
		err := VerifyAuthToken("secret")(&websocket.Config{}, r)
		require.NoError(t, err)
	})

	t.Run("missing token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		err := VerifyAuthToken("secret")(&websocket.Config{}, r)
		require.True(t, errors.IsType(err, ErrTypeUnauthorized))
	})

	t.Run("invalid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer nope")
		err := VerifyAuthToken("secret")(&websocket.Config{}, r)
		require.True(t, errors.IsType(err, ErrTypeUnauthorized))
	})
}

func TestVerifyAuthTokenHandler(t *testing.T) {
	var called bool
	handler := VerifyAuthTokenHandler("secret", func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	t.Run("request is rejected", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodGet, "/smoke-test", nil))
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.False(t, called)
	})

	t.Run("request is accepted", func(t *testing.T) {
		called = false
		r := httptest.NewRequest(http.MethodGet, "/smoke-test", nil)
		r.Header.Set("Authorization", "Bearer secret")

		w := httptest.NewRecorder()
		handler(w, r)
		require.Equal(t, http.StatusOK, w.Code)
		require.True(t, called)
	})
}
