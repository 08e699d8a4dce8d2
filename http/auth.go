package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const (
	// The header that identifies a client across connections.
	HeaderClientID = "X-Kenaz-Client-Id"

	// The query parameter carrying the auth token of browser WebSocket
	// clients, which cannot set headers.
	tokenQueryParam = "token"

	ErrTypeUnauthorized = "unauthorized"
)

// ClientID returns the client id set by the caller of r.
func ClientID(r *http.Request) string {
	return r.Header.Get(HeaderClientID)
}

// GetTokenFromRequest returns the bearer token of r, or the token query
// parameter when there is no Authorization header.
func GetTokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get(tokenQueryParam)
}

// VerifyAuthToken returns a WebSocket handshake that rejects connections not
// presenting token. An empty token accepts every connection.
func VerifyAuthToken(token string) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		if err := checkToken(token, r); err != nil {
			logs.WithClientID(ClientID(r)).Error(err)
			return err
		}
		return nil
	}
}

// VerifyAuthTokenHandler responds 401 to requests not presenting token. An
// empty token accepts every request.
func VerifyAuthTokenHandler(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checkToken(token, r); err != nil {
			logs.WithClientID(ClientID(r)).Error(err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func checkToken(token string, r *http.Request) error {
	if token == "" {
		return nil
	}

	given := GetTokenFromRequest(r)
	if given == "" {
		return errors.New("missing auth token").
			WithType(ErrTypeUnauthorized).
			WithTag("path", r.URL.Path)
	}

	if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
		return errors.New("invalid auth token").
			WithType(ErrTypeUnauthorized).
			WithTag("path", r.URL.Path)
	}
	return nil
}
