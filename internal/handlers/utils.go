package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jason-s-yu/chessmatch/internal/game"
	"github.com/jason-s-yu/chessmatch/internal/lobby"
)

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// requestToken returns the token query parameter, falling back to the auth_token cookie.
func requestToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return extractCookieToken(r.Header.Get("Cookie"), "auth_token")
}

// clientError maps an error to the code shown to the client. Errors that are
// not meant for clients report false.
func clientError(err error) (string, bool) {
	for _, e := range []error{
		game.ErrAlreadyInRoom,
		game.ErrInvalidMessage,
		lobby.ErrRoomNotFound,
		lobby.ErrSelfJoin,
		lobby.ErrCodeInUse,
	} {
		if errors.Is(err, e) {
			return e.Error(), true
		}
	}
	return "", false
}
