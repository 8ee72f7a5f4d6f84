// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ecopoints/internal/identity"
	"github.com/hitoshi/ecopoints/internal/model"
)

type contextKey string

var userIDContextKey = contextKey("user_id")

// errNoUserInContext はセッションミドルウェアを通っていないコンテキストを示す。
var errNoUserInContext = errors.New("no authenticated user in request context")

// TokenVerifier はIDプロバイダーのセッショントークンを検証し、subjectを返す。
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// NewSessionMiddleware はBearerトークンまたは__session Cookieを検証し、
// subjectをユーザーIDとしてコンテキストに載せる。検証できなければ401で打ち切る。
func NewSessionMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := authenticate(verifier, r)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="ecopoints"`)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			recordUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// authenticate はリクエストからトークンを取り出して検証する。
// 署名や期限の不正は利用者側の問題なのでログに残さず、それ以外の失敗だけを記録する。
func authenticate(verifier TokenVerifier, r *http.Request) (string, error) {
	token, err := identity.TokenFromRequest(r)
	if err != nil {
		return "", err
	}

	userID, err := verifier.Verify(token)
	if err != nil && !errors.Is(err, identity.ErrInvalidToken) {
		slog.ErrorContext(r.Context(), "session token verification failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	if err == nil && userID == "" {
		err = identity.ErrInvalidToken
	}
	return userID, err
}

// UserIDFromContext は認証済みユーザーのIDを返す。
func UserIDFromContext(ctx context.Context) (string, error) {
	if userID, ok := ctx.Value(userIDContextKey).(string); ok && userID != "" {
		return userID, nil
	}
	return "", errNoUserInContext
}

// ContextWithUserID はセッションミドルウェアを通さずにユーザーIDを載せる。WebSocketのテストなどで使う。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
