package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookieName はIDプロバイダーが発行するセッションCookieの名前。
const SessionCookieName = "__session"

// ErrNoToken はリクエストにセッショントークンが含まれないことを示す。
var ErrNoToken = errors.New("session token not found")

// ErrInvalidToken はトークンの署名・有効期限・subjectのいずれかが不正であることを示す。
var ErrInvalidToken = errors.New("invalid session token")

// TokenVerifier はセッショントークン（JWT）を検証してユーザーIDを取り出す。
type TokenVerifier struct {
	keyFunc jwt.Keyfunc
	parser  *jwt.Parser
}

// NewRS256Verifier はPEM形式の公開鍵でRS256署名を検証するTokenVerifierを生成する。
func NewRS256Verifier(publicKeyPEM string) (*TokenVerifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT public key: %w", err)
	}
	return &TokenVerifier{
		keyFunc: func(*jwt.Token) (any, error) { return key, nil },
		parser:  jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}), jwt.WithExpirationRequired()),
	}, nil
}

// NewHS256Verifier は共有シークレットでHS256署名を検証するTokenVerifierを生成する。
func NewHS256Verifier(secret string) (*TokenVerifier, error) {
	if secret == "" {
		return nil, errors.New("session secret must not be empty")
	}
	key := []byte(secret)
	return &TokenVerifier{
		keyFunc: func(*jwt.Token) (any, error) { return key, nil },
		parser:  jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired()),
	}, nil
}

// Verify はトークンを検証し、subjectクレーム（ユーザーID）を返す。
func (v *TokenVerifier) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, v.keyFunc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// TokenFromRequest はAuthorizationヘッダー（Bearer）または__session Cookieからトークンを取り出す。
// ヘッダーが優先される。
func TokenFromRequest(r *http.Request) (string, error) {
	if authz := r.Header.Get("Authorization"); authz != "" {
		scheme, token, found := strings.Cut(authz, " ")
		if found && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), nil
		}
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	return "", ErrNoToken
}
