package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// OriginAllowlist はCORSとWebSocketで許可するオリジンの一覧。
type OriginAllowlist []string

// ParseOriginAllowlist はカンマ区切りのオリジン一覧を解析する。末尾の "/" は取り除く。
func ParseOriginAllowlist(raw string) OriginAllowlist {
	var list OriginAllowlist
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" && !slices.Contains(list, o) {
			list = append(list, o)
		}
	}
	return list
}

// Allows はoriginが一覧に含まれるかを返す。"*" は使用できない。
func (l OriginAllowlist) Allows(origin string) bool {
	return origin != "" && origin != "*" && slices.Contains(l, origin)
}

// NewCORSMiddleware は許可オリジンに対するCORSミドルウェアを返す。
// リクエストのOriginが許可されている場合のみ、そのOriginをAllow-Originに返す。
// OPTIONSプリフライトリクエストには204で応答する。
func NewCORSMiddleware(allowed OriginAllowlist) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")

			if origin := r.Header.Get("Origin"); allowed.Allows(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
				w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader+", Retry-After")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
