package middleware

import "net/http"

// NewSecurityHeadersMiddleware はJSON APIのレスポンスに付けるセキュリティヘッダーのミドルウェアを返す。
//
// レスポンスは既定でキャッシュさせない。公開データを返すハンドラーは
// Cache-Controlを上書きしてよい。HSTSはTLS終端（直接またはX-Forwarded-Proto）の場合のみ付ける。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Cache-Control", "no-store")
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
