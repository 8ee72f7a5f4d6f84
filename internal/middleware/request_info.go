package middleware

import "context"

// requestInfo は外側のミドルウェアが内側で確定した値を参照するための入れ物。
type requestInfo struct {
	userID string
}

var requestInfoContextKey = contextKey("request_info")

func withRequestInfo(ctx context.Context, info *requestInfo) context.Context {
	return context.WithValue(ctx, requestInfoContextKey, info)
}

// recordUserID はロギングミドルウェアにユーザーIDを伝える。
func recordUserID(ctx context.Context, userID string) {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.userID = userID
	}
}

// recordedUserID はrecordUserIDで記録されたユーザーIDを返す。未認証なら空文字。
func recordedUserID(ctx context.Context) string {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		return info.userID
	}
	return ""
}
