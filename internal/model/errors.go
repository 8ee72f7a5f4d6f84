// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, not_found, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeInvalidPoints    = "INVALID_POINTS"
	ErrCodeInvalidActivity  = "INVALID_ACTIVITY_TYPE"
	ErrCodeInvalidLimit     = "INVALID_LIMIT"
	ErrCodeToolNotFound     = "TOOL_NOT_FOUND"
	ErrCodeInferenceFailed  = "INFERENCE_FAILED"
	ErrCodeUpstreamFailed   = "UPSTREAM_FAILED"
	ErrCodeMissingAPIKey    = "MISSING_API_KEY"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "サインインしてください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidPointsError はポイント数が不正な場合のエラーを生成する。
func NewInvalidPointsError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPoints,
		Message:  fmt.Sprintf("pointsToAddが不正です: %s", reason),
		Category: "validation",
		Action:   "pointsToAddには整数を指定してください。",
	}
}

// NewInvalidActivityError はアクティビティ種別・詳細が不正な場合のエラーを生成する。
func NewInvalidActivityError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidActivity,
		Message:  fmt.Sprintf("アクティビティが不正です: %s", reason),
		Category: "validation",
		Action:   "activityTypeに空でない文字列を指定してください。",
	}
}

// NewInvalidLimitError は取得件数の指定が不正な場合のエラーを生成する。
func NewInvalidLimitError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLimit,
		Message:  fmt.Sprintf("無効な取得件数です: %s", raw),
		Category: "validation",
		Action:   "limitには1以上の整数を指定してください。",
	}
}

// NewToolNotFoundError は未登録のツールが指定された場合のエラーを生成する。
func NewToolNotFoundError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeToolNotFound,
		Message:  fmt.Sprintf("指定されたツールが見つかりません: %s", name),
		Category: "not_found",
		Action:   "ツール名を確認してください。",
	}
}

// NewInferenceFailedError は推論サービスの呼び出し失敗エラーを生成する。
// 一次経路のエラーのため、推論サービスのメッセージをそのまま利用者に示す。
func NewInferenceFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInferenceFailed,
		Message:  reason,
		Category: "upstream",
		Action:   "入力内容を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewUpstreamFailedError は外部APIの取得失敗エラーを生成する。
func NewUpstreamFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  reason,
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewMissingAPIKeyError は外部APIキーが未設定の場合のエラーを生成する。
func NewMissingAPIKeyError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingAPIKey,
		Message:  "AQICN API key not found.",
		Category: "system",
		Action:   "サーバー管理者に連絡してください。",
	}
}

// NewMethodNotAllowedError は許可されていないHTTPメソッドのエラーを生成する。
func NewMethodNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  "Method Not Allowed",
		Category: "validation",
		Action:   "POSTで送信してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
