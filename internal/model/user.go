package model

import (
	"strings"
	"time"
)

// User はポイント台帳上のユーザーを表す。
// IDはIdP（Clerk）が発行するsubjectであり、ローカルでは生成しない。
type User struct {
	ID        string
	Email     string
	Points    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile は認証済みユーザー自身に返すプロフィール。
type Profile struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Points int64  `json:"points"`
}

// ProfileEmailUnknown はusersレコードが未作成のユーザーに返すメールアドレス。
const ProfileEmailUnknown = "N/A"

// PlaceholderEmail はメールアドレス不明のまま作成されるユーザーの仮アドレスを返す。
// ClerkのユーザーIDは "user_" で始まるため、接頭辞を重ねずに埋め込む。
func PlaceholderEmail(userID string) string {
	return "user_" + strings.TrimPrefix(userID, "user_") + "@example.com"
}

// EmptyProfile はusersレコードが存在しない場合の0ポイントのプロフィールを返す。
func EmptyProfile(userID string) *Profile {
	return &Profile{
		ID:     userID,
		Email:  ProfileEmailUnknown,
		Points: 0,
	}
}

// RankedUser はリーダーボード集計用にポイント降順で取得したユーザー。
type RankedUser struct {
	ID        string
	Points    int64
	CreatedAt time.Time
}

// IdentityProfile はIdPから取得した表示用のプロフィール情報。
type IdentityProfile struct {
	ID        string
	FirstName string
	LastName  string
	ImageURL  string
}
