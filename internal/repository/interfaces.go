// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/ecopoints/internal/model"
)

// UserRepository はポイント台帳（usersテーブル）の読み取りインターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// ListTopByPoints はpoints降順で上位limit件のユーザーを返す。
	// 同点の場合はcreated_atが古い順、さらにid昇順で並べる。
	ListTopByPoints(ctx context.Context, limit int) ([]model.RankedUser, error)
}

// ActivityRepository はアクティビティログの読み取りインターフェース。
// アクティビティは追記のみで、更新・削除の操作は提供しない。
type ActivityRepository interface {
	// ListRecentByUser はユーザーのアクティビティをcreated_at降順で最大limit件返す。
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]*model.Activity, error)
}

// LedgerRepository はポイント加算とアクティビティ記録の書き込みインターフェース。
type LedgerRepository interface {
	// Award はusersのUPSERT（ポイント加算）とactivitiesのINSERTを同一トランザクションで行う。
	// どちらかが失敗した場合はどちらも反映されない。
	Award(ctx context.Context, award *model.Award) (*model.AwardResult, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
