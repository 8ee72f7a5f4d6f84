package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/ecopoints/internal/model"
)

// PostgresActivityRepo はPostgreSQLを使用したアクティビティログリポジトリ。
type PostgresActivityRepo struct {
	db *sql.DB
}

// NewPostgresActivityRepo はPostgresActivityRepoを生成する。
func NewPostgresActivityRepo(db *sql.DB) *PostgresActivityRepo {
	return &PostgresActivityRepo{db: db}
}

// ListRecentByUser はユーザーのアクティビティをcreated_at降順で最大limit件返す。
// 同一トランザクション内で作成されcreated_atが等しい行はid降順で並べる。
func (r *PostgresActivityRepo) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*model.Activity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, category, details, points, created_at
		 FROM activities
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("アクティビティ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	activities := make([]*model.Activity, 0, limit)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アクティビティ一覧の走査に失敗しました: %w", err)
	}

	return activities, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanActivity は1行分のアクティビティを読み取る。
func scanActivity(s rowScanner) (*model.Activity, error) {
	a := &model.Activity{}
	var category string
	var details sql.NullString

	if err := s.Scan(&a.ID, &a.UserID, &a.Type, &category, &details, &a.Points, &a.CreatedAt); err != nil {
		return nil, fmt.Errorf("アクティビティの読み取りに失敗しました: %w", err)
	}

	a.Category = model.ActivityCategory(category)
	if details.Valid {
		a.Details = &details.String
	}
	return a, nil
}

// compile-time interface check
var _ ActivityRepository = (*PostgresActivityRepo)(nil)
