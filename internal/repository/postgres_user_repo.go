package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/ecopoints/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザー（ポイント台帳）リポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, points, created_at, updated_at FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Email, &user.Points, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// ListTopByPoints はpoints降順で上位limit件のユーザーを返す。
// 同点はcreated_atが古い順、さらにid昇順で決定的に並べる。
func (r *PostgresUserRepo) ListTopByPoints(ctx context.Context, limit int) ([]model.RankedUser, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, points, created_at
		 FROM users
		 ORDER BY points DESC, created_at ASC, id ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list top users: %w", err)
	}
	defer rows.Close()

	var users []model.RankedUser
	for rows.Next() {
		var u model.RankedUser
		if err := rows.Scan(&u.ID, &u.Points, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan top user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top users: %w", err)
	}

	return users, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
