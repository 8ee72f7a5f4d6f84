package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/ecopoints/internal/model"
)

// PostgresLedgerRepo はポイント加算とアクティビティ記録をまとめて永続化するリポジトリ。
type PostgresLedgerRepo struct {
	db TxBeginner
}

// NewPostgresLedgerRepo はPostgresLedgerRepoを生成する。
func NewPostgresLedgerRepo(db TxBeginner) *PostgresLedgerRepo {
	return &PostgresLedgerRepo{db: db}
}

// Award はusersのUPSERTとactivitiesのINSERTを同一トランザクションで行う。
//
// 既存ユーザーは points = points + award.Points の行単位の加算で更新するため、
// 同一ユーザーへの並行した付与でも加算が失われることはない。
// ユーザーが未作成の場合はaward.Emailとaward.Pointsで作成する。
func (r *PostgresLedgerRepo) Award(ctx context.Context, award *model.Award) (*model.AwardResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. ポイント台帳をUPSERT
	var newTotal int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO users (id, email, points, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 ON CONFLICT (id) DO UPDATE
		 SET points = users.points + EXCLUDED.points,
		     updated_at = now()
		 RETURNING points`,
		award.UserID, award.Email, award.Points,
	).Scan(&newTotal)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user points: %w", err)
	}

	// 2. アクティビティを追記
	activity, err := scanActivity(tx.QueryRowContext(ctx,
		`INSERT INTO activities (user_id, type, category, details, points)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, user_id, type, category, details, points, created_at`,
		award.UserID, award.Type, string(award.Category), award.Details, award.Points,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &model.AwardResult{
		NewTotalPoints: newTotal,
		Activity:       activity,
	}, nil
}

// compile-time interface check
var _ LedgerRepository = (*PostgresLedgerRepo)(nil)
