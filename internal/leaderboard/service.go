// Package leaderboard はポイント上位ユーザーのランキングを提供する。
package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/ecopoints/internal/metrics"
	"github.com/hitoshi/ecopoints/internal/model"
	"github.com/hitoshi/ecopoints/internal/repository"
)

const (
	// TopN はランキングに含める最大ユーザー数。
	TopN = 5
	// UnnamedUser はIDプロバイダーに記録がないユーザーの表示名。
	UnnamedUser = "Unnamed User"
	// DefaultAvatar はIDプロバイダーに記録がないユーザーの画像パス。
	DefaultAvatar = "/default-avatar.png"
)

// Entry はランキングの1行。
type Entry struct {
	ID       string `json:"id"`
	Points   int64  `json:"points"`
	FullName string `json:"fullName"`
	ImageURL string `json:"imageUrl"`
}

// ProfileLookup はユーザーIDから表示用プロフィールを一括取得する。
type ProfileLookup interface {
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]model.IdentityProfile, error)
}

// Service はランキング取得のサービス層。結果はキャッシュせず毎回計算する。
type Service struct {
	users    repository.UserRepository
	profiles ProfileLookup
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users repository.UserRepository, profiles ProfileLookup, collector metrics.MetricsCollector, logger *slog.Logger) *Service {
	return &Service{
		users:    users,
		profiles: profiles,
		metrics:  collector,
		logger:   logger,
	}
}

// GetLeaderboard はポイント上位TopN件を表示名と画像付きで返す。
//
// 順位はポイント降順で、同点は登録が古い順、さらにID順。
// IDプロバイダーの呼び出しに失敗した場合も順位は維持し、
// 全件をプレースホルダーで補完して返す。
func (s *Service) GetLeaderboard(ctx context.Context) ([]Entry, error) {
	ranked, err := s.users.ListTopByPoints(ctx, TopN)
	if err != nil {
		return nil, fmt.Errorf("ランキングの取得に失敗しました: %w", err)
	}
	if len(ranked) == 0 {
		return []Entry{}, nil
	}

	ids := make([]string, len(ranked))
	for i, u := range ranked {
		ids[i] = u.ID
	}

	profiles, err := s.profiles.GetUsersByIDs(ctx, ids)
	if err != nil {
		s.metrics.RecordIdentityLookup(false)
		s.logger.Warn("プロフィールの取得に失敗したためプレースホルダーで補完します",
			slog.Int("user_count", len(ids)),
			slog.String("error", err.Error()),
		)
		profiles = nil
	} else {
		s.metrics.RecordIdentityLookup(true)
	}

	entries := make([]Entry, len(ranked))
	for i, u := range ranked {
		entries[i] = newEntry(u, profiles)
	}
	return entries, nil
}

// newEntry はランキング行とプロフィールを結合する。
func newEntry(u model.RankedUser, profiles map[string]model.IdentityProfile) Entry {
	entry := Entry{
		ID:       u.ID,
		Points:   u.Points,
		FullName: UnnamedUser,
		ImageURL: DefaultAvatar,
	}

	p, ok := profiles[u.ID]
	if !ok {
		return entry
	}
	if name := strings.TrimSpace(p.FirstName + " " + p.LastName); name != "" {
		entry.FullName = name
	}
	if p.ImageURL != "" {
		entry.ImageURL = p.ImageURL
	}
	return entry
}

// Position はランキング内のuserIDの順位（1始まり）を返す。含まれない場合は0。
func Position(entries []Entry, userID string) int {
	for i, e := range entries {
		if e.ID == userID {
			return i + 1
		}
	}
	return 0
}
