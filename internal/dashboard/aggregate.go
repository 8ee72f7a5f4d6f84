// Package dashboard はプロフィール、アクティビティ、ランキングを組み合わせた
// ダッシュボード用の集計を提供する。
package dashboard

import (
	"math"
	"time"

	"github.com/hitoshi/ecopoints/internal/leaderboard"
	"github.com/hitoshi/ecopoints/internal/model"
)

// Tier は累計ポイントに応じたランク。
type Tier struct {
	Name      string `json:"name"`
	MinPoints int64  `json:"minPoints"`
}

// Tiers は閾値の昇順に並べたランク一覧。
var Tiers = []Tier{
	{Name: "Eco Beginner", MinPoints: 0},
	{Name: "Eco Explorer", MinPoints: 100},
	{Name: "Eco Guardian", MinPoints: 500},
	{Name: "Eco Champion", MinPoints: 1000},
}

// TierFor は累計ポイントに対応するランクと次のランクを返す。
// 最上位の場合、次のランクはnil。
func TierFor(points int64) (Tier, *Tier) {
	current := Tiers[0]
	for i, t := range Tiers {
		if points < t.MinPoints {
			next := Tiers[i]
			return current, &next
		}
		current = t
	}
	return current, nil
}

// CategoryCount はカテゴリ別のアクティビティ件数。
type CategoryCount struct {
	Category model.ActivityCategory `json:"category"`
	Name     string                 `json:"name"`
	Count    int                    `json:"count"`
}

// Snapshot はダッシュボード1回分の表示データ。
type Snapshot struct {
	Profile                   model.Profile        `json:"profile"`
	Tier                      Tier                 `json:"tier"`
	NextTier                  *Tier                `json:"nextTier"`
	PointsToNextTier          int64                `json:"pointsToNextTier"`
	Streak                    int                  `json:"streak"`
	ActiveDays                int                  `json:"activeDays"`
	AveragePointsPerActiveDay float64              `json:"averagePointsPerActiveDay"`
	Categories                []CategoryCount      `json:"categories"`
	LeaderboardPosition       int                  `json:"leaderboardPosition"`
	Leaderboard               []leaderboard.Entry  `json:"leaderboard"`
	RecentActivity            []model.ActivityView `json:"recentActivity"`
	GeneratedAt               time.Time            `json:"generatedAt"`
}

// Aggregate はプロフィール、アクティビティ（新しい順）、ランキングからSnapshotを組み立てる。
// 日付の区切りはlocのカレンダー日で判定する。
func Aggregate(profile model.Profile, activities []*model.Activity, board []leaderboard.Entry, now time.Time, loc *time.Location) Snapshot {
	if loc == nil {
		loc = time.UTC
	}
	if board == nil {
		board = []leaderboard.Entry{}
	}

	tier, next := TierFor(profile.Points)
	var remaining int64
	if next != nil {
		remaining = next.MinPoints - profile.Points
	}

	days := activeDays(activities, loc)

	return Snapshot{
		Profile:                   profile,
		Tier:                      tier,
		NextTier:                  next,
		PointsToNextTier:          remaining,
		Streak:                    streak(days, now, loc),
		ActiveDays:                len(days),
		AveragePointsPerActiveDay: averagePerDay(activities, len(days)),
		Categories:                countCategories(activities),
		LeaderboardPosition:       leaderboard.Position(board, profile.ID),
		Leaderboard:               board,
		RecentActivity:            model.NewActivityViews(activities),
		GeneratedAt:               now,
	}
}

// dayOf はlocにおけるtの日付（0時）を返す。
func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// activeDays はアクティビティが1件以上ある日付の集合を返す。
func activeDays(activities []*model.Activity, loc *time.Location) map[time.Time]struct{} {
	days := make(map[time.Time]struct{})
	for _, a := range activities {
		days[dayOf(a.CreatedAt, loc)] = struct{}{}
	}
	return days
}

// streak は今日から遡ってアクティビティのある日が連続する日数を返す。
// 今日のアクティビティがない場合は0。
//
// 0時が存在しない日（夏時間の開始）はdayOfが1時に正規化するため、
// 1日戻すたびにdayOfで0時に揃え直す。
func streak(days map[time.Time]struct{}, now time.Time, loc *time.Location) int {
	count := 0
	for d := dayOf(now, loc); ; d = dayOf(d.AddDate(0, 0, -1), loc) {
		if _, ok := days[d]; !ok {
			return count
		}
		count++
	}
}

// averagePerDay は活動日1日あたりの平均獲得ポイントを小数第2位で丸めて返す。
func averagePerDay(activities []*model.Activity, activeDays int) float64 {
	if activeDays == 0 {
		return 0
	}
	var total int
	for _, a := range activities {
		total += a.Points
	}
	return math.Round(float64(total)/float64(activeDays)*100) / 100
}

// countCategories は全カテゴリについて件数を数える。件数0のカテゴリも含む。
func countCategories(activities []*model.Activity) []CategoryCount {
	counts := make(map[model.ActivityCategory]int, len(model.AllCategories))
	for _, a := range activities {
		counts[a.Category]++
	}

	result := make([]CategoryCount, len(model.AllCategories))
	for i, c := range model.AllCategories {
		result[i] = CategoryCount{Category: c, Name: c.DisplayName(), Count: counts[c]}
	}
	return result
}
