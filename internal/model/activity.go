package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Activity はユーザー操作の記録を表す。作成後は変更されない。
type Activity struct {
	ID        int64
	UserID    string
	Type      string
	Category  ActivityCategory
	Details   *string
	Points    int
	CreatedAt time.Time
}

// ActivityCategory はアクティビティ種別の閉じた分類。
// ダッシュボードの集計はTypeの文字列ではなくこの分類で行う。
type ActivityCategory string

const (
	CategoryAir            ActivityCategory = "air"
	CategoryWater          ActivityCategory = "water"
	CategoryLand           ActivityCategory = "land"
	CategoryQuiz           ActivityCategory = "quiz"
	CategoryTool           ActivityCategory = "tool"
	CategoryCitizenScience ActivityCategory = "citizen_science"
	CategoryOther          ActivityCategory = "other"
)

// AllCategories は集計時の表示順に並べた全カテゴリ。
var AllCategories = []ActivityCategory{
	CategoryAir,
	CategoryWater,
	CategoryLand,
	CategoryQuiz,
	CategoryTool,
	CategoryCitizenScience,
	CategoryOther,
}

// categoryPrefixes はTypeの接頭辞（小文字）とカテゴリの対応表。
var categoryPrefixes = map[string]ActivityCategory{
	"air":             CategoryAir,
	"water":           CategoryWater,
	"land":            CategoryLand,
	"crop":            CategoryLand,
	"deforestation":   CategoryLand,
	"quiz":            CategoryQuiz,
	"tool":            CategoryTool,
	"tool use":        CategoryTool,
	"eco-verify":      CategoryTool,
	"citizen science": CategoryCitizenScience,
}

// leadingWordAliases は ":" を含まないType（"Flood & Drought" など）の先頭語だけに使う別名。
var leadingWordAliases = map[string]ActivityCategory{
	"flood":      CategoryWater,
	"drought":    CategoryWater,
	"irrigation": CategoryWater,
	"pollution":  CategoryAir,
	"ghg":        CategoryAir,
	"weather":    CategoryAir,
}

// ActivityKind はTypeを分類と自由記述ラベルに分解したもの。
type ActivityKind struct {
	Category ActivityCategory
	Label    string
}

// ParseActivityKind は "Air: GHG Emission Check" 形式のTypeを解析する。
// 最初の ":" より前を接頭辞として大文字小文字を区別せずに照合し、該当しなければCategoryOther。
// ":" を含まない "Air Analysis" のようなTypeは先頭の1語または2語で照合し、ラベルは全体のまま。
func ParseActivityKind(activityType string) ActivityKind {
	trimmed := strings.TrimSpace(activityType)

	prefix, label, found := strings.Cut(trimmed, ":")
	if !found {
		return ActivityKind{Category: leadingWordCategory(trimmed), Label: trimmed}
	}

	key := strings.ToLower(strings.TrimSpace(prefix))
	category, ok := categoryPrefixes[key]
	if !ok {
		return ActivityKind{Category: CategoryOther, Label: trimmed}
	}

	return ActivityKind{Category: category, Label: strings.TrimSpace(label)}
}

// leadingWordCategory は先頭2語（"Citizen Science" など）、次に先頭1語の順で分類を探す。
// 部分一致はしないため "Airborne" はAirにならない。
func leadingWordCategory(activityType string) ActivityCategory {
	words := strings.FieldsFunc(strings.ToLower(activityType), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	if len(words) >= 2 {
		if c, ok := categoryPrefixes[words[0]+" "+words[1]]; ok {
			return c
		}
	}
	if len(words) >= 1 {
		if c, ok := categoryPrefixes[words[0]]; ok {
			return c
		}
		if c, ok := leadingWordAliases[words[0]]; ok {
			return c
		}
	}
	return CategoryOther
}

// DisplayName はカテゴリの表示名を返す。
func (c ActivityCategory) DisplayName() string {
	switch c {
	case CategoryAir:
		return "Air"
	case CategoryWater:
		return "Water"
	case CategoryLand:
		return "Land"
	case CategoryQuiz:
		return "Quiz"
	case CategoryTool:
		return "Tool"
	case CategoryCitizenScience:
		return "Citizen Science"
	default:
		return "Other"
	}
}

// AwardedPoints は加算に使うポイント数を返す。負数と0は0として扱う。
func AwardedPoints(pointsToAdd int) int {
	if pointsToAdd > 0 {
		return pointsToAdd
	}
	return 0
}

// Award はポイント付与とアクティビティ記録をまとめた1回分の入力。
type Award struct {
	UserID   string
	Email    string // usersレコードを新規作成する場合のメールアドレス
	Points   int    // 加算するポイント（AwardedPoints適用済み）
	Type     string
	Category ActivityCategory
	Details  *string
}

// AwardResult は付与後の累計ポイントと作成されたアクティビティ。
type AwardResult struct {
	NewTotalPoints int64
	Activity       *Activity
}

// PointsAwarded はバックグラウンド付与が成功したことを利用者に知らせる通知。
type PointsAwarded struct {
	Points         int    `json:"points"`
	ActivityType   string `json:"activityType"`
	NewTotalPoints int64  `json:"newTotalPoints"`
	Message        string `json:"message"`
}

// NewPointsAwarded は "+N Eco-Points earned for <type>! Total: <total>" 形式の通知を生成する。
func NewPointsAwarded(points int, activityType string, newTotal int64) PointsAwarded {
	return PointsAwarded{
		Points:         points,
		ActivityType:   activityType,
		NewTotalPoints: newTotal,
		Message:        fmt.Sprintf("+%d Eco-Points earned for %s! Total: %d", points, activityType, newTotal),
	}
}

// ActivityView はAPIレスポンス用のアクティビティ表現。
type ActivityView struct {
	ID        int64            `json:"id"`
	Type      string           `json:"type"`
	Category  ActivityCategory `json:"category"`
	Details   *string          `json:"details"`
	Points    int              `json:"points"`
	CreatedAt time.Time        `json:"createdAt"`
}

// NewActivityViews はアクティビティ一覧をレスポンス用に変換する。nilは空配列になる。
func NewActivityViews(activities []*Activity) []ActivityView {
	views := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		views = append(views, ActivityView{
			ID:        a.ID,
			Type:      a.Type,
			Category:  a.Category,
			Details:   a.Details,
			Points:    a.Points,
			CreatedAt: a.CreatedAt,
		})
	}
	return views
}
