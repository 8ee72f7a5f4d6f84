package points

import (
	"math"
	"strconv"
	"strings"

	"github.com/hitoshi/ecopoints/internal/model"
)

const (
	// MaxPointsMagnitude はpointsToAddの絶対値の上限。
	MaxPointsMagnitude = 1_000_000

	// DefaultActivityLimit はlimit未指定時の取得件数。
	DefaultActivityLimit = 10
	// MaxActivityLimit はlimitの上限。
	MaxActivityLimit = 50
)

// ValidatePoints はJSONで受け取ったpointsToAddを検証して整数に変換する。
// nil（未指定）、非有限値、小数、範囲外はいずれもエラーとする。
func ValidatePoints(v *float64) (int, error) {
	if v == nil {
		return 0, model.NewInvalidPointsError("pointsToAddが指定されていません")
	}
	f := *v
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, model.NewInvalidPointsError("有限の数値ではありません")
	}
	if f != math.Trunc(f) {
		return 0, model.NewInvalidPointsError("整数ではありません")
	}
	if math.Abs(f) > MaxPointsMagnitude {
		return 0, model.NewInvalidPointsError("範囲外の値です")
	}
	return int(f), nil
}

// ParseLimit はクエリパラメータのlimitを解釈する。
// 空の場合はDefaultActivityLimit、数値でない場合はエラー、
// それ以外は1からMaxActivityLimitの範囲に丸める。
func ParseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultActivityLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewInvalidLimitError(raw)
	}
	return ClampLimit(n), nil
}

// ClampLimit はlimitを1からMaxActivityLimitの範囲に丸める。
func ClampLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxActivityLimit {
		return MaxActivityLimit
	}
	return n
}
