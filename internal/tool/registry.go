// Package tool は推論サービスのツール呼び出しを中継し、成功時にポイントを付与する。
package tool

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// argPlaceholder は上流パス中のパス引数の位置。
const argPlaceholder = "{arg}"

// Tool は推論サービスの1エンドポイントと、成功時に付与するポイントの定義。
type Tool struct {
	Name         string
	Method       string
	Path         string
	Points       int
	ActivityType string
	// Describe は付与するアクティビティの詳細を組み立てる。nilの場合は詳細なし。
	// respは上流のJSONレスポンス（オブジェクトでない場合はnil）。
	Describe func(arg string, resp map[string]any) string
}

// HasArg はパス引数を取るツールかどうかを返す。
func (t Tool) HasArg() bool {
	return strings.Contains(t.Path, argPlaceholder)
}

// UpstreamPath はパス引数を埋め込んだ上流パスを返す。
func (t Tool) UpstreamPath(escapedArg string) string {
	return strings.Replace(t.Path, argPlaceholder, escapedArg, 1)
}

// DefaultTools は推論サービスが提供するツール一覧。
var DefaultTools = []Tool{
	{Name: "ghg-emissions", Method: http.MethodPost, Path: "/air/ghg_emissions", Points: 20, ActivityType: "Air: GHG Emission Check"},
	{
		Name: "pollution-by-city", Method: http.MethodGet, Path: "/air/pollution_by_city/" + argPlaceholder,
		Points: 5, ActivityType: "Air: City Pollution Lookup",
		Describe: func(arg string, _ map[string]any) string { return "City: " + arg },
	},
	{Name: "flood-drought", Method: http.MethodPost, Path: "/predict/flood_drought_by_city", Points: 15, ActivityType: "Water: Flood & Drought Risk"},
	{Name: "water-quality", Method: http.MethodPost, Path: "/predict/water_quality", Points: 10, ActivityType: "Water: Quality Prediction"},
	{Name: "irrigation", Method: http.MethodPost, Path: "/irrigation/get_recommendation", Points: 10, ActivityType: "Water: Irrigation Advice"},
	{Name: "deforestation", Method: http.MethodPost, Path: "/analyze_area", Points: 15, ActivityType: "Land: Deforestation Analysis"},
	{
		Name: "crop-disease", Method: http.MethodPost, Path: "/predict_crop_disease",
		Points: 10, ActivityType: "Land: Crop Disease Check",
		Describe: describeFields("Detected: %v", "disease"),
	},
	{
		Name: "crop-recommendation", Method: http.MethodPost, Path: "/recommend_crop_from_photo",
		Points: 10, ActivityType: "Land: Crop Recommendation",
		Describe: describeFields("Recommended: %v", "recommended_crop"),
	},
	{
		Name: "report-issue", Method: http.MethodPost, Path: "/report_issue",
		Points: 50, ActivityType: "Citizen Science: Report Issue",
		Describe: describeFields("Reported: %v (Severity: %v)", "issue_type", "severity"),
	},
	{Name: "verify-claim", Method: http.MethodPost, Path: "/verify_claim", Points: 5, ActivityType: "Tool Use: Eco-Verify"},
	{Name: "ecobot", Method: http.MethodPost, Path: "/chatbot/ecobot", Points: 2, ActivityType: "Tool Use: Ecobot Chat"},
}

// describeFields は上流レスポンスの指定フィールドをformatに埋め込むDescribeを返す。
// いずれかのフィールドがない場合は詳細なしとする。
func describeFields(format string, fields ...string) func(string, map[string]any) string {
	return func(_ string, resp map[string]any) string {
		values := make([]any, len(fields))
		for i, f := range fields {
			v, ok := resp[f]
			if !ok || v == nil {
				return ""
			}
			values[i] = v
		}
		return fmt.Sprintf(format, values...)
	}
}

// Registry は名前でツールを引く。
type Registry struct {
	tools map[string]Tool
}

// NewRegistry はRegistryを生成する。名前が重複する場合は後の定義を使う。
func NewRegistry(tools []Tool) *Registry {
	m := make(map[string]Tool, len(tools))
	for _, t := range tools {
		m[t.Name] = t
	}
	return &Registry{tools: m}
}

// Lookup は名前に対応するツールを返す。
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names は登録済みのツール名を昇順で返す。
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
