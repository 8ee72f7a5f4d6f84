package model

import "testing"

func TestParseActivityKind(t *testing.T) {
	tests := []struct {
		name         string
		activityType string
		wantCategory ActivityCategory
		wantLabel    string
	}{
		{"Air接頭辞", "Air: GHG Emission Check", CategoryAir, "GHG Emission Check"},
		{"Water接頭辞", "Water: Flood & Drought Risk", CategoryWater, "Flood & Drought Risk"},
		{"Land接頭辞", "Land: Crop Disease Check", CategoryLand, "Crop Disease Check"},
		{"小文字の接頭辞", "land: deforestation analysis", CategoryLand, "deforestation analysis"},
		{"Quiz接頭辞", "Quiz: Climate", CategoryQuiz, "Climate"},
		{"Tool Use接頭辞", "Tool Use: Eco-Verify", CategoryTool, "Eco-Verify"},
		{"Citizen Science接頭辞", "Citizen Science: Report Issue", CategoryCitizenScience, "Report Issue"},
		{"Crop別名", "Crop: Recommendation", CategoryLand, "Recommendation"},
		{"前後の空白", "  Air :  City Lookup ", CategoryAir, "City Lookup"},
		{"未知の接頭辞", "Space: Rocket Launch", CategoryOther, "Space: Rocket Launch"},
		{"コロンなしで先頭語が部分一致", "Airborne check", CategoryOther, "Airborne check"},
		{"コロンなしのAir", "Air Analysis", CategoryAir, "Air Analysis"},
		{"コロンなしのWater", "Water Quality", CategoryWater, "Water Quality"},
		{"コロンなしの洪水", "Flood & Drought", CategoryWater, "Flood & Drought"},
		{"コロンなしの灌漑", "Irrigation Advisor", CategoryWater, "Irrigation Advisor"},
		{"コロンなしの作物", "Crop Disease Detection", CategoryLand, "Crop Disease Detection"},
		{"コロンなしの2語カテゴリ", "Citizen Science report", CategoryCitizenScience, "Citizen Science report"},
		{"コロンなしの未知語", "Profile Updated", CategoryOther, "Profile Updated"},
		{"ラベルに含まれるコロン", "Air: PM2.5: Delhi", CategoryAir, "PM2.5: Delhi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseActivityKind(tt.activityType)
			if got.Category != tt.wantCategory {
				t.Errorf("Category = %q, want %q", got.Category, tt.wantCategory)
			}
			if got.Label != tt.wantLabel {
				t.Errorf("Label = %q, want %q", got.Label, tt.wantLabel)
			}
		})
	}
}

// 部分一致による誤分類が起きないことを検証する
func TestParseActivityKind_NoSubstringMatch(t *testing.T) {
	got := ParseActivityKind("Repair: Water pump")
	if got.Category != CategoryOther {
		t.Errorf("Category = %q, want %q", got.Category, CategoryOther)
	}
}

func TestAwardedPoints(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{10, 10},
		{1, 1},
		{0, 0},
		{-5, 0},
	}
	for _, tt := range tests {
		if got := AwardedPoints(tt.in); got != tt.want {
			t.Errorf("AwardedPoints(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestActivityCategory_DisplayName(t *testing.T) {
	if got := CategoryCitizenScience.DisplayName(); got != "Citizen Science" {
		t.Errorf("DisplayName = %q, want %q", got, "Citizen Science")
	}
	if got := ActivityCategory("unknown").DisplayName(); got != "Other" {
		t.Errorf("DisplayName = %q, want %q", got, "Other")
	}
}

func TestPlaceholderEmail(t *testing.T) {
	if got := PlaceholderEmail("user_2abcXYZ"); got != "user_2abcXYZ@example.com" {
		t.Errorf("PlaceholderEmail = %q, want %q", got, "user_2abcXYZ@example.com")
	}
	if got := PlaceholderEmail("abc"); got != "user_abc@example.com" {
		t.Errorf("PlaceholderEmail = %q, want %q", got, "user_abc@example.com")
	}
	// 接頭辞がないIDの先頭を削らない
	if got := PlaceholderEmail("github|12345"); got != "user_github|12345@example.com" {
		t.Errorf("PlaceholderEmail = %q", got)
	}
}

func TestEmptyProfile(t *testing.T) {
	p := EmptyProfile("user_1")
	if p.ID != "user_1" || p.Email != "N/A" || p.Points != 0 {
		t.Errorf("EmptyProfile = %+v, want {user_1 N/A 0}", p)
	}
}

func TestNewPointsAwarded_Message(t *testing.T) {
	n := NewPointsAwarded(20, "Air: GHG Emission Check", 340)
	want := "+20 Eco-Points earned for Air: GHG Emission Check! Total: 340"
	if n.Message != want {
		t.Errorf("Message = %q, want %q", n.Message, want)
	}
	if n.Points != 20 || n.NewTotalPoints != 340 {
		t.Errorf("unexpected notification: %+v", n)
	}
}
