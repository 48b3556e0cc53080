package mastery

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"lautcoach/internal/models"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestUpdateFirstAttempt(t *testing.T) {
	got := Update(nil, 72.46, now)
	if got.TotalAttempts != 1 {
		t.Errorf("TotalAttempts = %d, want 1", got.TotalAttempts)
	}
	if got.AverageScore != 72.5 || got.BestScore != 72.5 {
		t.Errorf("AverageScore/BestScore = %v/%v, want 72.5/72.5", got.AverageScore, got.BestScore)
	}
	if got.MasteryLevel != models.MasteryPracticing {
		t.Errorf("MasteryLevel = %q, want %q", got.MasteryLevel, models.MasteryPracticing)
	}
	if got.LastPracticed == nil || !got.LastPracticed.Equal(now) {
		t.Errorf("LastPracticed = %v, want %v", got.LastPracticed, now)
	}
}

func TestUpdateReachesMastery(t *testing.T) {
	var rec *models.MasteryRecord
	for i := 1; i <= 5; i++ {
		next := Update(rec, 90, now)
		rec = &next

		if rec.TotalAttempts != i {
			t.Fatalf("after %d attempts TotalAttempts = %d", i, rec.TotalAttempts)
		}
		if rec.AverageScore != 90 {
			t.Fatalf("after %d attempts AverageScore = %v, want 90", i, rec.AverageScore)
		}
		want := models.MasteryPracticing
		if i >= 5 {
			want = models.MasteryMastered
		}
		if rec.MasteryLevel != want {
			t.Errorf("after %d attempts MasteryLevel = %q, want %q", i, rec.MasteryLevel, want)
		}
	}
}

func TestUpdateRunningMean(t *testing.T) {
	tests := []struct {
		name     string
		scores   []float64
		wantAvg  float64
		wantBest float64
		want     models.MasteryLevel
	}{
		{name: "exact mean", scores: []float64{100, 50, 60}, wantAvg: 70, wantBest: 100, want: models.MasteryPracticing},
		{name: "rounding per step", scores: []float64{33.33, 33.33, 33.34}, wantAvg: 33.3, wantBest: 33.3, want: models.MasteryPracticing},
		{name: "zero scores still count", scores: []float64{0, 0}, wantAvg: 0, wantBest: 0, want: models.MasteryPracticing},
		{name: "high average but too few attempts", scores: []float64{100, 100, 100, 100}, wantAvg: 100, wantBest: 100, want: models.MasteryPracticing},
		{name: "five attempts below threshold", scores: []float64{80, 80, 80, 80, 80}, wantAvg: 80, wantBest: 80, want: models.MasteryPracticing},
		{name: "threshold is inclusive", scores: []float64{85, 85, 85, 85, 85}, wantAvg: 85, wantBest: 85, want: models.MasteryMastered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *models.MasteryRecord
			for _, s := range tt.scores {
				next := Update(rec, s, now)
				rec = &next
			}
			if rec.AverageScore != tt.wantAvg {
				t.Errorf("AverageScore = %v, want %v", rec.AverageScore, tt.wantAvg)
			}
			if rec.BestScore != tt.wantBest {
				t.Errorf("BestScore = %v, want %v", rec.BestScore, tt.wantBest)
			}
			if rec.MasteryLevel != tt.want {
				t.Errorf("MasteryLevel = %q, want %q", rec.MasteryLevel, tt.want)
			}
		})
	}
}

func TestUpdateNoDemotion(t *testing.T) {
	rec := &models.MasteryRecord{
		TotalAttempts: 5,
		AverageScore:  90,
		BestScore:     95,
		MasteryLevel:  models.MasteryMastered,
	}
	got := Update(rec, 0, now)
	if got.MasteryLevel != models.MasteryMastered {
		t.Errorf("MasteryLevel = %q, want mastered to stick", got.MasteryLevel)
	}
	if got.AverageScore != 75 {
		t.Errorf("AverageScore = %v, want 75", got.AverageScore)
	}
	if got.BestScore != 95 {
		t.Errorf("BestScore = %v, want 95", got.BestScore)
	}
}

func TestUpdateAttemptsAlwaysIncrease(t *testing.T) {
	rec := &models.MasteryRecord{TotalAttempts: 3, AverageScore: 50, BestScore: 70, MasteryLevel: models.MasteryPracticing}
	for _, s := range []float64{0, 100, 42.5, 0} {
		next := Update(rec, s, now)
		if next.TotalAttempts != rec.TotalAttempts+1 {
			t.Fatalf("TotalAttempts went %d -> %d", rec.TotalAttempts, next.TotalAttempts)
		}
		if next.MasteryLevel == models.MasteryNew {
			t.Fatal("record returned to NEW")
		}
		rec = &next
	}
}

func TestUpdateDoesNotMutateInput(t *testing.T) {
	rec := &models.MasteryRecord{UserID: "u1", SoundID: "s1", TotalAttempts: 2, AverageScore: 40, BestScore: 50, MasteryLevel: models.MasteryPracticing, Version: 7}
	before := *rec
	got := Update(rec, 100, now)
	if !reflect.DeepEqual(*rec, before) {
		t.Errorf("input mutated: %+v", rec)
	}
	if got.UserID != "u1" || got.SoundID != "s1" || got.Version != 7 {
		t.Errorf("identity fields not carried over: %+v", got)
	}
}

func TestBecameMastered(t *testing.T) {
	practicing := &models.MasteryRecord{MasteryLevel: models.MasteryPracticing}
	mastered := models.MasteryRecord{MasteryLevel: models.MasteryMastered}

	if !BecameMastered(practicing, mastered) {
		t.Error("practicing -> mastered should report true")
	}
	if BecameMastered(&mastered, mastered) {
		t.Error("mastered -> mastered should report false")
	}
	if BecameMastered(nil, models.MasteryRecord{MasteryLevel: models.MasteryPracticing}) {
		t.Error("first practicing record should report false")
	}
}

func TestMasteryRecordJSONRoundTrip(t *testing.T) {
	var rec *models.MasteryRecord
	for _, s := range []float64{90, 88.8, 95} {
		next := Update(rec, s, now)
		rec = &next
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back models.MasteryRecord
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.TotalAttempts != rec.TotalAttempts || back.AverageScore != rec.AverageScore ||
		back.BestScore != rec.BestScore || back.MasteryLevel != rec.MasteryLevel ||
		!back.LastPracticed.Equal(*rec.LastPracticed) {
		t.Errorf("round trip = %+v, want %+v", back, *rec)
	}
	if err := back.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestRank(t *testing.T) {
	weak := &models.MasteryRecord{AverageScore: 40, MasteryLevel: models.MasteryPracticing}
	progressing := &models.MasteryRecord{AverageScore: 75, MasteryLevel: models.MasteryPracticing}
	mastered := &models.MasteryRecord{AverageScore: 92, MasteryLevel: models.MasteryMastered}

	tests := []struct {
		name       string
		candidates []Candidate
		want       []string
	}{
		{
			name:       "buckets",
			candidates: []Candidate{{"A", nil}, {"B", weak}, {"C", mastered}},
			want:       []string{"A", "B", "C"},
		},
		{
			name:       "reversed input",
			candidates: []Candidate{{"C", mastered}, {"P", progressing}, {"B", weak}, {"A", nil}},
			want:       []string{"A", "B", "P", "C"},
		},
		{
			name:       "ties keep input order",
			candidates: []Candidate{{"z", nil}, {"m", mastered}, {"a", nil}, {"q", weak}, {"b", weak}},
			want:       []string{"z", "a", "q", "b", "m"},
		},
		{
			name:       "empty",
			candidates: nil,
			want:       []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rank(tt.candidates)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Rank() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPriority(t *testing.T) {
	tests := []struct {
		name   string
		record *models.MasteryRecord
		want   int
	}{
		{name: "no record", record: nil, want: PriorityUnseen},
		{name: "weak", record: &models.MasteryRecord{AverageScore: 59.9, MasteryLevel: models.MasteryPracticing}, want: PriorityWeak},
		{name: "boundary is not weak", record: &models.MasteryRecord{AverageScore: 60, MasteryLevel: models.MasteryPracticing}, want: PriorityInProgress},
		{name: "mastered", record: &models.MasteryRecord{AverageScore: 90, MasteryLevel: models.MasteryMastered}, want: PriorityMastered},
		{name: "mastered but slipped below weak line", record: &models.MasteryRecord{AverageScore: 55, MasteryLevel: models.MasteryMastered}, want: PriorityWeak},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Priority(tt.record); got != tt.want {
				t.Errorf("Priority() = %d, want %d", got, tt.want)
			}
		})
	}
}
