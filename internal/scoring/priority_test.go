package scoring

import (
	"math"
	"testing"
)

func float64Ptr(v float64) *float64 { return &v }

func TestDefaultPriorityConfigValid(t *testing.T) {
	res := ValidateConfig(DefaultPriorityConfig())
	if !res.Valid {
		t.Fatalf("default config invalid: %v", res.Errors)
	}
}

func TestComputeScore(t *testing.T) {
	cfg := DefaultPriorityConfig()

	tests := []struct {
		name       string
		days       *float64
		meeting    bool
		wantScore  float64
		wantBucket Bucket
	}{
		{"fresh activity with meeting", float64Ptr(0), true, 100, BucketHot},
		{"fresh activity no meeting", float64Ptr(0), false, 60, BucketWarm},
		{"half stale no meeting", float64Ptr(15), false, 30, BucketCold},
		{"half stale with meeting", float64Ptr(15), true, 70, BucketHot},
		{"stale with meeting", float64Ptr(30), true, 40, BucketWarm},
		{"past stale", float64Ptr(90), false, 0, BucketCold},
		{"no activity", nil, false, 0, BucketCold},
		{"no activity with meeting", nil, true, 40, BucketWarm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ComputeScore(Signals{DaysSinceLastActivity: tt.days, HasUpcomingMeeting: tt.meeting}, cfg)
			if math.Abs(r.Score-tt.wantScore) > 0.0001 {
				t.Errorf("score: got %f, want %f", r.Score, tt.wantScore)
			}
			if r.Bucket != tt.wantBucket {
				t.Errorf("bucket: got %s, want %s", r.Bucket, tt.wantBucket)
			}
		})
	}
}

func TestComputeScoreClampsToConfiguredRange(t *testing.T) {
	cfg := DefaultPriorityConfig()
	cfg.Scoring.MinScore = 10
	cfg.Scoring.MaxScore = 80

	high := ComputeScore(Signals{DaysSinceLastActivity: float64Ptr(0), HasUpcomingMeeting: true}, cfg)
	if high.Score != 80 {
		t.Errorf("expected clamp to max 80, got %f", high.Score)
	}
	low := ComputeScore(Signals{}, cfg)
	if low.Score != 10 {
		t.Errorf("expected clamp to min 10, got %f", low.Score)
	}
}

func TestComputeScoreNonPositiveStaleDays(t *testing.T) {
	for _, stale := range []float64{0, -5} {
		cfg := DefaultPriorityConfig()
		cfg.Scoring.StaleDays = stale
		r := ComputeScore(Signals{DaysSinceLastActivity: float64Ptr(0)}, cfg)
		if r.Score != 0 {
			t.Errorf("staleDays=%g: expected fully stale score 0, got %f", stale, r.Score)
		}
	}
}

func TestComputeScoreOddDayCounts(t *testing.T) {
	cfg := DefaultPriorityConfig()

	future := ComputeScore(Signals{DaysSinceLastActivity: float64Ptr(-3)}, cfg)
	if future.Score != cfg.Scoring.RecencyMaxPoints {
		t.Errorf("negative days should score as today, got %f", future.Score)
	}

	nan := ComputeScore(Signals{DaysSinceLastActivity: float64Ptr(math.NaN())}, cfg)
	if nan.Score != 0 || nan.Bucket != BucketCold {
		t.Errorf("NaN days should score as no activity, got %+v", nan)
	}

	inf := ComputeScore(Signals{DaysSinceLastActivity: float64Ptr(math.Inf(1))}, cfg)
	if inf.Score != 0 {
		t.Errorf("infinite days should be fully stale, got %f", inf.Score)
	}

	// Zero recency points times infinite days must not turn into NaN.
	noRecency := DefaultPriorityConfig()
	noRecency.Scoring.RecencyMaxPoints = 0
	got := ComputeScore(Signals{DaysSinceLastActivity: float64Ptr(math.Inf(1)), HasUpcomingMeeting: true}, noRecency)
	if math.IsNaN(got.Score) || got.Score != noRecency.Scoring.UpcomingMeetingPoints {
		t.Errorf("infinite days with zero recency points: expected %g, got %+v", noRecency.Scoring.UpcomingMeetingPoints, got)
	}
	if got.Bucket != BucketWarm {
		t.Errorf("expected warm, got %s", got.Bucket)
	}
}

func TestClampNaN(t *testing.T) {
	if got := clamp(math.NaN(), 0, 100); got != 0 {
		t.Errorf("clamp(NaN) = %g, want 0", got)
	}
	if got := clamp(150, 0, 100); got != 100 {
		t.Errorf("clamp(150) = %g, want 100", got)
	}
}

func TestBucketFor(t *testing.T) {
	th := Thresholds{Hot: 70, Warm: 40}
	tests := []struct {
		score float64
		want  Bucket
	}{
		{100, BucketHot},
		{70, BucketHot},
		{69.99, BucketWarm},
		{40, BucketWarm},
		{39.99, BucketCold},
		{0, BucketCold},
	}
	for _, tt := range tests {
		if got := BucketFor(tt.score, th); got != tt.want {
			t.Errorf("BucketFor(%g) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestDescriptionsFor(t *testing.T) {
	d := DefaultPriorityConfig().Descriptions
	if d.For(BucketHot) != d.Hot || d.For(BucketWarm) != d.Warm || d.For(BucketCold) != d.Cold {
		t.Error("For returned the wrong description")
	}
}
