package scoring

import (
	"testing"

	"lead_routing_backend/internal/routing/domain"
)

func TestScoreComponents(t *testing.T) {
	cases := []struct {
		name         string
		q            domain.Qualification
		wantScore    int
		wantSegment  domain.Segment
		wantPriority domain.Priority
	}{
		{
			name:         "empty intake gets baselines only",
			q:            domain.Qualification{},
			wantScore:    10 + 5 + 0 + 5,
			wantSegment:  domain.SegmentCold,
			wantPriority: domain.PriorityLow,
		},
		{
			name: "fully qualified hot lead",
			q: domain.Qualification{
				BudgetRange:         "€2,000,000+",
				Timeframe:           "within_6_months",
				IntakeComplete:      true,
				LocationPreferences: []string{"Marbella", "Estepona"},
				PropertyTypes:       []string{"villa"},
				Purpose:             "holiday",
				BedroomsDesired:     "4",
				SeaViewImportance:   "essential",
			},
			wantScore:    100,
			wantSegment:  domain.SegmentHot,
			wantPriority: domain.PriorityUrgent,
		},
		{
			name: "half-point criteria round up",
			q: domain.Qualification{
				BudgetRange:         "500k-1m",
				Timeframe:           "within 2 years",
				QuestionsAnswered:   3,
				LocationPreferences: []string{"Málaga"},
				Purpose:             "investment",
			},
			// 25 (1m wins over 500k) + 15 + 15 + 10 + 2.5 = 67.5 -> 68
			wantScore:    68,
			wantSegment:  domain.SegmentWarm,
			wantPriority: domain.PriorityHigh,
		},
		{
			name: "urgent timeframe lifts a cold score",
			q: domain.Qualification{
				Timeframe: "Immediate",
			},
			wantScore:    10 + 25 + 0 + 5,
			wantSegment:  domain.SegmentCool,
			wantPriority: domain.PriorityUrgent,
		},
		{
			name: "one-year timeframe lifts to high",
			q: domain.Qualification{
				Timeframe: "within-1-year",
			},
			wantScore:    10 + 20 + 0 + 5,
			wantSegment:  domain.SegmentCold,
			wantPriority: domain.PriorityHigh,
		},
		{
			name: "twelve-month timeframe scores as a year but stays low priority",
			q: domain.Qualification{
				Timeframe: "12 months",
			},
			wantScore:    10 + 20 + 0 + 5,
			wantSegment:  domain.SegmentCold,
			wantPriority: domain.PriorityLow,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.q)
			if got.Score != tc.wantScore {
				t.Fatalf("score = %d, want %d", got.Score, tc.wantScore)
			}
			if got.Segment != tc.wantSegment {
				t.Fatalf("segment = %s, want %s", got.Segment, tc.wantSegment)
			}
			if got.Priority != tc.wantPriority {
				t.Fatalf("priority = %s, want %s", got.Priority, tc.wantPriority)
			}
		})
	}
}

func TestBudgetPoints(t *testing.T) {
	cases := []struct {
		budget string
		want   float64
	}{
		{budget: "", want: 10},
		{budget: "not sure yet", want: 10},
		{budget: "€2,000,000+", want: 30},
		{budget: "€2,500,000", want: 30},
		{budget: "€3.000.000", want: 30},
		{budget: "€2M+", want: 30},
		{budget: "€2+", want: 30},
		{budget: "2 million", want: 30},
		{budget: "€1-2M", want: 30},
		{budget: "€1,500,000", want: 25},
		{budget: "€1.5M", want: 25},
		{budget: "€1,5m", want: 25},
		{budget: "€1", want: 25},
		{budget: "500k-1m", want: 25},
		{budget: "€500,000 - €750,000", want: 20},
		{budget: "€500-750k", want: 20},
		{budget: "€300k", want: 15},
		{budget: "€250,000", want: 10},
		{budget: "under €200k", want: 10},
	}

	for _, tc := range cases {
		t.Run(tc.budget, func(t *testing.T) {
			if got := budgetPoints(tc.budget); got != tc.want {
				amount, _ := BudgetAmount(tc.budget)
				t.Fatalf("budgetPoints(%q) = %v (amount %v), want %v", tc.budget, got, amount, tc.want)
			}
		})
	}
}

func TestPriorityTimeframeLift(t *testing.T) {
	cases := []struct {
		timeframe string
		want      domain.Priority
	}{
		{timeframe: "within_6_months", want: domain.PriorityUrgent},
		{timeframe: "Immediate", want: domain.PriorityUrgent},
		{timeframe: "within 1 year", want: domain.PriorityHigh},
		{timeframe: "12_months", want: domain.PriorityLow},
		{timeframe: "2_years", want: domain.PriorityLow},
		{timeframe: "", want: domain.PriorityLow},
	}

	for _, tc := range cases {
		if got := PriorityFor(20, tc.timeframe); got != tc.want {
			t.Fatalf("PriorityFor(20, %q) = %s, want %s", tc.timeframe, got, tc.want)
		}
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	q := domain.Qualification{
		BudgetRange:         "300,000",
		Timeframe:           "12_months",
		QuestionsAnswered:   1,
		LocationPreferences: []string{"Nerja"},
		PropertyTypes:       []string{"apartment"},
	}

	first := Score(q)
	for range 50 {
		if got := Score(q); got != first {
			t.Fatalf("Score changed between calls: %+v vs %+v", got, first)
		}
	}
}

func TestSegmentThresholds(t *testing.T) {
	for score := 0; score <= 100; score++ {
		got := SegmentFor(score)
		var want domain.Segment
		switch {
		case score >= 80:
			want = domain.SegmentHot
		case score >= 60:
			want = domain.SegmentWarm
		case score >= 40:
			want = domain.SegmentCool
		default:
			want = domain.SegmentCold
		}
		if got != want {
			t.Fatalf("SegmentFor(%d) = %s, want %s", score, got, want)
		}
	}
}
