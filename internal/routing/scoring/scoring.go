// Package scoring computes a lead's score, segment and priority from its
// intake answers. Everything here is pure.
package scoring

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"lead_routing_backend/internal/routing/domain"
)

// Result is the derived qualification of a lead.
type Result struct {
	Score    int
	Segment  domain.Segment
	Priority domain.Priority
}

type tier struct {
	tokens []string
	points float64
}

// Checked top-down against the largest amount in the budget label.
var budgetThresholds = []struct {
	min    float64
	points float64
}{
	{min: 2_000_000, points: 30},
	{min: 1_000_000, points: 25},
	{min: 500_000, points: 20},
	{min: 300_000, points: 15},
}

// Digits with optional thousands or decimal separators and a k/m unit.
var amountPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)*)([km])?`)

var timeframeTiers = []tier{
	{tokens: []string{"6_month", "immediate"}, points: 25},
	{tokens: []string{"1_year", "12_month"}, points: 20},
	{tokens: []string{"2_year"}, points: 15},
}

// A "12 months" answer scores like one year but only "1_year" lifts priority.
var (
	urgentTimeframes = []string{"6_month", "immediate"}
	highTimeframes   = []string{"1_year"}
)

const (
	budgetBaseline    = 10
	timeframeBaseline = 5
	criterionPoints   = 2.5
)

// Score is deterministic; missing inputs fall to each component's baseline.
func Score(q domain.Qualification) Result {
	timeframe := normalizeTimeframe(q.Timeframe)

	total := budgetPoints(q.BudgetRange) +
		tierPoints(timeframeTiers, timeframe, timeframeBaseline) +
		completenessPoints(q) +
		locationPoints(len(q.LocationPreferences)) +
		criteriaPoints(q)

	score := int(math.Round(total))
	score = max(0, min(score, 100))

	return Result{
		Score:    score,
		Segment:  SegmentFor(score),
		Priority: PriorityFor(score, timeframe),
	}
}

// SegmentFor maps a score to its segment.
func SegmentFor(score int) domain.Segment {
	switch {
	case score >= 80:
		return domain.SegmentHot
	case score >= 60:
		return domain.SegmentWarm
	case score >= 40:
		return domain.SegmentCool
	default:
		return domain.SegmentCold
	}
}

// PriorityFor lets an urgent timeframe lift the tier above what the score alone gives.
func PriorityFor(score int, timeframe string) domain.Priority {
	tf := normalizeTimeframe(timeframe)
	switch {
	case score >= 80 || containsAny(tf, urgentTimeframes):
		return domain.PriorityUrgent
	case score >= 60 || containsAny(tf, highTimeframes):
		return domain.PriorityHigh
	case score >= 40:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

func budgetPoints(budget string) float64 {
	amount, ok := BudgetAmount(budget)
	if !ok {
		return budgetBaseline
	}
	for _, t := range budgetThresholds {
		if amount >= t.min {
			return t.points
		}
	}
	return budgetBaseline
}

// BudgetAmount returns the largest euro amount named in a budget label, so
// "€500k - €1M" reads as 1,000,000 and "€2,500,000+" as 2,500,000. A bare
// number under 1000 borrows the unit of the next amount that has one
// ("€1-2M"), or millions when none does ("€2+").
func BudgetAmount(budget string) (float64, bool) {
	normalized := strings.ToLower(strings.ReplaceAll(budget, " ", ""))
	normalized = strings.NewReplacer("million", "m", "mil", "m").Replace(normalized)

	matches := amountPattern.FindAllStringSubmatch(normalized, -1)
	var (
		best  float64
		found bool
		unit  = "m"
	)
	for i := len(matches) - 1; i >= 0; i-- {
		value, ok := parseAmount(matches[i][1])
		if !ok {
			continue
		}
		suffix := matches[i][2]
		if suffix != "" {
			unit = suffix
		} else if value < 1000 {
			suffix = unit
		}
		switch suffix {
		case "k":
			value *= 1_000
		case "m":
			value *= 1_000_000
		}
		if !found || value > best {
			best, found = value, true
		}
	}
	return best, found
}

// parseAmount reads "2,500,000", "2.500.000", "1.5" and "1,5". Groups of
// three digits after a separator are thousands; a shorter final group is
// the decimal part.
func parseAmount(digits string) (float64, bool) {
	groups := strings.FieldsFunc(digits, func(r rune) bool { return r == '.' || r == ',' })
	if len(groups) == 0 {
		return 0, false
	}
	whole, frac := groups[0], ""
	for i, g := range groups[1:] {
		switch {
		case len(g) == 3 && frac == "":
			whole += g
		case i == len(groups)-2:
			frac = g
		default:
			return 0, false
		}
	}
	if frac != "" {
		whole += "." + frac
	}
	value, err := strconv.ParseFloat(whole, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func completenessPoints(q domain.Qualification) float64 {
	switch {
	case q.IntakeComplete:
		return 20
	case q.QuestionsAnswered >= 3:
		return 15
	case q.QuestionsAnswered >= 1:
		return 10
	default:
		return 0
	}
}

func locationPoints(n int) float64 {
	switch {
	case n >= 2:
		return 15
	case n == 1:
		return 10
	default:
		return 5
	}
}

func criteriaPoints(q domain.Qualification) float64 {
	populated := 0
	if len(q.PropertyTypes) > 0 {
		populated++
	}
	for _, field := range []string{q.Purpose, q.BedroomsDesired, q.SeaViewImportance} {
		if strings.TrimSpace(field) != "" {
			populated++
		}
	}
	return float64(populated) * criterionPoints
}

func tierPoints(tiers []tier, value string, baseline float64) float64 {
	if value == "" {
		return baseline
	}
	for _, t := range tiers {
		if containsAny(value, t.tokens) {
			return t.points
		}
	}
	return baseline
}

func containsAny(value string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(value, token) {
			return true
		}
	}
	return false
}

// "Within 6 months" and "within-6-months" both become "within_6_months".
func normalizeTimeframe(tf string) string {
	tf = strings.ToLower(strings.TrimSpace(tf))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(tf)
}
