package tally

import (
	"time"

	"varulv/internal/domain"
)

// TimeRange spans the parsed timestamps of a thread
type TimeRange struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// RangeOf returns the earliest and latest parsed timestamps, false if there are none
func RangeOf(events []domain.VoteEvent) (TimeRange, bool) {
	var r TimeRange
	found := false
	for _, e := range events {
		if !e.Timestamp.Valid() {
			continue
		}
		t := e.Timestamp.Time
		if !found || t.Before(r.Min) {
			r.Min = t
		}
		if !found || t.After(r.Max) {
			r.Max = t
		}
		found = true
	}
	return r, found
}

// CutoffAt maps a slider percentage onto the range. Percent is clamped to [0, 100].
func (r TimeRange) CutoffAt(percent int) domain.Cutoff {
	percent = min(max(percent, 0), 100)
	span := r.Max.Sub(r.Min)
	offset := time.Duration(float64(span) * float64(percent) / 100)
	return domain.CutoffAt(r.Min.Add(offset))
}

// SliderCutoff returns the cutoff for a slider position over the events,
// or no cutoff when the events carry no parsed timestamps
func SliderCutoff(events []domain.VoteEvent, percent int) domain.Cutoff {
	r, ok := RangeOf(events)
	if !ok {
		return domain.NoCutoff()
	}
	return r.CutoffAt(percent)
}
