package availability

import (
	"sort"
	"time"

	"staybook/internal/domain/shared/daterange"
)

// NightSet is a set of calendar nights keyed by their day number since the Unix epoch.
type NightSet map[int64]struct{}

func dayKey(t time.Time) int64 {
	return daterange.DayNumber(t)
}

func NewNightSet(dates ...time.Time) NightSet {
	s := make(NightSet, len(dates))
	for _, d := range dates {
		s.Add(d)
	}
	return s
}

func (s NightSet) Add(t time.Time) {
	s[dayKey(t)] = struct{}{}
}

func (s NightSet) AddRange(dr daterange.DateRange) {
	for _, d := range dr.Dates() {
		s.Add(d)
	}
}

func (s NightSet) Has(t time.Time) bool {
	_, ok := s[dayKey(t)]
	return ok
}

func (s NightSet) Len() int {
	return len(s)
}

// Dates returns the nights in ascending order.
func (s NightSet) Dates() []time.Time {
	keys := make([]int64, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]time.Time, 0, len(keys))
	for _, k := range keys {
		out = append(out, daterange.FromDayNumber(k))
	}
	return out
}
