package booking

import (
	"sort"
	"time"

	"staybook/internal/domain/shared/daterange"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
	// MaxPage keeps (Page-1)*PerPage far from int overflow.
	MaxPage = 100000
)

// Filter narrows booking listings. From/To select bookings whose stay overlaps
// [From, To); either bound may be zero.
type Filter struct {
	Statuses []Status
	From     time.Time
	To       time.Time
	Page     int
	PerPage  int
}

// Normalize applies paging defaults and bounds and truncates From/To to dates.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	if f.PerPage < 1 {
		f.PerPage = DefaultPerPage
	}
	if f.PerPage > MaxPerPage {
		f.PerPage = MaxPerPage
	}
	if !f.From.IsZero() {
		f.From = daterange.Day(f.From)
	}
	if !f.To.IsZero() {
		f.To = daterange.Day(f.To)
	}
	return f
}

func (f Filter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

func (f Filter) Matches(b *Booking) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if b.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && !b.Range.CheckOut.After(f.From) {
		return false
	}
	if !f.To.IsZero() && !b.Range.CheckIn.Before(f.To) {
		return false
	}
	return true
}

// Page filters, orders newest first and slices an in-memory result set.
// It returns the page and the total number of matches.
func Page(all []*Booking, f Filter) ([]*Booking, int) {
	f = f.Normalize()
	matched := make([]*Booking, 0, len(all))
	for _, b := range all {
		if f.Matches(b) {
			matched = append(matched, b)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	start := f.Offset()
	if start < 0 || start >= total {
		return []*Booking{}, total
	}
	end := start + f.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total
}

// TotalPages rounds up; zero results give zero pages.
func TotalPages(total, perPage int) int {
	if perPage < 1 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
