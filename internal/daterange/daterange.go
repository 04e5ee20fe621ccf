// Package daterange turns a requested window into calendar dates.
//
// Ranges produced here are inclusive on both ends so they can be displayed as
// is. Provider queries treat the end bound as exclusive; QueryEnd is the only
// place that advances the end, and every query builder calls it exactly once.
package daterange

import (
	"fmt"
	"time"

	"github.com/finopsmind/costengine/internal/apierrors"
	"github.com/finopsmind/costengine/internal/model"
)

// Layout is the wire format of explicit dates.
const Layout = "2006-01-02"

// Window describes the requested period. Start and End are only honoured when
// both are set.
type Window struct {
	DaysBack int    `json:"daysBack,omitempty"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
}

func (w Window) explicit() bool {
	return w.Start != "" && w.End != ""
}

// Granularity is daily when a day count or explicit dates were supplied, and
// monthly for the current-month default.
func (w Window) Granularity() model.Granularity {
	if w.DaysBack > 0 || w.explicit() {
		return model.GranularityDaily
	}
	return model.GranularityMonthly
}

// Compute resolves w relative to now.
func Compute(now time.Time, w Window) (model.DateRange, error) {
	if w.DaysBack < 0 {
		return model.DateRange{}, fmt.Errorf("%w: daysBack must not be negative, got %d", apierrors.ErrValidation, w.DaysBack)
	}

	if w.explicit() {
		start, err := time.ParseInLocation(Layout, w.Start, now.Location())
		if err != nil {
			return model.DateRange{}, fmt.Errorf("%w: invalid start date %q", apierrors.ErrValidation, w.Start)
		}
		end, err := time.ParseInLocation(Layout, w.End, now.Location())
		if err != nil {
			return model.DateRange{}, fmt.Errorf("%w: invalid end date %q", apierrors.ErrValidation, w.End)
		}
		return model.DateRange{Start: start, End: end}, nil
	}

	today := Day(now)
	if w.DaysBack > 0 {
		return model.DateRange{Start: today.AddDate(0, 0, -(w.DaysBack - 1)), End: today}, nil
	}

	return model.DateRange{
		Start: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()),
		End:   today,
	}, nil
}

// QueryEnd returns the exclusive end bound for a provider query.
func QueryEnd(r model.DateRange) time.Time {
	return r.End.AddDate(0, 0, 1)
}

// Day truncates t to local midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SingleDay is the range covering exactly one calendar day.
func SingleDay(t time.Time) model.DateRange {
	d := Day(t)
	return model.DateRange{Start: d, End: d}
}

// Trailing returns the n days ending at today, oldest first.
func Trailing(now time.Time, n int) []time.Time {
	today := Day(now)
	days := make([]time.Time, n)
	for i := 0; i < n; i++ {
		days[i] = today.AddDate(0, 0, i-(n-1))
	}
	return days
}

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// Format renders a date in the wire layout.
func Format(t time.Time) string {
	return t.Format(Layout)
}
