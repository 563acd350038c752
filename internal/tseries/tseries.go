// Package tseries provides an ordered time-to-value mapping used to
// accumulate dated model inputs and outputs. Lookups are exact: there is
// no interpolation, and reading an unset date is an error.
package tseries

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bje-/hector/internal/unitval"
)

var ErrSeriesUnset = errors.New("no value at date")

type Series struct {
	vals map[float64]unitval.Unitval
}

func New() *Series {
	return &Series{vals: make(map[float64]unitval.Unitval)}
}

// Set records val at date t, replacing any existing entry.
func (s *Series) Set(t float64, val unitval.Unitval) {
	s.vals[t] = val
}

// Get returns the value recorded exactly at t.
func (s *Series) Get(t float64) (unitval.Unitval, error) {
	v, ok := s.vals[t]
	if !ok {
		return unitval.Unitval{}, fmt.Errorf("%w: %g", ErrSeriesUnset, t)
	}
	return v, nil
}

// GetOr returns the value at t, or def when t is unset.
func (s *Series) GetOr(t float64, def unitval.Unitval) unitval.Unitval {
	if v, ok := s.vals[t]; ok {
		return v
	}
	return def
}

func (s *Series) Has(t float64) bool {
	_, ok := s.vals[t]
	return ok
}

func (s *Series) Size() int { return len(s.vals) }

// Dates returns every recorded date in ascending order.
func (s *Series) Dates() []float64 {
	dates := make([]float64, 0, len(s.vals))
	for t := range s.vals {
		dates = append(dates, t)
	}
	sort.Float64s(dates)
	return dates
}

func (s *Series) FirstDate() (float64, bool) {
	dates := s.Dates()
	if len(dates) == 0 {
		return 0, false
	}
	return dates[0], true
}

func (s *Series) LastDate() (float64, bool) {
	dates := s.Dates()
	if len(dates) == 0 {
		return 0, false
	}
	return dates[len(dates)-1], true
}

// TruncateAfter removes every entry dated strictly after t. Used when the
// owning component rewinds to an earlier date.
func (s *Series) TruncateAfter(t float64) {
	for d := range s.vals {
		if d > t {
			delete(s.vals, d)
		}
	}
}

// Clone returns an independent copy.
func (s *Series) Clone() *Series {
	c := New()
	for t, v := range s.vals {
		c.vals[t] = v
	}
	return c
}
