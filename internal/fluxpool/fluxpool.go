// Package fluxpool implements carbon pools that optionally track, for
// every unit of their current contents, the fractional share contributed
// by each named historical source. Transfers between pools move both mass
// and provenance; total mass is conserved across any transfer.
package fluxpool

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/bje-/hector/internal/unitval"
)

var ErrNegativePool = errors.New("pool would go negative")

// eps absorbs floating-point noise when a withdrawal empties a pool.
const eps = 1e-10

// Flux is a quantity in motion between pools. It carries its own copy of
// the source-fraction map, so pools never alias each other's bookkeeping.
type Flux struct {
	amount    unitval.Unitval
	fractions map[string]float64
}

// NewFlux builds a flux with an explicit source attribution. The fraction
// map is copied.
func NewFlux(amount unitval.Unitval, fractions map[string]float64) Flux {
	return Flux{amount: amount, fractions: copyFractions(fractions)}
}

// UntrackedFlux builds a flux with no attribution; a receiving pool that
// tracks provenance credits it to itself.
func UntrackedFlux(amount unitval.Unitval) Flux {
	return Flux{amount: amount}
}

func (f Flux) Amount() unitval.Unitval { return f.amount }

func (f Flux) Fraction(source string) float64 { return f.fractions[source] }

func (f Flux) Sources() []string { return sortedSources(f.fractions) }

// Pool is a named stock of carbon. When tracking is enabled the pool
// maintains a map from source name to the fraction of its contents that
// originated there; fractions sum to 1 whenever the pool is non-empty.
type Pool struct {
	name     string
	val      unitval.Unitval
	tracking bool
	ctmap    map[string]float64
}

func New(name string, val unitval.Unitval, tracking bool) *Pool {
	p := &Pool{name: name, val: val}
	if tracking {
		p.EnableTracking()
	}
	return p
}

func (p *Pool) Name() string               { return p.name }
func (p *Pool) Magnitude() unitval.Unitval { return p.val }
func (p *Pool) Tracking() bool             { return p.tracking }

// Value returns the pool's contents expressed in the target unit.
func (p *Pool) Value(target unitval.Unit) (float64, error) {
	return p.val.Value(target)
}

// Add merges an inflow into the pool. With tracking enabled the pool's
// fraction map becomes the size-weighted combination of its prior
// fractions and the flux's fractions.
func (p *Pool) Add(f Flux) error {
	newVal, err := p.val.Add(f.amount)
	if err != nil {
		return fmt.Errorf("pool %s: %w", p.name, err)
	}

	if p.tracking {
		flowMag, err := f.amount.Value(p.val.Units())
		if err != nil {
			return fmt.Errorf("pool %s: %w", p.name, err)
		}
		incoming := f.fractions
		if len(incoming) == 0 {
			incoming = map[string]float64{p.name: 1.0}
		}
		oldMag := p.val.Magnitude()
		newMag := newVal.Magnitude()
		if newMag > eps {
			merged := make(map[string]float64, len(p.ctmap)+len(incoming))
			for src, frac := range p.ctmap {
				merged[src] = frac * oldMag / newMag
			}
			for src, frac := range incoming {
				merged[src] += frac * flowMag / newMag
			}
			p.ctmap = merged
		}
	}

	p.val = newVal
	return nil
}

// Subtract withdraws amount from the pool and returns the outgoing flux.
// The flux inherits a copy of the pool's current fraction map; the mix
// left behind is unchanged. Withdrawing more than the pool holds fails
// with ErrNegativePool (no clamping).
func (p *Pool) Subtract(amount unitval.Unitval) (Flux, error) {
	newVal, err := p.val.Sub(amount)
	if err != nil {
		return Flux{}, fmt.Errorf("pool %s: %w", p.name, err)
	}
	if newVal.Magnitude() < -eps {
		return Flux{}, fmt.Errorf("pool %s: withdrawing %s from %s: %w",
			p.name, amount, p.val, ErrNegativePool)
	}
	if newVal.Magnitude() < 0 {
		newVal = unitval.New(0, newVal.Units())
	}

	out := Flux{amount: amount}
	if p.tracking {
		out.fractions = copyFractions(p.ctmap)
	}
	p.val = newVal
	return out, nil
}

// Transfer moves amount from p into dst, threading provenance through.
func (p *Pool) Transfer(dst *Pool, amount unitval.Unitval) error {
	f, err := p.Subtract(amount)
	if err != nil {
		return err
	}
	return dst.Add(f)
}

// Sources returns the names with non-zero fractions, sorted.
func (p *Pool) Sources() []string { return sortedSources(p.ctmap) }

// Fraction returns source's share of the pool, or zero if absent.
func (p *Pool) Fraction(source string) float64 { return p.ctmap[source] }

// Fractions returns a copy of the full fraction map.
func (p *Pool) Fractions() map[string]float64 { return copyFractions(p.ctmap) }

// EnableTracking starts provenance bookkeeping with the current contents
// attributed entirely to the pool itself.
func (p *Pool) EnableTracking() {
	p.tracking = true
	p.ctmap = map[string]float64{p.name: 1.0}
}

// DisableTracking discards the fraction map.
func (p *Pool) DisableTracking() {
	p.tracking = false
	p.ctmap = nil
}

// SetValue overwrites the pool contents, resetting any attribution to the
// pool itself. Intended for initialization and spin-up adjustment, before
// tracking-relevant history begins.
func (p *Pool) SetValue(val unitval.Unitval) error {
	if _, err := val.Value(p.val.Units()); err != nil {
		return fmt.Errorf("pool %s: %w", p.name, err)
	}
	p.val = val
	if p.tracking {
		p.ctmap = map[string]float64{p.name: 1.0}
	}
	return nil
}

// WithName returns an independent copy of the pool under a new name.
// The fraction map is carried over unchanged: source labels are
// historical and keep referring to the names pools had at the time the
// carbon entered.
func (p *Pool) WithName(name string) *Pool {
	c := p.Clone()
	c.name = name
	return c
}

// Clone returns an independent deep copy, used for lifecycle snapshots.
func (p *Pool) Clone() *Pool {
	return &Pool{
		name:     p.name,
		val:      p.val,
		tracking: p.tracking,
		ctmap:    copyFractions(p.ctmap),
	}
}

// FractionSum reports the total of all fractions; 1 within tolerance for
// a non-empty tracking pool.
func (p *Pool) FractionSum() float64 {
	sum := 0.0
	for _, f := range p.ctmap {
		sum += f
	}
	return sum
}

func copyFractions(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	c := make(map[string]float64, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func sortedSources(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for src, frac := range m {
		if math.Abs(frac) > 0 {
			names = append(names, src)
		}
	}
	sort.Strings(names)
	return names
}
