// Package unitval provides scalar values tagged with physical units.
// Arithmetic between values only succeeds when both operands carry the
// same unit or units convertible to a common one.
package unitval

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnitMismatch = errors.New("unit mismatch")
	ErrUnknownUnit  = errors.New("unknown unit")
)

type Unit int

const (
	Undefined Unit = iota
	Unitless
	PgC        // petagrams of carbon
	TgC        // teragrams of carbon
	PgCPerYear // carbon flux
	TgCPerYear
	PPMvCO2 // atmospheric CO2 concentration
	WPerM2  // radiative forcing
	DegC    // temperature anomaly
	GgS     // sulfur emissions
	Tg      // aerosol emissions by mass
	Gg
	Years
)

var unitNames = map[Unit]string{
	Undefined:  "(undefined)",
	Unitless:   "(unitless)",
	PgC:        "Pg C",
	TgC:        "Tg C",
	PgCPerYear: "Pg C/yr",
	TgCPerYear: "Tg C/yr",
	PPMvCO2:    "ppmv CO2",
	WPerM2:     "W/m2",
	DegC:       "degC",
	GgS:        "Gg S",
	Tg:         "Tg",
	Gg:         "Gg",
	Years:      "yr",
}

// conversion families: units in the same family convert linearly through
// a base factor (value_in_base = magnitude * factor).
type family int

const (
	famNone family = iota
	famCarbonMass
	famCarbonFlux
)

var unitFamilies = map[Unit]struct {
	fam    family
	factor float64
}{
	PgC:        {famCarbonMass, 1.0},
	TgC:        {famCarbonMass, 1e-3},
	PgCPerYear: {famCarbonFlux, 1.0},
	TgCPerYear: {famCarbonFlux, 1e-3},
}

// Unitval is an immutable magnitude+unit pair. Arithmetic returns new
// values and never mutates the operands.
type Unitval struct {
	val   float64
	units Unit
}

func New(val float64, units Unit) Unitval {
	return Unitval{val: val, units: units}
}

func (v Unitval) Units() Unit { return v.units }

func (v Unitval) UnitsName() string {
	if name, ok := unitNames[v.units]; ok {
		return name
	}
	return "(undefined)"
}

// Value returns the magnitude expressed in the target unit, converting
// within the unit's family if necessary.
func (v Unitval) Value(target Unit) (float64, error) {
	if target == v.units {
		return v.val, nil
	}
	from, okFrom := unitFamilies[v.units]
	to, okTo := unitFamilies[target]
	if !okFrom || !okTo || from.fam != to.fam {
		return 0, fmt.Errorf("%w: cannot express %s as %s", ErrUnitMismatch, v.UnitsName(), unitNames[target])
	}
	return v.val * from.factor / to.factor, nil
}

// Magnitude returns the value in its own units.
func (v Unitval) Magnitude() float64 { return v.val }

func (v Unitval) Add(o Unitval) (Unitval, error) {
	ov, err := o.Value(v.units)
	if err != nil {
		return Unitval{}, fmt.Errorf("adding %s to %s: %w", o, v, ErrUnitMismatch)
	}
	return New(v.val+ov, v.units), nil
}

func (v Unitval) Sub(o Unitval) (Unitval, error) {
	ov, err := o.Value(v.units)
	if err != nil {
		return Unitval{}, fmt.Errorf("subtracting %s from %s: %w", o, v, ErrUnitMismatch)
	}
	return New(v.val-ov, v.units), nil
}

// Cmp returns -1, 0, or +1 comparing v against o after converting o into
// v's units.
func (v Unitval) Cmp(o Unitval) (int, error) {
	ov, err := o.Value(v.units)
	if err != nil {
		return 0, fmt.Errorf("comparing %s with %s: %w", v, o, ErrUnitMismatch)
	}
	switch {
	case v.val < ov:
		return -1, nil
	case v.val > ov:
		return 1, nil
	default:
		return 0, nil
	}
}

func (v Unitval) IsValid() bool {
	return !math.IsNaN(v.val) && !math.IsInf(v.val, 0)
}

func (v Unitval) String() string {
	return fmt.Sprintf("%g %s", v.val, v.UnitsName())
}

// ParseUnitsName maps a canonical unit name back to its tag.
func ParseUnitsName(name string) (Unit, error) {
	for u, n := range unitNames {
		if n == name {
			return u, nil
		}
	}
	return Undefined, fmt.Errorf("%w: %q", ErrUnknownUnit, name)
}
