package visitors

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/bje-/hector/internal/component"
	"github.com/bje-/hector/internal/components"
	"github.com/bje-/hector/internal/fluxpool"
)

// Tracking writes one CSV row per tracked pool per stepped date,
// appending source/fraction pairs the way the tracking report defines
// them. Pools that are not tracking are skipped.
type Tracking struct {
	w           *csv.Writer
	core        component.ModelCore
	date        float64
	wroteHeader bool
	err         error
}

func NewTracking(w io.Writer) *Tracking {
	return &Tracking{w: csv.NewWriter(w)}
}

func (v *Tracking) ShouldVisit(inSpinup bool, date float64) bool {
	v.date = date
	return !inSpinup
}

func (v *Tracking) Visit(core component.ModelCore) {
	v.core = core
	if !v.wroteHeader && v.err == nil {
		v.err = v.w.Write([]string{
			"year", "pool_name", "pool_value", "pool_units",
			"source_name", "source_fraction",
		})
		v.wroteHeader = true
	}
}

// VisitCarbonCycle implements components.CarbonCycleVisitor.
func (v *Tracking) VisitCarbonCycle(c *components.CarbonCycle) {
	if v.err != nil || v.core == nil || !v.core.OutputEnabled(c.Name()) {
		return
	}
	for _, p := range c.TrackedPools() {
		v.printPool(p)
	}
	v.w.Flush()
	if err := v.w.Error(); err != nil {
		v.err = err
	}
}

func (v *Tracking) printPool(p *fluxpool.Pool) {
	if !p.Tracking() || v.err != nil {
		return
	}
	base := []string{
		strconv.FormatFloat(v.date, 'f', -1, 64),
		p.Name(),
		strconv.FormatFloat(p.Magnitude().Magnitude(), 'g', -1, 64),
		p.Magnitude().UnitsName(),
	}
	row := base
	for _, src := range p.Sources() {
		row = append(row, src, strconv.FormatFloat(p.Fraction(src), 'g', -1, 64))
	}
	v.err = v.w.Write(row)
}

// Err returns the first write error encountered, if any.
func (v *Tracking) Err() error { return v.err }

// WriteTrackingCSV renders a tracking report in the same layout as the
// Tracking visitor, one row per record with source/fraction pairs
// appended.
func WriteTrackingCSV(w io.Writer, records []component.TrackingRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"year", "pool_name", "pool_value", "pool_units",
		"source_name", "source_fraction",
	}); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			strconv.FormatFloat(rec.Date, 'f', -1, 64),
			rec.Pool,
			strconv.FormatFloat(rec.Value, 'g', -1, 64),
			rec.Units,
		}
		for _, sf := range rec.Sources {
			row = append(row, sf.Source, strconv.FormatFloat(sf.Fraction, 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
