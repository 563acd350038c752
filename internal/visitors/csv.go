// Package visitors provides the pull-based observers shipped with the
// engine: a CSV output stream sampling capabilities once per stepped
// date, and a CSV tracking visitor dumping tracked-pool provenance.
// Visitors read through the core's message interface and never mutate
// model state.
package visitors

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/bje-/hector/internal/component"
)

// OutputStream samples a fixed list of capabilities at every non-spin-up
// date and writes one CSV row per capability. Write errors are sticky
// and reported through Err.
type OutputStream struct {
	w           *csv.Writer
	caps        []string
	wroteHeader bool
	err         error
}

func NewOutputStream(w io.Writer, capabilities ...string) *OutputStream {
	return &OutputStream{w: csv.NewWriter(w), caps: capabilities}
}

func (v *OutputStream) ShouldVisit(inSpinup bool, date float64) bool {
	return !inSpinup
}

func (v *OutputStream) Visit(core component.ModelCore) {
	if v.err != nil {
		return
	}
	if !v.wroteHeader {
		if err := v.w.Write([]string{"run_name", "year", "variable", "value", "units"}); err != nil {
			v.err = err
			return
		}
		v.wroteHeader = true
	}

	date := core.CurrentDate()
	for _, cap := range v.caps {
		val, err := core.SendMessage(component.GetData, cap,
			component.MessageData{Date: date})
		if err != nil {
			v.err = err
			return
		}
		row := []string{
			core.RunName(),
			strconv.FormatFloat(date, 'f', -1, 64),
			cap,
			strconv.FormatFloat(val.Magnitude(), 'g', -1, 64),
			val.UnitsName(),
		}
		if err := v.w.Write(row); err != nil {
			v.err = err
			return
		}
	}
	v.w.Flush()
	if err := v.w.Error(); err != nil {
		v.err = err
	}
}

// Err returns the first write or read error encountered, if any.
func (v *OutputStream) Err() error { return v.err }
