package visitors_test

import (
	"bytes"
	"encoding/csv"
	"math"
	"strconv"
	"testing"

	"github.com/bje-/hector/internal/component"
	"github.com/bje-/hector/internal/components"
	"github.com/bje-/hector/internal/core"
	"github.com/bje-/hector/internal/visitors"
)

func newRunCore(t *testing.T, trackingDate float64) *core.Core {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.EndDate = 1800
	cfg.RunName = "vis_test"
	cfg.TrackingDate = trackingDate
	c := core.New(cfg)
	if err := c.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := c.PrepareToRun(); err != nil {
		t.Fatalf("PrepareToRun: %v", err)
	}
	return c
}

func TestOutputStream(t *testing.T) {
	c := newRunCore(t, component.NoDate)

	var buf bytes.Buffer
	v := visitors.NewOutputStream(&buf,
		components.CapAtmosphericCO2, components.CapGlobalTAS)
	c.AddVisitor(v)

	if err := c.Run(1755); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := v.Err(); err != nil {
		t.Fatalf("visitor error: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}

	wantHeader := []string{"run_name", "year", "variable", "value", "units"}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, records[0][i], col)
		}
	}

	// 5 stepped years, 2 capabilities each
	if got := len(records) - 1; got != 10 {
		t.Fatalf("got %d data rows, want 10", got)
	}
	for _, rec := range records[1:] {
		if rec[0] != "vis_test" {
			t.Errorf("run_name = %q", rec[0])
		}
		year, err := strconv.ParseFloat(rec[1], 64)
		if err != nil || year < 1751 || year > 1755 {
			t.Errorf("bad year %q", rec[1])
		}
		if _, err := strconv.ParseFloat(rec[3], 64); err != nil {
			t.Errorf("bad value %q", rec[3])
		}
	}
	if records[1][2] != components.CapAtmosphericCO2 || records[1][4] != "ppmv CO2" {
		t.Errorf("first row = %v", records[1])
	}
}

func TestOutputStreamUnknownCapability(t *testing.T) {
	c := newRunCore(t, component.NoDate)

	var buf bytes.Buffer
	v := visitors.NewOutputStream(&buf, "no_such_capability")
	c.AddVisitor(v)

	if err := c.Run(1751); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v.Err() == nil {
		t.Error("sampling an unknown capability should surface through Err")
	}
}

func TestTrackingVisitor(t *testing.T) {
	c := newRunCore(t, 1752)

	var buf bytes.Buffer
	v := visitors.NewTracking(&buf)
	c.AddVisitor(v)

	if err := c.Run(1755); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := v.Err(); err != nil {
		t.Fatalf("visitor error: %v", err)
	}

	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("parsing tracking output: %v", err)
	}
	if len(records) < 2 {
		t.Fatal("expected tracking rows after the tracking date")
	}
	if records[0][0] != "year" || records[0][1] != "pool_name" {
		t.Errorf("header = %v", records[0])
	}

	for _, rec := range records[1:] {
		if len(rec) < 4 || (len(rec)-4)%2 != 0 {
			t.Fatalf("malformed row %v", rec)
		}
		year, err := strconv.ParseFloat(rec[0], 64)
		if err != nil || year < 1752 {
			t.Errorf("row predates tracking start: %v", rec)
		}
		sum := 0.0
		for i := 5; i < len(rec); i += 2 {
			frac, err := strconv.ParseFloat(rec[i], 64)
			if err != nil {
				t.Fatalf("bad fraction %q", rec[i])
			}
			sum += frac
		}
		if len(rec) > 4 && math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("%s fractions sum to %g", rec[1], sum)
		}
	}
}

func TestTrackingVisitorRespectsOutputToggle(t *testing.T) {
	c := newRunCore(t, 1751)
	c.SetOutputEnabled(components.CarbonCycleName, false)

	var buf bytes.Buffer
	v := visitors.NewTracking(&buf)
	c.AddVisitor(v)

	if err := c.Run(1753); err != nil {
		t.Fatalf("Run: %v", err)
	}

	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if len(records) > 1 {
		t.Errorf("disabled component still produced %d rows", len(records)-1)
	}
}

func TestWriteTrackingCSV(t *testing.T) {
	c := newRunCore(t, 1751)
	if err := c.Run(1753); err != nil {
		t.Fatalf("Run: %v", err)
	}

	records, err := c.GetTrackingData()
	if err != nil {
		t.Fatalf("GetTrackingData: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("expected tracking records")
	}

	var buf bytes.Buffer
	if err := visitors.WriteTrackingCSV(&buf, records); err != nil {
		t.Fatalf("WriteTrackingCSV: %v", err)
	}

	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if len(rows) != len(records)+1 {
		t.Errorf("wrote %d rows for %d records", len(rows)-1, len(records))
	}
}
