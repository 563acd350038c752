package components

import (
	"math"
	"testing"

	"github.com/bje-/hector/internal/component"
	"github.com/bje-/hector/internal/unitval"
)

func TestForcingLogCO2(t *testing.T) {
	f := NewForcing()
	fc := newFakeCore()
	if err := f.Init(fc); err != nil {
		t.Fatalf("Init: %v", err)
	}

	fc.values[CapAtmosphericCO2] = unitval.New(2*defaultC0, unitval.PPMvCO2)
	if err := f.Run(1900); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := co2ForcingCoeff * math.Ln2
	if !near(f.Current(), want, 1e-12) {
		t.Errorf("doubled-CO2 forcing = %g, want %g", f.Current(), want)
	}

	// history answers dated queries; an unknown date falls back to current
	fc.values[CapAtmosphericCO2] = unitval.New(defaultC0, unitval.PPMvCO2)
	if err := f.Run(1901); err != nil {
		t.Fatalf("Run: %v", err)
	}
	v, err := f.GetData(CapRFTotal, component.MessageData{Date: 1900})
	if err != nil {
		t.Fatalf("GetData dated: %v", err)
	}
	if !near(v.Magnitude(), want, 1e-12) {
		t.Errorf("historical forcing = %g, want %g", v.Magnitude(), want)
	}
	v, err = f.GetData(CapRFTotal, component.MessageData{Date: component.NoDate})
	if err != nil {
		t.Fatalf("GetData current: %v", err)
	}
	if !near(v.Magnitude(), 0, 1e-12) {
		t.Errorf("current forcing = %g, want 0", v.Magnitude())
	}
}

func TestForcingUnknownCapability(t *testing.T) {
	f := NewForcing()
	if _, err := f.GetData("npp", component.MessageData{}); err == nil {
		t.Error("forcing should reject capabilities it does not own")
	}
	if err := f.SetData(CapRFTotal, component.MessageData{}); err == nil {
		t.Error("forcing should not accept set messages")
	}
}
