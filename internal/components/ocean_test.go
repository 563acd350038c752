package components

import (
	"testing"

	"github.com/bje-/hector/internal/component"
	"github.com/bje-/hector/internal/unitval"
)

func TestOceanUptake(t *testing.T) {
	o := NewOcean()
	fc := newFakeCore()
	if err := o.Init(fc); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// 100 ppmv over preindustrial at 0.02 Pg C/yr/ppmv
	fc.values[CapAtmosphericCO2] = unitval.New(defaultC0+100, unitval.PPMvCO2)

	v, err := o.GetData(CapOceanUptake, component.MessageData{Date: 1900})
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if !near(v.Magnitude(), 2.0, 1e-12) {
		t.Errorf("uptake = %g, want 2.0", v.Magnitude())
	}

	// The same date answers from the cache even if CO2 moves afterwards.
	fc.values[CapAtmosphericCO2] = unitval.New(defaultC0+200, unitval.PPMvCO2)
	v, err = o.GetData(CapOceanUptake, component.MessageData{Date: 1900})
	if err != nil {
		t.Fatalf("GetData cached: %v", err)
	}
	if !near(v.Magnitude(), 2.0, 1e-12) {
		t.Errorf("cached uptake = %g, want 2.0", v.Magnitude())
	}

	before := o.CarbonInventory()
	if err := o.Run(1900); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !near(o.CarbonInventory()-before, 2.0, 1e-12) {
		t.Errorf("Run deposited %g Pg C, want 2.0", o.CarbonInventory()-before)
	}

	// Outgassing when CO2 drops below preindustrial.
	v, err = o.GetData(CapOceanUptake, component.MessageData{Date: 1901})
	if err != nil {
		t.Fatalf("GetData 1901: %v", err)
	}
	fc.values[CapAtmosphericCO2] = unitval.New(defaultC0-50, unitval.PPMvCO2)
	v, err = o.GetData(CapOceanUptake, component.MessageData{Date: 1902})
	if err != nil {
		t.Fatalf("GetData 1902: %v", err)
	}
	if !near(v.Magnitude(), -1.0, 1e-12) {
		t.Errorf("outgassing = %g, want -1.0", v.Magnitude())
	}
	before = o.CarbonInventory()
	if err := o.Run(1902); err != nil {
		t.Fatalf("Run outgassing: %v", err)
	}
	if !near(before-o.CarbonInventory(), 1.0, 1e-12) {
		t.Errorf("outgassing removed %g Pg C, want 1.0", before-o.CarbonInventory())
	}
}

func TestOceanCheckpointRestore(t *testing.T) {
	o := NewOcean()
	fc := newFakeCore()
	if err := o.Init(fc); err != nil {
		t.Fatalf("Init: %v", err)
	}
	o.TakeCheckpoint(component.CheckpointPostSpinup)

	fc.values[CapAtmosphericCO2] = unitval.New(defaultC0+100, unitval.PPMvCO2)
	if err := o.Run(1900); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if near(o.CarbonInventory(), defaultOceanC, 1e-12) {
		t.Fatal("run should have changed the inventory")
	}

	if err := o.RestoreCheckpoint(component.CheckpointPostSpinup); err != nil {
		t.Fatalf("RestoreCheckpoint: %v", err)
	}
	if !near(o.CarbonInventory(), defaultOceanC, 1e-12) {
		t.Errorf("inventory after restore = %g, want %g", o.CarbonInventory(), defaultOceanC)
	}

	// The uptake cache must not survive a restore.
	v, err := o.GetData(CapOceanUptake, component.MessageData{Date: 1900})
	if err != nil {
		t.Fatalf("GetData after restore: %v", err)
	}
	if !near(v.Magnitude(), 2.0, 1e-12) {
		t.Errorf("recomputed uptake = %g, want 2.0", v.Magnitude())
	}
}

func TestOceanRejectsSetData(t *testing.T) {
	o := NewOcean()
	if err := o.SetData(CapOceanC, component.MessageData{}); err == nil {
		t.Error("ocean should not accept set messages")
	}
}
