package components

import (
	"testing"

	"github.com/bje-/hector/internal/component"
	"github.com/bje-/hector/internal/unitval"
)

func TestTemperatureRelaxesToEquilibrium(t *testing.T) {
	temp := NewTemperature()
	fc := newFakeCore()
	if err := temp.Init(fc); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// hold forcing at the doubling value; the anomaly must approach ECS
	fc.values[CapRFTotal] = unitval.New(forcing2x, unitval.WPerM2)
	for year := 1750.0; year < 2250; year++ {
		if err := temp.Run(year); err != nil {
			t.Fatalf("Run(%g): %v", year, err)
		}
	}

	if !near(temp.Anomaly(), defaultECS, 0.01) {
		t.Errorf("anomaly after 500 yr of 2xCO2 forcing = %g, want ~%g",
			temp.Anomaly(), defaultECS)
	}
}

func TestTemperatureECS(t *testing.T) {
	temp := NewTemperature()
	fc := newFakeCore()
	if err := temp.Init(fc); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := temp.SetData(CapECS, component.MessageData{
		Date: component.NoDate, Value: unitval.New(4.5, unitval.DegC),
	}); err != nil {
		t.Fatalf("set ECS: %v", err)
	}
	v, err := temp.GetData(CapECS, component.MessageData{Date: component.NoDate})
	if err != nil {
		t.Fatalf("get ECS: %v", err)
	}
	if v.Magnitude() != 4.5 {
		t.Errorf("ECS = %g, want 4.5", v.Magnitude())
	}

	// wrong units are refused
	if err := temp.SetData(CapECS, component.MessageData{
		Date: component.NoDate, Value: unitval.New(4.5, unitval.PgC),
	}); err == nil {
		t.Error("setting ECS in Pg C should fail")
	}

	temp.ecs = -1
	if err := temp.PrepareToRun(); err == nil {
		t.Error("non-positive ECS should fail PrepareToRun")
	}
}

func TestTemperatureCheckpointRestore(t *testing.T) {
	temp := NewTemperature()
	fc := newFakeCore()
	if err := temp.Init(fc); err != nil {
		t.Fatalf("Init: %v", err)
	}
	temp.TakeCheckpoint(component.CheckpointPostSpinup)

	fc.values[CapRFTotal] = unitval.New(2.0, unitval.WPerM2)
	for year := 1750.0; year < 1800; year++ {
		if err := temp.Run(year); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if temp.Anomaly() == 0 {
		t.Fatal("forcing should have warmed the anomaly")
	}

	if err := temp.RestoreCheckpoint(component.CheckpointPostSpinup); err != nil {
		t.Fatalf("RestoreCheckpoint: %v", err)
	}
	if temp.Anomaly() != 0 {
		t.Errorf("anomaly after restore = %g, want 0", temp.Anomaly())
	}
}
