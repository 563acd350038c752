package components

import (
	"fmt"

	"github.com/bje-/hector/internal/component"
	"github.com/bje-/hector/internal/unitval"
)

const (
	// forcing2x is the radiative forcing from doubled CO2, W/m2.
	forcing2x = 3.7
	// heatCapacity is the effective planetary heat capacity,
	// W yr m-2 degC-1.
	heatCapacity = 10.0
	defaultECS   = 3.0
)

type temperatureState struct {
	tas float64
	ecs float64
}

// Temperature is a one-box energy balance: the global air temperature
// anomaly relaxes toward the forcing-implied equilibrium with a timescale
// set by the heat capacity and the climate feedback.
type Temperature struct {
	core component.ModelCore

	tas float64 // current anomaly, degC
	ecs float64 // equilibrium climate sensitivity, degC

	snapshots map[component.CheckpointKind]temperatureState
}

// TemperatureVisitor is implemented by visitors interested in the
// temperature response.
type TemperatureVisitor interface {
	VisitTemperature(t *Temperature)
}

func NewTemperature() *Temperature {
	return &Temperature{
		ecs:       defaultECS,
		snapshots: make(map[component.CheckpointKind]temperatureState),
	}
}

func (t *Temperature) Name() string { return TemperatureName }

func (t *Temperature) Init(core component.ModelCore) error {
	t.core = core
	core.RegisterCapability(CapGlobalTAS, t)
	core.RegisterCapability(CapECS, t)
	core.RegisterInput(CapECS, t)
	return nil
}

func (t *Temperature) PrepareToRun() error {
	if t.ecs <= 0 {
		return fmt.Errorf("equilibrium climate sensitivity must be positive, got %g", t.ecs)
	}
	return nil
}

func (t *Temperature) Run(date float64) error {
	rfVal, err := t.core.SendMessage(component.GetData, CapRFTotal,
		component.MessageData{Date: date})
	if err != nil {
		return fmt.Errorf("temperature reading %s: %w", CapRFTotal, err)
	}

	lambda := forcing2x / t.ecs
	t.tas += (rfVal.Magnitude() - lambda*t.tas) / heatCapacity
	return nil
}

func (t *Temperature) RunSpinup(step int) (bool, error) {
	// zero forcing during spin-up keeps the anomaly at zero
	return true, nil
}

func (t *Temperature) GetData(capability string, info component.MessageData) (unitval.Unitval, error) {
	switch capability {
	case CapGlobalTAS:
		return unitval.New(t.tas, unitval.DegC), nil
	case CapECS:
		return unitval.New(t.ecs, unitval.DegC), nil
	default:
		return unitval.Unitval{}, fmt.Errorf("temperature cannot provide %q", capability)
	}
}

func (t *Temperature) SetData(capability string, info component.MessageData) error {
	if capability != CapECS {
		return fmt.Errorf("temperature does not accept %q", capability)
	}
	v, err := info.Value.Value(unitval.DegC)
	if err != nil {
		return fmt.Errorf("%s: %w", capability, err)
	}
	t.ecs = v
	return nil
}

func (t *Temperature) TakeCheckpoint(kind component.CheckpointKind) {
	t.snapshots[kind] = temperatureState{tas: t.tas, ecs: t.ecs}
}

func (t *Temperature) RestoreCheckpoint(kind component.CheckpointKind) error {
	s, ok := t.snapshots[kind]
	if !ok {
		return fmt.Errorf("temperature has no checkpoint %d", kind)
	}
	t.tas = s.tas
	t.ecs = s.ecs
	return nil
}

func (t *Temperature) ShutDown() {
	t.snapshots = nil
}

func (t *Temperature) Accept(v component.Visitor) {
	if tv, ok := v.(TemperatureVisitor); ok {
		tv.VisitTemperature(t)
	}
}

// Anomaly returns the current global air temperature anomaly in degC.
func (t *Temperature) Anomaly() float64 { return t.tas }
