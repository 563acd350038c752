package components

import (
	"fmt"
	"math"

	"github.com/bje-/hector/internal/component"
	"github.com/bje-/hector/internal/tseries"
	"github.com/bje-/hector/internal/unitval"
)

// co2ForcingCoeff is the standard logarithmic CO2 forcing coefficient,
// W/m2 per e-folding of concentration.
const co2ForcingCoeff = 5.35

// Forcing computes total radiative forcing from the CO2 concentration
// after each carbon step.
type Forcing struct {
	core component.ModelCore

	current float64
	history *tseries.Series

	snapshots map[component.CheckpointKind]float64
}

// ForcingVisitor is implemented by visitors interested in forcing.
type ForcingVisitor interface {
	VisitForcing(f *Forcing)
}

func NewForcing() *Forcing {
	return &Forcing{
		history:   tseries.New(),
		snapshots: make(map[component.CheckpointKind]float64),
	}
}

func (f *Forcing) Name() string { return ForcingName }

func (f *Forcing) Init(core component.ModelCore) error {
	f.core = core
	core.RegisterCapability(CapRFTotal, f)
	return nil
}

func (f *Forcing) PrepareToRun() error { return nil }

func (f *Forcing) Run(date float64) error {
	co2Val, err := f.core.SendMessage(component.GetData, CapAtmosphericCO2,
		component.MessageData{Date: date})
	if err != nil {
		return fmt.Errorf("forcing reading %s: %w", CapAtmosphericCO2, err)
	}
	c0Val, err := f.core.SendMessage(component.GetData, CapPreindustrialCO2,
		component.MessageData{Date: component.NoDate})
	if err != nil {
		return fmt.Errorf("forcing reading %s: %w", CapPreindustrialCO2, err)
	}

	f.current = co2ForcingCoeff * math.Log(co2Val.Magnitude()/c0Val.Magnitude())
	f.history.Set(date, unitval.New(f.current, unitval.WPerM2))
	return nil
}

func (f *Forcing) RunSpinup(step int) (bool, error) {
	// forcing is diagnostic; it has no state to equilibrate
	return true, nil
}

func (f *Forcing) GetData(capability string, info component.MessageData) (unitval.Unitval, error) {
	if capability != CapRFTotal {
		return unitval.Unitval{}, fmt.Errorf("forcing cannot provide %q", capability)
	}
	if info.HasDate() && f.history.Has(info.Date) {
		return f.history.Get(info.Date)
	}
	return unitval.New(f.current, unitval.WPerM2), nil
}

func (f *Forcing) SetData(capability string, info component.MessageData) error {
	return fmt.Errorf("forcing does not accept %q", capability)
}

func (f *Forcing) TakeCheckpoint(kind component.CheckpointKind) {
	f.snapshots[kind] = f.current
}

func (f *Forcing) RestoreCheckpoint(kind component.CheckpointKind) error {
	v, ok := f.snapshots[kind]
	if !ok {
		return fmt.Errorf("forcing has no checkpoint %d", kind)
	}
	f.current = v
	f.history.TruncateAfter(f.core.StartDate())
	return nil
}

func (f *Forcing) ShutDown() {
	f.snapshots = nil
}

func (f *Forcing) Accept(v component.Visitor) {
	if fv, ok := v.(ForcingVisitor); ok {
		fv.VisitForcing(f)
	}
}

// Current returns the latest total forcing in W/m2.
func (f *Forcing) Current() float64 { return f.current }
