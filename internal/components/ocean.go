package components

import (
	"fmt"

	"github.com/bje-/hector/internal/component"
	"github.com/bje-/hector/internal/fluxpool"
	"github.com/bje-/hector/internal/unitval"
)

const (
	defaultOceanC = 38000.0 // well-mixed ocean inventory, Pg C
	// uptakeCoeff scales ocean carbon uptake with the atmospheric CO2
	// excess over preindustrial, Pg C/yr per ppmv.
	uptakeCoeff = 0.02
)

type oceanState struct {
	pool       *fluxpool.Pool
	lastUptake float64
}

// Ocean is a single well-mixed carbon reservoir. Its uptake for a given
// year is computed once, from the pre-step CO2 concentration, when the
// carbon cycle asks for it; Run then deposits the same amount into the
// ocean pool so mass is conserved across the component boundary.
type Ocean struct {
	core component.ModelCore

	pool       *fluxpool.Pool
	uptakeDate float64
	lastUptake float64

	snapshots map[component.CheckpointKind]*oceanState
}

// OceanVisitor is implemented by visitors interested in the ocean.
type OceanVisitor interface {
	VisitOcean(o *Ocean)
}

func NewOcean() *Ocean {
	return &Ocean{
		pool:       fluxpool.New(CapOceanC, pgc(defaultOceanC), false),
		uptakeDate: component.NoDate,
		snapshots:  make(map[component.CheckpointKind]*oceanState),
	}
}

func (o *Ocean) Name() string { return OceanName }

func (o *Ocean) Init(core component.ModelCore) error {
	o.core = core
	core.RegisterCapability(CapOceanC, o)
	core.RegisterCapability(CapOceanUptake, o)
	return nil
}

func (o *Ocean) PrepareToRun() error { return nil }

// uptakeFor computes (and caches) this year's carbon uptake from the
// current atmospheric CO2 excess.
func (o *Ocean) uptakeFor(date float64) (float64, error) {
	if date == o.uptakeDate {
		return o.lastUptake, nil
	}
	co2Val, err := o.core.SendMessage(component.GetData, CapAtmosphericCO2,
		component.MessageData{Date: date})
	if err != nil {
		return 0, fmt.Errorf("ocean reading %s: %w", CapAtmosphericCO2, err)
	}
	c0Val, err := o.core.SendMessage(component.GetData, CapPreindustrialCO2,
		component.MessageData{Date: component.NoDate})
	if err != nil {
		return 0, fmt.Errorf("ocean reading %s: %w", CapPreindustrialCO2, err)
	}
	uptake := uptakeCoeff * (co2Val.Magnitude() - c0Val.Magnitude())
	if maxOut := o.pool.Magnitude().Magnitude(); uptake < -maxOut {
		uptake = -maxOut
	}
	o.uptakeDate = date
	o.lastUptake = uptake
	return uptake, nil
}

func (o *Ocean) Run(date float64) error {
	uptake, err := o.uptakeFor(date)
	if err != nil {
		return err
	}
	if uptake >= 0 {
		return o.pool.Add(fluxpool.UntrackedFlux(pgc(uptake)))
	}
	_, err = o.pool.Subtract(pgc(-uptake))
	return err
}

// RunSpinup: the ocean starts in equilibrium with preindustrial CO2, so
// it is stable from the first step.
func (o *Ocean) RunSpinup(step int) (bool, error) {
	return true, nil
}

func (o *Ocean) GetData(capability string, info component.MessageData) (unitval.Unitval, error) {
	switch capability {
	case CapOceanC:
		return o.pool.Magnitude(), nil
	case CapOceanUptake:
		if !info.HasDate() {
			return unitval.New(o.lastUptake, unitval.PgCPerYear), nil
		}
		uptake, err := o.uptakeFor(info.Date)
		if err != nil {
			return unitval.Unitval{}, err
		}
		return unitval.New(uptake, unitval.PgCPerYear), nil
	default:
		return unitval.Unitval{}, fmt.Errorf("ocean cannot provide %q", capability)
	}
}

func (o *Ocean) SetData(capability string, info component.MessageData) error {
	return fmt.Errorf("ocean does not accept %q", capability)
}

func (o *Ocean) TakeCheckpoint(kind component.CheckpointKind) {
	o.snapshots[kind] = &oceanState{pool: o.pool.Clone(), lastUptake: o.lastUptake}
}

func (o *Ocean) RestoreCheckpoint(kind component.CheckpointKind) error {
	s, ok := o.snapshots[kind]
	if !ok {
		return fmt.Errorf("ocean has no checkpoint %d", kind)
	}
	o.pool = s.pool.Clone()
	o.lastUptake = s.lastUptake
	o.uptakeDate = component.NoDate
	return nil
}

func (o *Ocean) ShutDown() {
	o.snapshots = nil
}

func (o *Ocean) Accept(v component.Visitor) {
	if ov, ok := v.(OceanVisitor); ok {
		ov.VisitOcean(o)
	}
}

// CarbonInventory returns the ocean carbon stock in Pg C.
func (o *Ocean) CarbonInventory() float64 {
	return o.pool.Magnitude().Magnitude()
}
