package components

import (
	"math"

	"go.uber.org/zap"

	"github.com/bje-/hector/internal/component"
	"github.com/bje-/hector/internal/unitval"
)

// fakeCore answers SendMessage from a fixed capability table, so each
// component can be stepped without constructing the full model.
type fakeCore struct {
	values       map[string]unitval.Unitval
	trackingDate float64
	currentDate  float64
}

func newFakeCore() *fakeCore {
	return &fakeCore{
		values: map[string]unitval.Unitval{
			CapGlobalTAS:        unitval.New(0, unitval.DegC),
			CapOceanUptake:      unitval.New(0, unitval.PgCPerYear),
			CapAtmosphericCO2:   unitval.New(defaultC0, unitval.PPMvCO2),
			CapPreindustrialCO2: unitval.New(defaultC0, unitval.PPMvCO2),
			CapRFTotal:          unitval.New(0, unitval.WPerM2),
		},
		trackingDate: component.NoDate,
		currentDate:  1750,
	}
}

func (f *fakeCore) SendMessage(msgType component.MessageType, capability string, info component.MessageData) (unitval.Unitval, error) {
	if v, ok := f.values[capability]; ok {
		return v, nil
	}
	return unitval.Unitval{}, errUnknownFake(capability)
}

type errUnknownFake string

func (e errUnknownFake) Error() string { return "fake core has no " + string(e) }

func (f *fakeCore) RegisterCapability(capability string, c component.Component) {}
func (f *fakeCore) RegisterInput(capability string, c component.Component)      {}
func (f *fakeCore) StartDate() float64                                          { return 1750 }
func (f *fakeCore) EndDate() float64                                            { return 2300 }
func (f *fakeCore) CurrentDate() float64                                        { return f.currentDate }
func (f *fakeCore) TrackingDate() float64                                       { return f.trackingDate }
func (f *fakeCore) InSpinup() bool                                              { return false }
func (f *fakeCore) RunName() string                                             { return "test" }
func (f *fakeCore) OutputEnabled(componentName string) bool                     { return true }
func (f *fakeCore) Logger() *zap.Logger                                         { return zap.NewNop() }

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
