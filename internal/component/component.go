// Package component defines the contracts between the simulation core and
// the physical-process components it owns: the message envelope, the
// component lifecycle, and the visitor interface. Components and visitors
// depend on this package only, never on the core directly, so the core can
// construct and drive them without an import cycle.
package component

import (
	"go.uber.org/zap"

	"github.com/bje-/hector/internal/unitval"
)

// MessageType discriminates query messages from update messages.
type MessageType string

const (
	GetData MessageType = "GETDATA"
	SetData MessageType = "SETDATA"
)

// NoDate marks a message that carries no time coordinate, for capabilities
// that do not vary with time (model parameters).
const NoDate = -1.0

// MessageData is the envelope accompanying a get or set message: an
// optional time coordinate plus a unit-checked value. It is transient,
// built per call and never retained.
type MessageData struct {
	Date  float64
	Value unitval.Unitval
}

// HasDate reports whether the envelope carries a real time coordinate.
func (m MessageData) HasDate() bool { return m.Date != NoDate }

// ModelCore is the view of the core that components and visitors see.
type ModelCore interface {
	// SendMessage routes a get/set message to whichever component
	// declared the capability. This is how components read each other's
	// state: by name, never by reference.
	SendMessage(msgType MessageType, capability string, info MessageData) (unitval.Unitval, error)

	// RegisterCapability declares that c answers GetData messages for
	// capability; RegisterInput declares that c accepts SetData messages.
	// Both are called from Component.Init. Conflicts are surfaced at
	// PrepareToRun, not here.
	RegisterCapability(capability string, c Component)
	RegisterInput(capability string, c Component)

	StartDate() float64
	EndDate() float64
	CurrentDate() float64
	TrackingDate() float64
	InSpinup() bool
	RunName() string

	// OutputEnabled reports whether visitor output is wanted for the
	// named component.
	OutputEnabled(componentName string) bool

	Logger() *zap.Logger
}

// CheckpointKind names the restore points a component must retain for the
// lifecycle controller.
type CheckpointKind int

const (
	// CheckpointInitial is the component's state after PrepareToRun,
	// before any spin-up iteration.
	CheckpointInitial CheckpointKind = iota
	// CheckpointPostSpinup is the state immediately after spin-up
	// converged; restoring it is equivalent to resetting to the start
	// date without rerunning spin-up.
	CheckpointPostSpinup
)

// Component is one named unit of simulated state. The core constructs
// every component at Init, drives it through spin-up and the run loop,
// and destroys it at shutdown.
type Component interface {
	Name() string

	// Init registers the component's capabilities and inputs with the
	// core and allocates initial state.
	Init(core ModelCore) error

	// PrepareToRun finalizes configuration-dependent state after all
	// set-messages from configuration have been delivered.
	PrepareToRun() error

	// RunSpinup advances one spin-up iteration and reports whether this
	// component considers itself stable.
	RunSpinup(step int) (bool, error)

	// Run advances the component's state to date.
	Run(date float64) error

	// TakeCheckpoint and RestoreCheckpoint save and restore the
	// component's full state at lifecycle boundaries.
	TakeCheckpoint(kind CheckpointKind)
	RestoreCheckpoint(kind CheckpointKind) error

	ShutDown()

	GetData(capability string, info MessageData) (unitval.Unitval, error)
	SetData(capability string, info MessageData) error

	// Accept offers this component to a visitor; implementations
	// type-assert the visitor interfaces they answer to.
	Accept(v Visitor)
}

// Visitor is a read-only observer invoked once per non-spin-up time step,
// after every component has stepped that date. Visitors must not mutate
// core or component state.
type Visitor interface {
	// ShouldVisit is consulted before any Visit call for a date; it must
	// return false while inSpinup is true.
	ShouldVisit(inSpinup bool, date float64) bool

	// Visit gives the visitor read access to the core. Component-level
	// access happens through Component.Accept immediately afterwards.
	Visit(core ModelCore)
}
