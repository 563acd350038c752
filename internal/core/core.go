// Package core implements the simulation coordinator: it owns every
// physical-process component, routes capability-addressed get/set
// messages to them, and drives the lifecycle state machine through
// spin-up, the run loop, reset, and shutdown.
package core

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/bje-/hector/internal/component"
	"github.com/bje-/hector/internal/components"
	"github.com/bje-/hector/internal/unitval"
)

// timeStep is the fixed clock increment, in years.
const timeStep = 1.0

// lifecycleState tracks where the instance is in
// uninitialized -> initialized -> running -> shut down. Spin-up is a
// transient within the first Run call, visible through InSpinup.
type lifecycleState int

const (
	stateUninitialized lifecycleState = iota
	stateInitialized
	stateRunning
	stateShutDown
)

func (s lifecycleState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateInitialized:
		return "initialized"
	case stateRunning:
		return "running"
	case stateShutDown:
		return "shut down"
	default:
		return "unknown"
	}
}

// Config carries the run-level settings a core is created with.
type Config struct {
	StartDate    float64
	EndDate      float64
	TrackingDate float64 // component.NoDate disables tracking
	RunName      string
	// SpinupMaxSteps bounds the spin-up iteration; exceeding it fails
	// with ErrSpinupDivergence.
	SpinupMaxSteps int
	Logger         *zap.Logger
}

func DefaultConfig() Config {
	return Config{
		StartDate:      1750,
		EndDate:        2300,
		TrackingDate:   component.NoDate,
		SpinupMaxSteps: 2000,
	}
}

// Core is one independent engine instance. All operations are
// synchronous and the instance provides no internal locking; a host
// driving one instance from several goroutines must serialize its calls.
type Core struct {
	cfg Config
	log *zap.Logger

	state       lifecycleState
	prepared    bool
	spunUp      bool
	inSpinup    bool
	currentDate float64

	comps  []component.Component
	byName map[string]component.Component
	caps   map[string][]component.Component
	inputs map[string][]component.Component

	visitors       []component.Visitor
	outputDisabled map[string]bool

	// dirty is set when a SETDATA message rewrites data at or before the
	// current date while running; the next Run auto-resets first.
	dirty     bool
	dirtyDate float64
}

func New(cfg Config) *Core {
	def := DefaultConfig()
	if cfg.EndDate == 0 {
		cfg.EndDate = def.EndDate
	}
	if cfg.StartDate == 0 {
		cfg.StartDate = def.StartDate
	}
	if cfg.TrackingDate == 0 {
		cfg.TrackingDate = component.NoDate
	}
	if cfg.SpinupMaxSteps == 0 {
		cfg.SpinupMaxSteps = def.SpinupMaxSteps
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Core{
		cfg:            cfg,
		log:            cfg.Logger.Named("core"),
		byName:         make(map[string]component.Component),
		caps:           make(map[string][]component.Component),
		inputs:         make(map[string][]component.Component),
		outputDisabled: make(map[string]bool),
		currentDate:    cfg.StartDate,
	}
}

// Init constructs and registers every component in dependency order.
// Calling it twice is an error.
func (c *Core) Init() error {
	if c.state == stateShutDown {
		return ErrInstanceInvalid
	}
	if c.state != stateUninitialized {
		return fmt.Errorf("init called twice (state %s)", c.state)
	}

	// fixed, dependency-respecting construction order
	all := []component.Component{
		components.NewCarbonCycle(),
		components.NewOcean(),
		components.NewForcing(),
		components.NewTemperature(),
	}
	for _, comp := range all {
		if err := comp.Init(c); err != nil {
			return fmt.Errorf("initializing %s: %w", comp.Name(), err)
		}
		c.comps = append(c.comps, comp)
		c.byName[comp.Name()] = comp
	}

	c.state = stateInitialized
	c.log.Info("core initialized",
		zap.Int("components", len(c.comps)),
		zap.Float64("start", c.cfg.StartDate),
		zap.Float64("end", c.cfg.EndDate))
	return nil
}

// AddVisitor registers an observer. Visitors are notified in
// registration order, once per non-spin-up stepped date.
func (c *Core) AddVisitor(v component.Visitor) {
	c.visitors = append(c.visitors, v)
}

// SetOutputEnabled toggles visitor output for one component.
func (c *Core) SetOutputEnabled(componentName string, enabled bool) {
	c.outputDisabled[componentName] = !enabled
}

// OutputEnabled implements component.ModelCore.
func (c *Core) OutputEnabled(componentName string) bool {
	return !c.outputDisabled[componentName]
}

// RegisterCapability implements component.ModelCore. Duplicates are
// accepted here and rejected at PrepareToRun.
func (c *Core) RegisterCapability(capability string, comp component.Component) {
	c.caps[capability] = append(c.caps[capability], comp)
}

// RegisterInput implements component.ModelCore.
func (c *Core) RegisterInput(capability string, comp component.Component) {
	c.inputs[capability] = append(c.inputs[capability], comp)
}

// SendMessage routes a typed message to the unique component declaring
// the capability. Callers depend on the capability name only; component
// identity never leaks out.
func (c *Core) SendMessage(msgType component.MessageType, capability string, info component.MessageData) (unitval.Unitval, error) {
	if c.state == stateShutDown {
		return unitval.Unitval{}, ErrInstanceInvalid
	}
	if c.state == stateUninitialized {
		return unitval.Unitval{}, fmt.Errorf("sendMessage before init")
	}

	switch msgType {
	case component.GetData:
		comp, err := c.uniqueHandler(c.caps, capability)
		if err != nil {
			return unitval.Unitval{}, err
		}
		return comp.GetData(capability, info)

	case component.SetData:
		comp, err := c.uniqueHandler(c.inputs, capability)
		if err != nil {
			return unitval.Unitval{}, err
		}
		if err := comp.SetData(capability, info); err != nil {
			return unitval.Unitval{}, err
		}
		if c.state == stateRunning && info.HasDate() && info.Date <= c.currentDate {
			if !c.dirty || info.Date < c.dirtyDate {
				c.dirtyDate = info.Date
			}
			c.dirty = true
		}
		return info.Value, nil

	default:
		return unitval.Unitval{}, fmt.Errorf("unknown message type %q", msgType)
	}
}

func (c *Core) uniqueHandler(table map[string][]component.Component, capability string) (component.Component, error) {
	list := table[capability]
	switch len(list) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCapability, capability)
	case 1:
		return list[0], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrAmbiguousCapability, capability)
	}
}

// PrepareToRun finalizes cross-component wiring after configuration.
// It validates capability uniqueness, runs each component's own
// preparation, and records the pre-spin-up restore point. Must be called
// exactly once, before the first Run.
func (c *Core) PrepareToRun() error {
	if c.state == stateShutDown {
		return ErrInstanceInvalid
	}
	if c.state == stateUninitialized {
		return fmt.Errorf("prepareToRun before init")
	}
	if c.prepared {
		return fmt.Errorf("prepareToRun called twice")
	}

	if err := c.validateRegistrations(); err != nil {
		return err
	}
	for _, comp := range c.comps {
		if err := comp.PrepareToRun(); err != nil {
			return fmt.Errorf("preparing %s: %w", comp.Name(), err)
		}
	}
	for _, comp := range c.comps {
		comp.TakeCheckpoint(component.CheckpointInitial)
	}
	c.prepared = true
	return nil
}

func (c *Core) validateRegistrations() error {
	check := func(table map[string][]component.Component, kind string) error {
		names := make([]string, 0, len(table))
		for cap := range table {
			names = append(names, cap)
		}
		sort.Strings(names)
		for _, cap := range names {
			if list := table[cap]; len(list) > 1 {
				owners := make([]string, len(list))
				for i, comp := range list {
					owners[i] = comp.Name()
				}
				return fmt.Errorf("%w: %s capability %q declared by %v",
					ErrAmbiguousCapability, kind, cap, owners)
			}
		}
		return nil
	}
	if err := check(c.caps, "readable"); err != nil {
		return err
	}
	return check(c.inputs, "writable")
}

// spinup iterates every component under initial-condition forcing until
// all report stability, or the step budget runs out. Visitors are never
// invoked here.
func (c *Core) spinup() error {
	c.inSpinup = true
	defer func() { c.inSpinup = false }()

	c.log.Info("spinning up", zap.Int("budget", c.cfg.SpinupMaxSteps))
	for step := 1; step <= c.cfg.SpinupMaxSteps; step++ {
		stable := true
		for _, comp := range c.comps {
			ok, err := comp.RunSpinup(step)
			if err != nil {
				return fmt.Errorf("spinup in %s: %w", comp.Name(), err)
			}
			stable = stable && ok
		}
		if stable {
			c.log.Info("spinup converged", zap.Int("steps", step))
			c.spunUp = true
			for _, comp := range c.comps {
				comp.TakeCheckpoint(component.CheckpointPostSpinup)
			}
			return nil
		}
	}
	return fmt.Errorf("%w after %d steps", ErrSpinupDivergence, c.cfg.SpinupMaxSteps)
}

// Run advances the clock to toDate, or to the configured end date when
// toDate is non-positive. The first call triggers spin-up. At every
// landed date each component steps in registration order, then every
// registered visitor whose ShouldVisit agreed is invoked.
func (c *Core) Run(toDate float64) error {
	if c.state == stateShutDown {
		return ErrInstanceInvalid
	}
	if !c.prepared {
		return fmt.Errorf("run before prepareToRun")
	}

	if c.dirty {
		c.log.Info("auto-resetting dirty core",
			zap.Float64("dirty_date", c.dirtyDate))
		if err := c.Reset(c.dirtyDate); err != nil {
			return fmt.Errorf("auto-reset: %w", err)
		}
	}

	if !c.spunUp {
		if err := c.spinup(); err != nil {
			return err
		}
		c.currentDate = c.cfg.StartDate
	}

	target := toDate
	if target <= 0 {
		target = c.cfg.EndDate
	}
	if target > c.cfg.EndDate {
		return fmt.Errorf("run date %g is beyond configured end date %g", target, c.cfg.EndDate)
	}
	if target < c.currentDate {
		return fmt.Errorf("run date %g is prior to current date %g; reset first", target, c.currentDate)
	}

	c.state = stateRunning
	for date := c.currentDate + timeStep; date <= target+1e-9; date += timeStep {
		for _, comp := range c.comps {
			if err := comp.Run(date); err != nil {
				// the clock stays at the last completed date
				return fmt.Errorf("running %s at %g: %w", comp.Name(), date, err)
			}
		}
		c.currentDate = date
		c.notifyVisitors(date)
	}
	return nil
}

func (c *Core) notifyVisitors(date float64) {
	for _, v := range c.visitors {
		if !v.ShouldVisit(c.inSpinup, date) {
			continue
		}
		v.Visit(c)
		for _, comp := range c.comps {
			comp.Accept(v)
		}
	}
}

// Reset rewinds the instance. A target before the start date restores
// initial conditions and schedules spin-up to rerun; the start date
// itself restores the post-spin-up snapshot without rerunning spin-up;
// an intermediate target falls back to the nearest retained checkpoint,
// which for this engine is the start date. Pushed input time series
// survive a reset. Resetting forward fails.
func (c *Core) Reset(toDate float64) error {
	if c.state == stateShutDown {
		return ErrInstanceInvalid
	}
	if !c.prepared {
		return fmt.Errorf("reset before prepareToRun")
	}
	if toDate > c.currentDate {
		return fmt.Errorf("%w: target %g is ahead of current date %g",
			ErrUnsupportedReset, toDate, c.currentDate)
	}

	switch {
	case toDate < c.cfg.StartDate:
		for _, comp := range c.comps {
			if err := comp.RestoreCheckpoint(component.CheckpointInitial); err != nil {
				return fmt.Errorf("%w: %v", ErrUnsupportedReset, err)
			}
		}
		c.spunUp = false
		c.log.Info("reset to initial conditions; spinup will rerun",
			zap.Float64("target", toDate))

	default:
		if !c.spunUp {
			return fmt.Errorf("%w: no post-spinup checkpoint retained", ErrUnsupportedReset)
		}
		if toDate > c.cfg.StartDate {
			c.log.Info("no checkpoint at requested date; restoring start date",
				zap.Float64("target", toDate),
				zap.Float64("restored", c.cfg.StartDate))
		}
		for _, comp := range c.comps {
			if err := comp.RestoreCheckpoint(component.CheckpointPostSpinup); err != nil {
				return fmt.Errorf("%w: %v", ErrUnsupportedReset, err)
			}
		}
	}

	c.currentDate = c.cfg.StartDate
	c.state = stateInitialized
	c.dirty = false
	return nil
}

// ShutDown releases every component and invalidates the instance. Every
// subsequent operation fails with ErrInstanceInvalid.
func (c *Core) ShutDown() error {
	if c.state == stateShutDown {
		return ErrInstanceInvalid
	}
	for _, comp := range c.comps {
		comp.ShutDown()
	}
	c.comps = nil
	c.byName = nil
	c.caps = nil
	c.inputs = nil
	c.visitors = nil
	c.state = stateShutDown
	c.log.Info("core shut down")
	return nil
}

// biomeAgent finds the unique component managing biome-partitioned state.
func (c *Core) biomeAgent() (components.BiomeAgent, error) {
	if c.state == stateShutDown {
		return nil, ErrInstanceInvalid
	}
	for _, comp := range c.comps {
		if agent, ok := comp.(components.BiomeAgent); ok {
			return agent, nil
		}
	}
	return nil, fmt.Errorf("no component manages biomes")
}

func (c *Core) CreateBiome(name string) error {
	agent, err := c.biomeAgent()
	if err != nil {
		return err
	}
	return agent.CreateBiome(name)
}

func (c *Core) DeleteBiome(name string) error {
	agent, err := c.biomeAgent()
	if err != nil {
		return err
	}
	return agent.DeleteBiome(name)
}

// RenameBiome moves all carbon stocks and parameters from oldName to
// newName, then removes oldName.
func (c *Core) RenameBiome(oldName, newName string) error {
	agent, err := c.biomeAgent()
	if err != nil {
		return err
	}
	return agent.RenameBiome(oldName, newName)
}

func (c *Core) GetBiomeList() ([]string, error) {
	agent, err := c.biomeAgent()
	if err != nil {
		return nil, err
	}
	return agent.BiomeList(), nil
}

// GetTrackingData returns every tracked pool's provenance breakdown per
// reporting date, ordered by date then pool name.
func (c *Core) GetTrackingData() ([]component.TrackingRecord, error) {
	if c.state == stateShutDown {
		return nil, ErrInstanceInvalid
	}
	var records []component.TrackingRecord
	for _, comp := range c.comps {
		if tracker, ok := comp.(component.Tracker); ok {
			records = append(records, tracker.TrackingRecords()...)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date < records[j].Date
		}
		return records[i].Pool < records[j].Pool
	})
	return records, nil
}

// Accessors implementing component.ModelCore.

func (c *Core) StartDate() float64    { return c.cfg.StartDate }
func (c *Core) EndDate() float64      { return c.cfg.EndDate }
func (c *Core) CurrentDate() float64  { return c.currentDate }
func (c *Core) TrackingDate() float64 { return c.cfg.TrackingDate }
func (c *Core) InSpinup() bool        { return c.inSpinup }
func (c *Core) RunName() string       { return c.cfg.RunName }
func (c *Core) Logger() *zap.Logger   { return c.cfg.Logger }

// Active reports whether the instance is still usable.
func (c *Core) Active() bool { return c.state != stateShutDown }

// UndefinedIndex is the sentinel hosts pass for "no date".
func UndefinedIndex() float64 { return component.NoDate }

// ComponentByName returns a registered component, mainly for visitors
// that need direct access beyond capability messages.
func (c *Core) ComponentByName(name string) (component.Component, error) {
	if c.state == stateShutDown {
		return nil, ErrInstanceInvalid
	}
	comp, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("no component named %q", name)
	}
	return comp, nil
}

var _ component.ModelCore = (*Core)(nil)
