package components

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/bje-/hector/internal/component"
	"github.com/bje-/hector/internal/fluxpool"
	"github.com/bje-/hector/internal/tseries"
	"github.com/bje-/hector/internal/unitval"
)

// Annual turnover rates for the land pools. At equilibrium the biome's
// respiration exactly balances its NPP, which is what spin-up drives the
// system toward.
const (
	vegTurnover  = 0.09  // fraction of vegetation lost per year
	detTurnover  = 0.70  // detritus respiration rate
	soilTurnover = 0.007 // soil respiration rate
	litterToDet  = 0.75  // share of litterfall entering detritus (rest to soil)
)

// Default initial stocks, Pg C.
const (
	defaultVegC   = 550.0
	defaultDetC   = 55.0
	defaultSoilC  = 1782.0
	defaultEarthC = 5500.0
	defaultC0     = 277.15 // preindustrial CO2, ppmv
)

// BiomeParams are the per-biome land carbon parameters.
type BiomeParams struct {
	NPP0 float64 // preindustrial net primary production, Pg C/yr
	Beta float64 // CO2 fertilization strength
	Q10  float64 // respiration temperature sensitivity
}

func defaultBiomeParams() BiomeParams {
	return BiomeParams{NPP0: 50.0, Beta: 0.36, Q10: 2.0}
}

type biome struct {
	veg      *fluxpool.Pool
	detritus *fluxpool.Pool
	soil     *fluxpool.Pool
	params   BiomeParams
}

func (b *biome) pools() []*fluxpool.Pool {
	return []*fluxpool.Pool{b.veg, b.detritus, b.soil}
}

func (b *biome) clone() *biome {
	return &biome{
		veg:      b.veg.Clone(),
		detritus: b.detritus.Clone(),
		soil:     b.soil.Clone(),
		params:   b.params,
	}
}

// biomePoolName prefixes a pool name with its biome, except for the
// default global biome which keeps the bare name.
func biomePoolName(biomeName, pool string) string {
	if biomeName == GlobalBiome {
		return pool
	}
	return biomeName + "." + pool
}

type carbonState struct {
	atmos      *fluxpool.Pool
	earth      *fluxpool.Pool
	biomes     map[string]*biome
	biomeOrder []string
	c0         float64
	tracking   bool
	lastNPP    float64
	nrecords   int
}

// CarbonCycle is the biome-partitioned land/atmosphere carbon component.
// All of its stocks are flux pools, so once tracking begins every
// transfer threads source fractions along with mass.
type CarbonCycle struct {
	core component.ModelCore
	log  *zap.Logger

	atmos      *fluxpool.Pool
	earth      *fluxpool.Pool
	biomes     map[string]*biome
	biomeOrder []string

	c0 float64 // preindustrial CO2, ppmv

	// dated inputs; deliberately not part of reset checkpoints, so a
	// reset does not discard pushed emissions.
	ffi   *tseries.Series
	luc   *tseries.Series
	daccs *tseries.Series

	tracking bool
	records  []component.TrackingRecord
	lastNPP  float64

	snapshots map[component.CheckpointKind]*carbonState
}

// CarbonCycleVisitor is implemented by visitors that want direct access
// to the carbon cycle during their visit.
type CarbonCycleVisitor interface {
	VisitCarbonCycle(c *CarbonCycle)
}

func NewCarbonCycle() *CarbonCycle {
	c := &CarbonCycle{
		atmos:      fluxpool.New(CapAtmosC, pgc(defaultC0*PgCPerPPMv), false),
		earth:      fluxpool.New(CapEarthC, pgc(defaultEarthC), false),
		biomes:     make(map[string]*biome),
		c0:         defaultC0,
		ffi:        tseries.New(),
		luc:        tseries.New(),
		daccs:      tseries.New(),
		snapshots:  make(map[component.CheckpointKind]*carbonState),
		biomeOrder: []string{},
	}
	c.addBiome(GlobalBiome, defaultVegC, defaultDetC, defaultSoilC, defaultBiomeParams())
	return c
}

func (c *CarbonCycle) addBiome(name string, veg, det, soil float64, params BiomeParams) {
	c.biomes[name] = &biome{
		veg:      fluxpool.New(biomePoolName(name, CapVegC), pgc(veg), false),
		detritus: fluxpool.New(biomePoolName(name, CapDetritusC), pgc(det), false),
		soil:     fluxpool.New(biomePoolName(name, CapSoilC), pgc(soil), false),
		params:   params,
	}
	c.biomeOrder = append(c.biomeOrder, name)
}

func (c *CarbonCycle) Name() string { return CarbonCycleName }

func (c *CarbonCycle) Init(core component.ModelCore) error {
	c.core = core
	c.log = core.Logger().Named(CarbonCycleName)

	for _, cap := range []string{
		CapAtmosphericCO2, CapAtmosC, CapEarthC,
		CapVegC, CapDetritusC, CapSoilC, CapNPP,
		CapPreindustrialCO2, CapBeta, CapQ10RH,
		CapFFIEmissions, CapLUCEmissions, CapDACCSUptake,
	} {
		core.RegisterCapability(cap, c)
	}
	for _, cap := range []string{
		CapFFIEmissions, CapLUCEmissions, CapDACCSUptake,
		CapPreindustrialCO2, CapBeta, CapQ10RH,
	} {
		core.RegisterInput(cap, c)
	}
	return nil
}

func (c *CarbonCycle) PrepareToRun() error {
	if len(c.biomes) == 0 {
		return fmt.Errorf("carbon cycle has no biomes")
	}
	if c.c0 <= 0 {
		return fmt.Errorf("preindustrial CO2 must be positive, got %g", c.c0)
	}
	return nil
}

// co2 returns the current atmospheric CO2 concentration in ppmv.
func (c *CarbonCycle) co2() float64 {
	return c.atmos.Magnitude().Magnitude() / PgCPerPPMv
}

// stepLand moves one year of land carbon fluxes at air temperature tas.
// Returns the total NPP across biomes.
func (c *CarbonCycle) stepLand(tas float64) (float64, error) {
	co2 := c.co2()
	totalNPP := 0.0

	for _, name := range c.biomeOrder {
		b := c.biomes[name]
		if b.params.NPP0 <= 0 {
			continue
		}

		npp := b.params.NPP0 * (1.0 + b.params.Beta*math.Log(co2/c.c0))
		if npp < 0 {
			npp = 0
		}
		tempFactor := math.Pow(b.params.Q10, tas/10.0)
		litter := vegTurnover * b.veg.Magnitude().Magnitude()
		rhDet := detTurnover * b.detritus.Magnitude().Magnitude() * tempFactor
		rhSoil := soilTurnover * b.soil.Magnitude().Magnitude() * tempFactor

		if err := c.atmos.Transfer(b.veg, pgc(npp)); err != nil {
			return 0, fmt.Errorf("npp %s: %w", name, err)
		}
		if err := b.veg.Transfer(b.detritus, pgc(litter*litterToDet)); err != nil {
			return 0, fmt.Errorf("litterfall %s: %w", name, err)
		}
		if err := b.veg.Transfer(b.soil, pgc(litter*(1-litterToDet))); err != nil {
			return 0, fmt.Errorf("soil input %s: %w", name, err)
		}
		if err := b.detritus.Transfer(c.atmos, pgc(rhDet)); err != nil {
			return 0, fmt.Errorf("detritus respiration %s: %w", name, err)
		}
		if err := b.soil.Transfer(c.atmos, pgc(rhSoil)); err != nil {
			return 0, fmt.Errorf("soil respiration %s: %w", name, err)
		}

		totalNPP += npp
	}
	return totalNPP, nil
}

func (c *CarbonCycle) Run(date float64) error {
	if !c.tracking && c.core.TrackingDate() != component.NoDate && date >= c.core.TrackingDate() {
		c.enableTracking()
	}

	tasVal, err := c.core.SendMessage(component.GetData, CapGlobalTAS,
		component.MessageData{Date: date})
	if err != nil {
		return fmt.Errorf("reading %s: %w", CapGlobalTAS, err)
	}
	tas := tasVal.Magnitude()

	// Ask the ocean what it will take up this year before any pool
	// changes; it answers from the pre-step CO2 concentration.
	uptakeVal, err := c.core.SendMessage(component.GetData, CapOceanUptake,
		component.MessageData{Date: date})
	if err != nil {
		return fmt.Errorf("reading %s: %w", CapOceanUptake, err)
	}
	oceanUptake, err := uptakeVal.Value(unitval.PgCPerYear)
	if err != nil {
		return err
	}

	npp, err := c.stepLand(tas)
	if err != nil {
		return err
	}
	c.lastNPP = npp

	zero := unitval.New(0, unitval.PgCPerYear)
	ffi, _ := c.ffi.GetOr(date, zero).Value(unitval.PgCPerYear)
	luc, _ := c.luc.GetOr(date, zero).Value(unitval.PgCPerYear)
	daccs, _ := c.daccs.GetOr(date, zero).Value(unitval.PgCPerYear)

	if ffi > 0 {
		if err := c.earth.Transfer(c.atmos, pgc(ffi)); err != nil {
			return fmt.Errorf("fossil fuel emissions at %g: %w", date, err)
		}
	}
	if daccs > 0 {
		if err := c.atmos.Transfer(c.earth, pgc(daccs)); err != nil {
			return fmt.Errorf("DACCS uptake at %g: %w", date, err)
		}
	}
	if luc > 0 {
		// land use change empties vegetation in biome registration order
		if err := c.lucFromVeg(luc); err != nil {
			return fmt.Errorf("LUC emissions at %g: %w", date, err)
		}
	}

	if oceanUptake != 0 {
		// The mass lands in the ocean component's pool; provenance is
		// not threaded across the component boundary.
		if _, err := c.atmos.Subtract(pgc(oceanUptake)); err != nil {
			return fmt.Errorf("ocean uptake at %g: %w", date, err)
		}
	}

	if c.tracking && date >= c.core.TrackingDate() {
		c.recordTracking(date)
	}
	return nil
}

func (c *CarbonCycle) lucFromVeg(amount float64) error {
	remaining := amount
	for _, name := range c.biomeOrder {
		b := c.biomes[name]
		avail := b.veg.Magnitude().Magnitude()
		take := math.Min(remaining, avail)
		if take <= 0 {
			continue
		}
		if err := b.veg.Transfer(c.atmos, pgc(take)); err != nil {
			return err
		}
		remaining -= take
		if remaining <= 0 {
			return nil
		}
	}
	if remaining > 1e-10 {
		return fmt.Errorf("LUC flux %g Pg C exceeds vegetation stock: %w",
			amount, fluxpool.ErrNegativePool)
	}
	return nil
}

// RunSpinup iterates the land carbon system one step under preindustrial
// conditions (no anthropogenic fluxes, zero temperature anomaly) and
// reports whether the pools have stopped moving.
func (c *CarbonCycle) RunSpinup(step int) (bool, error) {
	before := c.poolVector()
	if _, err := c.stepLand(0.0); err != nil {
		return false, fmt.Errorf("spinup step %d: %w", step, err)
	}
	after := c.poolVector()

	maxRel := 0.0
	for i := range before {
		if before[i] == 0 {
			continue
		}
		rel := math.Abs(after[i]-before[i]) / math.Abs(before[i])
		if rel > maxRel {
			maxRel = rel
		}
	}
	return maxRel < spinupTolerance, nil
}

// spinupTolerance is the per-step relative change below which a component
// declares itself stable.
const spinupTolerance = 1e-7

func (c *CarbonCycle) poolVector() []float64 {
	v := []float64{c.atmos.Magnitude().Magnitude(), c.earth.Magnitude().Magnitude()}
	for _, name := range c.biomeOrder {
		b := c.biomes[name]
		v = append(v, b.veg.Magnitude().Magnitude(),
			b.detritus.Magnitude().Magnitude(),
			b.soil.Magnitude().Magnitude())
	}
	return v
}

func (c *CarbonCycle) enableTracking() {
	c.tracking = true
	for _, p := range c.TrackedPools() {
		p.EnableTracking()
	}
	c.log.Info("carbon tracking enabled",
		zap.Float64("date", c.core.CurrentDate()))
}

// TrackedPools returns every pool that participates in source tracking,
// in a stable order: atmosphere, earth, then per-biome veg/detritus/soil
// in biome registration order.
func (c *CarbonCycle) TrackedPools() []*fluxpool.Pool {
	pools := []*fluxpool.Pool{c.atmos, c.earth}
	for _, name := range c.biomeOrder {
		pools = append(pools, c.biomes[name].pools()...)
	}
	return pools
}

func (c *CarbonCycle) recordTracking(date float64) {
	for _, p := range c.TrackedPools() {
		if !p.Tracking() {
			continue
		}
		rec := component.TrackingRecord{
			Date:  date,
			Pool:  p.Name(),
			Value: p.Magnitude().Magnitude(),
			Units: p.Magnitude().UnitsName(),
		}
		for _, src := range p.Sources() {
			rec.Sources = append(rec.Sources, component.SourceFraction{
				Source: src, Fraction: p.Fraction(src),
			})
		}
		c.records = append(c.records, rec)
	}
}

// TrackingRecords implements component.Tracker.
func (c *CarbonCycle) TrackingRecords() []component.TrackingRecord {
	return c.records
}

// TotalLandCarbon sums atmosphere, earth, and all biome pools; conserved
// up to ocean exchange.
func (c *CarbonCycle) TotalLandCarbon() float64 {
	total := 0.0
	for _, v := range c.poolVector() {
		total += v
	}
	return total
}

func (c *CarbonCycle) GetData(capability string, info component.MessageData) (unitval.Unitval, error) {
	switch capability {
	case CapAtmosphericCO2:
		return unitval.New(c.co2(), unitval.PPMvCO2), nil
	case CapAtmosC:
		return c.atmos.Magnitude(), nil
	case CapEarthC:
		return c.earth.Magnitude(), nil
	case CapVegC:
		return pgc(c.sumBiomes(func(b *biome) float64 { return b.veg.Magnitude().Magnitude() })), nil
	case CapDetritusC:
		return pgc(c.sumBiomes(func(b *biome) float64 { return b.detritus.Magnitude().Magnitude() })), nil
	case CapSoilC:
		return pgc(c.sumBiomes(func(b *biome) float64 { return b.soil.Magnitude().Magnitude() })), nil
	case CapNPP:
		return unitval.New(c.lastNPP, unitval.PgCPerYear), nil
	case CapPreindustrialCO2:
		return unitval.New(c.c0, unitval.PPMvCO2), nil
	case CapBeta:
		return unitval.New(c.biomes[c.biomeOrder[0]].params.Beta, unitval.Unitless), nil
	case CapQ10RH:
		return unitval.New(c.biomes[c.biomeOrder[0]].params.Q10, unitval.Unitless), nil
	case CapFFIEmissions:
		return c.readEmissions(c.ffi, capability, info)
	case CapLUCEmissions:
		return c.readEmissions(c.luc, capability, info)
	case CapDACCSUptake:
		return c.readEmissions(c.daccs, capability, info)
	default:
		return unitval.Unitval{}, fmt.Errorf("carbon cycle cannot provide %q", capability)
	}
}

func (c *CarbonCycle) readEmissions(s *tseries.Series, capability string, info component.MessageData) (unitval.Unitval, error) {
	if !info.HasDate() {
		return unitval.Unitval{}, fmt.Errorf("%s requires a date", capability)
	}
	return s.GetOr(info.Date, unitval.New(0, unitval.PgCPerYear)), nil
}

func (c *CarbonCycle) SetData(capability string, info component.MessageData) error {
	switch capability {
	case CapFFIEmissions:
		return c.setEmissions(c.ffi, capability, info)
	case CapLUCEmissions:
		return c.setEmissions(c.luc, capability, info)
	case CapDACCSUptake:
		return c.setEmissions(c.daccs, capability, info)
	case CapPreindustrialCO2:
		v, err := info.Value.Value(unitval.PPMvCO2)
		if err != nil {
			return err
		}
		c.c0 = v
		return nil
	case CapBeta:
		for _, b := range c.biomes {
			b.params.Beta = info.Value.Magnitude()
		}
		return nil
	case CapQ10RH:
		for _, b := range c.biomes {
			b.params.Q10 = info.Value.Magnitude()
		}
		return nil
	default:
		return fmt.Errorf("carbon cycle does not accept %q", capability)
	}
}

func (c *CarbonCycle) setEmissions(s *tseries.Series, capability string, info component.MessageData) error {
	if !info.HasDate() {
		return fmt.Errorf("%s requires a date", capability)
	}
	v, err := info.Value.Value(unitval.PgCPerYear)
	if err != nil {
		return fmt.Errorf("%s: %w", capability, err)
	}
	s.Set(info.Date, unitval.New(v, unitval.PgCPerYear))
	return nil
}

func (c *CarbonCycle) sumBiomes(f func(*biome) float64) float64 {
	total := 0.0
	for _, b := range c.biomes {
		total += f(b)
	}
	return total
}

// CreateBiome adds an empty, inert biome. Give it stocks and a non-zero
// NPP0 through configuration before it participates in the carbon cycle.
func (c *CarbonCycle) CreateBiome(name string) error {
	if _, exists := c.biomes[name]; exists {
		return fmt.Errorf("biome %q already exists", name)
	}
	params := defaultBiomeParams()
	params.NPP0 = 0
	c.addBiome(name, 0, 0, 0, params)
	return nil
}

// DeleteBiome removes a biome and discards its stocks.
func (c *CarbonCycle) DeleteBiome(name string) error {
	if _, exists := c.biomes[name]; !exists {
		return fmt.Errorf("no such biome %q", name)
	}
	if len(c.biomes) == 1 {
		return fmt.Errorf("cannot delete the last biome %q", name)
	}
	delete(c.biomes, name)
	for i, n := range c.biomeOrder {
		if n == name {
			c.biomeOrder = append(c.biomeOrder[:i], c.biomeOrder[i+1:]...)
			break
		}
	}
	return nil
}

// RenameBiome creates newName with oldName's stocks and parameters, then
// deletes oldName. All carbon is preserved; historical source labels in
// the tracking maps keep the old pool names.
func (c *CarbonCycle) RenameBiome(oldName, newName string) error {
	b, exists := c.biomes[oldName]
	if !exists {
		return fmt.Errorf("no such biome %q", oldName)
	}
	if _, exists := c.biomes[newName]; exists {
		return fmt.Errorf("biome %q already exists", newName)
	}
	c.biomes[newName] = &biome{
		veg:      b.veg.WithName(biomePoolName(newName, CapVegC)),
		detritus: b.detritus.WithName(biomePoolName(newName, CapDetritusC)),
		soil:     b.soil.WithName(biomePoolName(newName, CapSoilC)),
		params:   b.params,
	}
	delete(c.biomes, oldName)
	for i, n := range c.biomeOrder {
		if n == oldName {
			c.biomeOrder[i] = newName
			break
		}
	}
	return nil
}

// BiomeList returns biome names in creation order.
func (c *CarbonCycle) BiomeList() []string {
	out := make([]string, len(c.biomeOrder))
	copy(out, c.biomeOrder)
	return out
}

// SetBiome overwrites a biome's stocks and parameters. Used by the
// configuration layer before PrepareToRun.
func (c *CarbonCycle) SetBiome(name string, veg, det, soil float64, params BiomeParams) error {
	if _, exists := c.biomes[name]; !exists {
		if err := c.CreateBiome(name); err != nil {
			return err
		}
	}
	b := c.biomes[name]
	b.params = params
	if err := b.veg.SetValue(pgc(veg)); err != nil {
		return err
	}
	if err := b.detritus.SetValue(pgc(det)); err != nil {
		return err
	}
	return b.soil.SetValue(pgc(soil))
}

func (c *CarbonCycle) TakeCheckpoint(kind component.CheckpointKind) {
	c.snapshots[kind] = c.snapshot()
}

func (c *CarbonCycle) RestoreCheckpoint(kind component.CheckpointKind) error {
	s, ok := c.snapshots[kind]
	if !ok {
		return fmt.Errorf("carbon cycle has no checkpoint %d", kind)
	}
	c.restore(s)
	return nil
}

func (c *CarbonCycle) snapshot() *carbonState {
	s := &carbonState{
		atmos:      c.atmos.Clone(),
		earth:      c.earth.Clone(),
		biomes:     make(map[string]*biome, len(c.biomes)),
		biomeOrder: append([]string(nil), c.biomeOrder...),
		c0:         c.c0,
		tracking:   c.tracking,
		lastNPP:    c.lastNPP,
		nrecords:   len(c.records),
	}
	for name, b := range c.biomes {
		s.biomes[name] = b.clone()
	}
	return s
}

func (c *CarbonCycle) restore(s *carbonState) {
	c.atmos = s.atmos.Clone()
	c.earth = s.earth.Clone()
	c.biomes = make(map[string]*biome, len(s.biomes))
	for name, b := range s.biomes {
		c.biomes[name] = b.clone()
	}
	c.biomeOrder = append([]string(nil), s.biomeOrder...)
	c.c0 = s.c0
	c.tracking = s.tracking
	c.lastNPP = s.lastNPP
	c.records = c.records[:s.nrecords]
}

func (c *CarbonCycle) ShutDown() {
	c.biomes = nil
	c.snapshots = nil
	c.records = nil
}

func (c *CarbonCycle) Accept(v component.Visitor) {
	if cv, ok := v.(CarbonCycleVisitor); ok {
		cv.VisitCarbonCycle(c)
	}
}

func pgc(v float64) unitval.Unitval { return unitval.New(v, unitval.PgC) }
