// Package components holds the concrete physical-process components the
// core registers: a biome-partitioned carbon cycle, an ocean carbon sink,
// radiative forcing, and a one-box temperature response. The science here
// is deliberately minimal; the point is that every quantity flows through
// the capability router and every carbon transfer through tracked pools.
package components

// Capability names. Callers address quantities by these strings, never by
// component identity.
const (
	CapFFIEmissions     = "ffi_emissions"
	CapLUCEmissions     = "luc_emissions"
	CapDACCSUptake      = "daccs_uptake"
	CapAtmosphericCO2   = "atmospheric_CO2"
	CapPreindustrialCO2 = "preindustrial_CO2"
	CapAtmosC           = "atmos_c"
	CapEarthC           = "earth_c"
	CapVegC             = "veg_c"
	CapDetritusC        = "detritus_c"
	CapSoilC            = "soil_c"
	CapNPP              = "npp"
	CapBeta             = "beta"
	CapQ10RH            = "q10_rh"
	CapOceanC           = "ocean_c"
	CapOceanUptake      = "ocean_uptake"
	CapRFTotal          = "rf_total"
	CapGlobalTAS        = "global_tas"
	CapECS              = "ecs"
)

// Component names, used for visitor output filtering.
const (
	CarbonCycleName = "carbon_cycle"
	OceanName       = "ocean"
	ForcingName     = "forcing"
	TemperatureName = "temperature"
)

// GlobalBiome is the biome every carbon cycle starts with.
const GlobalBiome = "global"

// PgCPerPPMv converts atmospheric carbon mass to CO2 concentration:
// one ppmv of CO2 holds 2.13 Pg of carbon.
const PgCPerPPMv = 2.13
