// Package config loads run configuration from YAML and applies it to a
// core through the same message interface any host would use.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bje-/hector/internal/component"
	"github.com/bje-/hector/internal/components"
	"github.com/bje-/hector/internal/core"
	"github.com/bje-/hector/internal/unitval"
)

const (
	DefaultStartDate = 1750.0
	DefaultEndDate   = 2100.0
	DefaultECS       = 3.0
)

type Config struct {
	RunName          string         `yaml:"run_name"`
	StartDate        float64        `yaml:"start_date"`
	EndDate          float64        `yaml:"end_date"`
	TrackingDate     float64        `yaml:"tracking_date"`
	SpinupMaxSteps   int            `yaml:"spinup_max_steps"`
	PreindustrialCO2 float64        `yaml:"preindustrial_co2"`
	ECS              float64        `yaml:"ecs"`
	Beta             float64        `yaml:"beta"`
	Q10              float64        `yaml:"q10"`
	Biomes           []BiomeConfig  `yaml:"biomes"`
	Emissions        []EmissionYear `yaml:"emissions"`
	EmissionsCSV     string         `yaml:"emissions_csv"`
}

type BiomeConfig struct {
	Name      string  `yaml:"name"`
	VegC      float64 `yaml:"veg_c"`
	DetritusC float64 `yaml:"detritus_c"`
	SoilC     float64 `yaml:"soil_c"`
	NPP0      float64 `yaml:"npp0"`
	Beta      float64 `yaml:"beta"`
	Q10       float64 `yaml:"q10"`
}

type EmissionYear struct {
	Year  float64 `yaml:"year"`
	FFI   float64 `yaml:"ffi"`
	LUC   float64 `yaml:"luc"`
	DACCS float64 `yaml:"daccs"`
}

func DefaultConfig() *Config {
	return &Config{
		RunName:   "default",
		StartDate: DefaultStartDate,
		EndDate:   DefaultEndDate,
		ECS:       DefaultECS,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// CoreConfig translates the run-level settings into a core.Config.
func (c *Config) CoreConfig() core.Config {
	cc := core.DefaultConfig()
	cc.StartDate = c.StartDate
	cc.EndDate = c.EndDate
	cc.RunName = c.RunName
	if c.TrackingDate != 0 {
		cc.TrackingDate = c.TrackingDate
	}
	if c.SpinupMaxSteps != 0 {
		cc.SpinupMaxSteps = c.SpinupMaxSteps
	}
	return cc
}

// Apply pushes the configured parameters and emissions into an
// initialized core. It must run after Init and before PrepareToRun.
func (c *Config) Apply(hcore *core.Core) error {
	set := func(capability string, date float64, val unitval.Unitval) error {
		_, err := hcore.SendMessage(component.SetData, capability,
			component.MessageData{Date: date, Value: val})
		if err != nil {
			return fmt.Errorf("setting %s: %w", capability, err)
		}
		return nil
	}

	if c.PreindustrialCO2 != 0 {
		if err := set(components.CapPreindustrialCO2, component.NoDate,
			unitval.New(c.PreindustrialCO2, unitval.PPMvCO2)); err != nil {
			return err
		}
	}
	if c.ECS != 0 {
		if err := set(components.CapECS, component.NoDate,
			unitval.New(c.ECS, unitval.DegC)); err != nil {
			return err
		}
	}
	if c.Beta != 0 {
		if err := set(components.CapBeta, component.NoDate,
			unitval.New(c.Beta, unitval.Unitless)); err != nil {
			return err
		}
	}
	if c.Q10 != 0 {
		if err := set(components.CapQ10RH, component.NoDate,
			unitval.New(c.Q10, unitval.Unitless)); err != nil {
			return err
		}
	}

	flux := func(v float64) unitval.Unitval {
		return unitval.New(v, unitval.PgCPerYear)
	}
	for _, e := range c.Emissions {
		if err := set(components.CapFFIEmissions, e.Year, flux(e.FFI)); err != nil {
			return err
		}
		if err := set(components.CapLUCEmissions, e.Year, flux(e.LUC)); err != nil {
			return err
		}
		if err := set(components.CapDACCSUptake, e.Year, flux(e.DACCS)); err != nil {
			return err
		}
	}

	if len(c.Biomes) > 0 {
		comp, err := hcore.ComponentByName(components.CarbonCycleName)
		if err != nil {
			return err
		}
		carbon, ok := comp.(*components.CarbonCycle)
		if !ok {
			return fmt.Errorf("component %q is not the carbon cycle", components.CarbonCycleName)
		}
		for _, b := range c.Biomes {
			params := components.BiomeParams{NPP0: b.NPP0, Beta: b.Beta, Q10: b.Q10}
			if err := carbon.SetBiome(b.Name, b.VegC, b.DetritusC, b.SoilC, params); err != nil {
				return fmt.Errorf("configuring biome %s: %w", b.Name, err)
			}
		}
	}
	return nil
}
