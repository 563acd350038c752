// Package ensemble runs a set of configuration variants concurrently,
// one engine instance per member, and collects their final diagnostics.
// Instances are fully independent, so members need no coordination
// beyond the final gather.
package ensemble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bje-/hector/internal/component"
	"github.com/bje-/hector/internal/components"
	"github.com/bje-/hector/internal/config"
	"github.com/bje-/hector/internal/core"
)

// Member is one ensemble variant: a label plus a mutation applied to a
// copy of the base configuration.
type Member struct {
	Name string
	Vary func(cfg *config.Config)
}

// Result holds one member's sampled diagnostics at the target date.
type Result struct {
	Name   string
	Finals map[string]float64
}

// finalCaps are the capabilities sampled from each finished member.
var finalCaps = []string{
	components.CapAtmosphericCO2,
	components.CapRFTotal,
	components.CapGlobalTAS,
}

// Runner drives an ensemble from a shared base configuration.
type Runner struct {
	base   *config.Config
	toDate float64
}

func New(base *config.Config, toDate float64) *Runner {
	if toDate <= 0 {
		toDate = base.EndDate
	}
	return &Runner{base: base, toDate: toDate}
}

// Run executes every member on its own goroutine and returns results in
// member order. The first member error fails the whole ensemble.
func (r *Runner) Run(ctx context.Context, members []Member) ([]Result, error) {
	results := make([]Result, len(members))
	errs := make([]error, len(members))

	var wg sync.WaitGroup
	for i, m := range members {
		wg.Add(1)
		go func(idx int, m Member) {
			defer wg.Done()
			results[idx], errs[idx] = r.runMember(ctx, m)
		}(i, m)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", members[i].Name, err)
		}
	}
	return results, nil
}

func (r *Runner) runMember(ctx context.Context, m Member) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	cfg := cloneConfig(r.base)
	if m.Vary != nil {
		m.Vary(cfg)
	}
	cfg.RunName = m.Name

	handle := core.MakeCore(cfg.CoreConfig())
	defer core.DeleteCore(handle)

	hcore, err := core.GetCore(handle)
	if err != nil {
		return Result{}, err
	}
	if err := hcore.Init(); err != nil {
		return Result{}, err
	}
	if err := cfg.Apply(hcore); err != nil {
		return Result{}, err
	}
	if err := hcore.PrepareToRun(); err != nil {
		return Result{}, err
	}

	// step in decade strides so cancellation lands between strides
	for t := hcore.StartDate() + 10; t < r.toDate; t += 10 {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := hcore.Run(t); err != nil {
			return Result{}, err
		}
	}
	if err := hcore.Run(r.toDate); err != nil {
		return Result{}, err
	}

	res := Result{Name: m.Name, Finals: make(map[string]float64)}
	for _, cap := range finalCaps {
		v, err := hcore.SendMessage(component.GetData, cap,
			component.MessageData{Date: hcore.CurrentDate()})
		if err != nil {
			return Result{}, err
		}
		res.Finals[cap] = v.Magnitude()
	}
	return res, nil
}

func cloneConfig(c *config.Config) *config.Config {
	out := *c
	out.Biomes = append([]config.BiomeConfig(nil), c.Biomes...)
	out.Emissions = append([]config.EmissionYear(nil), c.Emissions...)
	return &out
}

// ParameterSweep builds one member per value of a named scalar
// parameter. Recognized parameters: ecs, beta, q10, preindustrial_co2.
func ParameterSweep(param string, values []float64) ([]Member, error) {
	var apply func(cfg *config.Config, v float64)
	switch strings.ToLower(param) {
	case "ecs":
		apply = func(cfg *config.Config, v float64) { cfg.ECS = v }
	case "beta":
		apply = func(cfg *config.Config, v float64) { cfg.Beta = v }
	case "q10":
		apply = func(cfg *config.Config, v float64) { cfg.Q10 = v }
	case "preindustrial_co2":
		apply = func(cfg *config.Config, v float64) { cfg.PreindustrialCO2 = v }
	default:
		return nil, fmt.Errorf("unknown sweep parameter %q", param)
	}

	members := make([]Member, len(values))
	for i, v := range values {
		v := v
		members[i] = Member{
			Name: fmt.Sprintf("%s_%g", param, v),
			Vary: func(cfg *config.Config) { apply(cfg, v) },
		}
	}
	return members, nil
}
