package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bje-/hector/internal/component"
	"github.com/bje-/hector/internal/components"
	"github.com/bje-/hector/internal/unitval"
)

func TestRegistryLifecycle(t *testing.T) {
	before := LiveCores()

	h1 := MakeCore(testConfig())
	h2 := MakeCore(testConfig())
	assert.NotEqual(t, h1, h2, "handles must be distinct")
	assert.Equal(t, before+2, LiveCores())

	c1, err := GetCore(h1)
	require.NoError(t, err)
	require.NotNil(t, c1)

	require.NoError(t, DeleteCore(h1))
	assert.Equal(t, before+1, LiveCores())

	_, err = GetCore(h1)
	assert.ErrorIs(t, err, ErrInstanceInvalid)
	assert.Error(t, DeleteCore(h1), "double delete must fail")

	require.NoError(t, DeleteCore(h2))
}

func TestRegistryUnknownHandle(t *testing.T) {
	_, err := GetCore(999999)
	assert.ErrorIs(t, err, ErrInstanceInvalid)
}

func TestRegistryInstancesAreIndependent(t *testing.T) {
	h1 := MakeCore(testConfig())
	h2 := MakeCore(testConfig())
	defer DeleteCore(h1)
	defer DeleteCore(h2)

	c1, err := GetCore(h1)
	require.NoError(t, err)
	c2, err := GetCore(h2)
	require.NoError(t, err)

	require.NoError(t, c1.Init())
	require.NoError(t, c2.Init())
	require.NoError(t, c1.PrepareToRun())
	require.NoError(t, c2.PrepareToRun())

	// heavy emissions in one instance only
	for year := 1751.0; year <= 1800; year++ {
		_, err := c1.SendMessage(component.SetData, components.CapFFIEmissions,
			component.MessageData{Date: year, Value: unitval.New(10, unitval.PgCPerYear)})
		require.NoError(t, err)
	}

	require.NoError(t, c1.Run(1800))
	require.NoError(t, c2.Run(1800))

	co2 := func(c *Core) float64 {
		v, err := c.SendMessage(component.GetData, components.CapAtmosphericCO2,
			component.MessageData{Date: 1800})
		require.NoError(t, err)
		return v.Magnitude()
	}
	assert.Greater(t, co2(c1), co2(c2)+50, "emissions in one instance must not leak into another")
}
