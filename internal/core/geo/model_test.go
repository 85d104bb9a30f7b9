package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-hypergrid/pkg/types"
)

func TestModel_Regions(t *testing.T) {
	m := New(0)
	assert.Equal(t, []string{"NA", "EU", "AS", "SA", "AF", "OC", "ME"}, m.RegionCodes())

	c, ok := m.Centroid("EU")
	require.True(t, ok)
	assert.InDelta(t, 50.0, c.Lat, 0.01)

	_, ok = m.Region("XX")
	assert.False(t, ok)
}

func TestModel_EveryRegionHasInventory(t *testing.T) {
	m := New(0)
	for _, code := range m.RegionCodes() {
		inv, err := m.Inventory(code)
		require.NoError(t, err, code)
		assert.Greater(t, inv.Cities, 3, code)
		assert.Greater(t, inv.ASNs, 3, code)
		assert.Equal(t, inv.Cities*inv.ASNs, inv.Locations, code)

		for _, city := range m.Cities(code) {
			assert.Equal(t, code, city.Region)
		}
		for _, a := range m.ASNs(code) {
			assert.True(t, a.Serves(code))
		}
	}
}

func TestModel_UnknownRegion(t *testing.T) {
	m := New(0)
	_, err := m.SampleCity(rand.New(rand.NewSource(1)), "XX")
	assert.ErrorIs(t, err, ErrUnknownRegion)
	assert.Nil(t, m.Cities("XX"))
}

func TestModel_SamplingDeterministic(t *testing.T) {
	m := New(0)
	a, err := m.SampleDistinctLocations(rand.New(rand.NewSource(42)), "NA", 12)
	require.NoError(t, err)
	b, err := m.SampleDistinctLocations(rand.New(rand.NewSource(42)), "NA", 12)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	seen := make(map[string]bool)
	for _, loc := range a {
		assert.False(t, seen[loc.Key()], "duplicate location %s", loc.Key())
		seen[loc.Key()] = true
	}
}

func TestModel_CapacityError(t *testing.T) {
	m := New(0)
	inv, err := m.Inventory("OC")
	require.NoError(t, err)

	_, err = m.SampleDistinctLocations(rand.New(rand.NewSource(1)), "OC", inv.Locations+1)
	var capErr *types.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "OC", capErr.Region)
	assert.Equal(t, inv.Locations, capErr.Available)
	assert.ErrorIs(t, err, types.ErrCapacity)

	// 有放回采样不受库存限制
	locs, err := m.SampleLocations(rand.New(rand.NewSource(1)), "OC", inv.Locations+5)
	require.NoError(t, err)
	assert.Len(t, locs, inv.Locations+5)

	_, err = m.SampleDistinctCities(rand.New(rand.NewSource(1)), "OC", inv.Cities+1)
	assert.ErrorIs(t, err, types.ErrCapacity)
	cities, err := m.SampleDistinctCities(rand.New(rand.NewSource(1)), "OC", inv.Cities)
	require.NoError(t, err)
	assert.Len(t, cities, inv.Cities)
}

func TestModel_WeightedSamplingFavoursLargeCities(t *testing.T) {
	m := New(0)
	rng := rand.New(rand.NewSource(7))
	counts := make(map[string]int)
	for i := 0; i < 5000; i++ {
		c, err := m.SampleCity(rng, "NA")
		require.NoError(t, err)
		counts[c.Name]++
	}
	assert.Greater(t, counts["Mexico City"], counts["Denver"])
	assert.Greater(t, counts["New York"], counts["Miami"])
}

func TestDistance(t *testing.T) {
	london := types.Coordinates{Lat: 51.51, Lon: -0.13}
	nyc := types.Coordinates{Lat: 40.71, Lon: -74.01}

	d := Distance(london, nyc)
	assert.InDelta(t, 5570, d, 30)
	assert.InDelta(t, 0, Distance(nyc, nyc), 1e-9)
	assert.InDelta(t, d, Distance(nyc, london), 1e-9)

	rtt := RTTMs(london, nyc)
	assert.Greater(t, rtt, 60.0)
	assert.Less(t, rtt, 100.0)
	assert.False(t, math.IsNaN(PropagationMs(d)))
}
