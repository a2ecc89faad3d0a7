package geodata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{"districts": [
  {"id": "mh-pune", "state": "Maharashtra", "name": "Pune", "lat": "18.5204", "long": "73.8567"},
  {"id": "pb-ludhiana", "state": "Punjab", "name": "Ludhiana", "lat": "30.9010", "long": "75.8573"},
  {"id": "xx-broken", "state": "Nowhere", "name": "Broken", "lat": "north", "long": "1"}
]}`

func TestParseSkipsBadCoordinates(t *testing.T) {
	r, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	_, err = r.Lookup("Broken")
	assert.ErrorIs(t, err, ErrUnknownDistrict)
}

func TestLookup(t *testing.T) {
	r, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	for _, name := range []string{"Pune", "pune", "  PUNE ", "mh-pune"} {
		t.Run(name, func(t *testing.T) {
			d, err := r.Lookup(name)
			require.NoError(t, err)
			assert.Equal(t, "Pune", d.Name)
			assert.Equal(t, "Maharashtra", d.State)
			assert.InDelta(t, 18.5204, d.Lat, 1e-9)
		})
	}

	_, err = r.Lookup("Atlantis")
	assert.ErrorIs(t, err, ErrUnknownDistrict)
}

func TestDistrictsReturnsCopy(t *testing.T) {
	r, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	ds := r.Districts()
	ds[0].Name = "changed"
	assert.Equal(t, "Pune", r.Districts()[0].Name)
}

func TestLoadBundledFile(t *testing.T) {
	r, err := Load(filepath.Join("..", "..", "..", "data", "districts.json"))
	require.NoError(t, err)
	assert.Greater(t, r.Len(), 30)

	d, err := r.Lookup("Thanjavur")
	require.NoError(t, err)
	assert.Equal(t, "Tamil Nadu", d.State)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("[1,2"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}
