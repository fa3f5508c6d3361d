package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var regionsGrid = domain.Grid{West: 29.5, North: 4.3, CellSize: 0.05, Width: 110, Height: 116}

func writeRegions(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadRegions_EmptyPathUsesGridBounds(t *testing.T) {
	r, err := LoadRegions("", regionsGrid)
	require.NoError(t, err)
	assert.Equal(t, domain.BoundsPolygon(regionsGrid), r.AOI)
	assert.Empty(t, r.Regions)
}

func TestLoadRegions_ParsesAOIAndRegions(t *testing.T) {
	path := writeRegions(t, `
aoi:
  name: uganda
  ring:
    - {lon: 29.5, lat: 4.3}
    - {lon: 35.0, lat: 4.3}
    - {lon: 35.0, lat: -1.5}
    - {lon: 29.5, lat: -1.5}
regions:
  - name: Northern
    ring:
      - {lon: 30.0, lat: 4.0}
      - {lon: 34.0, lat: 4.0}
      - {lon: 34.0, lat: 2.0}
  - name: Central
    ring:
      - {lon: 31.0, lat: 1.0}
      - {lon: 33.0, lat: 1.0}
      - {lon: 33.0, lat: 0.0}
      - {lon: 31.0, lat: 0.0}
`)

	r, err := LoadRegions(path, regionsGrid)
	require.NoError(t, err)
	assert.Equal(t, "uganda", r.AOI.Name)
	assert.Len(t, r.AOI.Ring, 4)
	require.Len(t, r.Regions, 2)
	assert.Equal(t, "Northern", r.Regions[0].Name)
	assert.Equal(t, domain.Point{Lon: 31.0, Lat: 1.0}, r.Regions[1].Ring[0])
	assert.True(t, r.Regions[1].Contains(32, 0.5))
}

func TestLoadRegions_MissingAOIDefaultsToBounds(t *testing.T) {
	path := writeRegions(t, `
regions:
  - name: Central
    ring: [{lon: 31, lat: 1}, {lon: 33, lat: 1}, {lon: 33, lat: 0}]
`)
	r, err := LoadRegions(path, regionsGrid)
	require.NoError(t, err)
	assert.Equal(t, domain.BoundsPolygon(regionsGrid), r.AOI)
}

func TestLoadRegions_Errors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "degenerate aoi",
			body: "aoi:\n  name: line\n  ring: [{lon: 30, lat: 1}, {lon: 31, lat: 1}]\n",
			want: "aoi",
		},
		{
			name: "unnamed region",
			body: "regions:\n  - ring: [{lon: 31, lat: 1}, {lon: 33, lat: 1}, {lon: 33, lat: 0}]\n",
			want: "no name",
		},
		{
			name: "degenerate region",
			body: "regions:\n  - name: West\n    ring: [{lon: 31, lat: 1}]\n",
			want: "West",
		},
		{
			name: "malformed yaml",
			body: "regions: [",
			want: "parse regions file",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadRegions(writeRegions(t, tc.body), regionsGrid)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadRegions_MissingFile(t *testing.T) {
	_, err := LoadRegions(filepath.Join(t.TempDir(), "nope.yaml"), regionsGrid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read regions file")
}
