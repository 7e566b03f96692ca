package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Empty()

	assert.Equal(t, DefaultSourceURL, cfg.GetSourceURL())
	assert.Equal(t, 30*time.Second, cfg.GetFetchTimeout())
	assert.Equal(t, 4, cfg.GetWindowSize())
	assert.Equal(t, 0.03, cfg.GetRGBTolerance())
	assert.Equal(t, 0.75, cfg.GetDarkenFloor())
	assert.Equal(t, [3]uint8{0, 0, 255}, cfg.GetHighlightColor())
	assert.Equal(t, 0.7, cfg.GetStabilityThreshold())
	assert.Equal(t, []string{"10:00", "19:00"}, cfg.GetUpdateTimesUTC())
	assert.Equal(t, 25, cfg.GetRegionMinCells())
	assert.Equal(t, 2.0, cfg.GetRegionEps())
	assert.Equal(t, "", cfg.GetOutputDir())

	west, east, north, south := cfg.GetBounds()
	assert.Equal(t, 12.09, west)
	assert.Equal(t, 18.87, east)
	assert.Equal(t, 51.06, north)
	assert.Equal(t, 48.55, south)
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, "partial.json", `{
		"window_size": 6,
		"update_times_utc": ["06:30"],
		"fetch_timeout": "10s"
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.GetWindowSize())
	assert.Equal(t, []string{"06:30"}, cfg.GetUpdateTimesUTC())
	assert.Equal(t, 10*time.Second, cfg.GetFetchTimeout())

	// Everything else keeps its default.
	assert.Equal(t, DefaultSourceURL, cfg.GetSourceURL())
	assert.Equal(t, 0.75, cfg.GetDarkenFloor())
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	path := writeConfig(t, "config.yaml", `{}`)
	_, err := Load(path)
	assert.ErrorContains(t, err, ".json extension")
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := writeConfig(t, "broken.json", `{"window_size": `)
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config JSON")
}

func TestValidate(t *testing.T) {
	intPtr := func(v int) *int { return &v }
	floatPtr := func(v float64) *float64 { return &v }
	strPtr := func(v string) *string { return &v }

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero window", func(c *Config) { c.WindowSize = intPtr(0) }, "window_size"},
		{"negative tolerance", func(c *Config) { c.RGBTolerance = floatPtr(-0.1) }, "rgb_tolerance"},
		{"tolerance above one", func(c *Config) { c.RGBTolerance = floatPtr(1.5) }, "rgb_tolerance"},
		{"darken floor above one", func(c *Config) { c.DarkenFloor = floatPtr(1.2) }, "darken_floor"},
		{"zero stability", func(c *Config) { c.StabilityThreshold = floatPtr(0) }, "stability_threshold"},
		{"bad timeout", func(c *Config) { c.FetchTimeout = strPtr("fast") }, "fetch_timeout"},
		{"bad update time", func(c *Config) { c.UpdateTimesUTC = []string{"25:00"} }, "update time"},
		{"zero min cells", func(c *Config) { c.RegionMinCells = intPtr(0) }, "region_min_cells"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Empty()
			tc.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}

	assert.NoError(t, Empty().Validate())
}

func TestParseWallClock(t *testing.T) {
	hour, minute, err := ParseWallClock("19:05")
	require.NoError(t, err)
	assert.Equal(t, 19, hour)
	assert.Equal(t, 5, minute)

	for _, bad := range []string{"24:00", "10:60", "-1:30", "noon"} {
		_, _, err := ParseWallClock(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
