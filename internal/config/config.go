// Package config holds the runtime configuration for the map compositing
// service. Fields are pointers so a partial JSON file only overrides what it
// names; the Get* accessors supply compiled defaults for everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultSourceURL is the published growth-probability map.
const DefaultSourceURL = "https://info.chmi.cz/bio/maps/houby_1.png"

// Config is the root configuration. The schema doubles as the payload of
// the /api/config endpoint so the same JSON works for startup configuration
// and for inspection at runtime.
type Config struct {
	// Fetch params
	SourceURL    *string `json:"source_url,omitempty"`
	FetchTimeout *string `json:"fetch_timeout,omitempty"` // duration string like "30s"

	// History params
	WindowSize *int `json:"window_size,omitempty"`

	// Classification params
	RGBTolerance *float64 `json:"rgb_tolerance,omitempty"` // relative per-channel tolerance

	// Overlay render params
	DarkenFloor        *float64  `json:"darken_floor,omitempty"`
	HighlightColor     *[3]uint8 `json:"highlight_color,omitempty"`
	StabilityThreshold *float64  `json:"stability_threshold,omitempty"`

	// Schedule params: "HH:MM" wall-clock times, UTC
	UpdateTimesUTC []string `json:"update_times_utc,omitempty"`

	// Geographic bounds of the map image, for region export
	BoundsWest  *float64 `json:"bounds_west,omitempty"`
	BoundsEast  *float64 `json:"bounds_east,omitempty"`
	BoundsNorth *float64 `json:"bounds_north,omitempty"`
	BoundsSouth *float64 `json:"bounds_south,omitempty"`

	// Region extraction params
	RegionMinCells *int     `json:"region_min_cells,omitempty"`
	RegionEps      *float64 `json:"region_eps,omitempty"` // neighborhood radius in pixels

	// Artifact mirror directory ("" disables mirroring)
	OutputDir *string `json:"output_dir,omitempty"`
}

// Empty returns a Config with all fields unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json extension
// and stay under the size cap. Fields omitted from the JSON retain their
// defaults, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.WindowSize != nil && *c.WindowSize < 1 {
		return fmt.Errorf("window_size must be at least 1, got %d", *c.WindowSize)
	}

	if c.RGBTolerance != nil {
		if *c.RGBTolerance < 0 || *c.RGBTolerance > 1 {
			return fmt.Errorf("rgb_tolerance must be between 0 and 1, got %f", *c.RGBTolerance)
		}
	}

	if c.DarkenFloor != nil {
		if *c.DarkenFloor < 0 || *c.DarkenFloor > 1 {
			return fmt.Errorf("darken_floor must be between 0 and 1, got %f", *c.DarkenFloor)
		}
	}

	if c.StabilityThreshold != nil {
		if *c.StabilityThreshold <= 0 || *c.StabilityThreshold > 1 {
			return fmt.Errorf("stability_threshold must be in (0, 1], got %f", *c.StabilityThreshold)
		}
	}

	if c.FetchTimeout != nil && *c.FetchTimeout != "" {
		if _, err := time.ParseDuration(*c.FetchTimeout); err != nil {
			return fmt.Errorf("invalid fetch_timeout '%s': %w", *c.FetchTimeout, err)
		}
	}

	for _, ts := range c.UpdateTimesUTC {
		if _, _, err := ParseWallClock(ts); err != nil {
			return fmt.Errorf("invalid update time %q: %w", ts, err)
		}
	}

	if c.RegionMinCells != nil && *c.RegionMinCells < 1 {
		return fmt.Errorf("region_min_cells must be at least 1, got %d", *c.RegionMinCells)
	}

	return nil
}

// ParseWallClock parses an "HH:MM" time-of-day string.
func ParseWallClock(s string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("expected HH:MM: %w", err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time of day out of range: %02d:%02d", hour, minute)
	}
	return hour, minute, nil
}

// GetSourceURL returns the configured map source URL or the default.
func (c *Config) GetSourceURL() string {
	if c.SourceURL == nil || *c.SourceURL == "" {
		return DefaultSourceURL
	}
	return *c.SourceURL
}

// GetFetchTimeout parses and returns the fetch timeout.
func (c *Config) GetFetchTimeout() time.Duration {
	if c.FetchTimeout == nil || *c.FetchTimeout == "" {
		return 30 * time.Second // default
	}
	d, err := time.ParseDuration(*c.FetchTimeout)
	if err != nil {
		return 30 * time.Second // default on parse error
	}
	return d
}

// GetWindowSize returns the history window bound or the default.
func (c *Config) GetWindowSize() int {
	if c.WindowSize == nil {
		return 4
	}
	return *c.WindowSize
}

// GetRGBTolerance returns the relative per-channel color match tolerance.
func (c *Config) GetRGBTolerance() float64 {
	if c.RGBTolerance == nil {
		return 0.03
	}
	return *c.RGBTolerance
}

// GetDarkenFloor returns the minimum brightness factor for the overlay render.
func (c *Config) GetDarkenFloor() float64 {
	if c.DarkenFloor == nil {
		return 0.75
	}
	return *c.DarkenFloor
}

// GetHighlightColor returns the overlay highlight color.
func (c *Config) GetHighlightColor() [3]uint8 {
	if c.HighlightColor == nil {
		return [3]uint8{0, 0, 255}
	}
	return *c.HighlightColor
}

// GetStabilityThreshold returns the summed-weight threshold above which a
// very-high cell is considered stable and highlighted in the overlay.
func (c *Config) GetStabilityThreshold() float64 {
	if c.StabilityThreshold == nil {
		return 0.7
	}
	return *c.StabilityThreshold
}

// GetUpdateTimesUTC returns the scheduled daily run times.
func (c *Config) GetUpdateTimesUTC() []string {
	if len(c.UpdateTimesUTC) == 0 {
		return []string{"10:00", "19:00"}
	}
	return c.UpdateTimesUTC
}

// GetBounds returns the geographic bounds (west, east, north, south) of the
// rendered map area. Defaults cover the Czech Republic.
func (c *Config) GetBounds() (west, east, north, south float64) {
	west, east, north, south = 12.09, 18.87, 51.06, 48.55
	if c.BoundsWest != nil {
		west = *c.BoundsWest
	}
	if c.BoundsEast != nil {
		east = *c.BoundsEast
	}
	if c.BoundsNorth != nil {
		north = *c.BoundsNorth
	}
	if c.BoundsSouth != nil {
		south = *c.BoundsSouth
	}
	return west, east, north, south
}

// GetRegionMinCells returns the minimum cluster size for region export.
func (c *Config) GetRegionMinCells() int {
	if c.RegionMinCells == nil {
		return 25
	}
	return *c.RegionMinCells
}

// GetRegionEps returns the DBSCAN neighborhood radius in pixels.
func (c *Config) GetRegionEps() float64 {
	if c.RegionEps == nil {
		return 2.0
	}
	return *c.RegionEps
}

// GetOutputDir returns the artifact mirror directory, or "" when disabled.
func (c *Config) GetOutputDir() string {
	if c.OutputDir == nil {
		return ""
	}
	return *c.OutputDir
}
