package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"iso-slope-tiles/internal/imageio"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Defaults for a fresh Config.
const (
	DefaultInputDir       = "./Input"
	DefaultOutputDir      = "./Output"
	DefaultTexture        = "./texture.png"
	DefaultTileWidth      = 256
	DefaultTileHeight     = 128
	DefaultIntensity      = 0.4
	DefaultTolerance      = 75.0 // on the 0-255 scale
	DefaultWorkers        = 1
	DefaultMontageTool    = "magick"
	DefaultMontageColumns = 4
	DefaultMontageRows    = 6
	DefaultMontageFile    = "terrain.png"
)

// DefaultExtensions are the mask file types picked up from the input folder.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg"}

// Config holds all configurable paths and tile settings.
type Config struct {
	// Paths
	BaseDir   string `json:"base_dir"`
	InputDir  string `json:"input_dir"`
	OutputDir string `json:"output_dir"`
	Texture   string `json:"texture"`

	// Tile settings
	TileWidth        int      `json:"tile_width"`
	TileHeight       int      `json:"tile_height"`
	ShadingIntensity *float64 `json:"shading_intensity,omitempty"` // nil means DefaultIntensity; 0 is texture only
	ColorTolerance   float64  `json:"color_tolerance"`

	// Output
	OutputFormat string   `json:"output_format"`
	Extensions   []string `json:"extensions"`
	Workers      int      `json:"workers"`

	// Montage
	MontageTool    string `json:"montage_tool"`
	MontageColumns int    `json:"montage_columns"`
	MontageRows    int    `json:"montage_rows"`
	MontageFile    string `json:"montage_file"`
}

// Default returns a Config with every documented default filled in.
func Default() Config {
	var c Config
	c.Resolve(Flags{})
	return c
}

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values until Resolve.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
// Zero values mean "not set", except Intensity where only nil does.
type Flags struct {
	InputDir    string
	OutputDir   string
	Texture     string
	TileWidth   int
	TileHeight  int
	Intensity   *float64
	Tolerance   float64
	Workers     int
	Format      string
	MontageTool string
	Columns     int
	Rows        int
}

// Resolve applies flag overrides, then fills empty fields with defaults.
// Relative paths are joined to BaseDir when one is set.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.InputDir != "" {
		c.InputDir = flags.InputDir
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Texture != "" {
		c.Texture = flags.Texture
	}
	if flags.TileWidth > 0 {
		c.TileWidth = flags.TileWidth
	}
	if flags.TileHeight > 0 {
		c.TileHeight = flags.TileHeight
	}
	if flags.Intensity != nil {
		v := *flags.Intensity
		c.ShadingIntensity = &v
	}
	if flags.Tolerance > 0 {
		c.ColorTolerance = flags.Tolerance
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Format != "" {
		c.OutputFormat = flags.Format
	}
	if flags.MontageTool != "" {
		c.MontageTool = flags.MontageTool
	}
	if flags.Columns > 0 {
		c.MontageColumns = flags.Columns
	}
	if flags.Rows > 0 {
		c.MontageRows = flags.Rows
	}

	if c.InputDir == "" {
		c.InputDir = DefaultInputDir
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.Texture == "" {
		c.Texture = DefaultTexture
	}
	if c.BaseDir != "" {
		c.InputDir = underBase(c.BaseDir, c.InputDir)
		c.OutputDir = underBase(c.BaseDir, c.OutputDir)
		c.Texture = underBase(c.BaseDir, c.Texture)
	}

	if c.TileWidth <= 0 {
		c.TileWidth = DefaultTileWidth
	}
	if c.TileHeight <= 0 {
		c.TileHeight = DefaultTileHeight
	}
	if c.ShadingIntensity == nil {
		v := DefaultIntensity
		c.ShadingIntensity = &v
	}
	if c.ColorTolerance == 0 {
		c.ColorTolerance = DefaultTolerance
	}
	if c.OutputFormat == "" {
		c.OutputFormat = string(imageio.PNG)
	}
	if len(c.Extensions) == 0 {
		c.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MontageTool == "" {
		c.MontageTool = DefaultMontageTool
	}
	if c.MontageColumns <= 0 {
		c.MontageColumns = DefaultMontageColumns
	}
	if c.MontageRows <= 0 {
		c.MontageRows = DefaultMontageRows
	}
	if c.MontageFile == "" {
		c.MontageFile = DefaultMontageFile
	}
}

// Validate reports settings that cannot produce a tile.
func (c *Config) Validate() error {
	if c.ColorTolerance < 0 || c.ColorTolerance > 255 {
		return fmt.Errorf("%w: color_tolerance %v outside 0-255", ErrInvalid, c.ColorTolerance)
	}
	if c.Intensity() < 0 {
		return fmt.Errorf("%w: shading_intensity %v is negative", ErrInvalid, c.Intensity())
	}
	if c.TileWidth <= 0 || c.TileHeight <= 0 {
		return fmt.Errorf("%w: tile size %dx%d", ErrInvalid, c.TileWidth, c.TileHeight)
	}
	if _, err := imageio.ParseFormat(c.OutputFormat); err != nil {
		return fmt.Errorf("%w: output_format: %v", ErrInvalid, err)
	}
	switch c.MontageTool {
	case "magick", "native", "auto", "none":
	default:
		return fmt.Errorf("%w: montage_tool %q (want magick, native, auto or none)", ErrInvalid, c.MontageTool)
	}
	for _, e := range c.Extensions {
		if !strings.HasPrefix(e, ".") {
			return fmt.Errorf("%w: extension %q must start with a dot", ErrInvalid, e)
		}
	}
	return nil
}

// Intensity returns the shading intensity, or DefaultIntensity when unset.
func (c *Config) Intensity() float64 {
	if c.ShadingIntensity == nil {
		return DefaultIntensity
	}
	return *c.ShadingIntensity
}

// Tolerance returns ColorTolerance normalized to [0,1].
func (c *Config) Tolerance() float64 { return c.ColorTolerance / 255.0 }

func underBase(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// ParseDims parses "WxH" as used by the -size and -grid flags.
func ParseDims(s string) (w, h int, err error) {
	if _, err := fmt.Sscanf(strings.ToLower(s), "%dx%d", &w, &h); err != nil {
		return 0, 0, fmt.Errorf("%w: dimensions %q: want WxH", ErrInvalid, s)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: dimensions %q must be positive", ErrInvalid, s)
	}
	return w, h, nil
}
