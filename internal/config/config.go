// Package config loads voxindex.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"voxelindex.ai/internal/blocks"
	"voxelindex.ai/internal/loaders"
	"voxelindex.ai/internal/preview"
)

type Config struct {
	Mode             string              `yaml:"mode"`
	Profile          string              `yaml:"profile"`
	OverridesPath    string              `yaml:"overrides_path"`
	Overrides        blocks.OverrideMaps `yaml:"overrides"`
	Workers          int                 `yaml:"workers"`
	Preview          preview.Options     `yaml:"preview"`
	DebugProjections bool                `yaml:"debug_projections"`
	Paths            Paths               `yaml:"paths"`
}

// Paths are resolved against the config file's directory when relative.
type Paths struct {
	DB      string `yaml:"db"`
	Thumbs  string `yaml:"thumbs"`
	Cache   string `yaml:"cache"`
	Reports string `yaml:"reports"`
	// ScanLog is a directory; empty disables the scan log.
	ScanLog string `yaml:"scan_log"`
}

// Load reads path on top of the defaults. An empty path yields the
// defaults rooted at the working directory.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize("")
		return cfg, cfg.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	cfg.Normalize(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

func Default() Config {
	return Config{
		Mode:    string(loaders.ModeStrictThenSalvage),
		Profile: string(blocks.ProfileLegacy112),
		Preview: preview.DefaultOptions(),
		Paths: Paths{
			DB:      ".voxindex/catalog.db",
			Thumbs:  ".voxindex/thumbs",
			Cache:   ".voxindex/cache",
			Reports: ".voxindex/reports",
		},
	}
}

// Normalize trims values, fills zero preview fields from the defaults and
// anchors relative paths at baseDir.
func (c *Config) Normalize(baseDir string) {
	if c == nil {
		return
	}
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	c.Profile = strings.TrimSpace(c.Profile)
	c.OverridesPath = strings.TrimSpace(c.OverridesPath)

	def := preview.DefaultOptions()
	if c.Preview.Size == 0 {
		c.Preview.Size = def.Size
	}
	if c.Preview.FovDeg == 0 {
		c.Preview.FovDeg = def.FovDeg
	}

	anchor := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" || filepath.IsAbs(p) || baseDir == "" {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	c.OverridesPath = anchor(c.OverridesPath)
	c.Paths.DB = anchor(c.Paths.DB)
	c.Paths.Thumbs = anchor(c.Paths.Thumbs)
	c.Paths.Cache = anchor(c.Paths.Cache)
	c.Paths.Reports = anchor(c.Paths.Reports)
	c.Paths.ScanLog = anchor(c.Paths.ScanLog)
}

func (c Config) Validate() error {
	var errs []error
	if _, err := loaders.ParseMode(c.Mode); err != nil {
		errs = append(errs, err)
	}
	if _, err := blocks.ParseProfile(c.Profile); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if err := c.Preview.Validate(); err != nil {
		errs = append(errs, err)
	}
	for name, p := range map[string]string{"db": c.Paths.DB, "thumbs": c.Paths.Thumbs, "cache": c.Paths.Cache, "reports": c.Paths.Reports} {
		if p == "" {
			errs = append(errs, fmt.Errorf("paths.%s is required", name))
		}
	}
	return errors.Join(errs...)
}

func (c Config) ParsedMode() loaders.Mode {
	m, err := loaders.ParseMode(c.Mode)
	if err != nil {
		return loaders.ModeStrictThenSalvage
	}
	return m
}

// Registry builds the block registry: the profile, then the overrides
// file, then inline overrides. A profile named in the overrides file wins.
func (c Config) Registry() (*blocks.Registry, error) {
	profile, err := blocks.ParseProfile(c.Profile)
	if err != nil {
		return nil, err
	}
	var ov *blocks.Overrides
	if c.OverridesPath != "" {
		ov, err = blocks.LoadOverrides(c.OverridesPath)
		if err != nil {
			return nil, err
		}
	}
	inline := &blocks.Overrides{Overrides: c.Overrides}
	if !inline.Empty() {
		ov = ov.Merge(inline)
	}
	return blocks.New(profile, ov)
}
