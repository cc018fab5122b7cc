package blocks

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Overrides extends or replaces profile entries. A set Profile also selects
// the base table.
type Overrides struct {
	Profile   ProfileName  `yaml:"profile"`
	Overrides OverrideMaps `yaml:"overrides"`
}

type OverrideMaps struct {
	Namespaced map[string]string `yaml:"namespaced"`
	Legacy     map[string]string `yaml:"legacy"`
}

func (o *Overrides) Empty() bool {
	return o == nil || (o.Profile == "" && len(o.Overrides.Namespaced) == 0 && len(o.Overrides.Legacy) == 0)
}

// Merge layers other on top of o and returns the result.
func (o *Overrides) Merge(other *Overrides) *Overrides {
	out := &Overrides{}
	for _, src := range []*Overrides{o, other} {
		if src == nil {
			continue
		}
		if src.Profile != "" {
			out.Profile = src.Profile
		}
		for k, v := range src.Overrides.Namespaced {
			if out.Overrides.Namespaced == nil {
				out.Overrides.Namespaced = map[string]string{}
			}
			out.Overrides.Namespaced[k] = v
		}
		for k, v := range src.Overrides.Legacy {
			if out.Overrides.Legacy == nil {
				out.Overrides.Legacy = map[string]string{}
			}
			out.Overrides.Legacy[k] = v
		}
	}
	return out
}

func LoadOverrides(path string) (*Overrides, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ov Overrides
	if err := yaml.Unmarshal(raw, &ov); err != nil {
		return nil, fmt.Errorf("block overrides %s: %w", path, err)
	}
	if strings.TrimSpace(string(ov.Profile)) != "" {
		p, err := ParseProfile(strings.TrimSpace(string(ov.Profile)))
		if err != nil {
			return nil, fmt.Errorf("block overrides %s: %w", path, err)
		}
		ov.Profile = p
	}
	return &ov, nil
}
