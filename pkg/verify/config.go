package verify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RunConfig is the optional per-run YAML configuration. Anything it sets
// overrides the corresponding Options field; anything it omits keeps the
// registry-resolved default.
type RunConfig struct {
	Profile        string             `yaml:"profile,omitempty"`
	Mode           string             `yaml:"mode,omitempty"`
	DeliveryTarget string             `yaml:"delivery_target,omitempty"`
	Thresholds     map[string]float64 `yaml:"thresholds,omitempty"`
}

// LoadRunConfig reads and validates a run configuration file.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load run config %q: %w", path, err)
	}

	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse run config %q: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("run config %q: %w", path, err)
	}
	return &cfg, nil
}

func (c *RunConfig) validate() error {
	switch c.Mode {
	case "", "off", "warn", "error":
	default:
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	switch c.DeliveryTarget {
	case "", "pdf", "html":
	default:
		return fmt.Errorf("invalid delivery target %q", c.DeliveryTarget)
	}
	for name, v := range c.Thresholds {
		if v < 0 {
			return fmt.Errorf("threshold %q is negative", name)
		}
	}
	return nil
}

// apply overlays the config onto options.
func (c *RunConfig) apply(opts *Options) {
	if c.Profile != "" {
		opts.Profile = c.Profile
	}
	if c.Mode != "" {
		opts.Mode = c.Mode
	}
	if c.DeliveryTarget != "" {
		opts.DeliveryTarget = c.DeliveryTarget
	}
	if len(c.Thresholds) > 0 {
		if opts.Thresholds == nil {
			opts.Thresholds = make(map[string]float64, len(c.Thresholds))
		}
		for k, v := range c.Thresholds {
			opts.Thresholds[k] = v
		}
	}
}
