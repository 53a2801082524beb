package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBlocks      = 10
	DefaultSteps       = 100
	DefaultTemperature = 0.7
	DefaultRCut        = 2.5
	DefaultDrMax       = 0.15
	DefaultBeads       = 8
	DefaultLambda      = 0.1
)

// Config holds one run's parameters, in reduced Lennard-Jones units.
type Config struct {
	Model         string  `yaml:"model"`
	Blocks        int     `yaml:"blocks"`
	StepsPerBlock int     `yaml:"steps_per_block"`
	Temperature   float64 `yaml:"temperature"`
	RCut          float64 `yaml:"r_cut"`
	DrMax         float64 `yaml:"dr_max"`
	Beads         int     `yaml:"beads"`
	Lambda        float64 `yaml:"lambda"` // de Boer length
	Seed          int64   `yaml:"seed"`
	ConfigDir     string  `yaml:"config_dir"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:         "lj",
		Blocks:        DefaultBlocks,
		StepsPerBlock: DefaultSteps,
		Temperature:   DefaultTemperature,
		RCut:          DefaultRCut,
		DrMax:         DefaultDrMax,
		Beads:         DefaultBeads,
		Lambda:        DefaultLambda,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks every parameter before a run starts. A failure here is
// fatal; the run never begins.
func (c *Config) Validate() error {
	if c.Blocks < 1 {
		return fmt.Errorf("blocks must be positive, got %d", c.Blocks)
	}
	if c.StepsPerBlock < 1 {
		return fmt.Errorf("steps_per_block must be positive, got %d", c.StepsPerBlock)
	}
	if c.Temperature <= 0 {
		return fmt.Errorf("temperature must be positive, got %f", c.Temperature)
	}
	if c.RCut <= 0 {
		return fmt.Errorf("r_cut must be positive, got %f", c.RCut)
	}
	if c.DrMax <= 0 {
		return fmt.Errorf("dr_max must be positive, got %f", c.DrMax)
	}
	if c.Beads < 2 || c.Beads > 99 {
		return fmt.Errorf("beads must be in [2, 99], got %d", c.Beads)
	}
	if c.Lambda <= 0 {
		return fmt.Errorf("lambda must be positive, got %f", c.Lambda)
	}
	return nil
}
