package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models dutydesk.yml.
type Config struct {
	Firm struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"firm"`
	Roles struct {
		// Privileged roles see every obligation's full client set; everyone
		// else sees only their own group assignments.
		Privileged []string `yaml:"privileged"`
	} `yaml:"roles"`
	Periods struct {
		MonthsBack    int `yaml:"months_back"`
		MonthsForward int `yaml:"months_forward"`
	} `yaml:"periods"`
	Workload struct {
		LongDayHours int `yaml:"long_day_hours"`
	} `yaml:"workload"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run duty init or any command to seed it", Path(workspace))
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Firm.ID == "" {
		return fmt.Errorf("config.firm.id is required")
	}
	if len(c.Roles.Privileged) == 0 {
		return fmt.Errorf("config.roles.privileged must list at least one role")
	}
	for _, r := range c.Roles.Privileged {
		if r == "" {
			return fmt.Errorf("config.roles.privileged contains an empty role")
		}
	}
	if c.Periods.MonthsBack < 0 || c.Periods.MonthsForward < 0 {
		return fmt.Errorf("config.periods window months must be non-negative")
	}
	if c.Workload.LongDayHours <= 0 {
		return fmt.Errorf("config.workload.long_day_hours must be positive")
	}
	return nil
}

// Privileged reports whether a role sees unfiltered completion matrices.
func (c *Config) Privileged(role string) bool {
	for _, r := range c.Roles.Privileged {
		if r == role {
			return true
		}
	}
	return false
}

// LongDay returns the configured long-day threshold as a duration.
func (c *Config) LongDay() time.Duration {
	return time.Duration(c.Workload.LongDayHours) * time.Hour
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "dutydesk.yml")
}

// Default returns the default Config struct for a firm.
func Default(firmID string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(GenerateDefault(firmID)), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(firmID string) string {
	return fmt.Sprintf(defaultTemplate, firmID)
}

const defaultTemplate = `firm:
  id: %s
  name: ""

roles:
  privileged: [admin, partner]

periods:
  months_back: 12
  months_forward: 12

workload:
  long_day_hours: 8
`
