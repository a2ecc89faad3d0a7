package risk

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed conditions.yaml
var defaultConditions []byte

// ConditionModel holds the thresholds that drive rule-based scoring for one
// (crop, disease) pair.
type ConditionModel struct {
	Name             string    `yaml:"-"`
	TemperatureRange []float64 `yaml:"temperature_range"`
	HumidityMin      float64   `yaml:"humidity_min"`
	RainfallMin      float64   `yaml:"rainfall_min"`
	CriticalDays     int       `yaml:"critical_days"`
	SeverityFactors  []string  `yaml:"severity_factors"`
	PreventiveAction string    `yaml:"preventive_action"`
}

// Validate reports a model that cannot be scored.
func (m ConditionModel) Validate() error {
	if len(m.TemperatureRange) != 2 {
		return fmt.Errorf("%s: temperature_range needs exactly two bounds", m.Name)
	}
	if m.TemperatureRange[0] > m.TemperatureRange[1] {
		return fmt.Errorf("%s: temperature_range lower bound above upper bound", m.Name)
	}
	if m.CriticalDays <= 0 {
		return fmt.Errorf("%s: critical_days must be positive", m.Name)
	}
	return nil
}

// Conditions is the read-only crop -> diseases table. Diseases of a crop are
// kept sorted by name so scoring order never depends on map iteration.
type Conditions struct {
	crops map[string][]ConditionModel
}

// DefaultConditions parses the embedded table.
func DefaultConditions() (*Conditions, error) {
	return ParseConditions(defaultConditions)
}

// LoadConditions reads a YAML table from disk, or the embedded default when
// path is empty.
func LoadConditions(path string) (*Conditions, error) {
	if path == "" {
		return DefaultConditions()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read conditions %s: %w", path, err)
	}
	return ParseConditions(data)
}

func ParseConditions(data []byte) (*Conditions, error) {
	var raw map[string]map[string]ConditionModel
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse conditions: %w", err)
	}

	c := &Conditions{crops: make(map[string][]ConditionModel, len(raw))}
	for crop, diseases := range raw {
		models := make([]ConditionModel, 0, len(diseases))
		for name, m := range diseases {
			m.Name = name
			models = append(models, m)
		}
		sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
		c.crops[normalizeCrop(crop)] = models
	}
	return c, nil
}

// ForCrop returns the models for a crop, or nil when the crop is unknown.
func (c *Conditions) ForCrop(crop string) []ConditionModel {
	return c.crops[normalizeCrop(crop)]
}

func (c *Conditions) Crops() []string {
	crops := make([]string, 0, len(c.crops))
	for crop := range c.crops {
		crops = append(crops, crop)
	}
	sort.Strings(crops)
	return crops
}

func (c *Conditions) ModelCount() int {
	n := 0
	for _, models := range c.crops {
		n += len(models)
	}
	return n
}

func normalizeCrop(crop string) string {
	return strings.ToLower(strings.TrimSpace(crop))
}
