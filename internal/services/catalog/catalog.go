// Package catalog is the static disease knowledge base: symptoms, favourable
// conditions, treatments, prevention and economic impact per disease.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed diseases.yaml
var defaultDiseases []byte

var (
	ErrDiseaseNotFound = errors.New("disease not found")
	ErrCropNotFound    = errors.New("no disease information for crop")
	ErrNoDiseases      = errors.New("no diseases specified")
	ErrInvalidSeverity = errors.New("severity must be one of low, medium, high")
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

type Conditions struct {
	TemperatureRange    string `yaml:"temperature_range" json:"temperature_range"`
	Humidity            string `yaml:"humidity" json:"humidity"`
	Rainfall            string `yaml:"rainfall" json:"rainfall"`
	FavorableConditions string `yaml:"favorable_conditions" json:"favorable_conditions"`
}

type Treatment struct {
	Chemical []string `yaml:"chemical" json:"chemical"`
	Organic  []string `yaml:"organic" json:"organic"`
	Cultural []string `yaml:"cultural" json:"cultural"`
}

// Record is one disease entry. Records are never mutated after load.
type Record struct {
	ID                     string     `yaml:"-" json:"id"`
	Name                   string     `yaml:"name" json:"name"`
	ScientificName         string     `yaml:"scientific_name" json:"scientific_name"`
	Crop                   string     `yaml:"crop" json:"crop"`
	Type                   string     `yaml:"type" json:"type"`
	Severity               string     `yaml:"severity" json:"severity"`
	Symptoms               []string   `yaml:"symptoms" json:"symptoms"`
	Conditions             Conditions `yaml:"conditions" json:"conditions"`
	Prevention             []string   `yaml:"prevention" json:"prevention"`
	Treatment              Treatment  `yaml:"treatment" json:"treatment"`
	EconomicImpact         string     `yaml:"economic_impact" json:"economic_impact"`
	StagesAffected         []string   `yaml:"stages_affected" json:"stages_affected"`
	GeographicDistribution string     `yaml:"geographic_distribution" json:"geographic_distribution"`
}

// Catalog is safe for concurrent use; every lookup reads immutable state.
type Catalog struct {
	records map[string]Record
	ids     []string
	byCrop  map[string][]string
	// buckets holds the precomputed prevention categories of every measure.
	buckets map[string][]preventionBucket
}

// Default parses the embedded disease table.
func Default() (*Catalog, error) {
	return Parse(defaultDiseases)
}

// Load reads a disease table from path, or the embedded one when path is
// empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read disease catalog %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var raw map[string]Record
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse disease catalog: %w", err)
	}

	c := &Catalog{
		records: make(map[string]Record, len(raw)),
		byCrop:  make(map[string][]string),
	}
	for id, r := range raw {
		key := normalizeID(id)
		r.ID = key
		r.Crop = strings.ToLower(strings.TrimSpace(r.Crop))
		if r.Name == "" || r.Crop == "" {
			return nil, fmt.Errorf("disease %s: name and crop are required", id)
		}
		if !validSeverity(r.Severity) {
			return nil, fmt.Errorf("disease %s: %w", id, ErrInvalidSeverity)
		}
		c.records[key] = r
		c.ids = append(c.ids, key)
	}
	sort.Strings(c.ids)
	for _, id := range c.ids {
		crop := c.records[id].Crop
		c.byCrop[crop] = append(c.byCrop[crop], id)
	}
	c.buckets = categorizeMeasures(c.records)
	return c, nil
}

// Get looks a disease up by id. The id is matched case-insensitively with
// spaces treated as underscores.
func (c *Catalog) Get(id string) (Record, error) {
	r, ok := c.records[normalizeID(id)]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrDiseaseNotFound, id)
	}
	return r, nil
}

// ByCrop lists the diseases of a crop ordered by id. Unknown crops yield an
// empty slice.
func (c *Catalog) ByCrop(crop string) []Record {
	ids := c.byCrop[strings.ToLower(strings.TrimSpace(crop))]
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.records[id])
	}
	return out
}

// PreventionMeasures returns a disease's prevention list.
func (c *Catalog) PreventionMeasures(diseaseID string) ([]string, bool) {
	r, ok := c.records[normalizeID(diseaseID)]
	if !ok || len(r.Prevention) == 0 {
		return nil, false
	}
	return r.Prevention, true
}

// CropStats counts a crop's diseases per severity tier.
type CropStats struct {
	TotalDiseases  int `json:"total_diseases"`
	HighSeverity   int `json:"high_severity"`
	MediumSeverity int `json:"medium_severity"`
	LowSeverity    int `json:"low_severity"`
}

type CropSupport struct {
	TotalCrops     int                  `json:"total_crops"`
	SupportedCrops []string             `json:"supported_crops"`
	CropStatistics map[string]CropStats `json:"crop_statistics"`
}

func (c *Catalog) SupportedCrops() CropSupport {
	crops := make([]string, 0, len(c.byCrop))
	stats := make(map[string]CropStats, len(c.byCrop))
	for crop, ids := range c.byCrop {
		crops = append(crops, crop)
		s := CropStats{TotalDiseases: len(ids)}
		for _, id := range ids {
			switch c.records[id].Severity {
			case SeverityHigh:
				s.HighSeverity++
			case SeverityMedium:
				s.MediumSeverity++
			case SeverityLow:
				s.LowSeverity++
			}
		}
		stats[crop] = s
	}
	sort.Strings(crops)
	return CropSupport{TotalCrops: len(crops), SupportedCrops: crops, CropStatistics: stats}
}

type Stats struct {
	TotalDiseases        int            `json:"total_diseases"`
	CropsCovered         int            `json:"crops_covered"`
	SeverityDistribution map[string]int `json:"severity_distribution"`
}

func (c *Catalog) Stats() Stats {
	dist := make(map[string]int)
	for _, r := range c.records {
		dist[r.Severity]++
	}
	return Stats{
		TotalDiseases:        len(c.records),
		CropsCovered:         len(c.byCrop),
		SeverityDistribution: dist,
	}
}

func normalizeID(id string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(id)), " ", "_")
}

func validSeverity(s string) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}
