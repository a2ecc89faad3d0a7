package catalog

import (
	"fmt"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

type preventionBucket int

const (
	bucketVarietySelection preventionBucket = iota
	bucketFieldManagement
	bucketNutrition
	bucketSanitation
)

// bucketKeywords drives the best-effort keyword classification of prevention
// measures. A measure may land in several buckets; one matching none is
// "other".
var bucketKeywords = map[preventionBucket][]string{
	bucketVarietySelection: {"resistant", "variety"},
	bucketFieldManagement:  {"spacing", "drainage", "irrigation", "rotation"},
	bucketNutrition:        {"fertiliz", "nutrition", "nitrogen"},
	bucketSanitation:       {"debris", "clean", "remove", "destroy"},
}

func categorizeMeasures(records map[string]Record) map[string][]preventionBucket {
	var keywords []string
	var owner []preventionBucket
	for b := bucketVarietySelection; b <= bucketSanitation; b++ {
		for _, kw := range bucketKeywords[b] {
			keywords = append(keywords, kw)
			owner = append(owner, b)
		}
	}
	matcher := ahocorasick.NewStringMatcher(keywords)

	out := make(map[string][]preventionBucket)
	for _, r := range records {
		for _, measure := range r.Prevention {
			if _, done := out[measure]; done {
				continue
			}
			seen := make(map[preventionBucket]bool)
			var buckets []preventionBucket
			for _, hit := range matcher.Match([]byte(strings.ToLower(measure))) {
				if b := owner[hit]; !seen[b] {
					seen[b] = true
					buckets = append(buckets, b)
				}
			}
			out[measure] = buckets
		}
	}
	return out
}

type PreventionCategories struct {
	VarietySelection []string `json:"variety_selection"`
	FieldManagement  []string `json:"field_management"`
	Nutrition        []string `json:"nutrition"`
	Sanitation       []string `json:"sanitation"`
	Other            []string `json:"other"`
}

type MonitoringSchedule struct {
	Daily   []string `json:"daily"`
	Weekly  []string `json:"weekly"`
	Monthly []string `json:"monthly"`
}

type PreventionGuide struct {
	Crop               string               `json:"crop"`
	TotalDiseases      int                  `json:"total_diseases"`
	MajorDiseases      []string             `json:"major_diseases"`
	GeneralPrevention  PreventionCategories `json:"general_prevention"`
	MonitoringSchedule MonitoringSchedule   `json:"monitoring_schedule"`
	// CriticalPeriods maps a growth stage to the diseases that affect it.
	CriticalPeriods map[string][]string `json:"critical_periods"`
}

// PreventionGuide merges the prevention measures of every disease of a crop,
// de-duplicated in first-seen order and grouped by keyword bucket.
func (c *Catalog) PreventionGuide(crop string) (PreventionGuide, error) {
	diseases := c.ByCrop(crop)
	if len(diseases) == 0 {
		return PreventionGuide{}, fmt.Errorf("%w: %s", ErrCropNotFound, crop)
	}

	guide := PreventionGuide{
		Crop:          diseases[0].Crop,
		TotalDiseases: len(diseases),
		MajorDiseases: []string{},
		GeneralPrevention: PreventionCategories{
			VarietySelection: []string{},
			FieldManagement:  []string{},
			Nutrition:        []string{},
			Sanitation:       []string{},
			Other:            []string{},
		},
		MonitoringSchedule: MonitoringSchedule{
			Daily:   []string{"Visual inspection of plants", "Check for pest damage"},
			Weekly:  []string{"Disease symptom monitoring", "Environmental condition assessment"},
			Monthly: []string{"Soil health evaluation", "Prevention measure effectiveness review"},
		},
		CriticalPeriods: make(map[string][]string),
	}

	seen := make(map[string]bool)
	for _, d := range diseases {
		if d.Severity == SeverityHigh {
			guide.MajorDiseases = append(guide.MajorDiseases, d.Name)
		}
		for _, stage := range d.StagesAffected {
			guide.CriticalPeriods[stage] = append(guide.CriticalPeriods[stage], d.Name)
		}

		for _, measure := range d.Prevention {
			if seen[measure] {
				continue
			}
			seen[measure] = true

			p := &guide.GeneralPrevention
			buckets := c.buckets[measure]
			if len(buckets) == 0 {
				p.Other = append(p.Other, measure)
			}
			for _, b := range buckets {
				switch b {
				case bucketVarietySelection:
					p.VarietySelection = append(p.VarietySelection, measure)
				case bucketFieldManagement:
					p.FieldManagement = append(p.FieldManagement, measure)
				case bucketNutrition:
					p.Nutrition = append(p.Nutrition, measure)
				case bucketSanitation:
					p.Sanitation = append(p.Sanitation, measure)
				}
			}
		}
	}
	return guide, nil
}

// Season labels of the disease calendar.
const (
	SeasonSpring      = "spring"
	SeasonSummer      = "summer"
	SeasonMonsoon     = "monsoon"
	SeasonPostMonsoon = "post_monsoon"
	SeasonWinter      = "winter"
)

type CalendarEntry struct {
	Disease       string `json:"disease"`
	Severity      string `json:"severity"`
	KeyConditions string `json:"key_conditions"`
}

type Calendar struct {
	Crop                    string                     `json:"crop"`
	Region                  string                     `json:"region"`
	SeasonalDiseaseCalendar map[string][]CalendarEntry `json:"seasonal_disease_calendar"`
	GeneralRecommendations  []string                   `json:"general_recommendations"`
}

// DiseaseCalendar assigns each disease of a crop to seasons with substring
// checks on its condition text. It is a coarse heuristic:
//
//	rainfall mentions "high" or ">10"           -> monsoon
//	"cool" conditions or a 15-25 range          -> winter
//	"hot" conditions or a 28-35 range           -> summer
//	anything else                               -> spring and post_monsoon
func (c *Catalog) DiseaseCalendar(crop, region string) (Calendar, error) {
	diseases := c.ByCrop(crop)
	if len(diseases) == 0 {
		return Calendar{}, fmt.Errorf("%w: %s", ErrCropNotFound, crop)
	}
	if region == "" {
		region = "general"
	}

	seasons := map[string][]CalendarEntry{
		SeasonSpring:      {},
		SeasonSummer:      {},
		SeasonMonsoon:     {},
		SeasonPostMonsoon: {},
		SeasonWinter:      {},
	}
	for _, d := range diseases {
		cond := d.Conditions
		entry := CalendarEntry{
			Disease:       d.Name,
			Severity:      d.Severity,
			KeyConditions: fmt.Sprintf("Temp: %s, Humidity: %s, Rainfall: %s", cond.TemperatureRange, cond.Humidity, cond.Rainfall),
		}
		for _, season := range seasonsFor(cond) {
			seasons[season] = append(seasons[season], entry)
		}
	}

	return Calendar{
		Crop:                    diseases[0].Crop,
		Region:                  region,
		SeasonalDiseaseCalendar: seasons,
		GeneralRecommendations: []string{
			"Monitor weather forecasts regularly",
			"Adjust management practices based on seasonal risks",
			"Prepare treatment materials before high-risk periods",
			"Maintain detailed field records",
		},
	}, nil
}

func seasonsFor(cond Conditions) []string {
	rainfall := strings.ToLower(cond.Rainfall)
	favorable := strings.ToLower(cond.FavorableConditions)

	switch {
	case strings.Contains(rainfall, "high") || strings.Contains(cond.Rainfall, ">10"):
		return []string{SeasonMonsoon}
	case strings.Contains(favorable, "cool") || strings.Contains(cond.TemperatureRange, "15-25"):
		return []string{SeasonWinter}
	case strings.Contains(favorable, "hot") || strings.Contains(cond.TemperatureRange, "28-35"):
		return []string{SeasonSummer}
	default:
		return []string{SeasonSpring, SeasonPostMonsoon}
	}
}
