package types

type RawDistrict struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Name  string `json:"name"`
	Lat   string `json:"lat"`
	Long  string `json:"long"`
}

type District struct {
	ID    string  `json:"id"`
	State string  `json:"state"`
	Name  string  `json:"name"`
	Lat   float64 `json:"lat"`
	Long  float64 `json:"long"`
}

type GeoData struct {
	Districts []RawDistrict `json:"districts"`
}

// RiskLevel is the ordinal onset-likelihood category of an assessment.
type RiskLevel string

const (
	RiskNegligible RiskLevel = "negligible"
	RiskLow        RiskLevel = "low"
	RiskMedium     RiskLevel = "medium"
	RiskHigh       RiskLevel = "high"
)

// Rank orders levels for sorting. Negligible sits below low.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	default:
		return -1
	}
}

// WeatherObservation is a single weather snapshot supplied by the caller or
// the weather provider.
type WeatherObservation struct {
	Temperature   float64  `json:"temperature"`
	Humidity      float64  `json:"humidity"`
	Rainfall      float64  `json:"rainfall"`
	WindSpeed     *float64 `json:"wind_speed,omitempty"`
	SunshineHours *float64 `json:"sunshine_hours,omitempty"`
}

// ForecastDay is one day of a forecast. Nil fields fall back to the current
// observation when scored.
type ForecastDay struct {
	Date        string   `json:"date,omitempty"`
	TempAvg     *float64 `json:"temp_avg,omitempty"`
	HumidityAvg *float64 `json:"humidity_avg,omitempty"`
	Rainfall    *float64 `json:"rainfall,omitempty"`
}

// WeatherReport is what the weather provider returns for a district.
type WeatherReport struct {
	District  string             `json:"district"`
	Current   WeatherObservation `json:"current"`
	Forecast  []ForecastDay      `json:"forecast"`
	FetchedAt string             `json:"fetched_at"`
}

// WeatherInput is the loosely filled current_weather object of a request.
type WeatherInput struct {
	Temperature   *float64 `json:"temperature"`
	Humidity      *float64 `json:"humidity" validate:"omitempty,gte=0,lte=100"`
	Rainfall      *float64 `json:"rainfall" validate:"omitempty,gte=0"`
	WindSpeed     *float64 `json:"wind_speed" validate:"omitempty,gte=0"`
	SunshineHours *float64 `json:"sunshine_hours" validate:"omitempty,gte=0,lte=24"`
}

// Observation fills missing temperature, humidity and rainfall with 25°C,
// 60% and 0mm.
func (w WeatherInput) Observation() WeatherObservation {
	obs := WeatherObservation{
		Temperature:   25,
		Humidity:      60,
		Rainfall:      0,
		WindSpeed:     w.WindSpeed,
		SunshineHours: w.SunshineHours,
	}
	if w.Temperature != nil {
		obs.Temperature = *w.Temperature
	}
	if w.Humidity != nil {
		obs.Humidity = *w.Humidity
	}
	if w.Rainfall != nil {
		obs.Rainfall = *w.Rainfall
	}
	return obs
}

type WeatherRiskRequest struct {
	Crop                string        `json:"crop" validate:"required"`
	District            string        `json:"district" validate:"required"`
	CurrentWeather      *WeatherInput `json:"current_weather"`
	ForecastHorizonDays *int          `json:"forecast_horizon_days"`
	Forecast            []ForecastDay `json:"forecast,omitempty"`
}

type RiskAssessment struct {
	Disease               string    `json:"disease"`
	RiskLevel             RiskLevel `json:"risk_level"`
	DaysUntilExpected     int       `json:"days_until_expected"`
	PreventiveAction      string    `json:"preventive_action"`
	Confidence            float64   `json:"confidence"`
	EnvironmentalTriggers []string  `json:"environmental_triggers"`
}

type WeatherRiskResponse struct {
	Crop                string           `json:"crop"`
	District            string           `json:"district"`
	ForecastHorizonDays int              `json:"forecast_horizon_days"`
	ForecastSource      string           `json:"forecast_source"`
	RiskModel           string           `json:"risk_model"`
	Risks               []RiskAssessment `json:"risks"`
	GeneratedAt         string           `json:"generated_at"`
}

type WeatherMLRequest struct {
	Weather  WeatherInput `json:"weather"`
	CropType string       `json:"crop_type"`
}

type ClassProbability struct {
	Disease     string  `json:"disease"`
	Probability float64 `json:"probability"`
}

type WeatherPrediction struct {
	Status           string             `json:"status"`
	PredictedDisease string             `json:"predicted_disease"`
	Confidence       float64            `json:"confidence"`
	AllProbabilities map[string]float64 `json:"all_probabilities"`
	TopRisks         []ClassProbability `json:"top_risks"`
	CropType         string             `json:"crop_type"`
}

type ImageAnalysisRequest struct {
	ImageData string `json:"image_data" validate:"required"`
	CropType  string `json:"crop_type"`
}

type DetectedDisease struct {
	Disease          string   `json:"disease"`
	Confidence       float64  `json:"confidence"`
	DetectionMethod  string   `json:"detection_method"`
	SymptomsDetected []string `json:"symptoms_detected"`
}

type ImageQuality struct {
	Sharpness  string `json:"sharpness"`
	Brightness string `json:"brightness"`
	Resolution string `json:"resolution"`
}

type SpotAnalysis struct {
	BrownCoverage  float64 `json:"brown_coverage"`
	YellowCoverage float64 `json:"yellow_coverage"`
	TotalCoverage  float64 `json:"total_coverage"`
}

type ImageAnalysis struct {
	Status            string            `json:"status"`
	CropType          string            `json:"crop_type"`
	Diseases          []DetectedDisease `json:"diseases"`
	Confidence        float64           `json:"confidence"`
	Recommendations   []string          `json:"recommendations"`
	ImageQuality      ImageQuality      `json:"image_quality"`
	DiseaseIndicators []string          `json:"disease_indicators"`
	SpotAnalysis      SpotAnalysis      `json:"spot_analysis"`
}

type SymptomSearchRequest struct {
	Symptoms []string `json:"symptoms" validate:"required,min=1,dive,required"`
	Crop     string   `json:"crop,omitempty"`
}

type TreatmentRequest struct {
	DiseaseID         string `json:"disease_id" validate:"required"`
	Severity          string `json:"severity" validate:"omitempty,oneof=low medium high"`
	OrganicPreference bool   `json:"organic_preference"`
}

type EconomicImpactRequest struct {
	DiseaseIDs []string `json:"disease_ids" validate:"required,min=1"`
}

// OpenMeteoForecastResponse is the subset of the open-meteo forecast payload
// used for disease scoring.
type OpenMeteoForecastResponse struct {
	Current struct {
		Time          string  `json:"time"`
		Temperature2m float64 `json:"temperature_2m"`
		Humidity2m    float64 `json:"relative_humidity_2m"`
		Precipitation float64 `json:"precipitation"`
		WindSpeed10m  float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Daily struct {
		Time              []string   `json:"time"`
		Temperature2mMean []*float64 `json:"temperature_2m_mean"`
		Humidity2mMean    []*float64 `json:"relative_humidity_2m_mean"`
		PrecipitationSum  []*float64 `json:"precipitation_sum"`
		SunshineDuration  []*float64 `json:"sunshine_duration"`
	} `json:"daily"`
}
