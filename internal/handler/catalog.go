package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/shuv1824/kisan/internal/response"
	"github.com/shuv1824/kisan/internal/services/catalog"
	"github.com/shuv1824/kisan/internal/types"
)

func (h *Handler) DiseaseInfo(w http.ResponseWriter, r *http.Request) {
	record, err := h.Catalog.Get(mux.Vars(r)["disease_id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, record)
}

type cropDiseases struct {
	Crop          string           `json:"crop"`
	TotalDiseases int              `json:"total_diseases"`
	Diseases      []catalog.Record `json:"diseases"`
}

func (h *Handler) CropDiseases(w http.ResponseWriter, r *http.Request) {
	crop := mux.Vars(r)["crop"]
	records := h.Catalog.ByCrop(crop)
	if len(records) == 0 {
		h.writeError(w, fmt.Errorf("%w: %s", catalog.ErrCropNotFound, crop))
		return
	}
	response.JSON(w, http.StatusOK, cropDiseases{
		Crop:          strings.ToLower(crop),
		TotalDiseases: len(records),
		Diseases:      records,
	})
}

type symptomSearch struct {
	SearchedSymptoms []string               `json:"searched_symptoms"`
	Crop             string                 `json:"crop,omitempty"`
	TotalMatches     int                    `json:"total_matches"`
	Matches          []catalog.SymptomMatch `json:"matches"`
}

func (h *Handler) SearchSymptoms(w http.ResponseWriter, r *http.Request) {
	var req types.SymptomSearchRequest
	if !h.decode(w, r, &req) {
		return
	}

	matches := h.Catalog.SearchBySymptoms(req.Symptoms, req.Crop)
	response.JSON(w, http.StatusOK, symptomSearch{
		SearchedSymptoms: req.Symptoms,
		Crop:             req.Crop,
		TotalMatches:     len(matches),
		Matches:          matches,
	})
}

func (h *Handler) Treatment(w http.ResponseWriter, r *http.Request) {
	var req types.TreatmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	plan, err := h.Catalog.TreatmentRecommendations(req.DiseaseID, req.Severity, req.OrganicPreference)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, plan)
}

func (h *Handler) Prevention(w http.ResponseWriter, r *http.Request) {
	guide, err := h.Catalog.PreventionGuide(mux.Vars(r)["crop"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, guide)
}

func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	cal, err := h.Catalog.DiseaseCalendar(mux.Vars(r)["crop"], r.URL.Query().Get("region"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, cal)
}

func (h *Handler) EconomicImpact(w http.ResponseWriter, r *http.Request) {
	var req types.EconomicImpactRequest
	if !h.decode(w, r, &req) {
		return
	}

	analysis, err := h.Catalog.EconomicImpact(req.DiseaseIDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, analysis)
}

type supportedCrops struct {
	catalog.CropSupport
	RiskModelCrops []string      `json:"risk_model_crops"`
	Catalog        catalog.Stats `json:"catalog"`
}

func (h *Handler) SupportedCrops(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, supportedCrops{
		CropSupport:    h.Catalog.SupportedCrops(),
		RiskModelCrops: h.Engine.SupportedCrops(),
		Catalog:        h.Catalog.Stats(),
	})
}
