package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shuv1824/kisan/internal/history"
	"github.com/shuv1824/kisan/internal/response"
)

type historyPage struct {
	Crop    string          `json:"crop,omitempty"`
	Count   int             `json:"count"`
	Entries []history.Entry `json:"entries"`
}

// RecentHistory lists recent predictions, newest first.
func (h *Handler) RecentHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			response.ErrorJSON(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	crop := strings.ToLower(strings.TrimSpace(q.Get("crop")))
	entries, err := h.History.Recent(r.Context(), crop, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, historyPage{Crop: crop, Count: len(entries), Entries: entries})
}
