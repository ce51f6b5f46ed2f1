package audit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/KashishBagga/pamm/pkg/common/logger"
	"github.com/KashishBagga/pamm/pkg/common/middleware"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	repo *Repository
}

func NewHTTPHandler(repo *Repository) *HTTPHandler {
	return &HTTPHandler{repo: repo}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/patients/audit", h.handleList).Methods(http.MethodGet)
}

type listResponse struct {
	Success bool    `json:"success"`
	Data    []Entry `json:"data"`
	Total   int64   `json:"total"`
	Page    int     `json:"page"`
	Limit   int     `json:"limit"`
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page := queryInt(r, "page", 1, 1, 1_000_000)
	limit := queryInt(r, "limit", 50, 1, 100)

	entries, total, err := h.repo.List(r.Context(), principal.ID, page, limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to query audit trail")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listResponse{
		Success: true,
		Data:    entries,
		Total:   total,
		Page:    page,
		Limit:   limit,
	})
}

func queryInt(r *http.Request, key string, def, min, max int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < min {
		return def
	}
	if value > max {
		return max
	}
	return value
}
